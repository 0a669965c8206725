package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/execution"
	"poly-trader/internal/monitor"
)

// startIntakeServer 暴露信号接收、执行建议与事件查询三个接口。
func startIntakeServer(ctx context.Context, orch *orchestrator, port int, logger *zap.Logger) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/signals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var sig execution.Signal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			http.Error(w, fmt.Sprintf("解析信号失败: %v", err), http.StatusBadRequest)
			return
		}

		if err := orch.Submit(r.Context(), sig); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/advice", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		tokenID := strings.TrimSpace(q.Get("token_id"))
		if tokenID == "" {
			http.Error(w, "缺少 token_id 参数", http.StatusBadRequest)
			return
		}
		amount, err := strconv.ParseFloat(q.Get("amount_usd"), 64)
		if err != nil || amount <= 0 {
			http.Error(w, "amount_usd 必须为正数", http.StatusBadRequest)
			return
		}
		gweiPrice := 0.0
		if raw := q.Get("gwei_price"); raw != "" {
			if v, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil && v > 0 {
				gweiPrice = v
			}
		}

		advice := orch.Advice(r.Context(), tokenID, amount, gweiPrice)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(advice); err != nil {
			logger.Warn("写入建议响应失败", zap.Error(err))
		}
	})

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 200
		if qs := q.Get("limit"); qs != "" {
			if v, err := strconv.Atoi(qs); err == nil && v > 0 {
				if v > 1000 {
					v = 1000
				}
				limit = v
			}
		}

		eventType := monitor.EventType("")
		if typ := strings.TrimSpace(q.Get("type")); typ != "" {
			eventType = monitor.EventType(strings.ToLower(typ))
		}

		events, err := orch.monitor.ListEvents(r.Context(), eventType, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(events); err != nil {
			logger.Warn("写入事件响应失败", zap.Error(err))
		}
	})

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("关闭接收服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("接收服务异常退出", zap.Error(err))
		}
	}()

	logger.Info("信号接收服务已启动", zap.String("addr", addr))
	return nil
}
