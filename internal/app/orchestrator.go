package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/batch"
	"poly-trader/internal/clob"
	"poly-trader/internal/config"
	"poly-trader/internal/execution"
	"poly-trader/internal/gas"
	"poly-trader/internal/market"
	"poly-trader/internal/monitor"
	"poly-trader/internal/risk"
	"poly-trader/internal/store"
)

// orchestrator 串联信号接收、闸门判断、执行与链上操作聚合。
type orchestrator struct {
	executor execution.Trader
	gate     *risk.Gate
	advisor  *gas.Advisor
	batcher  *batch.Batcher
	monitor  *monitor.Service
	logger   *zap.Logger

	signals chan execution.Signal
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, store *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	monitorSvc, err := monitor.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	marketSvc := market.NewService(market.NewClient(cfg.CLOB), logger)

	signer, err := clob.NewSigner(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("初始化签名器失败: %w", err)
	}
	clobClient := clob.NewClient(cfg.CLOB, signer, logger)

	executor := execution.NewExecutor(marketSvc, marketSvc, clobClient, cfg.Executor, logger)
	gate := risk.NewGate(marketSvc, marketSvc, cfg.Executor, logger)
	advisor := gas.NewAdvisor(cfg.Gas, logger)

	batcher := batch.NewBatcher(cfg.Gas, func(plan batch.FlushPlan) {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		monitorSvc.RecordBatchFlush(flushCtx, plan)
	}, logger)

	return &orchestrator{
		executor: executor,
		gate:     gate,
		advisor:  advisor,
		batcher:  batcher,
		monitor:  monitorSvc,
		logger:   logger,
		signals:  make(chan execution.Signal, cfg.Intake.QueueSize),
	}, nil
}

// Submit 接收外部信号并排队等待下一轮执行。
func (o *orchestrator) Submit(ctx context.Context, sig execution.Signal) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("信号校验失败: %w", err)
	}

	select {
	case o.signals <- sig:
	default:
		return fmt.Errorf("信号队列已满，当前容量 %d", cap(o.signals))
	}

	o.monitor.RecordSignal(ctx, sig)
	o.logger.Info("信号已入队",
		zap.String("token_id", sig.TokenID),
		zap.String("side", string(sig.Side)),
		zap.Float64("amount_usd", sig.AmountUSD),
	)
	return nil
}

// Tick 排空当前信号队列并按顺序执行，每个成功成交追加一个待聚合的链上操作。
func (o *orchestrator) Tick(ctx context.Context) error {
	pending := o.drain()
	if len(pending) == 0 {
		return nil
	}

	results := o.executor.ExecuteBatch(ctx, pending)

	for _, result := range results {
		o.monitor.RecordExecution(ctx, result)

		if !result.Success {
			o.logger.Warn("信号执行失败",
				zap.String("token_id", result.Signal.TokenID),
				zap.String("reason", result.Error),
			)
			continue
		}

		o.logger.Info("信号执行完成",
			zap.String("token_id", result.Signal.TokenID),
			zap.String("order_id", result.OrderID),
			zap.Float64("fill_size", result.FillSize),
			zap.Float64("fill_amount_usd", result.FillAmountUSD),
		)

		if _, err := o.batcher.Enqueue(batch.OperationOrder, map[string]interface{}{
			"order_id":        result.OrderID,
			"token_id":        result.Signal.TokenID,
			"fill_amount_usd": result.FillAmountUSD,
		}); err != nil {
			o.logger.Warn("追加链上操作失败", zap.Error(err))
		}
	}

	return nil
}

func (o *orchestrator) drain() []execution.Signal {
	pending := make([]execution.Signal, 0, len(o.signals))
	for {
		select {
		case sig := <-o.signals:
			pending = append(pending, sig)
		default:
			return pending
		}
	}
}

// adviceResponse 聚合闸门判定与成本建议，供查询接口使用。
type adviceResponse struct {
	TokenID         string               `json:"token_id"`
	AmountUSD       float64              `json:"amount_usd"`
	Verdict         risk.Verdict         `json:"verdict"`
	Recommendations []gas.Recommendation `json:"recommendations"`
}

// Advice 返回指定代币与金额的放行判定和成本建议，不提交任何委托。
func (o *orchestrator) Advice(ctx context.Context, tokenID string, amountUSD, gweiPrice float64) adviceResponse {
	verdict := o.gate.CanExecute(ctx, tokenID, amountUSD)
	o.monitor.RecordGateVerdict(ctx, tokenID, amountUSD, verdict)

	return adviceResponse{
		TokenID:         tokenID,
		AmountUSD:       amountUSD,
		Verdict:         verdict,
		Recommendations: o.advisor.Recommendations(amountUSD, gweiPrice, 0),
	}
}

// Close 取消批次计时器。
func (o *orchestrator) Close() {
	o.batcher.Destroy()
}
