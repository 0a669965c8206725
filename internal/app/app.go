package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/config"
	"poly-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 启动信号接收服务与执行主循环，阻塞直至退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("执行引擎已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("clob", a.cfg.CLOB.BaseURL),
		zap.Int64("chain_id", a.cfg.Chain.ChainID),
	)

	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := startIntakeServer(ctx, orch, a.cfg.Intake.ListenPort, a.logger); err != nil {
		return fmt.Errorf("启动信号接收服务失败: %w", err)
	}

	loopInterval := a.cfg.Intake.LoopInterval
	if loopInterval <= 0 {
		loopInterval = 10 * time.Second
	}

	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-ticker.C:
			if err := orch.Tick(ctx); err != nil {
				a.logger.Error("执行调度失败", zap.Error(err))
			}
		}
	}
}
