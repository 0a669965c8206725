package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"poly-trader/internal/config"
	"poly-trader/internal/market"
)

const (
	// fixedFeePercent 为交易所固定费率折算的成本百分比。
	fixedFeePercent = 2.0
	// maxEffectiveCostPercent 为价差加费率的综合成本上限。
	maxEffectiveCostPercent = 5.0
)

type bookAnalyzer interface {
	Analyze(ctx context.Context, tokenID string) (market.Analysis, error)
}

type slippageEstimator interface {
	EstimateSlippage(ctx context.Context, tokenID, side string, amountUSD float64) (float64, error)
}

// Verdict 为闸门给出的放行/拒绝结论。
type Verdict struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Gate 将深度、综合成本与滑点检查合并成一个只读的放行判断，
// 从不提交委托，可独立于执行路径调用。
type Gate struct {
	analyzer bookAnalyzer
	slippage slippageEstimator
	cfg      config.ExecutorConfig
	logger   *zap.Logger
}

// NewGate 创建流动性与成本闸门。
func NewGate(analyzer bookAnalyzer, slippage slippageEstimator, cfg config.ExecutorConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		analyzer: analyzer,
		slippage: slippage,
		cfg:      cfg,
		logger:   logger,
	}
}

// CanExecute 给出指定代币、指定名义金额的执行放行判断。
// 行情故障同样转化为拒绝结论，不向调用方抛出。
func (g *Gate) CanExecute(ctx context.Context, tokenID string, amountUSD float64) Verdict {
	analysis, err := g.analyzer.Analyze(ctx, tokenID)
	if err != nil {
		return Verdict{OK: false, Reason: fmt.Sprintf("盘口分析失败: %v", err)}
	}

	if depth := analysis.TotalDepthUSD(); depth < g.cfg.MinLiquidityUSD {
		return Verdict{OK: false, Reason: fmt.Sprintf("流动性不足: 盘口深度 %.0f USD 低于下限 %.0f USD",
			depth, g.cfg.MinLiquidityUSD)}
	}

	if cost := analysis.SpreadPercent + fixedFeePercent; cost > maxEffectiveCostPercent {
		return Verdict{OK: false, Reason: fmt.Sprintf("综合成本过高: 价差加费率 %.2f%% 超过上限 %.2f%%",
			cost, maxEffectiveCostPercent)}
	}

	// 统一用买方向探测滑点，作为该金额的保守估计。
	estimated, err := g.slippage.EstimateSlippage(ctx, tokenID, "buy", amountUSD)
	if err != nil {
		return Verdict{OK: false, Reason: fmt.Sprintf("滑点估算失败: %v", err)}
	}
	if estimated > g.cfg.MaxSlippagePercent {
		return Verdict{OK: false, Reason: fmt.Sprintf("滑点 %.2f%% 超过上限 %.2f%%",
			estimated, g.cfg.MaxSlippagePercent)}
	}

	g.logger.Debug("闸门放行",
		zap.String("token_id", tokenID),
		zap.Float64("amount_usd", amountUSD),
		zap.Float64("depth_usd", analysis.TotalDepthUSD()),
		zap.Float64("slippage_percent", estimated),
	)

	return Verdict{OK: true}
}
