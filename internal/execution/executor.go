package execution

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/clob"
	"poly-trader/internal/config"
	"poly-trader/internal/market"
)

// epsilon 为价格让步下限：限价永远停在对手价内侧，不跨越价差变成事实市价单。
const epsilon = 0.001

type bookAnalyzer interface {
	Analyze(ctx context.Context, tokenID string) (market.Analysis, error)
}

type slippageEstimator interface {
	EstimateSlippage(ctx context.Context, tokenID, side string, amountUSD float64) (float64, error)
}

type submissionClient interface {
	CreateOrder(ctx context.Context, args clob.OrderArgs) (clob.SignedOrder, error)
	PostOrder(ctx context.Context, order clob.SignedOrder, orderType string) (clob.PostResult, error)
}

// Executor 将交易信号转化为一笔或多笔限价委托。
// 实例归单一逻辑调用方所有，内部不做并发保护。
type Executor struct {
	analyzer bookAnalyzer
	slippage slippageEstimator
	client   submissionClient
	cfg      config.ExecutorConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor 创建执行器。
func NewExecutor(analyzer bookAnalyzer, slippage slippageEstimator, client submissionClient, cfg config.ExecutorConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		analyzer: analyzer,
		slippage: slippage,
		client:   client,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute 执行挂单路径：闸门检查、价格让步、大额拆单、顺序提交、聚合结果。
// 任何故障都转化为失败结果返回，不向调用方抛出。
func (e *Executor) Execute(ctx context.Context, sig Signal) ExecutionResult {
	startedAt := e.now()

	if err := e.validate(sig); err != nil {
		return failure(sig, startedAt, err.Error())
	}

	analysis, err := e.analyzer.Analyze(ctx, sig.TokenID)
	if err != nil {
		return failure(sig, startedAt, fmt.Sprintf("盘口分析失败: %v", err))
	}

	if analysis.TotalDepthUSD() < e.cfg.MinLiquidityUSD {
		return failure(sig, startedAt, fmt.Sprintf("流动性不足: 盘口深度 %.0f USD 低于下限 %.0f USD",
			analysis.TotalDepthUSD(), e.cfg.MinLiquidityUSD))
	}

	estimated, err := e.slippage.EstimateSlippage(ctx, sig.TokenID, string(sig.Side), sig.AmountUSD)
	if err != nil {
		return failure(sig, startedAt, fmt.Sprintf("滑点估算失败: %v", err))
	}
	if estimated > e.cfg.MaxSlippagePercent {
		return failure(sig, startedAt, fmt.Sprintf("滑点过高: 预估 %.2f%% 超过上限 %.2f%%",
			estimated, e.cfg.MaxSlippagePercent))
	}

	price := improvedPrice(sig.Side, analysis, e.cfg.PriceImprovementCents)
	chunks := splitAmount(sig.AmountUSD, e.cfg.SplitThresholdUSD, e.cfg.SplitCount)

	e.logger.Info("开始提交挂单",
		zap.String("token_id", sig.TokenID),
		zap.String("side", string(sig.Side)),
		zap.Float64("amount_usd", sig.AmountUSD),
		zap.Float64("limit_price", price),
		zap.Int("chunks", len(chunks)),
	)

	var (
		totalSize   float64
		lastOrderID string
	)

	for i, chunk := range chunks {
		size := round2(chunk / price)
		if size <= 0 {
			e.logger.Warn("拆单金额过小，跳过",
				zap.Int("chunk", i),
				zap.Float64("chunk_usd", chunk),
			)
			continue
		}

		result, err := e.submit(ctx, sig, price, size, clob.OrderTypeGTC)
		if err != nil {
			// 单笔故障不终止整体执行，剩余拆单继续。
			e.logger.Warn("拆单提交故障",
				zap.Int("chunk", i),
				zap.Bool("retryable", clob.IsRetryable(err)),
				zap.Error(err),
			)
			continue
		}
		if !result.Success {
			e.logger.Warn("拆单被交易所拒绝",
				zap.Int("chunk", i),
				zap.String("reason", result.ErrorMsg),
			)
			continue
		}

		totalSize += size
		lastOrderID = result.OrderID
	}

	if totalSize <= 0 {
		return failure(sig, startedAt, "全部拆单均被拒绝")
	}

	return ExecutionResult{
		Success:       true,
		OrderID:       lastOrderID,
		FillPrice:     price,
		FillSize:      totalSize,
		FillAmountUSD: totalSize * price,
		Signal:        sig,
		ExecutedAt:    startedAt,
	}
}

// ExecuteFAK 执行即时成交路径：只过流动性闸，直接使用信号价格，单笔提交不拆单。
// 拒单即终局，不重试。
func (e *Executor) ExecuteFAK(ctx context.Context, sig Signal) ExecutionResult {
	startedAt := e.now()

	if err := e.validate(sig); err != nil {
		return failure(sig, startedAt, err.Error())
	}

	analysis, err := e.analyzer.Analyze(ctx, sig.TokenID)
	if err != nil {
		return failure(sig, startedAt, fmt.Sprintf("盘口分析失败: %v", err))
	}

	if analysis.TotalDepthUSD() < e.cfg.MinLiquidityUSD {
		return failure(sig, startedAt, fmt.Sprintf("流动性不足: 盘口深度 %.0f USD 低于下限 %.0f USD",
			analysis.TotalDepthUSD(), e.cfg.MinLiquidityUSD))
	}

	price := sig.Price
	size := round2(sig.AmountUSD / price)
	if size <= 0 {
		return failure(sig, startedAt, "委托数量换算后为零")
	}

	result, err := e.submit(ctx, sig, price, size, clob.OrderTypeFOK)
	if err != nil {
		return failure(sig, startedAt, fmt.Sprintf("FAK 提交故障: %v", err))
	}
	if !result.Success {
		return failure(sig, startedAt, fmt.Sprintf("FAK 委托被拒绝: %s", result.ErrorMsg))
	}

	return ExecutionResult{
		Success:       true,
		OrderID:       result.OrderID,
		FillPrice:     price,
		FillSize:      size,
		FillAmountUSD: size * price,
		Signal:        sig,
		ExecutedAt:    startedAt,
	}
}

// ExecuteBatch 严格按输入顺序逐个执行信号，保证结果与输入一一对应。
// 分块只用于日志观测，不引入并发。
func (e *Executor) ExecuteBatch(ctx context.Context, signals []Signal) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(signals))

	batchSize := e.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = len(signals)
	}

	for start := 0; start < len(signals); start += batchSize {
		end := start + batchSize
		if end > len(signals) {
			end = len(signals)
		}

		e.logger.Info("处理信号批次",
			zap.Int("batch_start", start),
			zap.Int("batch_size", end-start),
			zap.Int("total", len(signals)),
		)

		for _, sig := range signals[start:end] {
			if SelectOrderType(sig, e.cfg) == OrderTypeFAK {
				results = append(results, e.ExecuteFAK(ctx, sig))
			} else {
				results = append(results, e.Execute(ctx, sig))
			}
		}
	}

	return results
}

func (e *Executor) validate(sig Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	if e.cfg.MaxOrderSizeUSD > 0 && sig.AmountUSD > e.cfg.MaxOrderSizeUSD {
		return fmt.Errorf("名义金额 %.2f 超过单笔上限 %.2f", sig.AmountUSD, e.cfg.MaxOrderSizeUSD)
	}
	return nil
}

func (e *Executor) submit(ctx context.Context, sig Signal, price, size float64, orderType string) (clob.PostResult, error) {
	order, err := e.client.CreateOrder(ctx, clob.OrderArgs{
		TokenID: sig.TokenID,
		Side:    string(sig.Side),
		Price:   price,
		Size:    size,
	})
	if err != nil {
		return clob.PostResult{}, err
	}
	return e.client.PostOrder(ctx, order, orderType)
}

// SelectOrderType 选定委托类型：信号偏好 FAK 且配置允许时走 FAK，否则用默认类型。
// 纯函数，无副作用。
func SelectOrderType(sig Signal, cfg config.ExecutorConfig) OrderType {
	if sig.PreferredOrderType == OrderTypeFAK && cfg.SupportFAK {
		return OrderTypeFAK
	}
	switch OrderType(strings.ToUpper(cfg.DefaultOrderType)) {
	case OrderTypeGTD:
		return OrderTypeGTD
	case OrderTypeFAK:
		return OrderTypeFAK
	default:
		return OrderTypeGTC
	}
}

// improvedPrice 计算让步后的限价：在己方最优价上让出 improvement，
// 同时钳制在对手价内侧 epsilon 处，保证永不跨越价差。
func improvedPrice(side OrderSide, analysis market.Analysis, improvementCents float64) float64 {
	improvement := improvementCents / 100
	if side == OrderSideBuy {
		return math.Min(analysis.BestBid+improvement, analysis.BestAsk-epsilon)
	}
	return math.Max(analysis.BestAsk-improvement, analysis.BestBid+epsilon)
}

// splitAmount 将名义金额拆成 count 份：前 count-1 份取整到分，
// 尾份不再取整，原样吸收舍入余量，保证合计与原始金额严格相等。
func splitAmount(amountUSD, thresholdUSD float64, count int) []float64 {
	if amountUSD <= thresholdUSD || count <= 1 {
		return []float64{amountUSD}
	}

	chunks := make([]float64, count)
	base := round2(amountUSD / float64(count))
	var allocated float64
	for i := 0; i < count-1; i++ {
		chunks[i] = base
		allocated += base
	}
	chunks[count-1] = amountUSD - allocated
	return chunks
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
