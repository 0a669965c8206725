package gas

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/config"
)

const (
	// DefaultTradeGasUnits 为一笔挂单交易的默认 gas 用量估计。
	DefaultTradeGasUnits = 150_000
	// DefaultFAKGasUnits 为 FAK 交易的默认 gas 用量估计，
	// 低于挂单是因为剩余量原子撤销，省掉了单独的链上撤单交易。
	DefaultFAKGasUnits = 120_000
	// DefaultGasPriceGwei 为调用方未提供实时 gas 价时的兜底值。
	DefaultGasPriceGwei = 30.0

	// maxGasCostPercent 为 gas 成本占交易额的可接受上限。
	maxGasCostPercent = 0.1

	// nearWindowAdvisory 为"临近低峰窗口"建议的触发距离。
	nearWindowAdvisory = 4 * time.Hour
)

// RecommendationKind 标识建议类别。
type RecommendationKind string

const (
	RecommendationUndersized  RecommendationKind = "undersized_trade"
	RecommendationNearOffPeak RecommendationKind = "near_off_peak"
	RecommendationGasTooHigh  RecommendationKind = "gas_cost_too_high"
	RecommendationGasPriceCap RecommendationKind = "gas_price_above_cap"
)

// Recommendation 为一条独立的非阻断性建议。
type Recommendation struct {
	Kind    RecommendationKind `json:"kind"`
	Message string             `json:"message"`
}

// Advisor 回答"这笔交易值不值它的网络成本"与"什么时候 gas 最便宜"。
// 全部为时间与成本参数上的纯计算，不访问执行路径，也不拉取任何实时数据。
type Advisor struct {
	cfg    config.GasConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAdvisor 创建成本顾问。
func NewAdvisor(cfg config.GasConfig, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IsGasEfficient 判断交易额是否达到值得支付网络成本的下限。
func (a *Advisor) IsGasEfficient(tradeSizeUSD float64) bool {
	return tradeSizeUSD >= a.cfg.MinTradeSizeUSD
}

// IsOffPeakTime 判断当前 UTC 小时是否位于低峰窗口 [start, end)。
// 窗口假定不跨午夜，配置校验阶段已拒绝跨午夜的输入。
func (a *Advisor) IsOffPeakTime() bool {
	hour := a.now().UTC().Hour()
	return hour >= a.cfg.OffPeakStartHourUTC && hour < a.cfg.OffPeakEndHourUTC
}

// TimeToOffPeak 返回距下一个低峰窗口的时长，已处于窗口内时返回0。
func (a *Advisor) TimeToOffPeak() time.Duration {
	if a.IsOffPeakTime() {
		return 0
	}
	hour := a.now().UTC().Hour()
	wait := (a.cfg.OffPeakStartHourUTC - hour + 24) % 24
	return time.Duration(wait) * time.Hour
}

// EstimateGasCost 估算一笔交易的 gas 成本（USD）。
// 入参小于等于零时使用默认值；原生代币价格不在本引擎内实时获取。
func (a *Advisor) EstimateGasCost(gasUnits int64, gweiPrice, tokenPriceUSD float64) float64 {
	if gasUnits <= 0 {
		gasUnits = DefaultTradeGasUnits
	}
	if gweiPrice <= 0 {
		gweiPrice = DefaultGasPriceGwei
	}
	if tokenPriceUSD <= 0 {
		tokenPriceUSD = a.cfg.NativeTokenPriceUSD
	}
	return float64(gasUnits) * gweiPrice / 1e9 * tokenPriceUSD
}

// EstimateFAKGasCost 按 FAK 的更低 gas 用量估算成本（USD）。
func (a *Advisor) EstimateFAKGasCost(gweiPrice, tokenPriceUSD float64) float64 {
	return a.EstimateGasCost(DefaultFAKGasUnits, gweiPrice, tokenPriceUSD)
}

// IsGasCostAcceptable 判断 gas 成本占交易额的比例是否在阈值以内。
func (a *Advisor) IsGasCostAcceptable(tradeSizeUSD float64, gasUnits int64, gweiPrice, tokenPriceUSD float64) bool {
	if tradeSizeUSD <= 0 {
		return false
	}
	cost := a.EstimateGasCost(gasUnits, gweiPrice, tokenPriceUSD)
	return cost/tradeSizeUSD*100 < maxGasCostPercent
}

// Recommendations 汇总零条或多条互相独立的建议；与执行闸门不同，
// 这里从不否决交易，只给参考。
func (a *Advisor) Recommendations(tradeSizeUSD, gweiPrice, tokenPriceUSD float64) []Recommendation {
	recs := make([]Recommendation, 0, 4)

	if !a.IsGasEfficient(tradeSizeUSD) {
		recs = append(recs, Recommendation{
			Kind: RecommendationUndersized,
			Message: fmt.Sprintf("交易额 %.2f USD 低于 gas 效率下限 %.2f USD，建议合并或放大",
				tradeSizeUSD, a.cfg.MinTradeSizeUSD),
		})
	}

	if wait := a.TimeToOffPeak(); wait > 0 && wait <= nearWindowAdvisory {
		recs = append(recs, Recommendation{
			Kind: RecommendationNearOffPeak,
			Message: fmt.Sprintf("距低峰窗口还有 %s，可考虑延后执行以降低 gas 成本",
				wait),
		})
	}

	if !a.IsGasCostAcceptable(tradeSizeUSD, DefaultTradeGasUnits, gweiPrice, tokenPriceUSD) {
		recs = append(recs, Recommendation{
			Kind: RecommendationGasTooHigh,
			Message: fmt.Sprintf("gas 成本 %.4f USD 占交易额比例超过 %.1f%%",
				a.EstimateGasCost(DefaultTradeGasUnits, gweiPrice, tokenPriceUSD), maxGasCostPercent),
		})
	}

	if gweiPrice > a.cfg.MaxGasPriceGwei {
		recs = append(recs, Recommendation{
			Kind: RecommendationGasPriceCap,
			Message: fmt.Sprintf("当前 gas 价 %.1f gwei 超过配置上限 %.1f gwei",
				gweiPrice, a.cfg.MaxGasPriceGwei),
		})
	}

	return recs
}
