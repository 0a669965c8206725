package market

import "time"

// BookLevel 表示盘口档位。
type BookLevel struct {
	Price float64
	Size  float64
}

// Book 为单个结果代币的订单簿快照。
type Book struct {
	TokenID   string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// Analysis 为一次性盘口分析结果，随取随算，本引擎不做缓存。
type Analysis struct {
	TokenID        string
	BestBid        float64
	BestAsk        float64
	MidPrice       float64
	BidDepthUSD    float64
	AskDepthUSD    float64
	SpreadPercent  float64
	LastTradePrice float64
	RetrievedAt    time.Time
}

// TotalDepthUSD 返回双边挂单的名义总额。
func (a Analysis) TotalDepthUSD() float64 {
	return a.BidDepthUSD + a.AskDepthUSD
}
