package market

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type bookFetcher interface {
	FetchBook(ctx context.Context, tokenID string) (Book, error)
	FetchLastTradePrice(ctx context.Context, tokenID string) (float64, error)
}

// Service 聚合盘口分析与滑点估算。
type Service struct {
	client bookFetcher
	logger *zap.Logger
}

// NewService 创建行情服务。
func NewService(client *Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		logger: logger,
	}
}

// Analyze 并行拉取订单簿与最近成交价，返回一次性盘口分析。
func (s *Service) Analyze(ctx context.Context, tokenID string) (Analysis, error) {
	var (
		book      Book
		lastTrade float64
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := s.client.FetchBook(groupCtx, tokenID)
		if err != nil {
			return err
		}
		book = data
		return nil
	})

	group.Go(func() error {
		price, err := s.client.FetchLastTradePrice(groupCtx, tokenID)
		if err != nil {
			return err
		}
		lastTrade = price
		return nil
	})

	if err := group.Wait(); err != nil {
		return Analysis{}, err
	}

	analysis, err := analyzeBook(book)
	if err != nil {
		return Analysis{}, err
	}
	analysis.LastTradePrice = lastTrade

	s.logger.Debug("盘口分析完成",
		zap.String("token_id", tokenID),
		zap.Float64("best_bid", analysis.BestBid),
		zap.Float64("best_ask", analysis.BestAsk),
		zap.Float64("bid_depth_usd", analysis.BidDepthUSD),
		zap.Float64("ask_depth_usd", analysis.AskDepthUSD),
		zap.Float64("spread_percent", analysis.SpreadPercent),
	)

	return analysis, nil
}

// EstimateSlippage 估算以名义金额吃掉盘口深度的价格偏离，返回百分比(0-100)。
// 深度不足以吞下全部名义金额时按 100 处理，由上层的滑点闸直接拒绝。
func (s *Service) EstimateSlippage(ctx context.Context, tokenID, side string, amountUSD float64) (float64, error) {
	if amountUSD <= 0 {
		return 0, nil
	}

	book, err := s.client.FetchBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}

	levels := book.Asks
	if side == "sell" {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return 100, nil
	}

	best := levels[0].Price
	var (
		remaining = amountUSD
		costUSD   float64
		shares    float64
	)
	for _, lvl := range levels {
		levelUSD := lvl.Price * lvl.Size
		use := levelUSD
		if use > remaining {
			use = remaining
		}
		costUSD += use
		shares += use / lvl.Price
		remaining -= use
		if remaining <= 0 {
			break
		}
	}
	if remaining > 0 {
		return 100, nil
	}

	avg := costUSD / shares
	var deviation float64
	if side == "sell" {
		deviation = (best - avg) / best
	} else {
		deviation = (avg - best) / best
	}
	if deviation < 0 {
		deviation = 0
	}
	return deviation * 100, nil
}

func analyzeBook(book Book) (Analysis, error) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return Analysis{}, errors.New("订单簿单边为空，无法分析")
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price

	var bidDepth, askDepth float64
	for _, lvl := range book.Bids {
		bidDepth += lvl.Price * lvl.Size
	}
	for _, lvl := range book.Asks {
		askDepth += lvl.Price * lvl.Size
	}

	mid := (bestBid + bestAsk) / 2
	spreadPercent := 0.0
	if mid > 0 {
		spreadPercent = (bestAsk - bestBid) / mid * 100
	}

	return Analysis{
		TokenID:       book.TokenID,
		BestBid:       bestBid,
		BestAsk:       bestAsk,
		MidPrice:      mid,
		BidDepthUSD:   bidDepth,
		AskDepthUSD:   askDepth,
		SpreadPercent: spreadPercent,
		RetrievedAt:   time.Now().UTC(),
	}, nil
}
