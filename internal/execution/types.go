package execution

import (
	"errors"
	"fmt"
	"time"
)

// OrderSide 表示交易方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType 表示委托类型。
type OrderType string

const (
	// OrderTypeGTC 挂单直至撤销。
	OrderTypeGTC OrderType = "GTC"
	// OrderTypeGTD 挂单直至到期，执行路径与 GTC 相同。
	OrderTypeGTD OrderType = "GTD"
	// OrderTypeFAK 即时吃掉可得流动性并撤掉剩余。
	OrderTypeFAK OrderType = "FAK"
)

// Signal 为外部策略产生的不可变交易指令。
type Signal struct {
	TokenID            string    `json:"token_id"`
	Side               OrderSide `json:"side"`
	AmountUSD          float64   `json:"amount_usd"`
	Price              float64   `json:"price"`
	PreferredOrderType OrderType `json:"preferred_order_type,omitempty"`
}

// Validate 校验信号字段。
func (s Signal) Validate() error {
	if s.TokenID == "" {
		return errors.New("信号缺少 token_id")
	}
	if s.Side != OrderSideBuy && s.Side != OrderSideSell {
		return fmt.Errorf("非法交易方向 %q", s.Side)
	}
	if s.AmountUSD <= 0 {
		return fmt.Errorf("名义金额必须大于0，当前 %.2f", s.AmountUSD)
	}
	if s.Price <= 0 || s.Price >= 1 {
		return fmt.Errorf("结果代币价格必须位于(0,1)，当前 %.4f", s.Price)
	}
	switch s.PreferredOrderType {
	case "", OrderTypeGTC, OrderTypeGTD, OrderTypeFAK:
	default:
		return fmt.Errorf("非法委托类型偏好 %q", s.PreferredOrderType)
	}
	return nil
}

// ExecutionResult 为一次执行（或一次 FAK 尝试）的唯一产出。
// 部分成交同样视为 Success=true，由调用方对照 Signal.AmountUSD 判断缺口。
type ExecutionResult struct {
	Success       bool      `json:"success"`
	OrderID       string    `json:"order_id,omitempty"`
	FillPrice     float64   `json:"fill_price,omitempty"`
	FillSize      float64   `json:"fill_size,omitempty"`
	FillAmountUSD float64   `json:"fill_amount_usd,omitempty"`
	Error         string    `json:"error,omitempty"`
	Signal        Signal    `json:"signal"`
	ExecutedAt    time.Time `json:"executed_at"`
}

func failure(sig Signal, at time.Time, reason string) ExecutionResult {
	return ExecutionResult{
		Success:    false,
		Error:      reason,
		Signal:     sig,
		ExecutedAt: at,
	}
}
