package monitor

import (
	"encoding/json"
	"time"

	"poly-trader/internal/execution"
	"poly-trader/internal/risk"
)

// EventType 标识事件类别。
type EventType string

const (
	EventSignalReceived  EventType = "signal_received"
	EventExecutionResult EventType = "execution_result"
	EventGateVerdict     EventType = "gate_verdict"
	EventBatchFlush      EventType = "batch_flush"
)

// Event 为一条待落库的监控事件。
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// SignalPayload 记录新接收的信号。
type SignalPayload struct {
	Signal execution.Signal `json:"signal"`
}

// ExecutionPayload 记录单次执行结果。
type ExecutionPayload struct {
	Result execution.ExecutionResult `json:"result"`
}

// GatePayload 记录闸门判定。
type GatePayload struct {
	TokenID   string       `json:"token_id"`
	AmountUSD float64      `json:"amount_usd"`
	Verdict   risk.Verdict `json:"verdict"`
}

// BatchFlushPayload 记录一次批次冲刷的执行计划概要。
type BatchFlushPayload struct {
	Total      int   `json:"total"`
	ChunkSizes []int `json:"chunk_sizes"`
}

// StoredEvent 为查询接口返回的落库事件。
type StoredEvent struct {
	ID        int64           `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
