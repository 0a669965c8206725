package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poly-trader/internal/config"
)

// OperationType 标识待聚合的链上操作类别。
type OperationType string

const (
	OperationOrder   OperationType = "order"
	OperationApprove OperationType = "approve"
	OperationMerge   OperationType = "merge"
)

var validOperationTypes = map[OperationType]bool{
	OperationOrder:   true,
	OperationApprove: true,
	OperationMerge:   true,
}

// PendingOperation 为队列中的单个待提交操作，入队即归队列独占，
// 出队发生在所属批次开始处理之前，保证不会被重复提交。
type PendingOperation struct {
	ID         string                 `json:"id"`
	Type       OperationType          `json:"type"`
	Data       map[string]interface{} `json:"data,omitempty"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// Chunk 为一次冲刷中按入队顺序切出的有界批次。
type Chunk struct {
	Index      int
	Operations []PendingOperation
	// ByType 仅用于执行计划的观测汇报，不改变提交顺序。
	ByType map[OperationType][]PendingOperation
}

// FlushPlan 为一次冲刷产出的有序执行计划；实际链上提交由外部协作方完成。
type FlushPlan struct {
	FlushedAt time.Time
	Total     int
	Chunks    []Chunk
}

// FlushFunc 在计时器触发冲刷后接收执行计划。
type FlushFunc func(plan FlushPlan)

// Batcher 把离散的链上辅助操作聚合进时间窗口内的有界批次。
// 计时器回调运行在 runtime 协程上，队列状态由互斥锁保护。
type Batcher struct {
	cfg     config.GasConfig
	logger  *zap.Logger
	onFlush FlushFunc
	now     func() time.Time

	mu        sync.Mutex
	queue     []PendingOperation
	timer     *time.Timer
	armed     bool
	destroyed bool
}

// NewBatcher 创建操作聚合器。
func NewBatcher(cfg config.GasConfig, onFlush FlushFunc, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{
		cfg:     cfg,
		logger:  logger,
		onFlush: onFlush,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue 入队一个操作并返回其进程内唯一标识，立即返回不等待冲刷。
// 计时器只在队列由空转非空时武装，任意时刻至多一个在途计时器。
func (b *Batcher) Enqueue(opType OperationType, data map[string]interface{}) (string, error) {
	if !validOperationTypes[opType] {
		return "", fmt.Errorf("batch: 非法操作类型 %q", opType)
	}

	op := PendingOperation{
		ID:         uuid.NewString(),
		Type:       opType,
		Data:       data,
		EnqueuedAt: b.now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return "", fmt.Errorf("batch: 聚合器已销毁")
	}

	b.queue = append(b.queue, op)

	if b.cfg.BatchEnabled && !b.armed {
		b.armed = true
		b.timer = time.AfterFunc(b.cfg.BatchWindow, b.flush)
	}

	b.logger.Debug("操作已入队",
		zap.String("op_id", op.ID),
		zap.String("op_type", string(opType)),
		zap.Int("pending", len(b.queue)),
	)

	return op.ID, nil
}

// Pending 返回当前待冲刷的操作数。
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Destroy 取消在途计时器，幂等，空队列下同样安全。
func (b *Batcher) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.armed = false
	b.destroyed = true
}

// flush 为计时器回调：解除武装并原子排空整个队列。
// 冲刷处理期间入队的操作进入新队列并可武装新计时器，绝不混入在途批次。
// 计时器触发与 Destroy 抢锁时可能后到，已销毁时直接返回不再产出计划。
func (b *Batcher) flush() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.armed = false
	b.timer = nil
	drained := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(drained) == 0 {
		return
	}

	plan := buildPlan(drained, b.cfg.MaxBatchSize, b.now())

	chunkSizes := make([]int, len(plan.Chunks))
	for i, chunk := range plan.Chunks {
		chunkSizes[i] = len(chunk.Operations)
	}
	b.logger.Info("批次冲刷完成",
		zap.Int("total", plan.Total),
		zap.Ints("chunk_sizes", chunkSizes),
	)

	if b.onFlush != nil {
		b.onFlush(plan)
	}
}

// buildPlan 按入队顺序把排空的操作切成不超过 maxBatchSize 的批次，
// 批次内再按类型分组供观测使用。
func buildPlan(drained []PendingOperation, maxBatchSize int, at time.Time) FlushPlan {
	if maxBatchSize <= 0 {
		maxBatchSize = len(drained)
	}

	plan := FlushPlan{
		FlushedAt: at,
		Total:     len(drained),
	}

	for start := 0; start < len(drained); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(drained) {
			end = len(drained)
		}

		ops := drained[start:end]
		byType := make(map[OperationType][]PendingOperation)
		for _, op := range ops {
			byType[op.Type] = append(byType[op.Type], op)
		}

		plan.Chunks = append(plan.Chunks, Chunk{
			Index:      len(plan.Chunks),
			Operations: ops,
			ByType:     byType,
		})
	}

	return plan
}
