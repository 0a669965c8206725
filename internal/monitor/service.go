package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poly-trader/internal/batch"
	"poly-trader/internal/execution"
	"poly-trader/internal/risk"
	"poly-trader/internal/store"
)

// Service 负责持久化执行决策与拒绝记录，作为审计日志的薄落点。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type)`,
	}
	if err := store.Migrate(context.Background(), schema...); err != nil {
		return nil, fmt.Errorf("monitor: 初始化表失败: %w", err)
	}

	return &Service{
		db:     store.DB(),
		logger: logger,
	}, nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSignal 记录新接收的信号，写入失败只告警不阻断。
func (s *Service) RecordSignal(ctx context.Context, sig execution.Signal) {
	if err := s.Record(ctx, Event{
		Type:    EventSignalReceived,
		Payload: SignalPayload{Signal: sig},
	}); err != nil {
		s.logger.Warn("记录信号事件失败", zap.Error(err))
	}
}

// RecordExecution 记录单次执行结果。
func (s *Service) RecordExecution(ctx context.Context, result execution.ExecutionResult) {
	if err := s.Record(ctx, Event{
		Type:    EventExecutionResult,
		Payload: ExecutionPayload{Result: result},
	}); err != nil {
		s.logger.Warn("记录执行事件失败", zap.Error(err))
	}
}

// RecordGateVerdict 记录闸门判定。
func (s *Service) RecordGateVerdict(ctx context.Context, tokenID string, amountUSD float64, verdict risk.Verdict) {
	if err := s.Record(ctx, Event{
		Type: EventGateVerdict,
		Payload: GatePayload{
			TokenID:   tokenID,
			AmountUSD: amountUSD,
			Verdict:   verdict,
		},
	}); err != nil {
		s.logger.Warn("记录闸门事件失败", zap.Error(err))
	}
}

// RecordBatchFlush 记录一次批次冲刷的计划概要。
func (s *Service) RecordBatchFlush(ctx context.Context, plan batch.FlushPlan) {
	sizes := make([]int, len(plan.Chunks))
	for i, chunk := range plan.Chunks {
		sizes[i] = len(chunk.Operations)
	}
	if err := s.Record(ctx, Event{
		Type:      EventBatchFlush,
		Timestamp: plan.FlushedAt,
		Payload: BatchFlushPayload{
			Total:      plan.Total,
			ChunkSizes: sizes,
		},
	}); err != nil {
		s.logger.Warn("记录冲刷事件失败", zap.Error(err))
	}
}

// ListEvents 按时间倒序返回事件，eventType 为空时不过滤。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]StoredEvent, 0, limit)
	for rows.Next() {
		var (
			event     StoredEvent
			typ       string
			payload   string
			createdAt string
		)
		if err := rows.Scan(&event.ID, &typ, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("monitor: 扫描事件失败: %w", err)
		}
		event.Type = EventType(typ)
		event.Payload = json.RawMessage(payload)
		if ts, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			event.CreatedAt = ts
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 遍历事件失败: %w", err)
	}

	return events, nil
}
