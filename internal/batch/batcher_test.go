package batch

import (
	"testing"
	"time"

	"poly-trader/internal/config"
)

func TestEnqueue_AssignsUniqueIDs(t *testing.T) {
	b := NewBatcher(testConfig(false, time.Second), nil, nil)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := b.Enqueue(OperationOrder, nil)
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if id == "" || seen[id] {
			t.Fatalf("expected unique non-empty id, got %q", id)
		}
		seen[id] = true
	}
	if b.Pending() != 10 {
		t.Errorf("expected 10 pending operations, got %d", b.Pending())
	}
}

func TestEnqueue_RejectsUnknownType(t *testing.T) {
	b := NewBatcher(testConfig(false, time.Second), nil, nil)

	if _, err := b.Enqueue(OperationType("transfer"), nil); err == nil {
		t.Fatal("expected error for unknown operation type")
	}
}

func TestFlush_ChunksPreserveEnqueueOrder(t *testing.T) {
	var plans []FlushPlan
	b := NewBatcher(testConfig(false, time.Second), func(plan FlushPlan) {
		plans = append(plans, plan)
	}, nil)

	ids := make([]string, 0, 17)
	for i := 0; i < 17; i++ {
		opType := OperationOrder
		if i%5 == 0 {
			opType = OperationApprove
		}
		id, err := b.Enqueue(opType, map[string]interface{}{"seq": i})
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	b.flush()

	if len(plans) != 1 {
		t.Fatalf("expected one flush plan, got %d", len(plans))
	}
	plan := plans[0]
	if plan.Total != 17 || len(plan.Chunks) != 2 {
		t.Fatalf("expected total=17 in 2 chunks, got total=%d chunks=%d", plan.Total, len(plan.Chunks))
	}
	if len(plan.Chunks[0].Operations) != 15 || len(plan.Chunks[1].Operations) != 2 {
		t.Fatalf("expected chunk sizes [15 2], got [%d %d]",
			len(plan.Chunks[0].Operations), len(plan.Chunks[1].Operations))
	}

	flat := make([]string, 0, 17)
	for _, chunk := range plan.Chunks {
		for _, op := range chunk.Operations {
			flat = append(flat, op.ID)
		}
	}
	for i, id := range ids {
		if flat[i] != id {
			t.Fatalf("operation %d out of order: got %s want %s", i, flat[i], id)
		}
	}

	if b.Pending() != 0 {
		t.Errorf("flush must drain the queue, %d left", b.Pending())
	}
}

func TestFlush_GroupsByTypeWithinChunk(t *testing.T) {
	var plans []FlushPlan
	b := NewBatcher(testConfig(false, time.Second), func(plan FlushPlan) {
		plans = append(plans, plan)
	}, nil)

	for i := 0; i < 4; i++ {
		if _, err := b.Enqueue(OperationOrder, nil); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := b.Enqueue(OperationMerge, nil); err != nil {
			t.Fatal(err)
		}
	}

	b.flush()

	if len(plans) != 1 || len(plans[0].Chunks) != 1 {
		t.Fatalf("expected single chunk, got %+v", plans)
	}
	byType := plans[0].Chunks[0].ByType
	if len(byType[OperationOrder]) != 4 || len(byType[OperationMerge]) != 2 {
		t.Errorf("type grouping mismatch: order=%d merge=%d",
			len(byType[OperationOrder]), len(byType[OperationMerge]))
	}
}

func TestTimer_ArmsOnceAndDrainsExactlyEnqueued(t *testing.T) {
	planCh := make(chan FlushPlan, 4)
	b := NewBatcher(testConfig(true, 40*time.Millisecond), func(plan FlushPlan) {
		planCh <- plan
	}, nil)
	defer b.Destroy()

	for i := 0; i < 5; i++ {
		if _, err := b.Enqueue(OperationOrder, nil); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}

	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		t.Fatal("expected timer armed after first enqueue")
	}
	b.mu.Unlock()

	select {
	case plan := <-planCh:
		if plan.Total != 5 {
			t.Errorf("expected flush of exactly 5 operations, got %d", plan.Total)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer flush never fired")
	}

	select {
	case plan := <-planCh:
		t.Fatalf("unexpected second flush: %+v", plan)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestTimer_RearmsOnNextEmptyToNonEmptyTransition(t *testing.T) {
	planCh := make(chan FlushPlan, 4)
	b := NewBatcher(testConfig(true, 30*time.Millisecond), func(plan FlushPlan) {
		planCh <- plan
	}, nil)
	defer b.Destroy()

	if _, err := b.Enqueue(OperationApprove, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case plan := <-planCh:
		if plan.Total != 1 {
			t.Fatalf("first flush total=%d", plan.Total)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first flush never fired")
	}

	// 冲刷后的新入队属于新队列并武装新计时器。
	if _, err := b.Enqueue(OperationMerge, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case plan := <-planCh:
		if plan.Total != 1 || plan.Chunks[0].Operations[0].Type != OperationMerge {
			t.Fatalf("second flush mismatch: %+v", plan)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second flush never fired")
	}
}

func TestDestroy_IsIdempotentAndStopsTimer(t *testing.T) {
	planCh := make(chan FlushPlan, 1)
	b := NewBatcher(testConfig(true, 30*time.Millisecond), func(plan FlushPlan) {
		planCh <- plan
	}, nil)

	if _, err := b.Enqueue(OperationOrder, nil); err != nil {
		t.Fatal(err)
	}

	b.Destroy()
	b.Destroy() // 幂等

	select {
	case plan := <-planCh:
		t.Fatalf("destroyed batcher must not flush, got %+v", plan)
	case <-time.After(100 * time.Millisecond):
	}

	if _, err := b.Enqueue(OperationOrder, nil); err == nil {
		t.Fatal("expected error when enqueueing after destroy")
	}
}

func TestFlush_AfterDestroyEmitsNoPlan(t *testing.T) {
	// 模拟计时器回调在 Destroy 之后才抢到锁的时序。
	var plans []FlushPlan
	b := NewBatcher(testConfig(false, time.Second), func(plan FlushPlan) {
		plans = append(plans, plan)
	}, nil)

	if _, err := b.Enqueue(OperationOrder, nil); err != nil {
		t.Fatal(err)
	}

	b.Destroy()
	b.flush()

	if len(plans) != 0 {
		t.Fatalf("destroyed batcher emitted a plan: %+v", plans)
	}
}

func TestDestroy_SafeOnEmptyQueue(t *testing.T) {
	b := NewBatcher(testConfig(true, time.Second), nil, nil)
	b.Destroy()
}

func testConfig(enabled bool, window time.Duration) config.GasConfig {
	return config.GasConfig{
		MinTradeSizeUSD:     50,
		OffPeakStartHourUTC: 2,
		OffPeakEndHourUTC:   6,
		MaxGasPriceGwei:     100,
		NativeTokenPriceUSD: 0.65,
		BatchEnabled:        enabled,
		BatchWindow:         window,
		MaxBatchSize:        15,
	}
}
