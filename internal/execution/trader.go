package execution

import "context"

// Trader 抽象执行器接口，方便上层切换真实或模拟执行。
type Trader interface {
	Execute(ctx context.Context, sig Signal) ExecutionResult
	ExecuteFAK(ctx context.Context, sig Signal) ExecutionResult
	ExecuteBatch(ctx context.Context, signals []Signal) []ExecutionResult
}

var _ Trader = (*Executor)(nil)
