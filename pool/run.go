package pool

import (
	"context"
)

// Run executes one task on a single-use pool and closes it before
// returning, whatever the outcome.
func Run[T, R any](ctx context.Context, payload T, opts ...Option) (result R, err error) {
	p, err := New[T, R](withDefaultWorkers(1, opts)...)
	if err != nil {
		return result, err
	}
	defer func() {
		_ = p.Close(ctx)
	}()

	f, err := p.Submit(payload)
	if err != nil {
		return result, err
	}
	return f.GetWithContext(ctx)
}

// RunBatch executes payloads on a single-use pool sized to the batch and
// closes it before returning. WithMaxWorkers in opts takes precedence over
// the batch size; either is clamped to the hardware concurrency.
func RunBatch[T, R any](ctx context.Context, payloads []T, opts ...Option) (*Results[R], error) {
	p, err := New[T, R](withDefaultWorkers(len(payloads), opts)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = p.Close(ctx)
	}()

	return p.SubmitBatch(ctx, payloads)
}

// withDefaultWorkers puts WithMaxWorkers(n) ahead of opts so an explicit
// option still wins.
func withDefaultWorkers(n int, opts []Option) []Option {
	return append([]Option{WithMaxWorkers(max(n, 1))}, opts...)
}
