package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// withCPUs pretends the machine has n cores for the duration of the test.
func withCPUs(t *testing.T, n int) {
	t.Helper()
	prev := numCPU
	numCPU = func() int { return n }
	t.Cleanup(func() { numCPU = prev })
}

func newTestPool[T, R any](t *testing.T, opts ...Option) *Pool[T, R] {
	t.Helper()
	p, err := New[T, R](opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p
}

func waitIdle[T, R any](t *testing.T, p *Pool[T, R], n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := p.Stats()
		return st.Idle == n && st.Live == n
	}, 2*time.Second, 5*time.Millisecond)
}

var double HandlerFunc[int, int] = func(_ context.Context, v int, _ Notifier) (int, error) {
	return v * 2, nil
}
