package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	Register("double", double)
	Register[string, int]("length", func(_ context.Context, s string, _ Notifier) (int, error) {
		return len(s), nil
	})
}

func TestNew_Validation(t *testing.T) {
	withCPUs(t, 4)

	tests := []struct {
		name      string
		opts      []Option
		wantField string
	}{
		{"no handler", nil, "workerFile"},
		{"both handlers", []Option{WithWorkerFile("double"), WithWorkerScript(double)}, "workerFile"},
		{"nil script", []Option{WithWorkerScript[int, int](nil)}, "workerScript"},
		{"zero workers", []Option{WithWorkerScript(double), WithMaxWorkers(0)}, "maxWorkers"},
		{"negative workers", []Option{WithWorkerScript(double), WithMaxWorkers(-3)}, "maxWorkers"},
		{"zero timeout", []Option{WithWorkerScript(double), WithTimeout(0)}, "timeout"},
		{"negative timeout", []Option{WithWorkerScript(double), WithTimeout(-time.Second)}, "timeout"},
		{"rate without burst", []Option{WithWorkerScript(double), WithRateLimit(10, 0)}, "burst"},
		{"negative rate", []Option{WithWorkerScript(double), WithRateLimit(-1, 1)}, "rateLimit"},
		{"negative retries", []Option{WithWorkerScript(double), WithRetryPolicy(-1, 0)}, "retryAttempts"},
		{"jitter above one", []Option{WithWorkerScript(double), WithJitteredBackoff(time.Millisecond, time.Second, 1.5)}, "jitter"},
		{"unknown name", []Option{WithWorkerFile("missing")}, "workerFile"},
		{"wrong registered type", []Option{WithWorkerFile("length")}, "workerFile"},
		{"wrong script type", []Option{WithWorkerScript[string, int](func(context.Context, string, Notifier) (int, error) { return 0, nil })}, "workerScript"},
		{"wrong hook type", []Option{WithWorkerScript(double), WithBeforeTaskStart(func(string) {})}, "beforeTaskStart"},
		{"wrong end hook type", []Option{WithWorkerScript(double), WithOnTaskEnd(func(int, string, error) {})}, "onTaskEnd"},
		{"wrong retry hook type", []Option{WithWorkerScript(double), WithOnRetry(func(string, int, error) {})}, "onRetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New[int, int](tt.opts...)
			require.Error(t, err)
			assert.Nil(t, p)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.NotEmpty(t, ve.Reason)
		})
	}
}

func TestNew_MaxWorkers(t *testing.T) {
	withCPUs(t, 4)

	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{"defaults to hardware", nil, 4},
		{"explicit", []Option{WithMaxWorkers(2)}, 2},
		{"clamped", []Option{WithMaxWorkers(64)}, 4},
		{"last option wins", []Option{WithMaxWorkers(1), WithMaxWorkers(3)}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool[int, int](t, append([]Option{WithWorkerScript(double)}, tt.opts...)...)
			assert.Equal(t, tt.want, p.MaxWorkers())
			waitIdle(t, p, tt.want)
		})
	}
}

func TestNew_ByName(t *testing.T) {
	withCPUs(t, 2)

	p := newTestPool[int, int](t, WithWorkerFile("double"))
	f, err := p.Submit(21)
	require.NoError(t, err)

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Contains(t, Registered(), "double")
}

func TestRegister_Panics(t *testing.T) {
	assert.Panics(t, func() { Register("", double) })
	assert.Panics(t, func() { Register[int, int]("nil", nil) })
	assert.Panics(t, func() { Register("double", double) })
}
