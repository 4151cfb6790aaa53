package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	withCPUs(t, 2)

	v, err := Run[int, int](context.Background(), 4, WithWorkerScript(double))
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	_, err = Run[int, int](context.Background(), 4, WithWorkerFile("missing"))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRun_TaskError(t *testing.T) {
	withCPUs(t, 2)

	boom := errors.New("boom")
	_, err := Run[int, int](context.Background(), 1, WithWorkerScript[int, int](func(context.Context, int, Notifier) (int, error) {
		return 0, boom
	}))

	var we *WorkerError
	require.ErrorAs(t, err, &we)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, we.Task)
}

func TestRunBatch_SizesPoolToBatch(t *testing.T) {
	withCPUs(t, 8)

	var current, peak atomic.Int32
	handler := func(_ context.Context, v int, _ Notifier) (int, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return v, nil
	}

	res, err := RunBatch[int, int](context.Background(), []int{1, 2, 3}, WithWorkerScript[int, int](handler))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, res.Results)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	peak.Store(0)
	res, err = RunBatch[int, int](context.Background(), []int{1, 2, 3, 4}, WithWorkerScript[int, int](handler), WithMaxWorkers(1))
	require.NoError(t, err)
	assert.Len(t, res.Results, 4)
	assert.Equal(t, int32(1), peak.Load(), "explicit WithMaxWorkers wins")
}

func TestRunBatch_ForwardsMessages(t *testing.T) {
	withCPUs(t, 2)

	var seen atomic.Int32
	handler := func(_ context.Context, v int, n Notifier) (int, error) {
		_ = n.Emit("progress", v)
		return v, nil
	}

	res, err := RunBatch[int, int](context.Background(), []int{1, 2},
		WithWorkerScript[int, int](handler),
		WithOnMessage(func(m Message) { seen.Add(1) }),
	)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, int32(2), seen.Load())
}

func TestRunBatch_Empty(t *testing.T) {
	withCPUs(t, 2)

	res, err := RunBatch[int, int](context.Background(), nil, WithWorkerScript(double))
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Errors)
}
