package pool

import (
	"context"

	"github.com/google/uuid"
)

// Future is the pending result of a task submitted with Submit.
type Future[R any] struct {
	id    uuid.UUID
	done  chan struct{}
	value R
	err   error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// resolve may be called once.
func (f *Future[R]) resolve(value R, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// ID returns the task's correlation id, as seen in messages and errors.
func (f *Future[R]) ID() uuid.UUID {
	return f.id
}

// Get blocks until the task completes. Repeated calls return the same result.
func (f *Future[R]) Get() (R, error) {
	<-f.done
	return f.value, f.err
}

// GetWithContext is like Get but gives up when ctx is done. Giving up does
// not cancel the task.
func (f *Future[R]) GetWithContext(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// TryGet returns the result without blocking. ready is false while the task
// is still outstanding.
func (f *Future[R]) TryGet() (value R, err error, ready bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return value, nil, false
	}
}

// Done is closed once the result is available.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// IsReady reports whether the result is available.
func (f *Future[R]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
