package pool

import (
	"sync/atomic"

	"github.com/google/uuid"
)

type outcome[R any] struct {
	value R
	err   error
}

// taskHandle tracks one submission until its callback fires.
type taskHandle[T, R any] struct {
	id      uuid.UUID
	payload T
	meta    map[string]string
	cb      Callback[R]
	fired   atomic.Bool
}

func newTaskHandle[T, R any](payload T, cb Callback[R], opts []TaskOption) *taskHandle[T, R] {
	var ts taskSettings
	for _, opt := range opts {
		opt(&ts)
	}
	return &taskHandle[T, R]{
		id:      uuid.New(),
		payload: payload,
		meta:    ts.meta,
		cb:      cb,
	}
}

// job is what a worker receives for a handle.
func (h *taskHandle[T, R]) job() job[T] {
	return job[T]{id: h.id, payload: h.payload, meta: h.meta}
}

// done delivers o to the callback. Only the first call has any effect; it
// reports whether this call was the one.
func (h *taskHandle[T, R]) done(o outcome[R]) bool {
	if !h.fired.CompareAndSwap(false, true) {
		return false
	}

	cb, payload := h.cb, h.payload
	h.cb = nil
	var zeroT T
	h.payload = zeroT

	if o.err == nil {
		cb(o.value, nil)
		return true
	}

	var zeroR R
	cb(zeroR, &WorkerError{Cause: o.err, Task: payload, TaskID: h.id, Meta: h.meta})
	return true
}

type job[T any] struct {
	id      uuid.UUID
	payload T
	meta    map[string]string
}
