package pool

import (
	"context"

	"github.com/utkarsh5026/threadpool/internal/lock"
	"github.com/utkarsh5026/threadpool/internal/port"
)

// slot is the pool's view of one worker thread.
type slot[T, R any] struct {
	id     int
	port   *port.Port
	inbox  chan job[T] // holds at most the one task assigned while Busy
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}

	// Written on the worker side before the frame that announces them, and
	// read by the relay only after that frame has arrived.
	tid     int
	core    int
	out     outcome[R]
	expired bool // out was posted by the watchdog, the handler may still run
	fault   *PanicError

	// guarded by Pool.mu
	state     SlotState
	active    *taskHandle[T, R]
	completed uint64
}

func newSlot[T, R any](parent context.Context, id int) *slot[T, R] {
	ctx, cancel := context.WithCancel(parent)
	return &slot[T, R]{
		id:     id,
		port:   port.New(lock.New()),
		inbox:  make(chan job[T], 1),
		ctx:    ctx,
		cancel: cancel,
		exited: make(chan struct{}),
		core:   -1,
		state:  Spawning,
	}
}

// stop moves the slot to a terminal state. The worker exits at its next
// loop iteration and the relay at its next read.
func (s *slot[T, R]) stop(state SlotState) {
	s.state = state
	s.cancel()
	_ = s.port.Close()
}

// abandoned reports whether the thread is stuck in a handler whose task
// already timed out.
func (s *slot[T, R]) abandoned() bool {
	return s.state == Draining || s.state == Retired
}

func (s *slot[T, R]) info() WorkerInfo {
	wi := WorkerInfo{
		ID:        s.id,
		ThreadID:  -1,
		Core:      -1,
		State:     s.state,
		Completed: s.completed,
	}
	if s.state != Spawning {
		wi.ThreadID, wi.Core = s.tid, s.core
	}
	if s.active != nil {
		wi.Task = s.active.id
	}
	return wi
}
