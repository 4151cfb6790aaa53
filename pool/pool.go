package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/threadpool/internal/cpu"
	"github.com/utkarsh5026/threadpool/internal/port"
	"github.com/utkarsh5026/threadpool/internal/queue"
)

// numCPU is the hardware concurrency maxWorkers is clamped to.
var numCPU = cpu.NumCPU

// Pool distributes tasks of type T over a fixed set of worker threads that
// produce results of type R.
type Pool[T, R any] struct {
	handler       HandlerFunc[T, R]
	hooks         hooks[T, R]
	settings      *settings
	limiter       *rate.Limiter
	timeout       time.Duration
	recycle       bool
	pin           bool
	retryAttempts int
	maxWorkers    int
	onMessage     func(Message)
	onError       func(error)
	log           *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	nextID  int
	live    map[int]*slot[T, R]
	threads map[int]*slot[T, R] // worker goroutines that have not exited, live or not
	free    *queue.FIFO[*slot[T, R]]
	pending *queue.FIFO[*taskHandle[T, R]]
	stats   Stats
}

// New validates the options and starts maxWorkers worker threads.
// Every error it returns is a *ValidationError.
func New[T, R any](opts ...Option) (*Pool[T, R], error) {
	s := &settings{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.check(); err != nil {
		return nil, err
	}

	handler, err := resolveHandler[T, R](s)
	if err != nil {
		return nil, err
	}
	h, err := checkHooks[T, R](s)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[T, R]{
		handler:       handler,
		hooks:         h,
		settings:      s,
		limiter:       s.limiter(),
		timeout:       s.timeout(),
		recycle:       s.recycleOnTimeout,
		pin:           s.pin,
		retryAttempts: s.RetryAttempts,
		maxWorkers:    s.workers(numCPU()),
		onMessage:     s.onMessage,
		onError:       s.onError,
		log:           s.logger.With("component", "threadpool"),
		ctx:           ctx,
		cancel:        cancel,
		live:          make(map[int]*slot[T, R]),
		threads:       make(map[int]*slot[T, R]),
	}
	p.free = queue.New[*slot[T, R]](p.maxWorkers)
	p.pending = queue.New[*taskHandle[T, R]](0)

	p.mu.Lock()
	for range p.maxWorkers {
		p.spawnLocked()
	}
	p.mu.Unlock()

	p.log.Debug("pool started", "workers", p.maxWorkers, "timeout", p.timeout)
	return p, nil
}

// MaxWorkers returns the number of worker threads the pool maintains.
func (p *Pool[T, R]) MaxWorkers() int {
	return p.maxWorkers
}

// Submit queues payload and returns a Future for its result.
func (p *Pool[T, R]) Submit(payload T, opts ...TaskOption) (*Future[R], error) {
	f := newFuture[R]()
	h := newTaskHandle(payload, f.resolve, opts)
	f.id = h.id

	if err := p.enqueue(h); err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitCallback queues payload; cb is called exactly once with its outcome,
// from a pool goroutine. It returns ErrClosed once the pool is closed.
func (p *Pool[T, R]) SubmitCallback(payload T, cb Callback[R], opts ...TaskOption) error {
	if cb == nil {
		cb = func(R, error) {}
	}
	return p.enqueue(newTaskHandle(payload, cb, opts))
}

// SubmitBatch submits every payload and waits for all of them. Task failures
// never fail the batch; they are reported in Results.Errors.
func (p *Pool[T, R]) SubmitBatch(ctx context.Context, payloads []T, opts ...TaskOption) (*Results[R], error) {
	if p.isClosed() {
		return nil, ErrClosed
	}

	outcomes := make([]Result[R], len(payloads))
	var wg sync.WaitGroup
	wg.Add(len(payloads))

	for i, payload := range payloads {
		h := newTaskHandle(payload, func(v R, err error) {
			outcomes[i] = Result[R]{Value: v, Err: err, Index: i}
			wg.Done()
		}, opts)

		if err := p.enqueue(h); err != nil {
			// closed mid-batch
			h.done(outcome[R]{err: err})
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res := &Results[R]{Outcomes: outcomes}
	for _, o := range outcomes {
		var we *WorkerError
		if errors.As(o.Err, &we) {
			res.Errors = append(res.Errors, we)
			continue
		}
		res.Results = append(res.Results, o.Value)
	}
	return res, nil
}

// Close stops the pool. Tasks still running or queued fail with ErrClosed,
// then Close waits for every worker thread to exit or for ctx to be done.
// Threads still stuck in a handler that already timed out are not waited
// for; they exit once the handler returns. Only the first call does
// anything. Calling Close from inside a handler waits on the handler's own
// thread, so give it a ctx that expires.
func (p *Pool[T, R]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	waiting := make([]*slot[T, R], 0, len(p.threads))
	for _, s := range p.threads {
		if !s.abandoned() {
			waiting = append(waiting, s)
		}
	}

	var orphans []*taskHandle[T, R]
	for _, s := range p.live {
		if s.active != nil {
			orphans = append(orphans, s.active)
			s.active = nil
		}
		s.stop(Closed)
	}
	orphans = append(orphans, p.pending.Drain()...)
	p.free.Drain()
	clear(p.live)
	p.stats.Failed += uint64(len(orphans))
	p.cancel()
	p.mu.Unlock()

	for _, h := range orphans {
		p.deliver(h, outcome[R]{err: ErrClosed})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range waiting {
		g.Go(func() error {
			select {
			case <-s.exited:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Warn("pool closed before all workers exited", "cancelled", len(orphans), "error", err)
		return fmt.Errorf("pool: close: %w", err)
	}

	p.log.Info("pool closed", "cancelled", len(orphans))
	return nil
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool[T, R]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.stats
	st.Live = len(p.live)
	st.Pending = p.pending.Len()
	for _, s := range p.live {
		switch s.state {
		case Idle:
			st.Idle++
		case Busy:
			st.Busy++
		case Draining:
			st.Draining++
		}
	}
	return st
}

// Workers describes every live worker slot, ordered by id.
func (p *Pool[T, R]) Workers() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]WorkerInfo, 0, len(p.live))
	for _, s := range p.live {
		out = append(out, s.info())
	}
	slices.SortFunc(out, func(a, b WorkerInfo) int { return a.ID - b.ID })
	return out
}

func (p *Pool[T, R]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool[T, R]) enqueue(h *taskHandle[T, R]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if s, ok := p.free.PopFront(); ok {
		p.assignLocked(s, h)
		return nil
	}
	p.pending.PushBack(h)
	return nil
}

func (p *Pool[T, R]) assignLocked(s *slot[T, R], h *taskHandle[T, R]) {
	s.state = Busy
	s.active = h
	s.inbox <- h.job()
}

// dispatchLocked pairs the oldest pending tasks with the oldest free slots.
func (p *Pool[T, R]) dispatchLocked() {
	for p.pending.Len() > 0 {
		s, ok := p.free.PopFront()
		if !ok {
			return
		}
		h, _ := p.pending.PopFront()
		p.assignLocked(s, h)
	}
}

func (p *Pool[T, R]) spawnLocked() {
	s := newSlot[T, R](p.ctx, p.nextID)
	p.nextID++
	p.live[s.id] = s
	p.threads[s.id] = s
	p.stats.Spawned++

	w := &worker[T, R]{p: p, s: s, backoff: p.settings.newBackoff()}
	go p.relay(s)
	go w.run()
	p.log.Debug("worker spawned", "worker", s.id)
}

// teardownLocked removes s from the live and free sets and stops it.
func (p *Pool[T, R]) teardownLocked(s *slot[T, R], state SlotState) (wasLive bool) {
	if p.live[s.id] == s {
		delete(p.live, s.id)
		wasLive = true
	}
	p.free.Remove(func(x *slot[T, R]) bool { return x == s })
	s.stop(state)
	return wasLive
}

// forget is called by a worker goroutine as it exits.
func (p *Pool[T, R]) forget(s *slot[T, R]) {
	p.mu.Lock()
	delete(p.threads, s.id)
	p.mu.Unlock()
}

// relay reads s's port until it is closed. It is the only reader.
func (p *Pool[T, R]) relay(s *slot[T, R]) {
	for {
		f, err := s.port.Receive()
		if err != nil {
			if !errors.Is(err, port.ErrClosed) {
				p.fault(s, uuid.Nil, fmt.Errorf("pool: worker %d port: %w", s.id, err))
			}
			return
		}

		switch f.Kind {
		case port.KindNotify:
			p.notify(s, f)
		case port.KindReady:
			p.ready(s)
		case port.KindDone:
			if !p.finish(s, f.TaskID) {
				return
			}
		case port.KindFault:
			p.fault(s, f.TaskID, s.fault)
			return
		}
	}
}

func (p *Pool[T, R]) notify(s *slot[T, R], f port.Frame) {
	if p.onMessage == nil {
		return
	}
	defer p.recoverObserver("message hook")
	p.onMessage(Message{
		Event:   f.Event,
		Task:    Correlation{ID: f.TaskID, Meta: f.Meta},
		Worker:  s.id,
		Payload: f.Payload,
	})
}

func (p *Pool[T, R]) ready(s *slot[T, R]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	switch s.state {
	case Spawning:
		p.log.Debug("worker ready", "worker", s.id, "thread", s.tid, "core", s.core)
	case Draining:
		p.log.Debug("timed-out handler returned", "worker", s.id)
	default:
		return
	}
	s.state = Idle
	p.free.PushBack(s)
	p.dispatchLocked()
}

// finish resolves the active task of s, then returns s to the free queue and
// dispatches the next pending task. A slot whose task timed out is retired,
// or drains until its handler returns. It reports whether the relay goes on.
func (p *Pool[T, R]) finish(s *slot[T, R], id uuid.UUID) bool {
	p.mu.Lock()
	h := s.active
	if s.state != Busy || h == nil || h.id != id {
		// already resolved by Close
		p.mu.Unlock()
		return true
	}
	out, expired := s.out, s.expired
	s.active = nil
	s.completed++
	if out.err != nil {
		p.stats.Failed++
	} else {
		p.stats.Completed++
	}

	// settle the slot before the callback so Close never waits on a
	// thread whose task is already resolved
	switch {
	case expired && p.recycle:
		p.teardownLocked(s, Retired)
		p.replaceLocked()
	case expired:
		s.state = Draining
	}
	p.mu.Unlock()

	p.deliver(h, out)

	if expired {
		p.log.Debug("worker abandoned by timeout", "worker", s.id, "task", id, "recycled", p.recycle)
		return !p.recycle
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s.state != Busy {
		return true
	}
	s.state = Idle
	p.free.PushBack(s)
	p.dispatchLocked()
	return true
}

// fault tears down a crashed slot and spawns its replacement. id is the task
// the worker was executing when it crashed.
func (p *Pool[T, R]) fault(s *slot[T, R], id uuid.UUID, cause error) {
	p.mu.Lock()
	// a draining slot has no active task, so a late crash is nobody's result
	victim := s.active
	if victim != nil {
		p.stats.Failed++
		s.active = nil
	}
	if p.teardownLocked(s, Faulted) {
		p.replaceLocked()
	}
	p.dispatchLocked()
	p.mu.Unlock()

	p.log.Warn("worker crashed", "worker", s.id, "task", id, "error", cause)
	if victim != nil {
		p.deliver(victim, outcome[R]{err: cause})
		return
	}
	p.reportError(cause)
}

func (p *Pool[T, R]) replaceLocked() {
	if p.closed {
		return
	}
	p.stats.Replaced++
	p.spawnLocked()
}

// orphanFault reports a crash from a worker whose slot is no longer served.
func (p *Pool[T, R]) orphanFault(s *slot[T, R], id uuid.UUID, pe *PanicError) {
	p.log.Warn("retired worker crashed", "worker", s.id, "task", id, "error", pe)
	p.reportError(pe)
}

// deliver resolves h; a panicking callback is reported rather than taking
// the relay down with it.
func (p *Pool[T, R]) deliver(h *taskHandle[T, R], out outcome[R]) {
	defer p.recoverObserver("callback")
	h.done(out)
}

// recoverObserver must be deferred directly.
func (p *Pool[T, R]) recoverObserver(what string) {
	if r := recover(); r != nil {
		p.reportError(fmt.Errorf("pool: %s panicked: %w", what, newPanicError(r)))
	}
}

func (p *Pool[T, R]) reportError(err error) {
	if p.onError != nil {
		p.onError(err)
		return
	}
	p.log.Error("unhandled worker fault", "error", err)
}
