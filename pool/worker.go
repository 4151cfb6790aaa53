package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/utkarsh5026/threadpool/internal/backoff"
	"github.com/utkarsh5026/threadpool/internal/cpu"
	"github.com/utkarsh5026/threadpool/internal/port"
)

// phases of one task execution; exactly one transition out of running wins
const (
	running int32 = iota
	finished
	timedOut
	crashed
)

type execution struct {
	id     uuid.UUID
	phase  atomic.Int32
	posted chan struct{} // closed once the watchdog's Done frame is sent
}

// worker is the thread side of a slot.
type worker[T, R any] struct {
	p       *Pool[T, R]
	s       *slot[T, R]
	backoff backoff.Strategy
	current *execution
}

// run is the body of the worker thread. The OS thread is never unlocked, so
// it is destroyed when run returns, crashed or not.
func (w *worker[T, R]) run() {
	s := w.s
	runtime.LockOSThread()

	clean := false
	defer func() {
		if !clean {
			w.crash(recover())
		}
		w.p.forget(s)
		close(s.exited)
	}()

	if w.p.pin {
		core, err := cpu.Pin(s.id)
		if err != nil {
			w.p.log.Debug("cpu pinning unavailable", "worker", s.id, "error", err)
		} else {
			s.core = core
		}
	}
	s.tid = cpu.ThreadID()

	if err := s.port.Send(port.Frame{Kind: port.KindReady}); err != nil {
		clean = true
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			clean = true
			return
		case j := <-s.inbox:
			if s.ctx.Err() != nil {
				clean = true
				return
			}
			w.serve(j)
		}
	}
}

// serve runs one task and posts its terminal frame, unless the timeout
// already posted one.
func (w *worker[T, R]) serve(j job[T]) {
	s := w.s
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	e := &execution{id: j.id, posted: make(chan struct{})}
	w.current = e

	if d := w.p.timeout; d > 0 {
		t := time.AfterFunc(d, func() {
			if !e.phase.CompareAndSwap(running, timedOut) {
				return
			}
			defer close(e.posted)
			cancel()
			s.out = outcome[R]{err: &TimeoutError{After: d}}
			s.expired = true
			_ = s.port.Send(port.Frame{Kind: port.KindDone, TaskID: j.id})
		})
		defer t.Stop()
	}

	value, err := w.execute(ctx, j.payload, &notifier{port: s.port, id: j.id, meta: j.meta, worker: s.id})

	if e.phase.CompareAndSwap(running, finished) {
		s.out = outcome[R]{value: value, err: err}
		s.expired = false
		_ = s.port.Send(port.Frame{Kind: port.KindDone, TaskID: j.id})
	} else {
		// the abandoned handler is back; Ready must follow the watchdog's Done
		<-e.posted
		_ = s.port.Send(port.Frame{Kind: port.KindReady, TaskID: j.id})
	}
	w.current = nil
}

// crash reports a panic or Goexit that escaped the handler. r is nil for
// Goexit.
func (w *worker[T, R]) crash(r any) {
	pe := newPanicError(r)

	var id uuid.UUID
	if e := w.current; e != nil {
		id = e.id
		e.phase.CompareAndSwap(running, crashed)
	}

	w.s.fault = pe
	if err := w.s.port.Send(port.Frame{Kind: port.KindFault, TaskID: id}); err != nil {
		// slot already retired or closed; nobody is reading the port
		w.p.orphanFault(w.s, id, pe)
	}
}

// execute handles rate limiting, hooks and retries around the handler.
func (w *worker[T, R]) execute(ctx context.Context, payload T, n Notifier) (R, error) {
	if lim := w.p.limiter; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			var zero R
			// the limiter's error does not wrap context errors
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, err
		}
	}

	if fn := w.p.hooks.beforeTaskStart; fn != nil {
		fn(payload)
	}

	result, err := w.retry(ctx, payload, n)

	if fn := w.p.hooks.onTaskEnd; fn != nil {
		fn(payload, result, err)
	}
	return result, err
}

func (w *worker[T, R]) retry(ctx context.Context, payload T, n Notifier) (R, error) {
	var result R
	var err error
	attempts := max(w.p.retryAttempts, 1)

	if w.backoff != nil {
		w.backoff.Reset()
	}

	for attempt := range attempts {
		if attempt > 0 && w.backoff != nil {
			if delay := w.backoff.Delay(attempt - 1); delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return result, ctx.Err()
				}
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = w.p.handler(ctx, payload, n)
		if err == nil {
			return result, nil
		}

		if fn := w.p.hooks.onRetry; fn != nil && attempt < attempts-1 {
			fn(payload, attempt+1, err)
		}
	}
	return result, err
}

type notifier struct {
	port   *port.Port
	id     uuid.UUID
	meta   map[string]string
	worker int
}

func (n *notifier) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pool: encode %q payload: %w", event, err)
	}

	err = n.port.Send(port.Frame{
		Kind:    port.KindNotify,
		TaskID:  n.id,
		Event:   event,
		Meta:    n.meta,
		Payload: raw,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, port.ErrClosed):
		return ErrClosed
	default:
		return fmt.Errorf("pool: emit %q: %w", event, err)
	}
}

func (n *notifier) TaskID() uuid.UUID {
	return n.id
}

func (n *notifier) Meta() map[string]string {
	return maps.Clone(n.meta)
}

func (n *notifier) Worker() int {
	return n.worker
}
