// Package pool runs independent tasks on a fixed set of worker threads.
//
// The primary type is Pool[T, R]: maxWorkers goroutines, each locked to its
// own OS thread, that run a HandlerFunc[T, R] on payloads of type T and
// produce results of type R. The pool hands each task to the oldest idle
// worker or queues it in arrival order, replaces workers whose thread
// crashed, and relays notifications emitted by running handlers.
//
// # Basic Usage
//
//	p, err := pool.New[string, int64](
//	    pool.WithWorkerScript(func(ctx context.Context, url string, n pool.Notifier) (int64, error) {
//	        _ = n.Emit("start", url)
//	        return probe(ctx, url)
//	    }),
//	    pool.WithMaxWorkers(4),
//	    pool.WithTimeout(5*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	defer p.Close(context.Background())
//
//	f, err := p.Submit("https://example.com")
//	size, err := f.Get()
//
// # Handlers by Name
//
// A handler registered once can be selected by name, which keeps the pool
// construction free of the handler's import:
//
//	func init() {
//	    pool.Register("sizeprobe", probeHandler)
//	}
//
//	p, err := pool.New[string, int64](pool.WithWorkerFile("sizeprobe"))
//
// # Failures
//
// Every failed task is delivered with a *WorkerError whose Cause tells what
// happened:
//
//   - the handler's own error when it returned one
//   - *TimeoutError when the task outlived WithTimeout
//   - *PanicError when the handler panicked or called runtime.Goexit; the
//     worker thread is discarded and a new one takes its place
//   - ErrClosed when the pool was closed first
//
// A timed-out handler is not killed. Its context is cancelled and, unless
// WithRecycleOnTimeout is set, its worker drains: it takes no new task until
// the handler returns. Close does not wait for draining workers.
//
// # Notifications
//
// Handlers can report progress through their Notifier. Every notification
// for a task is delivered to WithOnMessage before the task's own callback.
//
//	pool.WithOnMessage(func(m pool.Message) {
//	    var url string
//	    _ = m.Decode(&url)
//	    log.Printf("%s %s (task %s)", m.Event, url, m.Task.ID)
//	})
//
// # One-shot Helpers
//
// Run and RunBatch build a pool, execute, and close it:
//
//	res, err := pool.RunBatch[string, int64](ctx, urls, pool.WithWorkerFile("sizeprobe"))
//	for _, we := range res.Errors {
//	    log.Printf("%v failed: %v", we.Task, we.Cause)
//	}
//
// # Configuration Options
//
//   - WithWorkerFile(name) / WithWorkerScript(h): Exactly one is required
//   - WithMaxWorkers(n): Number of worker threads (default and cap: NumCPU)
//   - WithTimeout(d): Bound on one task execution, retries included
//   - WithRecycleOnTimeout(): Replace a worker after its task timed out
//   - WithCPUAffinity(): Pin worker i to core i mod NumCPU
//   - WithRateLimit(rate, burst): Start at most rate tasks per second
//   - WithRetryPolicy(attempts, delay): Retry tasks whose handler returned an error
//   - WithBackoff(type, initial, max): Retry delay curve
//   - WithBeforeTaskStart, WithOnTaskEnd, WithOnRetry: Per-task hooks
//   - WithOnMessage, WithOnError: Notification and fault hooks
//   - WithLogger(l): slog logger for lifecycle events
package pool
