package benchmarks

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/utkarsh5026/threadpool/pool"
)

var errSimulated = errors.New("simulated error")

// poolConfig names one pool setup under benchmark
type poolConfig struct {
	name string
	opts []pool.Option
}

// featureConfigs returns the optional pool features worth comparing against a bare pool
func featureConfigs(workers int) []poolConfig {
	return []poolConfig{
		{name: "Baseline", opts: []pool.Option{pool.WithMaxWorkers(workers)}},
		{name: "Timeout", opts: []pool.Option{pool.WithMaxWorkers(workers), pool.WithTimeout(time.Second)}},
		{name: "Retry", opts: []pool.Option{pool.WithMaxWorkers(workers), pool.WithRetryPolicy(3, time.Microsecond)}},
		{name: "Affinity", opts: []pool.Option{pool.WithMaxWorkers(workers), pool.WithCPUAffinity()}},
	}
}

// newBenchPool starts a pool for h and closes it when the benchmark ends
func newBenchPool(b *testing.B, h pool.HandlerFunc[int, int], opts ...pool.Option) *pool.Pool[int, int] {
	b.Helper()
	opts = append([]pool.Option{pool.WithWorkerScript(h)}, opts...)
	p, err := pool.New[int, int](opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p
}

// runBatch pushes one batch through p and fails the benchmark if the batch is abandoned
func runBatch(b *testing.B, p *pool.Pool[int, int], tasks []int) *pool.Results[int] {
	b.Helper()
	res, err := p.SubmitBatch(context.Background(), tasks)
	if err != nil {
		b.Fatal(err)
	}
	return res
}

func makeTasks(n int) []int {
	tasks := make([]int, n)
	for i := range tasks {
		tasks[i] = i
	}
	return tasks
}

// reportThroughput records tasks/sec over the whole run
func reportThroughput(b *testing.B, tasksPerOp int) {
	nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
	if nsPerOp == 0 {
		return
	}
	b.ReportMetric(float64(tasksPerOp)/nsPerOp*1e9, "tasks/sec")
}

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) pool.HandlerFunc[int, int] {
	return func(_ context.Context, task int, _ pool.Notifier) (int, error) {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) pool.HandlerFunc[int, int] {
	return func(ctx context.Context, task int, _ pool.Notifier) (int, error) {
		select {
		case <-time.After(delay):
			return task * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// mixedWork simulates a realistic workload with variable processing time
func mixedWork() pool.HandlerFunc[int, int] {
	return func(_ context.Context, task int, _ pool.Notifier) (int, error) {
		time.Sleep(time.Duration(task%10) * time.Millisecond)

		result := 0
		for i := range 1000 {
			result += i
		}
		return result + task, nil
	}
}

// chattyWork emits n notifications before returning
func chattyWork(n int) pool.HandlerFunc[int, int] {
	return func(_ context.Context, task int, note pool.Notifier) (int, error) {
		for i := range n {
			if err := note.Emit("progress", i); err != nil {
				return 0, err
			}
		}
		return task, nil
	}
}

// errorProneWork fails the first attempt of a task with the given probability
func errorProneWork(errorRate float64) pool.HandlerFunc[int, int] {
	var attempts sync.Map
	return func(_ context.Context, task int, _ pool.Notifier) (int, error) {
		val, _ := attempts.LoadOrStore(task, new(atomic.Int32))
		if val.(*atomic.Int32).Add(1) == 1 && rand.Float64() < errorRate {
			return 0, errSimulated
		}
		return task * 2, nil
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(idx, 0)]
}
