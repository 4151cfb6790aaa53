package pool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// HandlerFunc processes one payload on a worker thread. A returned error
// rejects the task; a panic crashes the worker thread.
type HandlerFunc[T, R any] func(ctx context.Context, payload T, n Notifier) (R, error)

// Callback receives the outcome of one task. err is a *WorkerError when the
// task failed.
type Callback[R any] func(result R, err error)

// Notifier lets a running handler talk back to the pool.
type Notifier interface {
	// Emit JSON-encodes payload and sends it to the pool's OnMessage hook.
	Emit(event string, payload any) error
	TaskID() uuid.UUID
	Meta() map[string]string
	// Worker is the id of the worker slot running the task.
	Worker() int
}

// Correlation identifies the task a message belongs to.
type Correlation struct {
	ID   uuid.UUID
	Meta map[string]string
}

// Message is a notification relayed from a worker thread.
type Message struct {
	Event   string
	Task    Correlation
	Worker  int
	Payload json.RawMessage
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("pool: message %q has no payload", m.Event)
	}
	return json.Unmarshal(m.Payload, v)
}

// Result is the outcome of one task of a batch.
type Result[R any] struct {
	Value R
	Err   error
	Index int
}

// Results partitions a batch. Results and Errors keep submission order;
// Outcomes is indexed by submission index.
type Results[R any] struct {
	Results  []R
	Errors   []*WorkerError
	Outcomes []Result[R]
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Live     int
	Idle     int
	Busy     int
	Draining int // still inside a handler that already timed out
	Pending  int

	Spawned   uint64
	Replaced  uint64
	Completed uint64
	Failed    uint64
}

// SlotState is the lifecycle state of a worker slot.
type SlotState int

const (
	Spawning SlotState = iota
	Idle
	Busy
	Draining
	Faulted
	Retired
	Closed
)

func (s SlotState) String() string {
	switch s {
	case Spawning:
		return "spawning"
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Draining:
		return "draining"
	case Faulted:
		return "faulted"
	case Retired:
		return "retired"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WorkerInfo describes one live worker slot.
type WorkerInfo struct {
	ID        int
	ThreadID  int
	Core      int // -1 when not pinned
	State     SlotState
	Task      uuid.UUID // zero when idle
	Completed uint64
}
