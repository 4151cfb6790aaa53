package pool

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned by submissions to a closed pool and is the cause
	// of every task still outstanding when the pool was closed.
	ErrClosed = errors.New("pool: closed")

	// ErrTimeout matches any *TimeoutError through errors.Is.
	ErrTimeout = errors.New("pool: task timed out")

	errGoexit = errors.New("handler called runtime.Goexit")
)

// ValidationError reports an invalid option passed to New.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pool: invalid %s: %s", e.Field, e.Reason)
}

// WorkerError is the error every failed task is delivered with. Cause is
// the handler's own error, a *TimeoutError, a *PanicError or ErrClosed.
type WorkerError struct {
	Cause  error
	Task   any // the payload as submitted
	TaskID uuid.UUID
	Meta   map[string]string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("pool: task %s: %v", e.TaskID, e.Cause)
}

func (e *WorkerError) Unwrap() error {
	return e.Cause
}

// TimeoutError is the cause of a task that outlived the pool's timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pool: task timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError is the cause of a task whose worker thread crashed.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	if v == nil {
		v = errGoexit
	}
	return &PanicError{Value: v, Stack: buf[:n]}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pool: worker panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsTimeout reports whether err was caused by the pool timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsPanic reports whether err was caused by a crashed worker thread.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
