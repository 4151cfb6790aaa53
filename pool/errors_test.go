package pool

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWorkerError_Unwrap(t *testing.T) {
	id := uuid.New()
	cause := &TimeoutError{After: time.Second}
	err := fmt.Errorf("batch: %w", &WorkerError{Cause: cause, Task: "x", TaskID: id})

	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, IsPanic(err))
	assert.Contains(t, err.Error(), id.String())
	assert.Contains(t, err.Error(), "1s")
}

func TestPanicError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	assert.ErrorIs(t, newPanicError(inner), inner)
	assert.Nil(t, newPanicError("text").Unwrap())
	assert.ErrorIs(t, newPanicError(nil), errGoexit)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "maxWorkers", Reason: "must be a positive integer >= 1"}
	assert.Equal(t, "pool: invalid maxWorkers: must be a positive integer >= 1", err.Error())
}

func TestSlotState_String(t *testing.T) {
	assert.Equal(t, "busy", Busy.String())
	assert.Equal(t, "state(42)", SlotState(42).String())
}
