package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/threadpool/internal/backoff"
)

// Option configures a Pool.
type Option func(*settings)

// TaskOption configures a single submission.
type TaskOption func(*taskSettings)

// BackoffType selects the delay curve between retries.
type BackoffType = backoff.Kind

const (
	// BackoffExponential doubles the delay on every retry (default).
	BackoffExponential = backoff.Exponential
	// BackoffJittered adds random jitter to prevent thundering herd.
	BackoffJittered = backoff.Jittered
	// BackoffDecorrelated uses AWS-style decorrelated jitter.
	BackoffDecorrelated = backoff.Decorrelated
)

const defaultMaxBackoff = 30 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

// settings is validated as a whole once every option has been applied, so
// option order never matters.
type settings struct {
	WorkerFile string `validate:"required_without=Inline,excluded_with=Inline"`
	Inline     bool
	MaxWorkers *int           `validate:"omitnil,gte=1"`
	Timeout    *time.Duration `validate:"omitnil,gt=0"`

	RatePerSecond float64 `validate:"gte=0"`
	Burst         int     `validate:"required_with=RatePerSecond,gte=0"`

	RetryAttempts int           `validate:"gte=0"`
	RetryDelay    time.Duration `validate:"gte=0"`
	Backoff       BackoffType   `validate:"gte=0,lte=2"`
	BackoffMax    time.Duration `validate:"gte=0"`
	Jitter        float64       `validate:"gte=0,lte=1"`

	script           any
	recycleOnTimeout bool
	pin              bool

	beforeTaskStart any
	onTaskEnd       any
	onRetry         any
	onMessage       func(Message)
	onError         func(error)
	logger          *slog.Logger
}

var fieldNames = map[string]string{
	"WorkerFile":    "workerFile",
	"MaxWorkers":    "maxWorkers",
	"Timeout":       "timeout",
	"RatePerSecond": "rateLimit",
	"Burst":         "burst",
	"RetryAttempts": "retryAttempts",
	"RetryDelay":    "retryDelay",
	"Backoff":       "backoff",
	"BackoffMax":    "backoffMax",
	"Jitter":        "jitter",
}

func (s *settings) check() error {
	if s.Inline && s.script == nil && s.WorkerFile == "" {
		return &ValidationError{Field: "workerScript", Reason: "handler must not be nil"}
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "options", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fieldNames[fe.StructField()], Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.StructField() + "/" + fe.Tag() {
	case "WorkerFile/required_without":
		return "one of workerFile or workerScript must be specified"
	case "WorkerFile/excluded_with":
		return "workerFile and workerScript are mutually exclusive"
	case "MaxWorkers/gte":
		return "must be a positive integer >= 1"
	case "Timeout/gt":
		return "must be a positive duration"
	case "Burst/required_with":
		return "must be >= 1 when a rate limit is set"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

func (s *settings) workers(hardware int) int {
	n := hardware
	if s.MaxWorkers != nil {
		n = *s.MaxWorkers
	}
	return max(min(n, hardware), 1)
}

func (s *settings) timeout() time.Duration {
	if s.Timeout == nil {
		return 0
	}
	return *s.Timeout
}

func (s *settings) limiter() *rate.Limiter {
	if s.RatePerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(s.RatePerSecond), s.Burst)
}

// newBackoff builds one strategy per worker; strategies are not shared.
func (s *settings) newBackoff() backoff.Strategy {
	if s.RetryAttempts <= 1 || s.RetryDelay <= 0 {
		return nil
	}
	ceiling := s.BackoffMax
	if ceiling <= 0 {
		ceiling = defaultMaxBackoff
	}
	return backoff.New(s.Backoff, s.RetryDelay, ceiling, s.Jitter)
}

// WithWorkerFile selects a handler registered with Register by name.
func WithWorkerFile(name string) Option {
	return func(s *settings) {
		s.WorkerFile = name
	}
}

// WithWorkerScript supplies the handler inline.
func WithWorkerScript[T, R any](h HandlerFunc[T, R]) Option {
	return func(s *settings) {
		s.Inline = true
		if h != nil {
			s.script = h
		}
	}
}

// WithMaxWorkers sets the number of worker threads. It is clamped to the
// hardware concurrency and defaults to it.
func WithMaxWorkers(n int) Option {
	return func(s *settings) {
		s.MaxWorkers = &n
	}
}

// WithTimeout bounds a single task execution, retries included. A timed-out
// handler has its context cancelled but keeps its thread until it returns.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.Timeout = &d
	}
}

// WithRecycleOnTimeout replaces a worker whose task timed out instead of
// letting it finish the abandoned handler in place.
func WithRecycleOnTimeout() Option {
	return func(s *settings) {
		s.recycleOnTimeout = true
	}
}

// WithCPUAffinity pins worker i to core i mod NumCPU where the OS allows it.
func WithCPUAffinity() Option {
	return func(s *settings) {
		s.pin = true
	}
}

// WithRateLimit sets a rate limiter for controlling task throughput across
// all workers.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(s *settings) {
		s.RatePerSecond = tasksPerSecond
		s.Burst = burst
	}
}

// WithRetryPolicy retries a task whose handler returned an error.
// maxAttempts counts the first attempt; initialDelay is the pause before the
// first retry and grows according to the backoff (exponential by default).
// Panics are never retried.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(s *settings) {
		s.RetryAttempts = maxAttempts
		s.RetryDelay = initialDelay
	}
}

// WithBackoff selects the retry delay curve. initialDelay overrides the one
// given to WithRetryPolicy when positive.
func WithBackoff(kind BackoffType, initialDelay, maxDelay time.Duration) Option {
	return func(s *settings) {
		s.Backoff = kind
		if initialDelay > 0 {
			s.RetryDelay = initialDelay
		}
		s.BackoffMax = maxDelay
	}
}

// WithJitteredBackoff is WithBackoff(BackoffJittered, ...) with an explicit
// jitter factor in [0, 1].
func WithJitteredBackoff(initialDelay, maxDelay time.Duration, jitter float64) Option {
	return func(s *settings) {
		WithBackoff(BackoffJittered, initialDelay, maxDelay)(s)
		s.Jitter = jitter
	}
}

// WithBeforeTaskStart is called on the worker thread before each task runs.
func WithBeforeTaskStart[T any](fn func(T)) Option {
	return func(s *settings) {
		s.beforeTaskStart = fn
	}
}

// WithOnTaskEnd is called on the worker thread after each task's last attempt.
// It is not called for tasks whose thread crashed.
func WithOnTaskEnd[T, R any](fn func(T, R, error)) Option {
	return func(s *settings) {
		s.onTaskEnd = fn
	}
}

// WithOnRetry is called before every retry with the attempt that just failed.
func WithOnRetry[T any](fn func(task T, attempt int, err error)) Option {
	return func(s *settings) {
		s.onRetry = fn
	}
}

// WithOnMessage receives every notification emitted by a handler.
func WithOnMessage(fn func(Message)) Option {
	return func(s *settings) {
		s.onMessage = fn
	}
}

// WithOnError receives thread faults that cannot be attributed to a task.
func WithOnError(fn func(error)) Option {
	return func(s *settings) {
		s.onError = fn
	}
}

// WithLogger sets the logger for pool lifecycle events. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

type taskSettings struct {
	meta map[string]string
}

// WithMeta attaches a key/value pair to the task. It is visible to the
// handler through Notifier.Meta and echoed in messages and errors.
func WithMeta(key, value string) TaskOption {
	return func(ts *taskSettings) {
		if ts.meta == nil {
			ts.meta = make(map[string]string)
		}
		ts.meta[key] = value
	}
}

// hooks are the typed forms of the generic hook options.
type hooks[T, R any] struct {
	beforeTaskStart func(T)
	onTaskEnd       func(T, R, error)
	onRetry         func(T, int, error)
}

func checkHooks[T, R any](s *settings) (h hooks[T, R], err error) {
	if h.beforeTaskStart, err = typedHook[func(T)]("beforeTaskStart", s.beforeTaskStart); err != nil {
		return h, err
	}
	if h.onTaskEnd, err = typedHook[func(T, R, error)]("onTaskEnd", s.onTaskEnd); err != nil {
		return h, err
	}
	h.onRetry, err = typedHook[func(T, int, error)]("onRetry", s.onRetry)
	return h, err
}

func typedHook[F any](field string, v any) (F, error) {
	var fn F
	if v == nil {
		return fn, nil
	}
	fn, ok := v.(F)
	if !ok {
		return fn, &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("hook is %T, pool expects %v", v, reflect.TypeFor[F]()),
		}
	}
	return fn, nil
}
