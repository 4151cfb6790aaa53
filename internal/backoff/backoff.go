// Package backoff computes the pause between attempts of a failed task.
//
// A Strategy is owned by a single worker and is not safe for concurrent use.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Kind selects the delay curve.
type Kind int

const (
	// Exponential doubles the delay on every attempt.
	Exponential Kind = iota
	// Jittered is Exponential with each delay scaled by 1±jitter.
	Jittered
	// Decorrelated picks each delay in [initial, 3*previous].
	Decorrelated
)

// shifts at or past this always overflow int64 nanoseconds
const maxShift = 62

// Strategy yields the delay before retry number attempt (0 is the first retry).
type Strategy interface {
	Delay(attempt int) time.Duration
	Reset()
}

// New returns a Strategy of the given kind. jitter is clamped to [0, 1] and
// only affects Jittered.
func New(kind Kind, initial, ceiling time.Duration, jitter float64) Strategy {
	if ceiling < initial {
		ceiling = initial
	}
	switch kind {
	case Jittered:
		return &jittered{initial: initial, ceiling: ceiling, factor: min(max(jitter, 0), 1)}
	case Decorrelated:
		return &decorrelated{initial: initial, ceiling: ceiling, prev: initial}
	default:
		return exponential{initial: initial, ceiling: ceiling}
	}
}

func (k Kind) String() string {
	switch k {
	case Exponential:
		return "exponential"
	case Jittered:
		return "jittered"
	case Decorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}

type exponential struct {
	initial, ceiling time.Duration
}

func (e exponential) Delay(attempt int) time.Duration { return grow(attempt, e.initial, e.ceiling) }
func (exponential) Reset()                            {}

type jittered struct {
	initial, ceiling time.Duration
	factor           float64
}

func (j *jittered) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	base := grow(attempt, j.initial, j.ceiling)
	scaled := time.Duration(float64(base) * (1 + (rand.Float64()*2-1)*j.factor)) // #nosec G404
	return min(max(scaled, 0), j.ceiling)
}

func (*jittered) Reset() {}

type decorrelated struct {
	initial, ceiling, prev time.Duration
}

func (d *decorrelated) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		d.prev = d.initial
		return d.initial
	}
	upper := min(d.prev*3, d.ceiling)
	span := upper - d.initial
	if span <= 0 {
		d.prev = d.initial
		return d.initial
	}
	d.prev = d.initial + rand.N(span) // #nosec G404
	return d.prev
}

func (d *decorrelated) Reset() { d.prev = d.initial }

// grow returns initial*2^attempt, saturating at ceiling.
func grow(attempt int, initial, ceiling time.Duration) time.Duration {
	switch {
	case attempt < 0:
		return 0
	case attempt >= maxShift:
		return ceiling
	}
	if initial > ceiling>>uint(attempt) {
		return ceiling
	}
	return initial << uint(attempt)
}
