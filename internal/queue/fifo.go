// Package queue provides the growable FIFO ring used for the pool's free-slot
// and pending-task queues.
package queue

const defaultCapacity = 16

// FIFO is a first-in first-out ring buffer that doubles its capacity when full.
//
// FIFO is not safe for concurrent use; the pool guards every queue with its own
// mutex.
type FIFO[T any] struct {
	ring []T
	mask int
	head int // index of the oldest element
	n    int
}

// New creates a FIFO with room for at least capacity elements before it grows.
func New[T any](capacity int) *FIFO[T] {
	capacity = nextPowerOfTwo(max(capacity, defaultCapacity))
	return &FIFO[T]{
		ring: make([]T, capacity),
		mask: capacity - 1,
	}
}

// PushBack appends v at the tail.
func (q *FIFO[T]) PushBack(v T) {
	if q.n == len(q.ring) {
		q.grow()
	}
	q.ring[(q.head+q.n)&q.mask] = v
	q.n++
}

// PopFront removes and returns the oldest element. ok is false when empty.
func (q *FIFO[T]) PopFront() (v T, ok bool) {
	if q.n == 0 {
		return v, false
	}

	var zero T
	v = q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) & q.mask
	q.n--
	return v, true
}

// Front returns the oldest element without removing it.
func (q *FIFO[T]) Front() (v T, ok bool) {
	if q.n == 0 {
		return v, false
	}
	return q.ring[q.head], true
}

// Remove deletes the first element for which match returns true, keeping the
// order of the remaining elements. It reports whether an element was removed.
func (q *FIFO[T]) Remove(match func(T) bool) bool {
	for i := range q.n {
		if !match(q.ring[(q.head+i)&q.mask]) {
			continue
		}

		for j := i; j < q.n-1; j++ {
			q.ring[(q.head+j)&q.mask] = q.ring[(q.head+j+1)&q.mask]
		}

		var zero T
		q.ring[(q.head+q.n-1)&q.mask] = zero
		q.n--
		return true
	}
	return false
}

// Drain removes every element and returns them oldest first.
func (q *FIFO[T]) Drain() []T {
	out := make([]T, 0, q.n)
	for {
		v, ok := q.PopFront()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// Len returns the number of queued elements.
func (q *FIFO[T]) Len() int {
	return q.n
}

// grow doubles the ring and unrolls the elements so head starts at zero.
func (q *FIFO[T]) grow() {
	newRing := make([]T, len(q.ring)<<1)
	for i := range q.n {
		newRing[i] = q.ring[(q.head+i)&q.mask]
	}

	q.ring = newRing
	q.mask = len(newRing) - 1
	q.head = 0
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}
