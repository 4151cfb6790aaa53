// Package cpu exposes the small amount of OS thread control the worker
// runtime needs: hardware concurrency, pinning the calling thread to a core
// and reading the kernel id of the calling thread.
//
// Pin and ThreadID act on the current OS thread, so callers must hold
// runtime.LockOSThread for the result to mean anything.
package cpu

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned by Pin on platforms without thread affinity.
var ErrUnsupported = errors.New("cpu: thread affinity not supported on " + runtime.GOOS)

// NumCPU returns the number of logical CPUs usable by the process.
func NumCPU() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// coreFor maps an arbitrary worker index onto [0, NumCPU()).
func coreFor(worker int) int {
	n := NumCPU()
	c := worker % n
	if c < 0 {
		c += n
	}
	return c
}
