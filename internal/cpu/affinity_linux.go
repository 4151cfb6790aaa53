//go:build linux

package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pin binds the calling OS thread to the core chosen for worker.
// Returns the core that was selected.
func Pin(worker int) (int, error) {
	core := coreFor(worker)

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(core)

	// pid 0 is the calling thread
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return -1, fmt.Errorf("cpu: pin to core %d: %w", core, err)
	}
	return core, nil
}

// ThreadID returns the kernel thread id of the caller.
func ThreadID() int {
	return unix.Gettid()
}
