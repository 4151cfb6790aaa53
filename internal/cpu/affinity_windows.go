//go:build windows

package cpu

import (
	"fmt"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
	getCurrentThreadID    = kernel32.NewProc("GetCurrentThreadId")
)

// Pin binds the calling OS thread to the core chosen for worker.
// Returns the core that was selected.
func Pin(worker int) (int, error) {
	core := coreFor(worker)

	handle, _, _ := getCurrentThread.Call()
	// bit N selects CPU N
	prev, _, err := setThreadAffinityMask.Call(handle, uintptr(1)<<core)
	if prev == 0 {
		return -1, fmt.Errorf("cpu: pin to core %d: %w", core, err)
	}
	return core, nil
}

// ThreadID returns the Win32 id of the calling thread.
func ThreadID() int {
	id, _, _ := getCurrentThreadID.Call()
	return int(id)
}
