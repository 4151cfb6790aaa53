//go:build linux

package lock

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWait        = 0
	futexWake        = 1
	futexPrivateFlag = 128
)

// parker blocks on the cell itself through the futex syscall, so no extra
// state is needed.
type parker struct{}

func newParker() parker { return parker{} }

// wait sleeps while *addr == val. Spurious returns (EAGAIN, EINTR) are fine:
// the caller re-checks the cell.
func (parker) wait(addr *int32, val int32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWait|futexPrivateFlag),
		uintptr(val),
		0, 0, 0,
	)
}

// wake wakes at most one thread sleeping on addr.
func (parker) wake(addr *int32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWake|futexPrivateFlag),
		1,
		0, 0, 0,
	)
}
