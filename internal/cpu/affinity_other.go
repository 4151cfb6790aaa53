//go:build !linux && !windows

package cpu

// Pin is a no-op here; macOS and the BSDs offer no hard thread affinity.
func Pin(worker int) (int, error) {
	return -1, ErrUnsupported
}

// ThreadID is not exposed portably on this platform and is always 0.
func ThreadID() int {
	return 0
}
