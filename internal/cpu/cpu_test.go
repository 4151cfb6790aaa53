package cpu

import (
	"runtime"
	"testing"
)

func TestNumCPU(t *testing.T) {
	if got := NumCPU(); got < 1 {
		t.Fatalf("NumCPU() = %d, want >= 1", got)
	}
}

func TestCoreFor(t *testing.T) {
	n := NumCPU()
	tests := []struct {
		name   string
		worker int
		want   int
	}{
		{"first", 0, 0},
		{"wraps", n, 0},
		{"wraps plus one", n + 1, 1 % n},
		{"negative", -1, n - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coreFor(tt.worker); got != tt.want {
				t.Errorf("coreFor(%d) = %d, want %d", tt.worker, got, tt.want)
			}
		})
	}
}

func TestPinLockedThread(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		core, err := Pin(3)
		if err == ErrUnsupported {
			return
		}
		if err != nil {
			// containers may forbid changing affinity
			t.Logf("Pin: %v", err)
			return
		}
		if core != coreFor(3) {
			t.Errorf("Pin(3) picked core %d, want %d", core, coreFor(3))
		}
		if runtime.GOOS == "linux" && ThreadID() <= 0 {
			t.Errorf("ThreadID() = %d on linux", ThreadID())
		}
	}()
	<-done
}
