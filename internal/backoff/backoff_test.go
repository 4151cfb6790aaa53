package backoff

import (
	"testing"
	"time"
)

func TestExponential_Delay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first retry", 0, 10 * time.Millisecond},
		{"second retry", 1, 20 * time.Millisecond},
		{"fourth retry", 3, 80 * time.Millisecond},
		{"saturates", 10, time.Second},
		{"huge attempt", 200, time.Second},
		{"negative", -1, 0},
	}

	s := New(Exponential, 10*time.Millisecond, time.Second, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestJittered_Delay(t *testing.T) {
	tests := []struct {
		name             string
		attempt          int
		wantMin, wantMax time.Duration
	}{
		{"first retry", 0, 90 * time.Millisecond, 110 * time.Millisecond},
		{"second retry", 1, 180 * time.Millisecond, 220 * time.Millisecond},
		{"capped", 20, 0, 10 * time.Second},
	}

	s := New(Jittered, 100*time.Millisecond, 10*time.Second, 0.1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 50 {
				got := s.Delay(tt.attempt)
				if got < tt.wantMin || got > tt.wantMax {
					t.Fatalf("Delay(%d) = %v, want within [%v, %v]", tt.attempt, got, tt.wantMin, tt.wantMax)
				}
			}
		})
	}
}

func TestJittered_ClampsFactor(t *testing.T) {
	s := New(Jittered, 100*time.Millisecond, time.Second, 5).(*jittered)
	if s.factor != 1 {
		t.Errorf("factor = %v, want 1", s.factor)
	}
}

func TestDecorrelated_Delay(t *testing.T) {
	initial := 100 * time.Millisecond
	ceiling := 2 * time.Second
	s := New(Decorrelated, initial, ceiling, 0)

	if got := s.Delay(0); got != initial {
		t.Fatalf("Delay(0) = %v, want %v", got, initial)
	}

	prev := initial
	for i := 1; i < 20; i++ {
		got := s.Delay(i)
		if got < initial || got > min(prev*3, ceiling) {
			t.Fatalf("attempt %d: Delay = %v outside [%v, %v]", i, got, initial, min(prev*3, ceiling))
		}
		prev = got
	}

	s.Reset()
	if got := s.(*decorrelated).prev; got != initial {
		t.Errorf("after Reset prev = %v, want %v", got, initial)
	}
}

func TestNew_CeilingBelowInitial(t *testing.T) {
	s := New(Exponential, time.Second, time.Millisecond, 0)
	if got := s.Delay(3); got != time.Second {
		t.Errorf("Delay(3) = %v, want %v", got, time.Second)
	}
}
