package delivery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{20, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Jitter(t *testing.T) {
	b := DefaultBackoff()
	base := float64(DefaultBaseDelay)
	for i := 0; i < 100; i++ {
		d := float64(b.Delay(0))
		if d < base*(1-DefaultJitter) || d > base*(1+DefaultJitter) {
			t.Fatalf("Delay(0) = %v outside jitter bounds", time.Duration(d))
		}
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := Backoff{}.withDefaults()
	if b != DefaultBackoff() {
		t.Errorf("withDefaults() = %+v, want %+v", b, DefaultBackoff())
	}

	custom := Backoff{BaseDelay: time.Second, MaxAttempts: 3}.withDefaults()
	if custom.BaseDelay != time.Second || custom.MaxAttempts != 3 || custom.MaxDelay != DefaultMaxDelay {
		t.Errorf("withDefaults() overwrote custom values: %+v", custom)
	}
}

func TestBackoff_JitterDefaults(t *testing.T) {
	tests := []struct {
		jitter float64
		want   float64
	}{
		{0, DefaultJitter},
		{0.5, 0.5},
		{1, 1},
		{1.5, DefaultJitter},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := (Backoff{Jitter: tt.jitter}).withDefaults().Jitter; got != tt.want {
			t.Errorf("withDefaults() Jitter for %v = %v, want %v", tt.jitter, got, tt.want)
		}
	}

	plain := Backoff{BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1, Jitter: -1}.withDefaults()
	for i := 0; i < 20; i++ {
		if d := plain.Delay(0); d != time.Second {
			t.Fatalf("Delay(0) with jitter disabled = %v, want 1s", d)
		}
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	if (Backoff{}).Exhausted(1 << 20) {
		t.Error("unlimited backoff exhausted")
	}
	b := Backoff{MaxAttempts: 3}
	if b.Exhausted(2) || !b.Exhausted(3) {
		t.Error("MaxAttempts not honored")
	}
}

func TestBackoff_WaitCanceled(t *testing.T) {
	b := Backoff{BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := b.Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait() did not return promptly on cancel")
	}
}
