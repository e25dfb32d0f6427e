package delivery

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff configures the delay between reconnect attempts.
type Backoff struct {
	// BaseDelay is the delay after the first failure.
	BaseDelay time.Duration
	// MaxDelay caps the delay.
	MaxDelay time.Duration
	// Multiplier is the growth factor per consecutive failure.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to each delay.
	// Zero selects DefaultJitter; a negative value disables jitter.
	Jitter float64
	// MaxAttempts stops reconnecting after this many consecutive failures.
	// Zero means retry forever.
	MaxAttempts int
}

// Default backoff values.
const (
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 30 * time.Second
	DefaultMultiplier = 2.0
	DefaultJitter     = 0.2
)

// DefaultBackoff returns the default reconnect backoff.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
		Jitter:     DefaultJitter,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.BaseDelay <= 0 {
		b.BaseDelay = d.BaseDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = d.MaxDelay
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	switch {
	case b.Jitter < 0:
		b.Jitter = 0
	case b.Jitter == 0 || b.Jitter > 1:
		b.Jitter = d.Jitter
	}
	return b
}

// Delay returns the wait before reconnect attempt number attempt, counted
// from zero.
func (b Backoff) Delay(attempt int) time.Duration {
	delay := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter > 0 {
		jitterAmount := delay * b.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Exhausted reports whether attempts consecutive failures end the loop.
func (b Backoff) Exhausted(attempts int) bool {
	return b.MaxAttempts > 0 && attempts >= b.MaxAttempts
}

// Wait blocks for Delay(attempt) or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
