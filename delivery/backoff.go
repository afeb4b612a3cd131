package delivery

import (
	"math"
	"time"
)

// Backoff computes exponential delays between attempts.
type Backoff struct {
	// Base is the delay after the first failed attempt.
	Base time.Duration

	// Factor multiplies the delay after each failure. Values <= 1 mean 2.
	Factor float64

	// Max caps a single delay. Zero means uncapped.
	Max time.Duration
}

// DefaultBackoff returns the 1s, 2s, 4s, ... schedule.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Factor: 2}
}

// Delay returns the wait after the given failed attempt (1-based):
// Base * Factor^(attempt-1).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2
	}

	d := float64(b.Base) * math.Pow(factor, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Schedule returns the waits taken between maxAttempts attempts.
// The last attempt is never followed by a wait.
func (b Backoff) Schedule(maxAttempts int) []time.Duration {
	if maxAttempts < 2 {
		return nil
	}
	out := make([]time.Duration, 0, maxAttempts-1)
	for attempt := 1; attempt < maxAttempts; attempt++ {
		out = append(out, b.Delay(attempt))
	}
	return out
}
