package delivery

import "time"

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the attempt succeeded; no further attempts are made.
	Delivered Decision = iota

	// Retry means the attempt failed and another one is allowed.
	Retry

	// Exhausted means the attempt failed and it was the last one allowed.
	Exhausted
)

// String returns a readable name for the decision.
func (d Decision) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Retrier decides what to do after a delivery attempt.
type Retrier struct {
	maxAttempts int
	backoff     Backoff
}

// NewRetrier creates a retrier allowing maxAttempts attempts.
func NewRetrier(maxAttempts int, backoff Backoff) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{maxAttempts: maxAttempts, backoff: backoff}
}

// MaxAttempts returns the attempt budget.
func (r *Retrier) MaxAttempts() int {
	return r.maxAttempts
}

// Decide determines what to do after an attempt.
//
// Decision matrix:
//   - 2xx with JSON body → Delivered
//   - network error, non-2xx, 2xx with non-JSON body → Retry while
//     attempts remain, else Exhausted
func (r *Retrier) Decide(a Attempt) Decision {
	if a.Succeeded() {
		return Delivered
	}
	if a.Number >= r.maxAttempts {
		return Exhausted
	}
	return Retry
}

// Delay returns how long to wait after the given failed attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	return r.backoff.Delay(attempt)
}
