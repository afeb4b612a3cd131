package delivery

import "fmt"

// Error is returned by Deliver once every attempt has failed.
type Error struct {
	// Attempts is the number of attempts made.
	Attempts int

	// Last is the error from the final attempt.
	Last error

	// StatusCode is the HTTP status of the final attempt, 0 if none.
	StatusCode int

	// DeliveryID identifies the delivery call in logs and on the endpoint.
	DeliveryID string
}

// Error reports the attempt count and the last failure reason.
func (e *Error) Error() string {
	return fmt.Sprintf("Failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes ErrExhausted and the last attempt's error to errors.Is/As.
func (e *Error) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}
