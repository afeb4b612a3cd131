package delivery

import (
	"errors"
	"time"
)

// Errors describing why an attempt or a delivery call failed.
var (
	// ErrTransport wraps connection, DNS and timeout failures.
	ErrTransport = errors.New("network error")

	// ErrRemoteRejected wraps non-2xx responses from the endpoint.
	ErrRemoteRejected = errors.New("remote rejected delivery")

	// ErrMalformedResponse is returned when a 2xx response body is not JSON.
	ErrMalformedResponse = errors.New("server returned non-JSON response")

	// ErrExhausted is matched by the error returned once every attempt failed.
	ErrExhausted = errors.New("delivery attempts exhausted")

	// ErrInvalidPayload is returned when the payload cannot be serialized or
	// fails schema validation. No request is made.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	// OutcomeSuccess means a 2xx response with a JSON body.
	OutcomeSuccess Outcome = iota

	// OutcomeNetworkError means no HTTP response was received.
	OutcomeNetworkError

	// OutcomeHTTPError means the endpoint answered outside 2xx.
	OutcomeHTTPError

	// OutcomeMalformedBody means a 2xx response whose body is not JSON.
	OutcomeMalformedBody
)

// String returns the metric/log label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeMalformedBody:
		return "malformed_body"
	default:
		return "unknown"
	}
}

// Attempt is the result of a single POST to the ingestion endpoint.
type Attempt struct {
	// Number is the 1-based attempt index within a delivery call.
	Number int

	// Outcome classifies the attempt.
	Outcome Outcome

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Response is the response body, truncated for diagnostics.
	Response string

	// Latency is the round-trip time of the request.
	Latency time.Duration

	// Err is set for every outcome other than OutcomeSuccess.
	Err error
}

// Succeeded reports whether the attempt delivered the payload.
func (a Attempt) Succeeded() bool {
	return a.Outcome == OutcomeSuccess
}
