package dlq

import (
	"encoding/json"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// Entry represents an exhausted delivery in the dead letter queue.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// DeliveryID references the delivery call that failed.
	DeliveryID id.ID `json:"delivery_id"`

	// URL is the ingestion endpoint at the time of failure.
	URL string `json:"url"`

	// Payload is the exact serialized body that was signed and sent.
	Payload json.RawMessage `json:"payload"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made.
	AttemptCount int `json:"attempt_count"`

	// LastStatusCode is the HTTP status code from the final attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// ReplayedAt is set when the entry has been replayed successfully.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when the delivery was exhausted.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset int
	Limit  int
	From   *time.Time
	To     *time.Time

	// Pending restricts results to entries not yet replayed.
	Pending bool
}

// Matches reports whether e passes the time and replay filters in opts.
func (o ListOpts) Matches(e *Entry) bool {
	if o.From != nil && e.FailedAt.Before(*o.From) {
		return false
	}
	if o.To != nil && e.FailedAt.After(*o.To) {
		return false
	}
	if o.Pending && e.ReplayedAt != nil {
		return false
	}
	return true
}
