// Package dlq keeps deliveries whose attempts were exhausted so they can be
// inspected and replayed.
package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/courier/id"
)

// Sentinel errors returned by DLQ stores.
var (
	// ErrNotFound is returned when a DLQ entry cannot be found.
	ErrNotFound = errors.New("dlq: entry not found")

	// ErrStoreClosed is returned when a store is used after Close.
	ErrStoreClosed = errors.New("dlq: store is closed")
)

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// Push records an exhausted delivery.
	Push(ctx context.Context, entry *Entry) error

	// List returns DLQ entries, newest first, optionally filtered.
	List(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// Get returns a DLQ entry by ID.
	Get(ctx context.Context, dlqID id.ID) (*Entry, error)

	// MarkReplayed stamps the entry as successfully redelivered.
	MarkReplayed(ctx context.Context, dlqID id.ID, at time.Time) error

	// Purge deletes DLQ entries that failed before the threshold.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// Count returns the total number of DLQ entries.
	Count(ctx context.Context) (int64, error)

	// Close releases the store's resources.
	Close() error
}
