package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// compile-time interface check
var _ delivery.DLQPusher = (*Service)(nil)

// Service manages the dead letter queue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PushFailed creates a DLQ entry from an exhausted delivery. Implements
// delivery.DLQPusher.
func (svc *Service) PushFailed(ctx context.Context, f delivery.Failure) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		DeliveryID:     f.DeliveryID,
		URL:            f.URL,
		Payload:        append([]byte(nil), f.Body...),
		Error:          f.LastError,
		AttemptCount:   f.Attempts,
		LastStatusCode: f.LastStatusCode,
		FailedAt:       time.Now().UTC(),
	}

	if err := svc.store.Push(ctx, entry); err != nil {
		return err
	}

	svc.logger.InfoContext(ctx, "delivery dead-lettered",
		"dlq_id", entry.ID, "delivery_id", f.DeliveryID, "attempts", f.Attempts)
	return nil
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.List(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.Get(ctx, dlqID)
}

// MarkReplayed records a successful redelivery of the entry.
func (svc *Service) MarkReplayed(ctx context.Context, dlqID id.ID) error {
	return svc.store.MarkReplayed(ctx, dlqID, time.Now().UTC())
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.Count(ctx)
}
