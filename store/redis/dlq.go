package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string          `json:"id"`
	DeliveryID     string          `json:"delivery_id"`
	URL            string          `json:"url"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error"`
	AttemptCount   int             `json:"attempt_count"`
	LastStatusCode int             `json:"last_status_code"`
	ReplayedAt     *time.Time      `json:"replayed_at,omitempty"`
	FailedAt       time.Time       `json:"failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		URL:            e.URL,
		Payload:        e.Payload,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		URL:            m.URL,
		Payload:        m.Payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

// Push records an exhausted delivery.
func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	m := toDLQEntryModel(entry)

	if err := s.setEntity(ctx, s.entryKey(m.ID), m); err != nil {
		return fmt.Errorf("courier/redis: push dlq: %w", err)
	}
	err := s.rdb.ZAdd(ctx, s.indexKey(), goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID}).Err()
	if err != nil {
		return fmt.Errorf("courier/redis: push dlq index: %w", err)
	}
	return nil
}

// List returns DLQ entries, newest first, optionally filtered.
func (s *Store) List(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, s.indexKey(), minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("courier/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m dlqEntryModel
		if err := s.getEntity(ctx, s.entryKey(ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		entry, err := fromDLQEntryModel(&m)
		if err != nil {
			return nil, err
		}
		if !opts.Matches(entry) {
			continue
		}
		result = append(result, entry)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// Get returns a DLQ entry by ID.
func (s *Store) Get(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var m dlqEntryModel
	if err := s.getEntity(ctx, s.entryKey(dlqID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, fmt.Errorf("courier/redis: get dlq: %w", err)
	}
	return fromDLQEntryModel(&m)
}

// MarkReplayed stamps the entry as successfully redelivered.
func (s *Store) MarkReplayed(ctx context.Context, dlqID id.ID, at time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key := s.entryKey(dlqID.String())
	var m dlqEntryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return dlq.ErrNotFound
		}
		return fmt.Errorf("courier/redis: mark replayed: %w", err)
	}
	at = at.UTC()
	m.ReplayedAt = &at
	m.UpdatedAt = at
	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("courier/redis: mark replayed: %w", err)
	}
	return nil
}

// Purge deletes DLQ entries that failed before the threshold.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	// Exclusive upper bound, matching FailedAt.Before(before).
	ids, err := s.rdb.ZRangeByScore(ctx, s.indexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + formatScore(scoreFromTime(before)),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: purge list: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, entryID := range ids {
		keys[i] = s.entryKey(entryID)
		members[i] = entryID
	}

	if err := s.kv.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("courier/redis: purge entries: %w", err)
	}
	removed, err := s.rdb.ZRem(ctx, s.indexKey(), members...).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: purge index: %w", err)
	}
	return removed, nil
}

// Count returns the total number of DLQ entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: count dlq: %w", err)
	}
	return count, nil
}
