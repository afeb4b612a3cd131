// Package redis provides a dlq.Store backed by Redis.
//
// Each entry is stored as a JSON value under its own Grove KV key, and a
// sorted set scored by failure time indexes all entries for listing, counting
// and purging.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	"github.com/xraph/courier/dlq"
)

// compile-time interface check
var _ dlq.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. The default is "courier:".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Store implements dlq.Store using Redis via Grove KV. Entries go through the
// KV store; sorted-set indexes use the underlying go-redis client.
type Store struct {
	kv     *kv.Store
	rdb    goredis.UniversalClient
	prefix string
	closed atomic.Bool
}

// New creates a new Redis store backed by Grove KV. The store's driver must
// be a redisdriver.RedisDB. Close closes the KV store.
func New(store *kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		rdb:    redisdriver.UnwrapClient(store),
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromURL connects to a redis:// URL and opens a KV store on it.
func NewFromURL(ctx context.Context, url string, opts ...Option) (*Store, error) {
	drv := redisdriver.New()
	if err := drv.Open(ctx, url); err != nil {
		return nil, fmt.Errorf("courier/redis: open: %w", err)
	}
	store, err := kv.Open(drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("courier/redis: open kv: %w", err)
	}
	return New(store, opts...), nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Close closes the KV store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.kv.Close()
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return dlq.ErrStoreClosed
	}
	return nil
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isNotFound checks if an error is a KV not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound)
}

// getEntity retrieves and decodes a JSON entity from a KV key.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// setEntity encodes and stores a JSON entity under a KV key.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("courier/redis: marshal entity: %w", err)
	}
	return s.kv.SetRaw(ctx, key, raw)
}

// zRangeByScoreIDs returns all member IDs from a sorted set within a score range.
func (s *Store) zRangeByScoreIDs(ctx context.Context, key string, lo, hi float64) ([]string, error) {
	minStr := "-inf"
	maxStr := "+inf"
	if !math.IsInf(lo, -1) {
		minStr = formatScore(lo)
	}
	if !math.IsInf(hi, 1) {
		maxStr = formatScore(hi)
	}
	return s.rdb.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: minStr,
		Max: maxStr,
	}).Result()
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// applyPagination applies offset and limit to a slice.
func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return []*T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
