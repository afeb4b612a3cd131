package redis

// Default key prefix. Override with WithPrefix to share a Redis database.
const defaultPrefix = "courier:"

// Key suffixes appended to the store prefix.
const (
	keyDLQEntry = "dlq:"       // + DLQ ID, JSON entry
	keyDLQIndex = "z:dlq:all" // sorted set scored by failed_at
)

// entryKey returns the primary key for a DLQ entry.
func (s *Store) entryKey(id string) string {
	return s.prefix + keyDLQEntry + id
}

// indexKey returns the sorted set key indexing every DLQ entry.
func (s *Store) indexKey() string {
	return s.prefix + keyDLQIndex
}
