package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrDLQEntryNotFound is returned when a DLQ entry does not exist.
var ErrDLQEntryNotFound = errors.New("queue: dlq entry not found")

// DLQStore keeps tasks that exhausted their attempts.
type DLQStore interface {
	Insert(ctx context.Context, entry DLQEntry) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (DLQEntry, error)
	List(ctx context.Context, kind string, limit, offset int) ([]DLQEntry, error)
	Count(ctx context.Context, kind string) (int64, error)
}

// DLQEntry is a dead-lettered task.
type DLQEntry struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	IdempotencyKey string    `json:"idem_key,omitempty"`
	Payload        []byte    `json:"payload"`
	Attempts       int       `json:"attempts"`
	LastError      *string   `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RedisDLQ stores DLQ entries in a Redis hash with per-kind sorted indexes
// ordered by creation time.
type RedisDLQ struct {
	R      *redis.Client
	Prefix string
}

// NewRedisDLQ constructs a DLQStore sharing the queue key prefix.
func NewRedisDLQ(r *redis.Client, prefix string) *RedisDLQ {
	return &RedisDLQ{R: r, Prefix: prefix}
}

func (s *RedisDLQ) entriesKey() string { return keys{prefix: s.Prefix}.base() + ":dlq:entries" }

func (s *RedisDLQ) indexKey(kind string) string {
	if kind == "" {
		return keys{prefix: s.Prefix}.base() + ":dlq:index"
	}
	return fmt.Sprintf("%s:dlq:index:%s", keys{prefix: s.Prefix}.base(), kind)
}

// Insert persists a DLQ entry and returns its identifier.
func (s *RedisDLQ) Insert(ctx context.Context, entry DLQEntry) (uuid.UUID, error) {
	if s == nil || s.R == nil {
		return uuid.Nil, errors.New("queue: dlq redis client not configured")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return uuid.Nil, err
	}
	id := entry.ID.String()
	score := float64(entry.CreatedAt.UnixNano())
	_, err = s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.entriesKey(), id, raw)
		p.ZAdd(ctx, s.indexKey(""), redis.Z{Score: score, Member: id})
		p.ZAdd(ctx, s.indexKey(entry.Kind), redis.Z{Score: score, Member: id})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *RedisDLQ) Delete(ctx context.Context, id uuid.UUID) error {
	entry, err := s.Get(ctx, id)
	if errors.Is(err, ErrDLQEntryNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.entriesKey(), id.String())
		p.ZRem(ctx, s.indexKey(""), id.String())
		p.ZRem(ctx, s.indexKey(entry.Kind), id.String())
		return nil
	})
	return err
}

// Get fetches an entry by identifier.
func (s *RedisDLQ) Get(ctx context.Context, id uuid.UUID) (DLQEntry, error) {
	if s == nil || s.R == nil {
		return DLQEntry{}, errors.New("queue: dlq redis client not configured")
	}
	raw, err := s.R.HGet(ctx, s.entriesKey(), id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return DLQEntry{}, ErrDLQEntryNotFound
	}
	if err != nil {
		return DLQEntry{}, err
	}
	var entry DLQEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return DLQEntry{}, err
	}
	return entry, nil
}

// List returns entries newest first, optionally filtered by kind.
func (s *RedisDLQ) List(ctx context.Context, kind string, limit, offset int) ([]DLQEntry, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("queue: dlq redis client not configured")
	}
	limit = clampPositive(limit, 1, 500)
	offset = max(offset, 0)
	ids, err := s.R.ZRevRange(ctx, s.indexKey(strings.TrimSpace(kind)), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []DLQEntry{}, nil
	}
	values, err := s.R.HMGet(ctx, s.entriesKey(), ids...).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]DLQEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Count counts entries, optionally filtered by kind.
func (s *RedisDLQ) Count(ctx context.Context, kind string) (int64, error) {
	if s == nil || s.R == nil {
		return 0, errors.New("queue: dlq redis client not configured")
	}
	return s.R.ZCard(ctx, s.indexKey(strings.TrimSpace(kind))).Result()
}

func clampPositive(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
