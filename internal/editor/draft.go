package editor

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/quote-editor/internal/cache"
	"github.com/noah-isme/quote-editor/internal/quote"
)

var (
	// ErrDraftNotFound is returned when a draft does not exist or expired.
	ErrDraftNotFound = errors.New("editor: draft not found")
	// ErrVersionConflict is returned when If-Match does not match the stored version.
	ErrVersionConflict = errors.New("editor: draft version conflict")
	// ErrTrashNotFound is returned when a trashed line id is unknown.
	ErrTrashNotFound = errors.New("editor: trashed line not found")
)

// TrashedLine is a line removed from a day, kept until restored or purged.
type TrashedLine struct {
	DayID     string     `json:"day_id"`
	Line      quote.Line `json:"line"`
	RemovedAt time.Time  `json:"removed_at"`
}

// Draft is an editing session over one quote.
type Draft struct {
	ID        string        `json:"id"`
	Version   int64         `json:"version"`
	Quote     quote.Quote   `json:"quote"`
	Dirty     bool          `json:"dirty"`
	Trash     []TrashedLine `json:"trash"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store persists drafts as JSON documents in Redis.
type Store struct {
	cache  *cache.Cache
	prefix string
}

// NewStore builds a draft store. Drafts expire ttl after their last write.
func NewStore(r *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "editor"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{cache: cache.New(r, ttl), prefix: prefix}
}

// Load fetches a draft.
func (s *Store) Load(ctx context.Context, id string) (Draft, error) {
	var d Draft
	found, err := s.cache.GetJSON(ctx, s.key(id), &d)
	if err != nil {
		return Draft{}, err
	}
	if !found {
		return Draft{}, ErrDraftNotFound
	}
	return d, nil
}

// Save writes a draft and refreshes its expiry.
func (s *Store) Save(ctx context.Context, d Draft) error {
	return s.cache.SetJSON(ctx, s.key(d.ID), d)
}

// Delete removes a draft.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, s.key(id))
}

func (s *Store) key(id string) string     { return cache.Key(s.prefix, "draft", id) }
func (s *Store) lockKey(id string) string { return cache.Key(s.prefix, "lock", "draft", id) }
func (s *Store) recentKey(limit string) string {
	return cache.Key(s.prefix, "recent", limit)
}
