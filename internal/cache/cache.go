package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hearth/internal/intent"
)

// ErrMiss is returned by backends for absent or expired keys.
var ErrMiss = errors.New("cache: miss")

// Entry is one cached interpretation.
type Entry struct {
	Intent   intent.StructuredIntent `json:"intent"`
	StoredAt time.Time               `json:"stored_at"`
	Hits     int64                   `json:"hits"`
}

// Backend stores entries by fingerprint.
//
// Get returns ErrMiss for absent or expired keys and counts a hit on the
// entry it returns. Set evicts least recently used entries beyond the
// backend's bound.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Stats are the cache counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// Logger is the logging interface used by the cache.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Cache is the response cache in front of the language backend.
type Cache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  Logger

	hits   atomic.Int64
	misses atomic.Int64

	// epoch counts invalidations. mu orders InvalidateAll against
	// StoreIfEpoch so an intent read before a catalogue change is never
	// written after it.
	mu    sync.RWMutex
	epoch uint64
}

// New creates a cache. A zero ttl keeps entries until evicted or invalidated.
func New(backend Backend, ttl time.Duration) *Cache {
	return &Cache{backend: backend, ttl: ttl, now: time.Now, logger: noopLogger{}}
}

// SetLogger sets the logger for backend errors.
func (c *Cache) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// Lookup returns the intent cached for text and counts a hit or miss.
func (c *Cache) Lookup(ctx context.Context, text string) (intent.StructuredIntent, bool) {
	key := Normalize(text)
	if key == "" {
		c.misses.Add(1)
		return intent.StructuredIntent{}, false
	}

	e, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("cache lookup failed", "error", err)
		}
		c.misses.Add(1)
		return intent.StructuredIntent{}, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key, "hits", e.Hits)
	return e.Intent.Clone(), true
}

// Store caches in for text.
func (c *Cache) Store(ctx context.Context, text string, in intent.StructuredIntent) error {
	key := Normalize(text)
	if key == "" {
		return nil
	}
	return c.backend.Set(ctx, key, Entry{Intent: in.Clone(), StoredAt: c.now().UTC()}, c.ttl)
}

// Epoch returns the invalidation counter. Read it before computing an
// intent and pass it to StoreIfEpoch.
func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// StoreIfEpoch caches in for text only if InvalidateAll has not run since
// epoch was read. It reports whether the entry was written.
func (c *Cache) StoreIfEpoch(ctx context.Context, text string, in intent.StructuredIntent, epoch uint64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epoch != epoch {
		c.logger.Debug("discarding intent from before invalidation", "text", text)
		return false, nil
	}
	if err := c.Store(ctx, text, in); err != nil {
		return false, err
	}
	return true, nil
}

// InvalidateAll drops every entry. The epoch advances even when the
// backend fails to clear.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if err := c.backend.Clear(ctx); err != nil {
		return err
	}
	c.logger.Debug("cache invalidated")
	return nil
}

// Stats returns the counters and current entry count.
func (c *Cache) Stats(ctx context.Context) Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	n, err := c.backend.Len(ctx)
	if err != nil {
		c.logger.Warn("cache size unavailable", "error", err)
	}
	s.Entries = n
	return s
}
