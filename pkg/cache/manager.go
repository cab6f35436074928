package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is how long a listing page stays cached when no TTL is given.
const DefaultTTL = 6 * time.Hour

// Manager stores listing pages in Redis.
type Manager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewManager creates a page cache on redisClient. A non-positive ttl
// selects DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger(logging.ComponentCache),
	}
}

// TTL returns the lifetime given to pages stored with Put.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Get retrieves a page by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key PageKey) (*PageEntry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			PageCacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		PageCacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry PageEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		PageCacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		PageCacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	PageCacheHits.Inc()
	return &entry, nil
}

// Set stores an entry with a Redis TTL derived from entry.Expires.
// Expired entries are silently dropped.
func (m *Manager) Set(ctx context.Context, key PageKey, entry *PageEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		PageCacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		PageCacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	PageCacheBytes.Add(float64(len(data)))
	return nil
}

// Put stores a raw page body with the manager's TTL.
func (m *Manager) Put(ctx context.Context, key PageKey, data json.RawMessage) error {
	return m.Set(ctx, key, NewPageEntry(data, m.ttl))
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key PageKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		PageCacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Purge removes every cached page of rootID on endpoint and returns how many
// keys were deleted.
func (m *Manager) Purge(ctx context.Context, endpoint, rootID string) (int, error) {
	prefix := PageKey{Endpoint: endpoint, RootID: rootID}.rootPrefix()

	deleted := 0
	iter := m.redis.Scan(ctx, 0, prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := m.redis.Del(ctx, iter.Val()).Err(); err != nil {
			PageCacheErrors.WithLabelValues("delete").Inc()
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		PageCacheErrors.WithLabelValues("delete").Inc()
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	m.logger.Debug().
		Str("endpoint", endpoint).
		Str("root_id", rootID).
		Int("deleted", deleted).
		Msg("Purged cached pages")
	return deleted, nil
}
