package cache

import (
	"encoding/json"
	"time"
)

// PageEntry is one cached listing page.
type PageEntry struct {
	// Data is the raw page body as returned by the listing endpoint.
	Data json.RawMessage `json:"data"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry stops being served.
	Expires time.Time `json:"expires"`
}

// NewPageEntry wraps data with a lifetime of ttl starting now.
func NewPageEntry(data json.RawMessage, ttl time.Duration) *PageEntry {
	now := time.Now()
	return &PageEntry{
		Data:     data,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *PageEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *PageEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
