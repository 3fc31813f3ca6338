// Package cache provides two-tier market data caching with a
// stale-while-revalidate refresh policy.
package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached value together with its freshness metadata.
//
// An entry moves through three states:
//
//	fresh:            now < RefreshAt
//	stale-but-usable: RefreshAt <= now < ExpiresAt
//	expired:          now >= ExpiresAt (must not be served)
type Entry struct {
	// Data is the cached payload, stored as raw JSON so the core stays
	// agnostic of the value shape.
	Data json.RawMessage `json:"data"`

	// RefreshedAt is when the payload was last fetched from upstream.
	RefreshedAt time.Time `json:"refreshed_at"`

	// RefreshAt is when the entry becomes due for a background refresh.
	RefreshAt time.Time `json:"refresh_at"`

	// ExpiresAt is when the entry stops being servable.
	ExpiresAt time.Time `json:"expires_at"`
}

// Options control the freshness windows of a written entry.
type Options struct {
	// TTL is how long the entry may be served.
	TTL time.Duration

	// RefreshInterval, when > 0, opens an early-refresh window: the entry
	// becomes refresh-due at write+RefreshInterval while staying servable
	// until write+TTL. Zero means no early refresh (RefreshAt = ExpiresAt).
	RefreshInterval time.Duration
}

// NewEntry builds an entry written at now. Invariant at write time:
// RefreshedAt <= RefreshAt <= ExpiresAt.
func NewEntry(data json.RawMessage, now time.Time, opts Options) *Entry {
	expiresAt := now.Add(opts.TTL)
	refreshAt := expiresAt
	if opts.RefreshInterval > 0 && opts.RefreshInterval < opts.TTL {
		refreshAt = now.Add(opts.RefreshInterval)
	}
	return &Entry{
		Data:        data,
		RefreshedAt: now,
		RefreshAt:   refreshAt,
		ExpiresAt:   expiresAt,
	}
}

// IsExpired reports whether the entry must no longer be served.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// NeedsRefresh reports whether the entry is stale-but-usable: still
// servable but due for a background update.
func (e *Entry) NeedsRefresh(now time.Time) bool {
	return !now.Before(e.RefreshAt) && now.Before(e.ExpiresAt)
}

// TTL returns the remaining time until expiry. Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
