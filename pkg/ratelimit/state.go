// Package ratelimit gates outbound requests during upstream rate limit
// cooldowns. It observes 429 responses and Retry-After headers and
// shares the cooldown deadline across processes via Redis when
// configured.
package ratelimit

import "time"

// Redis keys for shared cooldown state.
const (
	RedisKeyCooldownUntil = "market:rate_limit:cooldown_until"
)

// DefaultCooldown applies when a 429 arrives without a usable
// Retry-After header.
const DefaultCooldown = 60 * time.Second

// MaxCooldown caps whatever Retry-After asks for.
const MaxCooldown = 5 * time.Minute

// State is the current cooldown state.
type State struct {
	// CooldownUntil is the deadline before which no upstream request
	// should be sent. Zero means no active cooldown.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when this state was last observed.
	LastUpdate time.Time `json:"last_update"`
}

// InCooldown reports whether requests should be held back at now.
func (s *State) InCooldown(now time.Time) bool {
	return now.Before(s.CooldownUntil)
}

// TimeUntilReady returns how long until requests may flow again.
// Returns 0 when no cooldown is active.
func (s *State) TimeUntilReady(now time.Time) time.Duration {
	d := s.CooldownUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
