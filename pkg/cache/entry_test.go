package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEntry_Windows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		opts          Options
		wantRefreshAt time.Time
		wantExpiresAt time.Time
	}{
		{
			name:          "refresh interval opens early window",
			opts:          Options{TTL: 120 * time.Second, RefreshInterval: 60 * time.Second},
			wantRefreshAt: now.Add(60 * time.Second),
			wantExpiresAt: now.Add(120 * time.Second),
		},
		{
			name:          "no refresh interval means refresh at expiry",
			opts:          Options{TTL: 120 * time.Second},
			wantRefreshAt: now.Add(120 * time.Second),
			wantExpiresAt: now.Add(120 * time.Second),
		},
		{
			name:          "refresh interval >= ttl is ignored",
			opts:          Options{TTL: 60 * time.Second, RefreshInterval: 90 * time.Second},
			wantRefreshAt: now.Add(60 * time.Second),
			wantExpiresAt: now.Add(60 * time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry(json.RawMessage(`{}`), now, tt.opts)

			if !entry.RefreshedAt.Equal(now) {
				t.Errorf("RefreshedAt = %v, want %v", entry.RefreshedAt, now)
			}
			if !entry.RefreshAt.Equal(tt.wantRefreshAt) {
				t.Errorf("RefreshAt = %v, want %v", entry.RefreshAt, tt.wantRefreshAt)
			}
			if !entry.ExpiresAt.Equal(tt.wantExpiresAt) {
				t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, tt.wantExpiresAt)
			}
			// Write-time invariant.
			if entry.RefreshedAt.After(entry.RefreshAt) || entry.RefreshAt.After(entry.ExpiresAt) {
				t.Errorf("invariant violated: refreshedAt=%v refreshAt=%v expiresAt=%v",
					entry.RefreshedAt, entry.RefreshAt, entry.ExpiresAt)
			}
		})
	}
}

func TestEntry_StateTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := NewEntry(json.RawMessage(`{}`), now, Options{
		TTL:             120 * time.Second,
		RefreshInterval: 60 * time.Second,
	})

	tests := []struct {
		name         string
		at           time.Time
		wantExpired  bool
		wantRefresh  bool
	}{
		{"fresh immediately after write", now, false, false},
		{"fresh just before refresh window", now.Add(59 * time.Second), false, false},
		{"stale-but-usable at refresh boundary", now.Add(60 * time.Second), false, true},
		{"stale-but-usable mid window", now.Add(90 * time.Second), false, true},
		{"expired at ttl boundary", now.Add(120 * time.Second), true, false},
		{"expired after ttl", now.Add(125 * time.Second), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsExpired(tt.at); got != tt.wantExpired {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.at, got, tt.wantExpired)
			}
			if got := entry.NeedsRefresh(tt.at); got != tt.wantRefresh {
				t.Errorf("NeedsRefresh(%v) = %v, want %v", tt.at, got, tt.wantRefresh)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := NewEntry(nil, now, Options{TTL: 100 * time.Second})

	if got := entry.TTL(now); got != 100*time.Second {
		t.Errorf("TTL at write = %v, want 100s", got)
	}
	if got := entry.TTL(now.Add(40 * time.Second)); got != 60*time.Second {
		t.Errorf("TTL at +40s = %v, want 60s", got)
	}
	if got := entry.TTL(now.Add(200 * time.Second)); got != 0 {
		t.Errorf("TTL after expiry = %v, want 0", got)
	}
}
