package ratelimit

import (
	"testing"
	"time"
)

func TestState_InCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		s    State
		want bool
	}{
		{"zero state", State{}, false},
		{"deadline in future", State{CooldownUntil: now.Add(30 * time.Second)}, true},
		{"deadline passed", State{CooldownUntil: now.Add(-time.Second)}, false},
		{"deadline exactly now", State{CooldownUntil: now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.InCooldown(now); got != tt.want {
				t.Errorf("InCooldown = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_TimeUntilReady(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s := State{CooldownUntil: now.Add(45 * time.Second)}
	if got := s.TimeUntilReady(now); got != 45*time.Second {
		t.Errorf("TimeUntilReady = %v, want 45s", got)
	}

	past := State{CooldownUntil: now.Add(-time.Minute)}
	if got := past.TimeUntilReady(now); got != 0 {
		t.Errorf("TimeUntilReady past deadline = %v, want 0", got)
	}
}
