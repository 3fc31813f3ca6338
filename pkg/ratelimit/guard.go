package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_rate_limit_blocks_total",
		Help: "Total number of requests blocked by an active upstream cooldown",
	})

	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_rate_limit_cooldowns_total",
		Help: "Total number of cooldowns entered after upstream 429 responses",
	})

	rateLimitCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_rate_limit_cooldown_seconds",
		Help: "Remaining seconds of the current upstream cooldown",
	})
)

// Guard tracks upstream 429 cooldowns and gates outbound requests.
// With a Redis client the cooldown deadline is shared across processes;
// without one the guard keeps process-local state only. Redis failures
// degrade to local state, never to an error.
type Guard struct {
	redis  *redis.Client // nil for local-only state
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewGuard creates a guard. redisClient may be nil.
func NewGuard(redisClient *redis.Client, logger zerolog.Logger) *Guard {
	return &Guard{
		redis:  redisClient,
		logger: logger,
	}
}

// Allow reports whether a request may be sent now. False means an
// upstream cooldown is active and the caller should fail fast instead
// of burning the upstream error budget.
func (g *Guard) Allow(ctx context.Context) bool {
	state := g.currentState(ctx)
	now := time.Now()

	if state.InCooldown(now) {
		rateLimitBlocksTotal.Inc()
		rateLimitCooldownSeconds.Set(state.TimeUntilReady(now).Seconds())
		g.logger.Warn().
			Dur("wait", state.TimeUntilReady(now)).
			Msg("Upstream cooldown active, blocking request")
		return false
	}

	rateLimitCooldownSeconds.Set(0)
	return true
}

// ObserveResponse updates cooldown state from an upstream response.
// Only 429 responses change state; the Retry-After header (delta
// seconds) sets the cooldown length, clamped to MaxCooldown.
func (g *Guard) ObserveResponse(ctx context.Context, statusCode int, headers http.Header) {
	if statusCode != http.StatusTooManyRequests {
		return
	}

	cooldown := DefaultCooldown
	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			cooldown = time.Duration(secs) * time.Second
		}
	}
	if cooldown > MaxCooldown {
		cooldown = MaxCooldown
	}

	now := time.Now()
	state := State{
		CooldownUntil: now.Add(cooldown),
		LastUpdate:    now,
	}

	g.mu.Lock()
	g.state = state
	g.mu.Unlock()

	rateLimitCooldownsTotal.Inc()
	rateLimitCooldownSeconds.Set(cooldown.Seconds())
	g.logger.Warn().
		Dur("cooldown", cooldown).
		Time("until", state.CooldownUntil).
		Msg("Upstream returned 429, entering cooldown")

	if g.redis != nil {
		if err := g.redis.Set(ctx, RedisKeyCooldownUntil, state.CooldownUntil.Unix(), cooldown).Err(); err != nil {
			g.logger.Warn().Err(err).Msg("Failed to share cooldown state via Redis")
		}
	}
}

// currentState returns the freshest known state, preferring the shared
// Redis deadline when available.
func (g *Guard) currentState(ctx context.Context) State {
	g.mu.Lock()
	local := g.state
	g.mu.Unlock()

	if g.redis == nil {
		return local
	}

	ts, err := g.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil {
		if err != redis.Nil {
			g.logger.Debug().Err(err).Msg("Failed to read shared cooldown state, using local")
		}
		return local
	}

	shared := State{CooldownUntil: time.Unix(ts, 0), LastUpdate: time.Now()}
	if shared.CooldownUntil.After(local.CooldownUntil) {
		g.mu.Lock()
		g.state = shared
		g.mu.Unlock()
		return shared
	}
	return local
}
