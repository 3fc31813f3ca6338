package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tokenboard/market-cache/pkg/config"
)

// Config holds the manager configuration.
type Config struct {
	// Store is the optional distributed tier driver. Nil means memory-only.
	Store Store

	// Namespace prefixes every key before it touches either tier.
	// Namespacing is a construction-time concern: callers wanting a
	// different namespace build a separate manager.
	Namespace string

	// DefaultTTL applies when Set is called with a zero-TTL Options, and
	// when synthesizing metadata for envelope-less distributed values.
	DefaultTTL time.Duration

	// MaxEntries bounds the memory tier. 0 uses DefaultMaxEntries.
	MaxEntries int

	// Clock overrides time.Now (tests only).
	Clock Clock

	// Logger, when nil, defaults to the global logger with a component
	// field.
	Logger *zerolog.Logger
}

// Manager combines the memory and distributed tiers behind a single
// namespaced entry point and owns the stale-while-revalidate decision.
//
// Reads try the distributed tier first and backfill the memory tier on a
// hit, so repeated same-process reads skip the network round trip.
// Writes go memory-first, so a reader on the same process immediately
// observes its own write even while the distributed write is in flight
// or failing. No cross-process ordering is guaranteed.
type Manager struct {
	memory     *MemoryCache
	redis      *RedisCache // nil when no distributed tier is configured
	namespace  string
	defaultTTL time.Duration
	clock      Clock
	logger     zerolog.Logger
}

// NewManager creates a manager from cfg. Both tier instances are owned
// exclusively by the manager.
func NewManager(cfg Config) *Manager {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	var logger zerolog.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	} else {
		logger = log.With().Str("component", "cache").Logger()
	}

	m := &Manager{
		memory:     NewMemoryCache(cfg.MaxEntries, clock),
		namespace:  cfg.Namespace,
		defaultTTL: cfg.DefaultTTL,
		clock:      clock,
		logger:     logger,
	}
	if cfg.Store != nil {
		m.redis = NewRedisCache(cfg.Store, cfg.DefaultTTL, clock, logger)
	}
	return m
}

// namespaced prepends the manager namespace to a key string.
func (m *Manager) namespaced(key Key) string {
	if m.namespace == "" {
		return key.String()
	}
	return m.namespace + ":" + key.String()
}

// GetEntry returns the entry for key with freshness metadata, or nil on
// a miss. A distributed hit backfills the memory tier. Tier failures are
// indistinguishable from misses.
func (m *Manager) GetEntry(ctx context.Context, key Key) *Entry {
	k := m.namespaced(key)

	if m.redis != nil {
		if entry := m.redis.GetEntry(ctx, k); entry != nil {
			CacheHits.WithLabelValues("redis").Inc()
			m.memory.Set(k, entry)
			return entry
		}
	}

	if entry := m.memory.GetEntry(k); entry != nil {
		CacheHits.WithLabelValues("memory").Inc()
		return entry
	}

	CacheMisses.Inc()
	return nil
}

// Get returns the cached payload for key, or nil on a miss.
func (m *Manager) Get(ctx context.Context, key Key) json.RawMessage {
	entry := m.GetEntry(ctx, key)
	if entry == nil {
		return nil
	}
	if entry.NeedsRefresh(m.clock.Now()) {
		StaleServes.Inc()
	}
	return entry.Data
}

// NeedsRefresh reports whether key holds an entry that is still servable
// but due for a background update. Absent and expired entries return
// false: those are misses and the caller must fetch synchronously.
func (m *Manager) NeedsRefresh(ctx context.Context, key Key) bool {
	entry := m.GetEntry(ctx, key)
	if entry == nil {
		return false
	}
	return entry.NeedsRefresh(m.clock.Now())
}

// Set marshals value and writes it to both tiers, memory first. The only
// reportable failure is a marshal error; distributed write failures are
// absorbed by the tier.
func (m *Manager) Set(ctx context.Context, key Key, value any, opts Options) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if opts.TTL <= 0 {
		opts.TTL = m.defaultTTL
	}
	entry := NewEntry(data, m.clock.Now(), opts)
	k := m.namespaced(key)

	m.memory.Set(k, entry)
	if m.redis != nil {
		m.redis.Set(ctx, k, entry)
	}
	return nil
}

// Delete removes key from both tiers.
func (m *Manager) Delete(ctx context.Context, key Key) {
	k := m.namespaced(key)
	m.memory.Delete(k)
	if m.redis != nil {
		m.redis.Delete(ctx, k)
	}
}

// Has reports whether key holds a non-expired entry in either tier.
func (m *Manager) Has(ctx context.Context, key Key) bool {
	k := m.namespaced(key)
	if m.memory.Has(k) {
		return true
	}
	return m.redis != nil && m.redis.Has(ctx, k)
}

// Clear drops all entries from both tiers. Selective clearing by
// namespace is not supported: a non-empty namespace argument logs a
// warning and clears everything anyway.
func (m *Manager) Clear(ctx context.Context, namespace string) {
	if namespace != "" {
		m.logger.Warn().
			Str("namespace", namespace).
			Msg("Selective namespace clear not supported, clearing all entries")
	}
	m.memory.Clear()
	if m.redis != nil {
		m.redis.Clear(ctx)
	}
}

// Close disconnects the distributed tier, if configured.
func (m *Manager) Close() {
	if m.redis != nil {
		m.redis.Disconnect()
	}
}

// GetAs unmarshals the cached payload for key into T. A payload that
// fails to unmarshal reads as a miss.
func GetAs[T any](ctx context.Context, m *Manager, key Key) (T, bool) {
	var v T
	data := m.Get(ctx, key)
	if data == nil {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cached payload failed to unmarshal")
		return v, false
	}
	return v, true
}

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Default returns the process-wide manager, lazily built once from
// environment configuration. The proxy and examples use it; library
// consumers should prefer constructing their own via NewManager.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		defaultManager = newFromEnv()
	}
	return defaultManager
}

// ResetDefault discards the process-wide manager so the next Default
// call rebuilds it from the environment. Test-only.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		defaultManager.Close()
		defaultManager = nil
	}
}

func newFromEnv() *Manager {
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load cache config from environment, using defaults")
	}

	mgrCfg := Config{
		Namespace:  cfg.CacheNamespace,
		DefaultTTL: time.Duration(cfg.CacheDefaultTTL) * time.Second,
		MaxEntries: cfg.CacheMaxEntries,
	}
	if cfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		mgrCfg.Store = NewRedisStore(client)
	}
	return NewManager(mgrCfg)
}
