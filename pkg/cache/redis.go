package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RedisCache is the distributed cache tier. It shares the MemoryCache
// read/write contract but is backed by a Store driver.
//
// No public method ever returns an error: every failure is logged,
// counted, and degraded to a miss or no-op so the manager can silently
// fall back to the memory tier. The connection is established lazily on
// first use; a failed ping is remembered as "not connected" and retried
// on the next call instead of crash-looping.
type RedisCache struct {
	store      Store
	clock      Clock
	logger     zerolog.Logger
	defaultTTL time.Duration

	mu        sync.Mutex
	connected bool
}

// NewRedisCache creates a distributed tier over store. defaultTTL is used
// to synthesize metadata for envelope-less legacy values.
func NewRedisCache(store Store, defaultTTL time.Duration, clock Clock, logger zerolog.Logger) *RedisCache {
	if clock == nil {
		clock = realClock{}
	}
	return &RedisCache{
		store:      store,
		clock:      clock,
		logger:     logger,
		defaultTTL: defaultTTL,
	}
}

// ensureConnected pings the store on first use. Returns false when the
// store is unreachable; the failure is remembered so the next call pings
// again rather than assuming a dead connection forever.
func (c *RedisCache) ensureConnected(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return true
	}
	if err := c.store.Ping(ctx); err != nil {
		CacheErrors.WithLabelValues("connect").Inc()
		c.logger.Warn().Err(err).Msg("Redis unreachable, falling back to memory tier")
		return false
	}
	c.connected = true
	c.logger.Debug().Msg("Redis connection established")
	return true
}

// markDisconnected forces a fresh ping on the next operation.
func (c *RedisCache) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// GetEntry returns the entry for key, or nil on absence, expiry, or any
// store failure.
func (c *RedisCache) GetEntry(ctx context.Context, key string) *Entry {
	if !c.ensureConnected(ctx) {
		return nil
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Redis get failed")
		c.markDisconnected()
		return nil
	}
	if !ok {
		return nil
	}

	entry := c.decode(key, raw)
	if entry.IsExpired(c.clock.Now()) {
		// Redis native TTL should have cleaned this up already; the
		// application-level check is the authoritative one.
		c.Delete(ctx, key)
		return nil
	}
	return entry
}

// Get returns the cached payload for key, or nil on absence, expiry, or
// store failure.
func (c *RedisCache) Get(ctx context.Context, key string) []byte {
	entry := c.GetEntry(ctx, key)
	if entry == nil {
		return nil
	}
	return entry.Data
}

// Set stores an entry with the store's native expiry as a second cleanup
// mechanism alongside the envelope's ExpiresAt. Failures are absorbed.
func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry) {
	if !c.ensureConnected(ctx) {
		return
	}

	ttl := entry.TTL(c.clock.Now())
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache envelope")
		return
	}

	if err := c.store.Set(ctx, key, string(data), ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Redis set failed")
		c.markDisconnected()
	}
}

// Delete removes key. Failures are absorbed.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if !c.ensureConnected(ctx) {
		return
	}
	if err := c.store.Del(ctx, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Redis del failed")
		c.markDisconnected()
	}
}

// Has reports whether key holds a non-expired entry. Store failures read
// as absent.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	return c.GetEntry(ctx, key) != nil
}

// Clear flushes the whole store. Failures are absorbed.
func (c *RedisCache) Clear(ctx context.Context) {
	if !c.ensureConnected(ctx) {
		return
	}
	if err := c.store.FlushAll(ctx); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		c.logger.Warn().Err(err).Msg("Redis flush failed")
		c.markDisconnected()
	}
}

// Disconnect closes the underlying store connection.
func (c *RedisCache) Disconnect() {
	if err := c.store.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis close failed")
	}
	c.markDisconnected()
}

// decode unmarshals the envelope written by Set. Values written without
// the envelope (a foreign or legacy writer) are treated as the raw data
// payload with metadata synthesized from the default TTL, rather than
// failing the read.
func (c *RedisCache) decode(key, raw string) *Entry {
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err == nil && !entry.ExpiresAt.IsZero() {
		return &entry
	}

	c.logger.Debug().Str("key", key).Msg("Value without cache envelope, synthesizing metadata")
	now := c.clock.Now()
	return NewEntry(json.RawMessage(raw), now, Options{TTL: c.defaultTTL})
}
