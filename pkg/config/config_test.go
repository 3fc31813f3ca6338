package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RedisEnabled {
		t.Error("RedisEnabled should default to false")
	}
	if cfg.CacheNamespace != "market" {
		t.Errorf("CacheNamespace = %q, want market", cfg.CacheNamespace)
	}
	if cfg.CacheDefaultTTL != 300 {
		t.Errorf("CacheDefaultTTL = %d, want 300", cfg.CacheDefaultTTL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_REDIS_ENABLED", "true")
	t.Setenv("REDIS_URL", "redis.internal:6379")
	t.Setenv("CACHE_NAMESPACE", "staging")
	t.Setenv("CACHE_DEFAULT_TTL", "60")
	t.Setenv("MARKET_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.RedisEnabled {
		t.Error("RedisEnabled = false, want true")
	}
	if cfg.RedisURL != "redis.internal:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.CacheNamespace != "staging" {
		t.Errorf("CacheNamespace = %q, want staging", cfg.CacheNamespace)
	}
	if cfg.CacheDefaultTTL != 60 {
		t.Errorf("CacheDefaultTTL = %d, want 60", cfg.CacheDefaultTTL)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q, want secret", cfg.APIKey)
	}
}
