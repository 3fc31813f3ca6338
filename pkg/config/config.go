// Package config loads environment-driven configuration for the market
// cache and proxy.
package config

import "github.com/ilyakaznacheev/cleanenv"

// Config holds every environment knob the module reads. Values are read
// once at startup; components are not reconfigurable afterward.
type Config struct {
	// HTTP proxy
	Port string `env:"PORT" env-default:"8080"`

	// Upstream market data API
	APIBaseURL string `env:"MARKET_API_URL" env-default:"https://api.coingecko.com/api/v3"`
	APIKey     string `env:"MARKET_API_KEY"`
	UserAgent  string `env:"MARKET_USER_AGENT" env-default:"market-cache/0.1.0"`

	// Cache
	RedisEnabled    bool   `env:"CACHE_REDIS_ENABLED" env-default:"false"`
	RedisURL        string `env:"REDIS_URL" env-default:"localhost:6379"`
	CacheNamespace  string `env:"CACHE_NAMESPACE" env-default:"market"`
	CacheDefaultTTL int    `env:"CACHE_DEFAULT_TTL" env-default:"300"`
	CacheRefresh    int    `env:"CACHE_REFRESH_INTERVAL" env-default:"150"`
	CacheMaxEntries int    `env:"CACHE_MAX_ENTRIES" env-default:"1000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogPretty bool   `env:"LOG_PRETTY" env-default:"false"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
