// Command market-proxy serves cached market data over HTTP. It is the
// reference consumer of the cache/retry/dedup core: route handlers read
// through the cached client, stale entries trigger background refreshes,
// and misses fall through to the upstream API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tokenboard/market-cache/pkg/cache"
	"github.com/tokenboard/market-cache/pkg/client"
	"github.com/tokenboard/market-cache/pkg/config"
	"github.com/tokenboard/market-cache/pkg/logging"
	"github.com/tokenboard/market-cache/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	mgr, guard := buildCache(cfg, logger)
	defer mgr.Close()

	marketClient, err := client.New(clientConfig(cfg, mgr, guard))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create market client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/simple/price", priceHandler(marketClient))
	mux.HandleFunc("/api/coins/", marketChartHandler(marketClient))
	mux.HandleFunc("/api/exchange_rates", exchangeRatesHandler(marketClient))
	mux.HandleFunc("/api/markets", marketsHandler(marketClient))

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("upstream", cfg.APIBaseURL).
		Bool("redis", cfg.RedisEnabled).
		Msg("Starting market proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// buildCache constructs the cache manager and cooldown guard from the
// environment configuration.
func buildCache(cfg config.Config, logger zerolog.Logger) (*cache.Manager, *ratelimit.Guard) {
	mgrCfg := cache.Config{
		Namespace:  cfg.CacheNamespace,
		DefaultTTL: time.Duration(cfg.CacheDefaultTTL) * time.Second,
		MaxEntries: cfg.CacheMaxEntries,
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		mgrCfg.Store = cache.NewRedisStore(redisClient)
		logger.Info().Str("addr", cfg.RedisURL).Msg("Distributed cache tier enabled")
	}

	guard := ratelimit.NewGuard(redisClient, logging.NewLogger("ratelimit"))
	return cache.NewManager(mgrCfg), guard
}

func clientConfig(cfg config.Config, mgr *cache.Manager, guard *ratelimit.Guard) client.Config {
	c := client.DefaultConfig(mgr)
	c.BaseURL = cfg.APIBaseURL
	c.APIKey = cfg.APIKey
	c.UserAgent = cfg.UserAgent
	c.Guard = guard
	c.TTL = time.Duration(cfg.CacheDefaultTTL) * time.Second
	c.RefreshInterval = time.Duration(cfg.CacheRefresh) * time.Second
	return c
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// priceHandler serves /api/simple/price?ids=bitcoin,ethereum&vs=usd,eur
func priceHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := splitParam(r.URL.Query().Get("ids"))
		vs := splitParam(r.URL.Query().Get("vs"))
		if len(ids) == 0 || len(vs) == 0 {
			http.Error(w, "ids and vs query parameters are required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		prices, err := c.SimplePrice(ctx, ids, vs)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeJSON(w, prices)
	}
}

// marketChartHandler serves /api/coins/{id}/market_chart?vs=usd&days=7
func marketChartHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /api/coins/{id}/market_chart
		rest := strings.TrimPrefix(r.URL.Path, "/api/coins/")
		coinID, op, ok := strings.Cut(rest, "/")
		if !ok || coinID == "" || op != "market_chart" {
			http.NotFound(w, r)
			return
		}

		vs := r.URL.Query().Get("vs")
		if vs == "" {
			vs = "usd"
		}
		days, err := strconv.Atoi(r.URL.Query().Get("days"))
		if err != nil || days <= 0 {
			days = 7
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		chart, err := c.MarketChart(ctx, coinID, vs, days)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeJSON(w, chart)
	}
}

func exchangeRatesHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		rates, err := c.ExchangeRates(ctx)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeJSON(w, rates)
	}
}

// marketsHandler serves /api/markets?vs=usd&pages=2&per_page=100
func marketsHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs := r.URL.Query().Get("vs")
		if vs == "" {
			vs = "usd"
		}
		pages, err := strconv.Atoi(r.URL.Query().Get("pages"))
		if err != nil || pages <= 0 {
			pages = 1
		}
		perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
		if err != nil || perPage <= 0 {
			perPage = 100
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		markets, err := c.CoinMarketsRange(ctx, vs, 1, pages, perPage)
		if err != nil && len(markets) == 0 {
			writeUpstreamError(w, err)
			return
		}
		writeJSON(w, markets)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		http.Error(w, "upstream rate limited", http.StatusServiceUnavailable)
		return
	}
	if errors.Is(err, client.ErrRateLimited) {
		http.Error(w, "upstream rate limited", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
