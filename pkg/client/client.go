// Package client provides the upstream market data client with caching,
// request deduplication, retry and rate limit cooldown handling.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tokenboard/market-cache/pkg/cache"
	"github.com/tokenboard/market-cache/pkg/dedup"
	"github.com/tokenboard/market-cache/pkg/pagination"
	"github.com/tokenboard/market-cache/pkg/ratelimit"
	"github.com/tokenboard/market-cache/pkg/retry"
)

// Prometheus metrics for upstream request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	backgroundRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_background_refreshes_total",
		Help: "Total background refreshes of stale cache entries by result",
	}, []string{"result"}) // "ok", "error"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream market data API.
	BaseURL string

	// APIKey is sent as the x-cg-demo-api-key header when set.
	APIKey string

	// UserAgent identifies this client to the upstream API.
	UserAgent string

	// Cache is the two-tier cache manager (required).
	Cache *cache.Manager

	// Guard gates requests during upstream 429 cooldowns (optional).
	Guard *ratelimit.Guard

	// Retry is the policy wrapped around every upstream fetch.
	Retry retry.Options

	// TTL is how long fetched payloads stay servable.
	TTL time.Duration

	// RefreshInterval opens the early-refresh window; entries older than
	// this are served stale while a background refresh runs.
	RefreshInterval time.Duration

	// HTTPClient overrides the default 30s-timeout client (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration around cacheManager.
func DefaultConfig(cacheManager *cache.Manager) Config {
	return Config{
		BaseURL:         "https://api.coingecko.com/api/v3",
		UserAgent:       "market-cache/0.1.0",
		Cache:           cacheManager,
		Retry:           retry.DefaultOptions(),
		TTL:             2 * time.Minute,
		RefreshInterval: 1 * time.Minute,
	}
}

// Client is the upstream market data client. Every fetch runs inside the
// request deduplicator and the retry executor; reads go through the
// cache with stale-while-revalidate semantics.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	guard      *ratelimit.Guard
	dedup      *dedup.Group[json.RawMessage]
	config     Config
	logger     zerolog.Logger
}

// New creates a market data client.
func New(cfg Config) (*Client, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		cache:      cfg.Cache,
		guard:      cfg.Guard,
		dedup:      dedup.NewGroup[json.RawMessage](),
		config:     cfg,
		logger:     log.With().Str("component", "market-client").Logger(),
	}, nil
}

// SimplePrice returns current prices for ids in vsCurrencies.
func (c *Client) SimplePrice(ctx context.Context, ids, vsCurrencies []string) (SimplePrices, error) {
	idsParam := joinSorted(ids)
	vsParam := joinSorted(vsCurrencies)

	key := cache.NewKey("simple-price", map[string]string{
		"ids": idsParam,
		"vs":  vsParam,
	})
	query := url.Values{
		"ids":           {idsParam},
		"vs_currencies": {vsParam},
	}

	data, err := c.getCached(ctx, key, "/simple/price", query)
	if err != nil {
		return nil, err
	}

	var prices SimplePrices
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("decode simple price response: %w", err)
	}
	return prices, nil
}

// MarketChart returns time-series market data for one coin.
func (c *Client) MarketChart(ctx context.Context, coinID, vsCurrency string, days int) (*MarketChart, error) {
	key := cache.NewKey("market-chart", map[string]string{
		"id":   coinID,
		"vs":   vsCurrency,
		"days": strconv.Itoa(days),
	})
	query := url.Values{
		"vs_currency": {vsCurrency},
		"days":        {strconv.Itoa(days)},
	}

	data, err := c.getCached(ctx, key, "/coins/"+url.PathEscape(coinID)+"/market_chart", query)
	if err != nil {
		return nil, err
	}

	var chart MarketChart
	if err := json.Unmarshal(data, &chart); err != nil {
		return nil, fmt.Errorf("decode market chart response: %w", err)
	}
	return &chart, nil
}

// ExchangeRates returns the BTC-relative exchange rate table.
func (c *Client) ExchangeRates(ctx context.Context) (map[string]ExchangeRate, error) {
	key := cache.NewKey("exchange-rates", nil)

	data, err := c.getCached(ctx, key, "/exchange_rates", nil)
	if err != nil {
		return nil, err
	}

	var resp exchangeRatesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode exchange rates response: %w", err)
	}
	return resp.Rates, nil
}

// CoinMarkets returns one page of the coin markets listing.
func (c *Client) CoinMarkets(ctx context.Context, vsCurrency string, page, perPage int) ([]CoinMarket, error) {
	key := cache.NewKey("coin-markets", map[string]string{
		"vs":       vsCurrency,
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(perPage),
	})
	query := url.Values{
		"vs_currency": {vsCurrency},
		"page":        {strconv.Itoa(page)},
		"per_page":    {strconv.Itoa(perPage)},
		"order":       {"market_cap_desc"},
	}

	data, err := c.getCached(ctx, key, "/coins/markets", query)
	if err != nil {
		return nil, err
	}

	var markets []CoinMarket
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("decode coin markets response: %w", err)
	}
	return markets, nil
}

// CoinMarketsRange fetches pages firstPage..lastPage of the coin markets
// listing through a bounded worker pool and returns the rows in page
// order. Pages that fail are skipped; the first failure is returned
// alongside the rows that did arrive.
func (c *Client) CoinMarketsRange(ctx context.Context, vsCurrency string, firstPage, lastPage, perPage int) ([]CoinMarket, error) {
	fetcher := pagination.NewBatchFetcher(
		pagination.PageFetcherFunc(func(ctx context.Context, page int) ([]byte, error) {
			markets, err := c.CoinMarkets(ctx, vsCurrency, page, perPage)
			if err != nil {
				return nil, err
			}
			return json.Marshal(markets)
		}),
		pagination.DefaultConfig(),
	)

	pages, fetchErr := fetcher.FetchRange(ctx, firstPage, lastPage)

	var all []CoinMarket
	for page := firstPage; page <= lastPage; page++ {
		data, ok := pages[page]
		if !ok {
			continue
		}
		var markets []CoinMarket
		if err := json.Unmarshal(data, &markets); err != nil {
			return all, fmt.Errorf("decode coin markets page %d: %w", page, err)
		}
		all = append(all, markets...)
	}
	return all, fetchErr
}

// getCached is the stale-while-revalidate read path:
//
//   - hit: serve immediately; if the entry is due for refresh, fire an
//     unawaited background refresh whose failure is only logged.
//   - miss: fetch synchronously (deduplicated, retried), store, serve.
func (c *Client) getCached(ctx context.Context, key cache.Key, endpoint string, query url.Values) (json.RawMessage, error) {
	if entry := c.cache.GetEntry(ctx, key); entry != nil {
		if entry.NeedsRefresh(time.Now()) {
			go c.backgroundRefresh(key, endpoint, query)
		}
		return entry.Data, nil
	}

	data, err := c.fetchResilient(ctx, key, endpoint, query)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, data, c.cacheOptions()); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
	}
	return data, nil
}

// backgroundRefresh re-fetches a stale entry outside the request path.
// It is fire-and-forget: the triggering request already returned stale
// data, so failure here is logged and dropped. Two concurrent stale
// readers may both land here; the deduplicator collapses their fetches.
func (c *Client) backgroundRefresh(key cache.Key, endpoint string, query url.Values) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := c.fetchResilient(ctx, key, endpoint, query)
	if err != nil {
		backgroundRefreshes.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Background refresh failed")
		return
	}

	if err := c.cache.Set(ctx, key, data, c.cacheOptions()); err != nil {
		backgroundRefreshes.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Background refresh failed to cache")
		return
	}

	backgroundRefreshes.WithLabelValues("ok").Inc()
	c.logger.Debug().Str("key", key.String()).Msg("Background refresh complete")
}

// fetchResilient wraps the raw fetch in the deduplicator (keyed by the
// cache key, so concurrent misses share one upstream call) and the retry
// executor.
func (c *Client) fetchResilient(ctx context.Context, key cache.Key, endpoint string, query url.Values) (json.RawMessage, error) {
	return c.dedup.Do(key.String(), func() (json.RawMessage, error) {
		return retry.Do(ctx, c.config.Retry, func(ctx context.Context) (json.RawMessage, error) {
			return c.fetch(ctx, endpoint, query)
		})
	})
}

// fetch performs one upstream HTTP request. Status >= 400 becomes an
// HTTPError carrying the status for retry classification.
func (c *Client) fetch(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	if c.guard != nil && !c.guard.Allow(ctx) {
		requestsTotal.WithLabelValues(endpoint, "cooldown").Inc()
		return nil, ErrRateLimited
	}

	reqURL := c.config.BaseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if c.guard != nil {
		c.guard.ObserveResponse(ctx, resp.StatusCode, resp.Header)
	}
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Upstream request error")
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Endpoint:   endpoint,
			Body:       truncate(string(body), 200),
		}
	}

	return json.RawMessage(body), nil
}

func (c *Client) cacheOptions() cache.Options {
	return cache.Options{
		TTL:             c.config.TTL,
		RefreshInterval: c.config.RefreshInterval,
	}
}

// Cache returns the underlying cache manager (tests).
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

func joinSorted(values []string) string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
