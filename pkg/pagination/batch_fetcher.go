// Package pagination provides parallel batch fetching for paginated
// market data endpoints.
package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PageFetcher fetches a single page of a paginated listing.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]byte, error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc func(ctx context.Context, page int) ([]byte, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) ([]byte, error) {
	return f(ctx, page)
}

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches.
	// Keep this low: the upstream API is rate limited.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns a configuration safe for rate-limited upstreams.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// BatchFetcher fetches page ranges through a bounded worker pool.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a batch fetcher over fetcher.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// pageResult is one fetched page or its failure.
type pageResult struct {
	page int
	data []byte
	err  error
}

// FetchRange fetches pages first..last inclusive and returns a map of
// page number to payload. Pages that fail are absent from the map; the
// first failure is reported alongside the partial results.
func (bf *BatchFetcher) FetchRange(ctx context.Context, first, last int) (map[int][]byte, error) {
	if first > last {
		return nil, fmt.Errorf("invalid page range %d..%d", first, last)
	}

	start := time.Now()
	total := last - first + 1

	pages := make(chan int, total)
	results := make(chan pageResult, total)

	for page := first; page <= last; page++ {
		pages <- page
	}
	close(pages)

	var wg sync.WaitGroup
	workers := bf.config.MaxConcurrency
	if workers > total {
		workers = total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, pages, results, &wg)
	}
	wg.Wait()
	close(results)

	fetched := make(map[int][]byte, total)
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch page %d: %w", res.page, res.err)
			}
			continue
		}
		fetched[res.page] = res.data
	}

	log.Debug().
		Int("pages", len(fetched)).
		Int("requested", total).
		Dur("duration", time.Since(start)).
		Msg("Batch page fetch complete")

	return fetched, firstErr
}

func (bf *BatchFetcher) worker(ctx context.Context, pages <-chan int, results chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for page := range pages {
		select {
		case <-ctx.Done():
			results <- pageResult{page: page, err: ctx.Err()}
			continue
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		data, err := bf.fetcher.FetchPage(pageCtx, page)
		cancel()

		results <- pageResult{page: page, data: data, err: err}
	}
}
