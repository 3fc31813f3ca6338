// Package pagination fetches page ranges of paginated market data
// endpoints through a bounded worker pool.
//
// The coin markets listing is served in pages; fetching a dashboard's
// worth of rows serially wastes most of the request window waiting on
// round trips. The batch fetcher runs a small fixed pool of workers
// (default 4, deliberately low for rate-limited upstreams) over the page
// range and reports partial results: pages that fail are simply absent,
// and the first failure is returned alongside whatever succeeded.
//
//	fetcher := pagination.NewBatchFetcher(
//		pagination.PageFetcherFunc(func(ctx context.Context, page int) ([]byte, error) {
//			markets, err := c.CoinMarkets(ctx, "usd", page, 100)
//			if err != nil {
//				return nil, err
//			}
//			return json.Marshal(markets)
//		}),
//		pagination.DefaultConfig(),
//	)
//	pages, err := fetcher.FetchRange(ctx, 1, 5)
package pagination
