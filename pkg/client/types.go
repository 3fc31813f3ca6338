package client

// MarketChart holds time-series market data for one coin. Each point is
// a [unix_millis, value] pair as returned by the upstream API.
type MarketChart struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// ExchangeRate is one entry of the exchange-rates endpoint.
type ExchangeRate struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

// exchangeRatesResponse is the upstream envelope for exchange rates.
type exchangeRatesResponse struct {
	Rates map[string]ExchangeRate `json:"rates"`
}

// CoinMarket is one row of the paginated coin markets listing.
type CoinMarket struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	LastUpdated              string  `json:"last_updated"`
}

// SimplePrices maps coin id -> currency -> price.
type SimplePrices map[string]map[string]float64
