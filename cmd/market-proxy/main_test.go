package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tokenboard/market-cache/internal/testutil"
	"github.com/tokenboard/market-cache/pkg/cache"
	"github.com/tokenboard/market-cache/pkg/client"
)

func newHandlerClient(t *testing.T, mock *testutil.MockMarketAPI) *client.Client {
	t.Helper()

	mgr := cache.NewManager(cache.Config{
		Namespace:  "proxy-test",
		DefaultTTL: time.Minute,
	})

	cfg := client.DefaultConfig(mgr)
	cfg.BaseURL = mock.URL()
	cfg.Retry.InitialDelay = 1 * time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	return c
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestPriceHandler(t *testing.T) {
	mock := testutil.NewMockMarketAPI()
	defer mock.Close()
	mock.SetResponse("/simple/price", testutil.MockResponse{
		Body: `{"bitcoin":{"usd":64000}}`,
	})

	handler := priceHandler(newHandlerClient(t, mock))

	req := httptest.NewRequest("GET", "/api/simple/price?ids=bitcoin&vs=usd", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "64000") {
		t.Errorf("Body missing price: %s", body)
	}
}

func TestPriceHandler_MissingParams(t *testing.T) {
	handler := priceHandler(nil)

	tests := []string{
		"/api/simple/price",
		"/api/simple/price?ids=bitcoin",
		"/api/simple/price?vs=usd",
	}
	for _, target := range tests {
		req := httptest.NewRequest("GET", target, nil)
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, w.Result().StatusCode)
		}
	}
}

func TestMarketChartHandler_PathParsing(t *testing.T) {
	mock := testutil.NewMockMarketAPI()
	defer mock.Close()
	mock.SetResponse("/coins/bitcoin/market_chart", testutil.MockResponse{
		Body: `{"prices":[[1717243200000,64000]],"market_caps":[],"total_volumes":[]}`,
	})

	handler := marketChartHandler(newHandlerClient(t, mock))

	req := httptest.NewRequest("GET", "/api/coins/bitcoin/market_chart?vs=usd&days=7", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	// Malformed paths never reach the client.
	for _, target := range []string{"/api/coins/", "/api/coins/bitcoin", "/api/coins/bitcoin/history"} {
		req := httptest.NewRequest("GET", target, nil)
		w := httptest.NewRecorder()
		handler(w, req)
		if w.Result().StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", target, w.Result().StatusCode)
		}
	}
}

func TestMarketsHandler(t *testing.T) {
	mock := testutil.NewMockMarketAPI()
	defer mock.Close()
	mock.SetResponse("/coins/markets", testutil.MockResponse{
		Body: `[{"id":"bitcoin","symbol":"btc","current_price":64000}]`,
	})

	handler := marketsHandler(newHandlerClient(t, mock))

	req := httptest.NewRequest("GET", "/api/markets?vs=usd", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "bitcoin") {
		t.Errorf("Body missing market rows: %s", body)
	}
}

func TestWriteUpstreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "upstream 429 maps to 503",
			err:  &client.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"},
			want: http.StatusServiceUnavailable,
		},
		{
			name: "local cooldown maps to 503",
			err:  client.ErrRateLimited,
			want: http.StatusServiceUnavailable,
		},
		{
			name: "upstream 500 maps to 502",
			err:  &client.HTTPError{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"},
			want: http.StatusBadGateway,
		},
		{
			name: "network error maps to 502",
			err:  errors.New("connection refused"),
			want: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeUpstreamError(w, tt.err)
			if w.Result().StatusCode != tt.want {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.want)
			}
		})
	}
}

func TestSplitParam(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"bitcoin", []string{"bitcoin"}},
		{"bitcoin,ethereum", []string{"bitcoin", "ethereum"}},
		{" bitcoin , ethereum ", []string{"bitcoin", "ethereum"}},
		{",,", nil},
	}

	for _, tt := range tests {
		got := splitParam(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitParam(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
