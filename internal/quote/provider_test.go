package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/ops"
	"main/pkg/exception"
)

func providerConfig(kind, baseURL string) ops.ResolvedProvider {
	return ops.ResolvedProvider{
		ProviderConfig: ops.ProviderConfig{Name: kind, Kind: kind, BaseURL: baseURL},
		APIKey:         "test-key",
	}
}

func TestFinnhubFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		require.Equal(t, "BTCUSD", r.URL.Query().Get("symbol"))
		require.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Write([]byte(`{"c": 42123.5, "h": 43000, "l": 41000, "o": 41500, "pc": 41900}`))
	}))
	defer ts.Close()

	p := NewFinnhub(providerConfig("finnhub", ts.URL), ts.Client())
	q, err := p.Fetch(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.Equal(t, "BTC-USD", q.Symbol)
	require.InDelta(t, 42123.5, q.Price, 1e-9)
	require.Less(t, q.Bid, q.Price)
	require.Greater(t, q.Ask, q.Price)
	require.NoError(t, q.Validate())
}

func TestFinnhubRejectsZeroPrice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c": 0}`))
	}))
	defer ts.Close()

	p := NewFinnhub(providerConfig("finnhub", ts.URL), ts.Client())
	_, err := p.Fetch(context.Background(), "BTC-USD")
	require.ErrorIs(t, err, exception.ErrInvalidQuote)
}

func TestFinnhubPropagatesStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	p := NewFinnhub(providerConfig("finnhub", ts.URL), ts.Client())
	_, err := p.Fetch(context.Background(), "BTC-USD")
	require.ErrorIs(t, err, exception.ErrProviderStatus)
}

func TestTwelveDataFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/price", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"price": "182.4500"}`))
	}))
	defer ts.Close()

	p := NewTwelveData(providerConfig("twelvedata", ts.URL), ts.Client())
	q, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.InDelta(t, 182.45, q.Price, 1e-9)
	require.NoError(t, q.Validate())
}

func TestTwelveDataRejectsMissingPrice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 404, "message": "symbol not found"}`))
	}))
	defer ts.Close()

	p := NewTwelveData(providerConfig("twelvedata", ts.URL), ts.Client())
	_, err := p.Fetch(context.Background(), "NOPE")
	require.ErrorIs(t, err, exception.ErrInvalidQuote)
}

func TestAlphaVantageFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		require.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "182.3000"}}`))
	}))
	defer ts.Close()

	p := NewAlphaVantage(providerConfig("alphavantage", ts.URL), ts.Client())
	q, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.InDelta(t, 182.3, q.Price, 1e-9)
}

func TestAlphaVantageThrottle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "API call frequency is 5 calls per minute"}`))
	}))
	defer ts.Close()

	p := NewAlphaVantage(providerConfig("alphavantage", ts.URL), ts.Client())
	_, err := p.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, exception.ErrProviderStatus)
}

func TestBuildProviders(t *testing.T) {
	client := &http.Client{Timeout: time.Second}

	providers, err := BuildProviders([]ops.ResolvedProvider{
		{ProviderConfig: ops.ProviderConfig{Name: "fh", Kind: "finnhub", APIKeyEnv: "K"}, APIKey: "x"},
		{ProviderConfig: ops.ProviderConfig{Name: "td", Kind: "twelvedata", APIKeyEnv: "K"}, APIKey: ""},
		{ProviderConfig: ops.ProviderConfig{Name: "av", Kind: "alphavantage", APIKeyEnv: "K"}, APIKey: "y"},
	}, client)
	require.NoError(t, err)

	// The keyless provider is skipped, order is preserved.
	require.Len(t, providers, 2)
	require.Equal(t, "fh", providers[0].Name())
	require.Equal(t, "av", providers[1].Name())
}

func TestBuildProvidersPriorityOrder(t *testing.T) {
	providers, err := BuildProviders([]ops.ResolvedProvider{
		{ProviderConfig: ops.ProviderConfig{Name: "second", Kind: "twelvedata", Priority: 2}},
		{ProviderConfig: ops.ProviderConfig{Name: "first", Kind: "finnhub", Priority: 1}},
		{ProviderConfig: ops.ProviderConfig{Name: "third", Kind: "alphavantage", Priority: 3}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, providers, 3)
	require.Equal(t, "first", providers[0].Name())
	require.Equal(t, "second", providers[1].Name())
	require.Equal(t, "third", providers[2].Name())
}

func TestBuildProvidersUnknownKind(t *testing.T) {
	_, err := BuildProviders([]ops.ResolvedProvider{
		{ProviderConfig: ops.ProviderConfig{Name: "x", Kind: "mystery"}},
	}, nil)
	require.Error(t, err)
}
