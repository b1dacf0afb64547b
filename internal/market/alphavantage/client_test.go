package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qeval/internal/config"
	"qeval/internal/logging"
	"qeval/internal/testutils"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&config.MarketDataConfig{
		BaseURL:           server.URL,
		APIKey:            "test-key",
		RequestsPerMinute: 6000,
		Timeout:           5 * time.Second,
	}, nil, logging.NewNop())
}

func TestHistory(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		w.Write([]byte(`{
			"Time Series (Daily)": {
				"2025-03-05": {"1. open": "102.0", "2. high": "104.0", "3. low": "101.0", "4. close": "103.5", "5. volume": "1200000"},
				"2025-03-04": {"1. open": "100.0", "2. high": "102.0", "3. low": "99.0", "4. close": "101.0", "5. volume": "1000000"},
				"2025-03-10": {"1. open": "105.0", "2. high": "106.0", "3. low": "104.0", "4. close": "105.5", "5. volume": "900000"}
			}
		}`))
	})

	start := testutils.Day(2025, time.March, 1)
	end := testutils.Day(2025, time.March, 7)

	bars, err := client.History(context.Background(), "AAPL", start, end)
	require.NoError(t, err)

	// The 2025-03-10 bar is outside the window; the rest arrive date-ascending
	require.Len(t, bars, 2)
	assert.Equal(t, testutils.Day(2025, time.March, 4), bars[0].Date)
	assert.InDelta(t, 101.0, bars[0].Close, 1e-9)
	assert.Equal(t, testutils.Day(2025, time.March, 5), bars[1].Date)
	assert.InDelta(t, 103.5, bars[1].Close, 1e-9)
	assert.Equal(t, int64(1200000), bars[1].Volume)
}

func TestHistoryProviderErrors(t *testing.T) {
	t.Run("error message", func(t *testing.T) {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Error Message": "Invalid API call"}`))
		})

		_, err := client.History(context.Background(), "BAD", time.Time{}, time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid API call")
	})

	t.Run("throttle note", func(t *testing.T) {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Note": "API call frequency exceeded"}`))
		})

		_, err := client.History(context.Background(), "AAPL", time.Time{}, time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
	})

	t.Run("http error status", func(t *testing.T) {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.History(context.Background(), "AAPL", time.Time{}, time.Now())
		assert.Error(t, err)
	})
}

// spyMetrics records fetch observations handed to the Metrics hook
type spyMetrics struct {
	endpoints []string
	errors    int
}

func (m *spyMetrics) RecordFetch(endpoint string, duration time.Duration, err error) {
	m.endpoints = append(m.endpoints, endpoint)
	if err != nil {
		m.errors++
	}
}

func TestHistoryRecordsFetchMetrics(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"Time Series (Daily)": {}}`))
	}))
	t.Cleanup(server.Close)

	metrics := &spyMetrics{}
	client := NewClient(&config.MarketDataConfig{
		BaseURL:           server.URL,
		APIKey:            "test-key",
		RequestsPerMinute: 6000,
		Timeout:           5 * time.Second,
	}, metrics, logging.NewNop())

	_, err := client.History(context.Background(), "AAPL", time.Time{}, time.Now())
	require.NoError(t, err)
	_, err = client.History(context.Background(), "AAPL", time.Time{}, time.Now())
	require.Error(t, err)

	require.Len(t, metrics.endpoints, 2)
	assert.Equal(t, "time_series_daily", metrics.endpoints[0])
	assert.Equal(t, 1, metrics.errors)
}

func TestFundamentalsAsOf(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OVERVIEW", r.URL.Query().Get("function"))
		w.Write([]byte(`{
			"Symbol": "AAPL",
			"PERatio": "28.5",
			"EPS": "6.42",
			"MarketCapitalization": "2800000000000",
			"Description": "Consumer electronics"
		}`))
	})

	fundamentals, err := client.FundamentalsAsOf(context.Background(), "AAPL", time.Now())
	require.NoError(t, err)

	assert.InDelta(t, 28.5, fundamentals["PERatio"], 1e-9)
	assert.InDelta(t, 6.42, fundamentals["EPS"], 1e-9)
	// Non-numeric fields are dropped
	_, ok := fundamentals["Description"]
	assert.False(t, ok)
	_, ok = fundamentals["Symbol"]
	assert.False(t, ok)
}
