package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"qeval/internal/config"
	"qeval/internal/logging"
	"qeval/internal/market"
)

// Metrics receives provider request observations. Implemented by
// monitor.MetricsCollector; nil disables collection.
type Metrics interface {
	RecordFetch(endpoint string, duration time.Duration, err error)
}

// Client is an Alpha Vantage API client implementing market.Gateway
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    Metrics
	logger     *logging.Logger
}

// NewClient creates a new Alpha Vantage client. metrics may be nil.
func NewClient(cfg *config.MarketDataConfig, metrics Metrics, logger *logging.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		metrics: metrics,
		logger:  logger,
	}
}

// History fetches daily OHLCV bars for [start, end], ordered by date ascending
func (c *Client) History(ctx context.Context, ticker string, start, end time.Time) ([]market.Bar, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", ticker)
	params.Set("outputsize", "full")

	var payload struct {
		Series map[string]struct {
			Open   string `json:"1. open"`
			High   string `json:"2. high"`
			Low    string `json:"3. low"`
			Close  string `json:"4. close"`
			Volume string `json:"5. volume"`
		} `json:"Time Series (Daily)"`
		Note         string `json:"Note"`
		ErrorMessage string `json:"Error Message"`
	}

	if err := c.get(ctx, params, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", ticker, err)
	}
	if payload.ErrorMessage != "" {
		return nil, fmt.Errorf("provider rejected history request for %s: %s", ticker, payload.ErrorMessage)
	}
	if payload.Note != "" {
		return nil, fmt.Errorf("provider throttled history request for %s: %s", ticker, payload.Note)
	}

	bars := make([]market.Bar, 0, len(payload.Series))
	for dateStr, raw := range payload.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.logger.Warnf("skipping bar with unparseable date %q for %s", dateStr, ticker)
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}

		open, _ := strconv.ParseFloat(raw.Open, 64)
		high, _ := strconv.ParseFloat(raw.High, 64)
		low, _ := strconv.ParseFloat(raw.Low, 64)
		closePrice, _ := strconv.ParseFloat(raw.Close, 64)
		volume, _ := strconv.ParseInt(raw.Volume, 10, 64)

		bars = append(bars, market.Bar{
			Ticker: ticker,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return bars, nil
}

// FundamentalsAsOf fetches company fundamentals for a ticker. The provider
// only exposes the current snapshot, so the as-of date is used by the caller
// to decide whether the snapshot is admissible, not to select a vintage.
func (c *Client) FundamentalsAsOf(ctx context.Context, ticker string, date time.Time) (market.Fundamentals, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", ticker)

	var raw map[string]interface{}
	if err := c.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch fundamentals for %s: %w", ticker, err)
	}

	fundamentals := make(market.Fundamentals)
	for key, value := range raw {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			fundamentals[key] = f
		}
	}

	return fundamentals, nil
}

// get performs a rate-limited GET request and decodes the JSON response.
// Latency is measured after the limiter so queueing never inflates it.
func (c *Client) get(ctx context.Context, params url.Values, dest interface{}) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if c.metrics != nil {
		started := time.Now()
		endpoint := strings.ToLower(params.Get("function"))
		defer func() {
			c.metrics.RecordFetch(endpoint, time.Since(started), err)
		}()
	}

	params.Set("apikey", c.apiKey)
	endpoint := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
