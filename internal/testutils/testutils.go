// Package testutils provides shared fixtures for package tests: deterministic
// bar series builders and an in-memory market data gateway.
package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qeval/internal/market"
)

// Day truncates a timestamp to midnight UTC
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// BarsFromCloses builds a daily bar series from a list of closes, one bar per
// calendar day starting at start. Open/high/low are derived from the close.
func BarsFromCloses(ticker string, start time.Time, closes ...float64) []market.Bar {
	bars := make([]market.Bar, 0, len(closes))
	for i, close := range closes {
		bars = append(bars, market.Bar{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   close * 0.99,
			High:   close * 1.01,
			Low:    close * 0.98,
			Close:  close,
			Volume: 1_000_000,
		})
	}
	return bars
}

// LinearBars builds a daily bar series whose close drifts by step per day
func LinearBars(ticker string, start time.Time, days int, startPrice, step float64) []market.Bar {
	closes := make([]float64, days)
	for i := range closes {
		closes[i] = startPrice + float64(i)*step
	}
	return BarsFromCloses(ticker, start, closes...)
}

// FakeGateway is an in-memory market.Gateway backed by fixed bar series
type FakeGateway struct {
	Bars         map[string][]market.Bar
	Fundamentals map[string]market.Fundamentals
	Err          error

	// HistoryCalls records every History request for assertions
	HistoryCalls []HistoryCall
}

// HistoryCall is one recorded History request
type HistoryCall struct {
	Ticker     string
	Start, End time.Time
}

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Bars:         make(map[string][]market.Bar),
		Fundamentals: make(map[string]market.Fundamentals),
	}
}

// SetBars installs a bar series for a ticker
func (g *FakeGateway) SetBars(ticker string, bars []market.Bar) {
	g.Bars[ticker] = bars
}

// History returns the installed bars dated within [start, end]
func (g *FakeGateway) History(ctx context.Context, ticker string, start, end time.Time) ([]market.Bar, error) {
	g.HistoryCalls = append(g.HistoryCalls, HistoryCall{Ticker: ticker, Start: start, End: end})
	if g.Err != nil {
		return nil, g.Err
	}

	var out []market.Bar
	for _, bar := range g.Bars[ticker] {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// FundamentalsAsOf returns the installed fundamentals for a ticker
func (g *FakeGateway) FundamentalsAsOf(ctx context.Context, ticker string, date time.Time) (market.Fundamentals, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	f, ok := g.Fundamentals[ticker]
	if !ok {
		return market.Fundamentals{}, nil
	}
	return f, nil
}

// CreateTempFile writes content to a file under t.TempDir and returns its path
func CreateTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
