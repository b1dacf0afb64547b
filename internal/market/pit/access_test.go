package pit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qeval/internal/cache"
	"qeval/internal/logging"
	"qeval/internal/market"
	"qeval/internal/testutils"
)

// leakyGateway ignores the requested range and returns everything it holds,
// modeling a provider that serves bars past the as-of date
type leakyGateway struct {
	bars []market.Bar
}

func (g *leakyGateway) History(ctx context.Context, ticker string, start, end time.Time) ([]market.Bar, error) {
	return g.bars, nil
}

func (g *leakyGateway) FundamentalsAsOf(ctx context.Context, ticker string, date time.Time) (market.Fundamentals, error) {
	return market.Fundamentals{}, nil
}

func TestBarsWindowClampsToAsOf(t *testing.T) {
	start := testutils.Day(2025, time.March, 3)
	gateway := &leakyGateway{bars: testutils.LinearBars("ACME", start, 20, 100, 1)}

	access := NewAccess(gateway, nil, nil, nil, logging.NewNop())

	asOf := start.AddDate(0, 0, 9)
	bars, err := access.BarsWindow(context.Background(), "ACME", asOf, 30)
	require.NoError(t, err)

	// The provider leaked 10 future bars; none may survive
	require.Len(t, bars, 10)
	for _, bar := range bars {
		assert.False(t, bar.Date.After(asOf), "bar %s leaked past the as-of date", bar.Date)
	}
}

func TestPriceAsOf(t *testing.T) {
	gateway := testutils.NewFakeGateway()
	start := testutils.Day(2025, time.March, 3)
	gateway.SetBars("ACME", testutils.BarsFromCloses("ACME", start, 100, 101, 102))

	access := NewAccess(gateway, nil, nil, nil, logging.NewNop())
	ctx := context.Background()

	t.Run("exact session", func(t *testing.T) {
		price, found, err := access.PriceAsOf(ctx, "ACME", start.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.True(t, found)
		assert.InDelta(t, 101.0, price, 1e-9)
	})

	t.Run("falls back to latest prior session", func(t *testing.T) {
		price, found, err := access.PriceAsOf(ctx, "ACME", start.AddDate(0, 0, 8))
		require.NoError(t, err)
		assert.True(t, found)
		assert.InDelta(t, 102.0, price, 1e-9)
	})

	t.Run("nothing before the date", func(t *testing.T) {
		_, found, err := access.PriceAsOf(ctx, "ACME", start.AddDate(0, 0, -30))
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestBarsWindowUsesCache(t *testing.T) {
	gateway := testutils.NewFakeGateway()
	start := testutils.Day(2025, time.March, 3)
	gateway.SetBars("ACME", testutils.LinearBars("ACME", start, 30, 100, 1))

	access := NewAccess(gateway, nil, cache.NewMemoryCache(100), nil, logging.NewNop())
	ctx := context.Background()
	asOf := start.AddDate(0, 0, 20)

	first, err := access.BarsWindow(ctx, "ACME", asOf, 14)
	require.NoError(t, err)
	fetches := len(gateway.HistoryCalls)

	second, err := access.BarsWindow(ctx, "ACME", asOf, 14)
	require.NoError(t, err)

	assert.Equal(t, fetches, len(gateway.HistoryCalls), "repeat window must be served from cache")
	assert.Equal(t, len(first), len(second))
}

func TestIndicatorsAsOf(t *testing.T) {
	gateway := testutils.NewFakeGateway()
	start := testutils.Day(2024, time.October, 1)
	gateway.SetBars("ACME", testutils.LinearBars("ACME", start, 200, 100, 0.5))

	access := NewAccess(gateway, nil, nil, nil, logging.NewNop())

	bundle, ok, err := access.IndicatorsAsOf(context.Background(), "ACME", start.AddDate(0, 0, 150))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 175.0, bundle.Close, 1e-9)
	assert.Greater(t, bundle.SMA20, bundle.SMA50)
}

// spyMetrics records observations handed to the Metrics hook
type spyMetrics struct {
	hits, misses, violations int
}

func (m *spyMetrics) RecordCache(hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *spyMetrics) RecordLookaheadViolation() {
	m.violations++
}

func TestBarsWindowRecordsCacheMetrics(t *testing.T) {
	gateway := testutils.NewFakeGateway()
	start := testutils.Day(2025, time.March, 3)
	gateway.SetBars("ACME", testutils.LinearBars("ACME", start, 30, 100, 1))

	metrics := &spyMetrics{}
	access := NewAccess(gateway, nil, cache.NewMemoryCache(100), metrics, logging.NewNop())
	ctx := context.Background()
	asOf := start.AddDate(0, 0, 20)

	_, err := access.BarsWindow(ctx, "ACME", asOf, 14)
	require.NoError(t, err)
	_, err = access.BarsWindow(ctx, "ACME", asOf, 14)
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 1, metrics.hits)
}

func TestClampRecordsLookaheadViolations(t *testing.T) {
	start := testutils.Day(2025, time.March, 3)
	gateway := &leakyGateway{bars: testutils.LinearBars("ACME", start, 20, 100, 1)}

	metrics := &spyMetrics{}
	access := NewAccess(gateway, nil, nil, metrics, logging.NewNop())

	asOf := start.AddDate(0, 0, 9)
	_, err := access.BarsWindow(context.Background(), "ACME", asOf, 30)
	require.NoError(t, err)

	// One violation per leaked future bar
	assert.Equal(t, 10, metrics.violations)
}

func TestValidateNoLookahead(t *testing.T) {
	access := NewAccess(testutils.NewFakeGateway(), nil, nil, nil, logging.NewNop())
	decisionDate := testutils.Day(2025, time.March, 10)

	assert.True(t, access.ValidateNoLookahead("ACME", decisionDate, decisionDate))
	assert.True(t, access.ValidateNoLookahead("ACME", decisionDate, decisionDate.AddDate(0, 0, -5)))
	assert.False(t, access.ValidateNoLookahead("ACME", decisionDate, decisionDate.AddDate(0, 0, 1)))
}
