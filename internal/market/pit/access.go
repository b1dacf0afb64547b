// Package pit provides point-in-time access to market data: every query is
// parameterized by an as-of date and never returns information timestamped
// after it. This is the layer that keeps lookahead bias out of simulations.
package pit

import (
	"context"
	"fmt"
	"time"

	"qeval/internal/cache"
	apperrors "qeval/internal/errors"
	"qeval/internal/indicator"
	"qeval/internal/logging"
	"qeval/internal/market"
)

// indicatorWindowDays is sized so the slowest indicator (SMA50) always has
// enough trading sessions even across holiday-heavy stretches.
const indicatorWindowDays = 120

// Metrics receives cache and lookahead observations. Implemented by
// monitor.MetricsCollector; nil disables collection.
type Metrics interface {
	RecordCache(hit bool)
	RecordLookaheadViolation()
}

// Access answers as-of queries against the gateway, a shared cache and the
// persisted bar store
type Access struct {
	gateway  market.Gateway
	store    *BarStore
	cache    cache.Cache
	metrics  Metrics
	logger   *logging.Logger
	cacheTTL time.Duration
}

// NewAccess creates a point-in-time data access layer. store, c, and metrics
// may be nil; the gateway is then the only source.
func NewAccess(gateway market.Gateway, store *BarStore, c cache.Cache, metrics Metrics, logger *logging.Logger) *Access {
	return &Access{
		gateway:  gateway,
		store:    store,
		cache:    c,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: 15 * time.Minute,
	}
}

// PriceAsOf returns the latest known close with a timestamp at or before the
// given date. The boolean is false when no bar exists in the trailing window.
func (a *Access) PriceAsOf(ctx context.Context, ticker string, date time.Time) (float64, bool, error) {
	bars, err := a.BarsWindow(ctx, ticker, date, 14)
	if err != nil {
		return 0, false, err
	}
	if len(bars) == 0 {
		return 0, false, nil
	}
	return bars[len(bars)-1].Close, true, nil
}

// BarsWindow returns bars for the trailing window [end-days, end], ordered by
// date ascending. Bars dated after end are discarded unconditionally, whatever
// the source returned.
func (a *Access) BarsWindow(ctx context.Context, ticker string, end time.Time, days int) ([]market.Bar, error) {
	end = truncateDay(end)
	start := end.AddDate(0, 0, -days)

	cacheKey := fmt.Sprintf("pit:bars:%s:%s:%d", ticker, end.Format("2006-01-02"), days)
	if a.cache != nil {
		var cached []market.Bar
		if err := a.cache.Get(ctx, cacheKey, &cached); err == nil {
			a.recordCache(true)
			return a.clampToAsOf(ticker, cached, end), nil
		}
		a.recordCache(false)
	}

	bars, err := a.gateway.History(ctx, ticker, start, end)
	if err != nil {
		// Fall back to persisted history so batch runs survive provider outages
		if a.store != nil {
			stored, storeErr := a.store.Query(ctx, ticker, start, end)
			if storeErr == nil && len(stored) > 0 {
				a.logger.WithField("ticker", ticker).
					Warnf("gateway unavailable, serving %d persisted bars: %v", len(stored), err)
				return a.clampToAsOf(ticker, stored, end), nil
			}
		}
		return nil, apperrors.NewDataUnavailable(ticker, end, err)
	}

	if a.store != nil {
		if err := a.store.Upsert(ctx, bars); err != nil {
			a.logger.WithError(err).Warnf("failed to persist bars for %s", ticker)
		}
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, bars, a.cacheTTL); err != nil {
			a.logger.WithError(err).Debug("failed to cache bar window")
		}
	}

	return a.clampToAsOf(ticker, bars, end), nil
}

// IndicatorsAsOf computes the technical bundle from a trailing window ending
// at the as-of date. The boolean is false when history is too short.
func (a *Access) IndicatorsAsOf(ctx context.Context, ticker string, date time.Time) (indicator.Bundle, bool, error) {
	bars, err := a.BarsWindow(ctx, ticker, date, indicatorWindowDays)
	if err != nil {
		return indicator.Bundle{}, false, err
	}

	bundle, ok := indicator.Compute(bars)
	return bundle, ok, nil
}

// FundamentalsAsOf returns fundamentals admissible at the as-of date
func (a *Access) FundamentalsAsOf(ctx context.Context, ticker string, date time.Time) (market.Fundamentals, error) {
	return a.gateway.FundamentalsAsOf(ctx, ticker, date)
}

// ValidateNoLookahead reports whether dataDate is admissible for a decision
// dated decisionDate. A violation is logged and returns false; it does not
// abort, the check is a tripwire for callers that assemble their own inputs.
func (a *Access) ValidateNoLookahead(ticker string, decisionDate, dataDate time.Time) bool {
	if truncateDay(dataDate).After(truncateDay(decisionDate)) {
		violation := apperrors.NewLookaheadViolation(ticker, decisionDate, dataDate)
		a.logger.WithField("ticker", ticker).Warn(violation.Error())
		if a.metrics != nil {
			a.metrics.RecordLookaheadViolation()
		}
		return false
	}
	return true
}

func (a *Access) recordCache(hit bool) {
	if a.metrics != nil {
		a.metrics.RecordCache(hit)
	}
}

// clampToAsOf drops any bar dated after the as-of date. Sources should never
// produce one, so crossing this guard is logged as a lookahead violation.
func (a *Access) clampToAsOf(ticker string, bars []market.Bar, asOf time.Time) []market.Bar {
	out := make([]market.Bar, 0, len(bars))
	for _, bar := range bars {
		if truncateDay(bar.Date).After(asOf) {
			a.ValidateNoLookahead(ticker, asOf, bar.Date)
			continue
		}
		out = append(out, bar)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
