// Package benchmark maintains the reference index price cache and computes
// the excess return (alpha) of tracked outcomes relative to it.
package benchmark

import (
	"context"
	"fmt"
	"time"

	"qeval/internal/clock"
	apperrors "qeval/internal/errors"
	"qeval/internal/logging"
	"qeval/internal/market"
	"qeval/internal/tracker"
)

// priceToleranceDays is how far from the requested date a benchmark session
// may be and still count as "nearest"
const priceToleranceDays = 5

// Comparator updates the benchmark price cache and fills in alpha on
// outcome rows
type Comparator struct {
	gateway  market.Gateway
	prices   PriceStore
	outcomes tracker.OutcomeStore
	symbol   string
	clk      clock.Clock
	logger   *logging.Logger
}

// NewComparator creates a benchmark comparator for the given reference symbol
func NewComparator(gateway market.Gateway, prices PriceStore, outcomes tracker.OutcomeStore, symbol string, clk clock.Clock, logger *logging.Logger) *Comparator {
	return &Comparator{
		gateway:  gateway,
		prices:   prices,
		outcomes: outcomes,
		symbol:   symbol,
		clk:      clk,
		logger:   logger,
	}
}

// UpdateBenchmark fetches and idempotently upserts the reference index's
// daily prices for the trailing window
func (c *Comparator) UpdateBenchmark(ctx context.Context, daysBack int) (int, error) {
	if daysBack <= 0 {
		return 0, apperrors.NewInvalidConfig("days_back", "lookback must be positive")
	}

	now := c.clk.Now()
	bars, err := c.gateway.History(ctx, c.symbol, now.AddDate(0, 0, -daysBack), now)
	if err != nil {
		return 0, apperrors.NewDataUnavailable(c.symbol, now, err)
	}

	if err := c.prices.Upsert(ctx, c.symbol, bars); err != nil {
		return 0, err
	}

	c.logger.Infof("benchmark %s: upserted %d daily prices", c.symbol, len(bars))
	return len(bars), nil
}

// CalculateAlpha fills the benchmark-return and alpha snapshot for every
// outcome horizon that is observable but not yet stored. Each horizon is
// computed exactly once: an immutable audit snapshot, never recalculated even
// if benchmark data is later corrected. A row filled at 30 days is revisited
// only for its 90-day pair.
func (c *Comparator) CalculateAlpha(ctx context.Context) (*tracker.UpdateSummary, error) {
	outcomes, err := c.outcomes.ListMissingAlpha(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes missing alpha: %w", err)
	}

	summary := &tracker.UpdateSummary{}
	for _, outcome := range outcomes {
		summary.Processed++

		changed, err := c.fillAlpha(ctx, outcome)
		if err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues,
				fmt.Sprintf("%s: %v", outcome.RecommendationID, err))
			c.logger.WithField("ticker", outcome.Ticker).
				Warnf("alpha computation failed for %s: %v", outcome.RecommendationID, err)
			continue
		}
		if !changed {
			summary.Skipped++
			continue
		}

		if err := c.outcomes.Upsert(ctx, outcome); err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues,
				fmt.Sprintf("%s: %v", outcome.RecommendationID, err))
			continue
		}
		summary.Updated++
	}

	c.logger.Infof("alpha: %d outcomes processed, %d updated, %d failed",
		summary.Processed, summary.Updated, summary.Failed)

	return summary, nil
}

// fillAlpha computes the missing horizon snapshots for one outcome. A horizon
// already stored is never touched, whatever the benchmark prices say now.
func (c *Comparator) fillAlpha(ctx context.Context, outcome *tracker.RecommendationOutcome) (bool, error) {
	base, ok, err := c.prices.PriceNear(ctx, c.symbol, outcome.RecommendationDate, priceToleranceDays)
	if err != nil {
		return false, err
	}
	if !ok || base <= 0 {
		return false, apperrors.NewDataUnavailable(c.symbol, outcome.RecommendationDate, nil).
			WithDetails("no benchmark price near recommendation date")
	}

	changed := false

	if outcome.BenchmarkReturn30Pct == nil {
		ret30, ok := outcome.Return30()
		if !ok {
			// ListMissingAlpha should never hand us such a row
			return false, apperrors.NewAppError(apperrors.ErrCodeComputation, "outcome has no 30-day return", nil)
		}

		benchReturn30, err := c.benchmarkReturn(ctx, outcome.RecommendationDate, base, 30)
		if err != nil {
			return false, err
		}
		alpha30 := ret30 - benchReturn30
		outcome.BenchmarkReturn30Pct = &benchReturn30
		outcome.Alpha30Pct = &alpha30
		changed = true
	}

	if outcome.BenchmarkReturn90Pct == nil {
		if ret90, ok := outcome.HorizonReturns[90]; ok {
			benchReturn90, err := c.benchmarkReturn(ctx, outcome.RecommendationDate, base, 90)
			if err != nil {
				// With the 30-day pair just filled the row still advances;
				// the 90-day pair stays missing and is retried next pass
				if !changed {
					return false, err
				}
			} else {
				alpha90 := ret90 - benchReturn90
				outcome.BenchmarkReturn90Pct = &benchReturn90
				outcome.Alpha90Pct = &alpha90
				changed = true
			}
		}
	}

	return changed, nil
}

// benchmarkReturn computes the benchmark's percentage return over the span
// from the recommendation date to the horizon
func (c *Comparator) benchmarkReturn(ctx context.Context, recDate time.Time, basePrice float64, horizonDays int) (float64, error) {
	horizon := recDate.AddDate(0, 0, horizonDays)
	price, ok, err := c.prices.PriceNear(ctx, c.symbol, horizon, priceToleranceDays)
	if err != nil {
		return 0, err
	}
	if !ok || price <= 0 {
		return 0, apperrors.NewDataUnavailable(c.symbol, horizon, nil).
			WithDetails(fmt.Sprintf("no benchmark price near %d-day horizon", horizonDays))
	}
	return (price - basePrice) / basePrice * 100, nil
}
