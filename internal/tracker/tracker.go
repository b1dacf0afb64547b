// Package tracker maintains the audit trail of production recommendations:
// one persistent outcome row per recommendation, refreshed with observed
// prices at fixed horizons until tracking completes at 90 days.
package tracker

import (
	"context"
	"fmt"
	"time"

	"qeval/internal/clock"
	apperrors "qeval/internal/errors"
	"qeval/internal/logging"
	"qeval/internal/market"
)

// Tracker creates and refreshes recommendation outcome rows
type Tracker struct {
	gateway market.Gateway
	store   OutcomeStore
	source  RecommendationSource
	clk     clock.Clock
	logger  *logging.Logger
}

// NewTracker creates a live outcome tracker
func NewTracker(gateway market.Gateway, store OutcomeStore, source RecommendationSource, clk clock.Clock, logger *logging.Logger) *Tracker {
	return &Tracker{
		gateway: gateway,
		store:   store,
		source:  source,
		clk:     clk,
		logger:  logger,
	}
}

// Backfill creates PENDING outcome rows for recommendations in the lookback
// window that have none. Entry price is the close on the recommendation date,
// or the nearest session after it.
func (t *Tracker) Backfill(ctx context.Context, daysBack int) (*UpdateSummary, error) {
	if daysBack <= 0 {
		return nil, apperrors.NewInvalidConfig("days_back", "lookback must be positive")
	}

	now := t.clk.Now()
	since := now.AddDate(0, 0, -daysBack)

	recs, err := t.source.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}

	summary := &UpdateSummary{}
	for _, rec := range recs {
		summary.Processed++

		existing, err := t.store.Get(ctx, rec.ID)
		if err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues, fmt.Sprintf("%s: %v", rec.ID, err))
			continue
		}
		if existing != nil {
			summary.Unchanged++
			continue
		}

		outcome, err := t.newOutcome(ctx, rec, now)
		if err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues, fmt.Sprintf("%s: %v", rec.ID, err))
			t.logger.WithField("ticker", rec.Ticker).
				Warnf("backfill failed for %s: %v", rec.ID, err)
			continue
		}

		if err := t.store.Upsert(ctx, outcome); err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues, fmt.Sprintf("%s: %v", rec.ID, err))
			continue
		}
		summary.Updated++
	}

	t.logger.Infof("backfill: %d recommendations, %d rows created, %d failed",
		summary.Processed, summary.Updated, summary.Failed)

	return summary, nil
}

// newOutcome builds the initial PENDING row for a recommendation
func (t *Tracker) newOutcome(ctx context.Context, rec Recommendation, now time.Time) (*RecommendationOutcome, error) {
	entryPrice := 0.0
	if rec.EntryPrice != nil && *rec.EntryPrice > 0 {
		entryPrice = *rec.EntryPrice
	} else {
		bars, err := t.fetchWindow(ctx, rec.Ticker, rec.Date, now)
		if err != nil {
			return nil, err
		}
		bar, ok := firstOnOrAfter(bars, rec.Date)
		if !ok {
			return nil, apperrors.NewDataUnavailable(rec.Ticker, rec.Date, nil).
				WithDetails("no session at or after recommendation date")
		}
		entryPrice = bar.Close
	}

	return &RecommendationOutcome{
		RecommendationID:   rec.ID,
		Ticker:             rec.Ticker,
		RecommendationDate: rec.Date,
		Decision:           rec.Decision,
		Confidence:         rec.Confidence,
		EntryPrice:         entryPrice,
		TargetPrice:        rec.TargetPrice,
		StopLossPrice:      rec.StopLossPrice,
		HorizonPrices:      make(map[int]float64),
		HorizonReturns:     make(map[int]float64),
		Status:             StatusPending,
	}, nil
}

// UpdateOutcomes refreshes every non-COMPLETED row in the lookback window.
// Each row is refreshed independently; one ticker's failure never blocks the
// rest.
func (t *Tracker) UpdateOutcomes(ctx context.Context, lookbackDays int) (*UpdateSummary, error) {
	if lookbackDays <= 0 {
		return nil, apperrors.NewInvalidConfig("lookback_days", "lookback must be positive")
	}

	now := t.clk.Now()
	since := now.AddDate(0, 0, -lookbackDays)

	outcomes, err := t.store.ListActiveSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active outcomes: %w", err)
	}

	summary := &UpdateSummary{}
	for _, outcome := range outcomes {
		summary.Processed++

		// Too fresh: no horizon is observable yet
		if daysBetween(outcome.RecommendationDate, now) < 1 {
			summary.Skipped++
			continue
		}

		refreshed, err := t.refresh(ctx, outcome, now)
		if err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues,
				fmt.Sprintf("%s: %v", outcome.RecommendationID, err))
			t.logger.WithField("ticker", outcome.Ticker).
				Warnf("refresh failed for %s: %v", outcome.RecommendationID, err)
			continue
		}

		if refreshed.EqualObservations(outcome) {
			summary.Unchanged++
			continue
		}

		if err := t.store.Upsert(ctx, refreshed); err != nil {
			summary.Failed++
			summary.Issues = append(summary.Issues,
				fmt.Sprintf("%s: %v", outcome.RecommendationID, err))
			continue
		}
		summary.Updated++
	}

	t.logger.Infof("update outcomes: %d processed, %d updated, %d unchanged, %d skipped, %d failed",
		summary.Processed, summary.Updated, summary.Unchanged, summary.Skipped, summary.Failed)

	return summary, nil
}

// refresh recomputes a row's horizon observations from the price history
// between the recommendation date and now
func (t *Tracker) refresh(ctx context.Context, outcome *RecommendationOutcome, now time.Time) (*RecommendationOutcome, error) {
	bars, err := t.fetchWindow(ctx, outcome.Ticker, outcome.RecommendationDate, now)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.NewDataUnavailable(outcome.Ticker, outcome.RecommendationDate, nil).
			WithDetails("no price history since recommendation date")
	}

	updated := *outcome
	updated.HorizonPrices = make(map[int]float64, len(outcome.HorizonPrices))
	updated.HorizonReturns = make(map[int]float64, len(outcome.HorizonReturns))

	for _, days := range HorizonDays {
		horizonDate := outcome.RecommendationDate.AddDate(0, 0, days)
		// Anti-lookahead invariant: a horizon is only observable once its
		// date has passed on the wall clock.
		if horizonDate.After(now) {
			continue
		}
		price, ok := priceAtHorizon(bars, horizonDate)
		if !ok {
			continue
		}
		updated.HorizonPrices[days] = price
		if updated.EntryPrice > 0 {
			updated.HorizonReturns[days] = (price - updated.EntryPrice) / updated.EntryPrice * 100
		}
	}

	t.applyExcursions(&updated, bars)
	updated.Status = statusForAge(daysBetween(outcome.RecommendationDate, now), len(updated.HorizonReturns))
	updated.Quality = deriveQuality(&updated)

	return &updated, nil
}

// applyExcursions locates the global peak and trough across the fetched
// window and derives target/stop-loss hits
func (t *Tracker) applyExcursions(outcome *RecommendationOutcome, bars []market.Bar) {
	peak, trough := bars[0], bars[0]
	for _, bar := range bars[1:] {
		if bar.Close > peak.Close {
			peak = bar
		}
		if bar.Close < trough.Close {
			trough = bar
		}
	}

	peakPrice, troughPrice := peak.Close, trough.Close
	peakDate, troughDate := peak.Date, trough.Date
	outcome.PeakPrice = &peakPrice
	outcome.PeakDate = &peakDate
	outcome.TroughPrice = &troughPrice
	outcome.TroughDate = &troughDate

	if outcome.EntryPrice > 0 {
		peakReturn := (peakPrice - outcome.EntryPrice) / outcome.EntryPrice * 100
		troughReturn := (troughPrice - outcome.EntryPrice) / outcome.EntryPrice * 100
		outcome.PeakReturnPct = &peakReturn
		outcome.TroughReturnPct = &troughReturn
	}

	if outcome.TargetPrice != nil && *outcome.TargetPrice > 0 {
		outcome.HitTarget = peakPrice >= *outcome.TargetPrice
	}
	if outcome.StopLossPrice != nil && *outcome.StopLossPrice > 0 {
		outcome.HitStopLoss = troughPrice <= *outcome.StopLossPrice
	}
}

// fetchWindow fetches bars from the recommendation date to now, sized to
// cover the longest horizon
func (t *Tracker) fetchWindow(ctx context.Context, ticker string, from, now time.Time) ([]market.Bar, error) {
	end := from.AddDate(0, 0, completionAgeDays+1)
	if end.After(now) {
		end = now
	}
	bars, err := t.gateway.History(ctx, ticker, from, end)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(ticker, from, err)
	}
	return bars, nil
}

// priceAtHorizon resolves the price observed at a horizon date: the exact
// session if it traded, else the nearest session after it, else the latest
// session before it.
func priceAtHorizon(bars []market.Bar, horizonDate time.Time) (float64, bool) {
	var lastBefore *market.Bar
	for i := range bars {
		bar := &bars[i]
		if sameDay(bar.Date, horizonDate) {
			return bar.Close, true
		}
		if bar.Date.After(horizonDate) {
			return bar.Close, true // nearest forward; bars are date-ascending
		}
		lastBefore = bar
	}
	if lastBefore != nil {
		return lastBefore.Close, true
	}
	return 0, false
}

// firstOnOrAfter returns the first bar dated on or after the given date
func firstOnOrAfter(bars []market.Bar, date time.Time) (market.Bar, bool) {
	for _, bar := range bars {
		if sameDay(bar.Date, date) || bar.Date.After(date) {
			return bar, true
		}
	}
	return market.Bar{}, false
}

// statusForAge implements the PENDING -> TRACKING -> COMPLETED transitions
func statusForAge(ageDays int, populatedHorizons int) EvaluationStatus {
	switch {
	case ageDays >= completionAgeDays:
		return StatusCompleted
	case populatedHorizons > 0:
		return StatusTracking
	default:
		return StatusPending
	}
}

// deriveQuality buckets the realized 30-day return into a categorical label.
// Unknown until the 30-day horizon is observable.
func deriveQuality(outcome *RecommendationOutcome) OutcomeQuality {
	ret, ok := outcome.Return30()
	if !ok {
		return QualityUnknown
	}
	switch {
	case ret >= 10:
		return QualityExcellent
	case ret >= 3:
		return QualityGood
	case ret > -3:
		return QualityNeutral
	case ret > -10:
		return QualityPoor
	default:
		return QualityFailed
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
