package tracker

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qeval/internal/clock"
	"qeval/internal/decision"
	"qeval/internal/logging"
	"qeval/internal/testutils"
)

// memOutcomeStore is an in-memory OutcomeStore for tests
type memOutcomeStore struct {
	rows    map[string]*RecommendationOutcome
	upserts int
}

func newMemOutcomeStore() *memOutcomeStore {
	return &memOutcomeStore{rows: make(map[string]*RecommendationOutcome)}
}

func (s *memOutcomeStore) Upsert(ctx context.Context, o *RecommendationOutcome) error {
	copied := *o
	s.rows[o.RecommendationID] = &copied
	s.upserts++
	return nil
}

func (s *memOutcomeStore) Get(ctx context.Context, id string) (*RecommendationOutcome, error) {
	o, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (s *memOutcomeStore) ListSince(ctx context.Context, since time.Time) ([]*RecommendationOutcome, error) {
	var out []*RecommendationOutcome
	for _, o := range s.rows {
		if !o.RecommendationDate.Before(since) {
			copied := *o
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecommendationDate.Before(out[j].RecommendationDate)
	})
	return out, nil
}

func (s *memOutcomeStore) ListActiveSince(ctx context.Context, since time.Time) ([]*RecommendationOutcome, error) {
	all, _ := s.ListSince(ctx, since)
	var out []*RecommendationOutcome
	for _, o := range all {
		if o.Status != StatusCompleted {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOutcomeStore) ListMissingAlpha(ctx context.Context) ([]*RecommendationOutcome, error) {
	var out []*RecommendationOutcome
	for _, o := range s.rows {
		if _, ok := o.Return30(); ok && o.BenchmarkReturn30Pct == nil {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memOutcomeStore) ListRecent(ctx context.Context, limit int) ([]*RecommendationOutcome, error) {
	all, _ := s.ListSince(ctx, time.Time{})
	sort.Slice(all, func(i, j int) bool {
		return all[i].RecommendationDate.After(all[j].RecommendationDate)
	})
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// memRecSource is an in-memory RecommendationSource for tests
type memRecSource struct {
	recs []Recommendation
}

func (s *memRecSource) ListSince(ctx context.Context, since time.Time) ([]Recommendation, error) {
	var out []Recommendation
	for _, rec := range s.recs {
		if !rec.Date.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func ptr(v float64) *float64 { return &v }

// excursionCloses builds the test path: entry 100, run up to 135 by day 10,
// fall to 95 by day 20, then flat at 100
func excursionCloses(days int) []float64 {
	closes := make([]float64, days)
	for i := range closes {
		switch {
		case i == 0:
			closes[i] = 100
		case i <= 10:
			closes[i] = 100 + float64(i)*3.5
		case i <= 20:
			closes[i] = 135 - float64(i-10)*4
		default:
			closes[i] = 100
		}
	}
	return closes
}

func seedOutcome(store *memOutcomeStore, id, ticker string, date time.Time) *RecommendationOutcome {
	o := &RecommendationOutcome{
		RecommendationID:   id,
		Ticker:             ticker,
		RecommendationDate: date,
		Decision:           decision.DecisionBuy,
		Confidence:         85,
		EntryPrice:         100,
		TargetPrice:        ptr(130),
		StopLossPrice:      ptr(90),
		HorizonPrices:      make(map[int]float64),
		HorizonReturns:     make(map[int]float64),
		Status:             StatusPending,
	}
	store.rows[id] = o
	return o
}

func TestUpdateOutcomesExcursions(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	recDate := testutils.Day(2025, time.March, 3)

	gateway := testutils.NewFakeGateway()
	gateway.SetBars("ACME", testutils.BarsFromCloses("ACME", recDate, excursionCloses(36)...))

	store := newMemOutcomeStore()
	seedOutcome(store, "rec-1", "ACME", recDate)

	trk := NewTracker(gateway, store, &memRecSource{}, clock.NewFixed(now), logging.NewNop())

	summary, err := trk.UpdateOutcomes(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Updated)

	row := store.rows["rec-1"]
	require.NotNil(t, row.PeakPrice)
	assert.InDelta(t, 135.0, *row.PeakPrice, 1e-9)
	require.NotNil(t, row.TroughPrice)
	assert.InDelta(t, 95.0, *row.TroughPrice, 1e-9)

	// Peak 135 cleared the 130 target; trough 95 never reached the 90 stop
	assert.True(t, row.HitTarget)
	assert.False(t, row.HitStopLoss)

	assert.InDelta(t, 3.5, row.HorizonReturns[1], 1e-9)
	assert.InDelta(t, 19.0, row.HorizonReturns[14], 1e-9)
	assert.InDelta(t, 0.0, row.HorizonReturns[30], 1e-9)
	assert.Equal(t, StatusTracking, row.Status)
	assert.Equal(t, QualityNeutral, row.Quality)
}

func TestUpdateOutcomesPartialHorizons(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	recDate := now.AddDate(0, 0, -25)

	gateway := testutils.NewFakeGateway()
	gateway.SetBars("MIDCO", testutils.LinearBars("MIDCO", recDate, 26, 100, 1))

	store := newMemOutcomeStore()
	seedOutcome(store, "rec-2", "MIDCO", recDate)

	trk := NewTracker(gateway, store, &memRecSource{}, clock.NewFixed(now), logging.NewNop())

	_, err := trk.UpdateOutcomes(context.Background(), 120)
	require.NoError(t, err)

	row := store.rows["rec-2"]
	for _, days := range []int{1, 3, 7, 14} {
		_, ok := row.HorizonReturns[days]
		assert.True(t, ok, "horizon %dd should be observable at age 25", days)
	}
	for _, days := range []int{30, 60, 90} {
		_, ok := row.HorizonReturns[days]
		assert.False(t, ok, "horizon %dd must stay unobserved at age 25", days)
	}
	assert.Equal(t, StatusTracking, row.Status)
	assert.Equal(t, QualityUnknown, row.Quality)
}

func TestUpdateOutcomesIdempotent(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	recDate := testutils.Day(2025, time.March, 3)

	gateway := testutils.NewFakeGateway()
	gateway.SetBars("ACME", testutils.BarsFromCloses("ACME", recDate, excursionCloses(36)...))

	store := newMemOutcomeStore()
	seedOutcome(store, "rec-1", "ACME", recDate)

	trk := NewTracker(gateway, store, &memRecSource{}, clock.NewFixed(now), logging.NewNop())
	ctx := context.Background()

	_, err := trk.UpdateOutcomes(ctx, 120)
	require.NoError(t, err)
	writesAfterFirst := store.upserts

	summary, err := trk.UpdateOutcomes(ctx, 120)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Unchanged)
	assert.Zero(t, summary.Updated)
	assert.Equal(t, writesAfterFirst, store.upserts, "second pass with no new data must not write")
}

func TestUpdateOutcomesCompletion(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	recDate := now.AddDate(0, 0, -100)

	gateway := testutils.NewFakeGateway()
	gateway.SetBars("OLDCO", testutils.LinearBars("OLDCO", recDate, 92, 100, 0.5))

	store := newMemOutcomeStore()
	seedOutcome(store, "rec-3", "OLDCO", recDate)

	trk := NewTracker(gateway, store, &memRecSource{}, clock.NewFixed(now), logging.NewNop())

	_, err := trk.UpdateOutcomes(context.Background(), 120)
	require.NoError(t, err)

	row := store.rows["rec-3"]
	assert.Equal(t, StatusCompleted, row.Status)
	for _, days := range HorizonDays {
		_, ok := row.HorizonReturns[days]
		assert.True(t, ok, "horizon %dd should be populated after completion", days)
	}
	// 30-day close 115 on entry 100
	assert.Equal(t, QualityExcellent, row.Quality)
}

func TestUpdateOutcomesSkipsFreshRows(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)

	store := newMemOutcomeStore()
	seedOutcome(store, "rec-4", "FRESH", now)

	trk := NewTracker(testutils.NewFakeGateway(), store, &memRecSource{}, clock.NewFixed(now), logging.NewNop())

	summary, err := trk.UpdateOutcomes(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Updated)
}

func TestUpdateOutcomesContinuesPastFailures(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	recDate := testutils.Day(2025, time.March, 3)

	gateway := testutils.NewFakeGateway()
	// GOOD has history, BAD has none
	gateway.SetBars("GOOD", testutils.BarsFromCloses("GOOD", recDate, excursionCloses(36)...))

	store := newMemOutcomeStore()
	seedOutcome(store, "rec-bad", "BAD", recDate)
	seedOutcome(store, "rec-good", "GOOD", recDate.AddDate(0, 0, 1))

	trk := NewTracker(gateway, store, &memRecSource{}, clock.NewFixed(now), logging.NewNop())

	summary, err := trk.UpdateOutcomes(context.Background(), 120)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Issues, 1)
	assert.Contains(t, summary.Issues[0], "rec-bad")
}

func TestBackfill(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	// Saturday: the first session after it carries the entry price
	recDate := testutils.Day(2025, time.March, 1)

	gateway := testutils.NewFakeGateway()
	monday := testutils.Day(2025, time.March, 3)
	gateway.SetBars("ACME", testutils.LinearBars("ACME", monday, 30, 104, 1))

	store := newMemOutcomeStore()
	source := &memRecSource{recs: []Recommendation{
		{
			ID:         "rec-10",
			Ticker:     "ACME",
			Date:       recDate,
			Decision:   decision.DecisionBuy,
			Confidence: 80,
		},
	}}

	trk := NewTracker(gateway, store, source, clock.NewFixed(now), logging.NewNop())
	ctx := context.Background()

	summary, err := trk.Backfill(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	row := store.rows["rec-10"]
	require.NotNil(t, row)
	assert.InDelta(t, 104.0, row.EntryPrice, 1e-9)
	assert.Equal(t, StatusPending, row.Status)

	// A second pass finds the row and leaves it alone
	summary, err = trk.Backfill(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Zero(t, summary.Updated)
}

func TestBackfillKeepsProvidedEntryPrice(t *testing.T) {
	now := testutils.Day(2025, time.April, 7)
	recDate := testutils.Day(2025, time.March, 3)

	store := newMemOutcomeStore()
	source := &memRecSource{recs: []Recommendation{
		{
			ID:         "rec-11",
			Ticker:     "ACME",
			Date:       recDate,
			Decision:   decision.DecisionBuy,
			Confidence: 80,
			EntryPrice: ptr(101.25),
		},
	}}

	// No gateway data needed when the recommendation carries its own price
	trk := NewTracker(testutils.NewFakeGateway(), store, source, clock.NewFixed(now), logging.NewNop())

	_, err := trk.Backfill(context.Background(), 90)
	require.NoError(t, err)

	assert.InDelta(t, 101.25, store.rows["rec-11"].EntryPrice, 1e-9)
}

func TestEqualObservations(t *testing.T) {
	a := &RecommendationOutcome{
		HorizonPrices:  map[int]float64{1: 101},
		HorizonReturns: map[int]float64{1: 1},
		Status:         StatusTracking,
	}
	b := &RecommendationOutcome{
		HorizonPrices:  map[int]float64{1: 101},
		HorizonReturns: map[int]float64{1: 1},
		Status:         StatusTracking,
		UpdatedAt:      time.Now(),
	}

	// Timestamps are not observations
	assert.True(t, a.EqualObservations(b))

	b.HorizonReturns[3] = 2.5
	assert.False(t, a.EqualObservations(b))
}
