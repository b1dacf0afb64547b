package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "qeval/internal/errors"
)

// OutcomeStore persists recommendation outcomes. Each write is its own
// transaction; a failure on one row never corrupts another.
type OutcomeStore interface {
	Upsert(ctx context.Context, outcome *RecommendationOutcome) error
	Get(ctx context.Context, recommendationID string) (*RecommendationOutcome, error)
	ListSince(ctx context.Context, since time.Time) ([]*RecommendationOutcome, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]*RecommendationOutcome, error)
	ListMissingAlpha(ctx context.Context) ([]*RecommendationOutcome, error)
	ListRecent(ctx context.Context, limit int) ([]*RecommendationOutcome, error)
}

// RecommendationSource reads production recommendations emitted by the
// decision engine
type RecommendationSource interface {
	ListSince(ctx context.Context, since time.Time) ([]Recommendation, error)
}

const outcomeColumns = `
	recommendation_id, ticker, recommendation_date, decision, confidence,
	entry_price, target_price, stop_loss_price,
	price_after_1day, price_after_3day, price_after_7day, price_after_14day,
	price_after_30day, price_after_60day, price_after_90day,
	return_1day_pct, return_3day_pct, return_7day_pct, return_14day_pct,
	return_30day_pct, return_60day_pct, return_90day_pct,
	peak_price, peak_date, peak_return_pct,
	trough_price, trough_date, trough_return_pct,
	hit_target, hit_stop_loss,
	benchmark_return_30days_pct, benchmark_return_90days_pct,
	alpha_30days_pct, alpha_90days_pct,
	evaluation_status, outcome_quality, created_at, updated_at`

// PostgresOutcomeStore is the Postgres-backed OutcomeStore
type PostgresOutcomeStore struct {
	db *sql.DB
}

// NewPostgresOutcomeStore creates a new outcome store
func NewPostgresOutcomeStore(db *sql.DB) *PostgresOutcomeStore {
	return &PostgresOutcomeStore{db: db}
}

// Upsert writes one outcome row idempotently, keyed by recommendation_id
func (s *PostgresOutcomeStore) Upsert(ctx context.Context, o *RecommendationOutcome) error {
	query := `
		INSERT INTO recommendation_outcomes (` + outcomeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36, NOW(), NOW())
		ON CONFLICT (recommendation_id) DO UPDATE SET
			price_after_1day = EXCLUDED.price_after_1day,
			price_after_3day = EXCLUDED.price_after_3day,
			price_after_7day = EXCLUDED.price_after_7day,
			price_after_14day = EXCLUDED.price_after_14day,
			price_after_30day = EXCLUDED.price_after_30day,
			price_after_60day = EXCLUDED.price_after_60day,
			price_after_90day = EXCLUDED.price_after_90day,
			return_1day_pct = EXCLUDED.return_1day_pct,
			return_3day_pct = EXCLUDED.return_3day_pct,
			return_7day_pct = EXCLUDED.return_7day_pct,
			return_14day_pct = EXCLUDED.return_14day_pct,
			return_30day_pct = EXCLUDED.return_30day_pct,
			return_60day_pct = EXCLUDED.return_60day_pct,
			return_90day_pct = EXCLUDED.return_90day_pct,
			peak_price = EXCLUDED.peak_price,
			peak_date = EXCLUDED.peak_date,
			peak_return_pct = EXCLUDED.peak_return_pct,
			trough_price = EXCLUDED.trough_price,
			trough_date = EXCLUDED.trough_date,
			trough_return_pct = EXCLUDED.trough_return_pct,
			hit_target = EXCLUDED.hit_target,
			hit_stop_loss = EXCLUDED.hit_stop_loss,
			benchmark_return_30days_pct = EXCLUDED.benchmark_return_30days_pct,
			benchmark_return_90days_pct = EXCLUDED.benchmark_return_90days_pct,
			alpha_30days_pct = EXCLUDED.alpha_30days_pct,
			alpha_90days_pct = EXCLUDED.alpha_90days_pct,
			evaluation_status = EXCLUDED.evaluation_status,
			outcome_quality = EXCLUDED.outcome_quality,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, upsertArgs(o)...)
	if err != nil {
		return apperrors.NewPersistence(
			fmt.Sprintf("failed to upsert outcome %s", o.RecommendationID), err)
	}

	return nil
}

// Get returns the outcome for a recommendation, or nil when none exists
func (s *PostgresOutcomeStore) Get(ctx context.Context, recommendationID string) (*RecommendationOutcome, error) {
	query := `SELECT ` + outcomeColumns + `
		FROM recommendation_outcomes WHERE recommendation_id = $1`

	row := s.db.QueryRowContext(ctx, query, recommendationID)
	outcome, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome %s: %w", recommendationID, err)
	}
	return outcome, nil
}

// ListSince returns all outcomes recommended at or after the given time
func (s *PostgresOutcomeStore) ListSince(ctx context.Context, since time.Time) ([]*RecommendationOutcome, error) {
	query := `SELECT ` + outcomeColumns + `
		FROM recommendation_outcomes
		WHERE recommendation_date >= $1
		ORDER BY recommendation_date ASC`
	return s.list(ctx, query, since)
}

// ListActiveSince returns non-COMPLETED outcomes in the lookback window
func (s *PostgresOutcomeStore) ListActiveSince(ctx context.Context, since time.Time) ([]*RecommendationOutcome, error) {
	query := `SELECT ` + outcomeColumns + `
		FROM recommendation_outcomes
		WHERE recommendation_date >= $1 AND evaluation_status <> 'COMPLETED'
		ORDER BY recommendation_date ASC`
	return s.list(ctx, query, since)
}

// ListMissingAlpha returns outcomes with an observable horizon return whose
// benchmark snapshot has not been taken yet. Keyed per horizon: a row filled
// at 30 days comes back once its 90-day return lands.
func (s *PostgresOutcomeStore) ListMissingAlpha(ctx context.Context) ([]*RecommendationOutcome, error) {
	query := `SELECT ` + outcomeColumns + `
		FROM recommendation_outcomes
		WHERE (return_30day_pct IS NOT NULL AND benchmark_return_30days_pct IS NULL)
		   OR (return_90day_pct IS NOT NULL AND benchmark_return_90days_pct IS NULL)
		ORDER BY recommendation_date ASC`
	return s.list(ctx, query)
}

// ListRecent returns the newest outcomes, limited
func (s *PostgresOutcomeStore) ListRecent(ctx context.Context, limit int) ([]*RecommendationOutcome, error) {
	query := `SELECT ` + outcomeColumns + `
		FROM recommendation_outcomes
		ORDER BY recommendation_date DESC
		LIMIT $1`
	return s.list(ctx, query, limit)
}

func (s *PostgresOutcomeStore) list(ctx context.Context, query string, args ...interface{}) ([]*RecommendationOutcome, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*RecommendationOutcome
	for rows.Next() {
		outcome, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOutcome(row scanner) (*RecommendationOutcome, error) {
	var o RecommendationOutcome
	prices := make([]sql.NullFloat64, len(HorizonDays))
	returns := make([]sql.NullFloat64, len(HorizonDays))

	dest := []interface{}{
		&o.RecommendationID, &o.Ticker, &o.RecommendationDate, &o.Decision, &o.Confidence,
		&o.EntryPrice, &o.TargetPrice, &o.StopLossPrice,
	}
	for i := range prices {
		dest = append(dest, &prices[i])
	}
	for i := range returns {
		dest = append(dest, &returns[i])
	}
	dest = append(dest,
		&o.PeakPrice, &o.PeakDate, &o.PeakReturnPct,
		&o.TroughPrice, &o.TroughDate, &o.TroughReturnPct,
		&o.HitTarget, &o.HitStopLoss,
		&o.BenchmarkReturn30Pct, &o.BenchmarkReturn90Pct,
		&o.Alpha30Pct, &o.Alpha90Pct,
		&o.Status, &o.Quality, &o.CreatedAt, &o.UpdatedAt,
	)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	o.HorizonPrices = make(map[int]float64)
	o.HorizonReturns = make(map[int]float64)
	for i, days := range HorizonDays {
		if prices[i].Valid {
			o.HorizonPrices[days] = prices[i].Float64
		}
		if returns[i].Valid {
			o.HorizonReturns[days] = returns[i].Float64
		}
	}

	return &o, nil
}

// horizonValue converts a map entry to a nullable SQL parameter
func horizonValue(m map[int]float64, days int) interface{} {
	if v, ok := m[days]; ok {
		return v
	}
	return nil
}

// upsertArgs lays out an outcome's fields in outcomeColumns order, minus the
// two timestamps the query fills with NOW(). scanOutcome reads the same order
// back; the horizon loops keep both sides aligned with HorizonDays.
func upsertArgs(o *RecommendationOutcome) []interface{} {
	args := []interface{}{
		o.RecommendationID, o.Ticker, o.RecommendationDate, o.Decision, o.Confidence,
		o.EntryPrice, o.TargetPrice, o.StopLossPrice,
	}
	for _, days := range HorizonDays {
		args = append(args, horizonValue(o.HorizonPrices, days))
	}
	for _, days := range HorizonDays {
		args = append(args, horizonValue(o.HorizonReturns, days))
	}
	return append(args,
		o.PeakPrice, o.PeakDate, o.PeakReturnPct,
		o.TroughPrice, o.TroughDate, o.TroughReturnPct,
		o.HitTarget, o.HitStopLoss,
		o.BenchmarkReturn30Pct, o.BenchmarkReturn90Pct,
		o.Alpha30Pct, o.Alpha90Pct,
		o.Status, o.Quality,
	)
}

// PostgresRecommendationSource reads the recommendations table owned by the
// decision engine
type PostgresRecommendationSource struct {
	db *sql.DB
}

// NewPostgresRecommendationSource creates a new recommendation source
func NewPostgresRecommendationSource(db *sql.DB) *PostgresRecommendationSource {
	return &PostgresRecommendationSource{db: db}
}

// ListSince returns recommendations created at or after the given time
func (s *PostgresRecommendationSource) ListSince(ctx context.Context, since time.Time) ([]Recommendation, error) {
	query := `
		SELECT id, ticker, created_at, decision, confidence,
			entry_price, target_price, stop_loss_price, position_size_pct
		FROM recommendations
		WHERE created_at >= $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []Recommendation
	for rows.Next() {
		var rec Recommendation
		if err := rows.Scan(&rec.ID, &rec.Ticker, &rec.Date, &rec.Decision,
			&rec.Confidence, &rec.EntryPrice, &rec.TargetPrice,
			&rec.StopLossPrice, &rec.PositionSizePct); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}
