package benchmark

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "qeval/internal/errors"
	"qeval/internal/market"
)

// PriceStore is the append-only, idempotently upserted cache of the
// reference index's daily prices
type PriceStore interface {
	Upsert(ctx context.Context, symbol string, bars []market.Bar) error
	PriceNear(ctx context.Context, symbol string, date time.Time, toleranceDays int) (float64, bool, error)
}

// PostgresPriceStore is the Postgres-backed PriceStore
type PostgresPriceStore struct {
	db *sql.DB
}

// NewPostgresPriceStore creates a new benchmark price store
func NewPostgresPriceStore(db *sql.DB) *PostgresPriceStore {
	return &PostgresPriceStore{db: db}
}

// Upsert writes daily bars keyed by (symbol, price_date), last write wins
func (s *PostgresPriceStore) Upsert(ctx context.Context, symbol string, bars []market.Bar) error {
	query := `
		INSERT INTO benchmark_prices (benchmark_symbol, price_date, open, high, low, close, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (benchmark_symbol, price_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	for _, bar := range bars {
		if _, err := s.db.ExecContext(ctx, query,
			symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		); err != nil {
			return apperrors.NewPersistence(
				fmt.Sprintf("failed to upsert benchmark price %s/%s",
					symbol, bar.Date.Format("2006-01-02")), err)
		}
	}

	return nil
}

// PriceNear returns the close of the session nearest to the given date,
// within the tolerance window. The boolean is false when no session exists.
func (s *PostgresPriceStore) PriceNear(ctx context.Context, symbol string, date time.Time, toleranceDays int) (float64, bool, error) {
	query := `
		SELECT close
		FROM benchmark_prices
		WHERE benchmark_symbol = $1
		  AND price_date BETWEEN $2 AND $3
		ORDER BY ABS(EXTRACT(EPOCH FROM (price_date::timestamp - $4::timestamp))) ASC
		LIMIT 1
	`

	start := date.AddDate(0, 0, -toleranceDays)
	end := date.AddDate(0, 0, toleranceDays)

	var price float64
	err := s.db.QueryRowContext(ctx, query, symbol, start, end, date).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query benchmark price near %s: %w",
			date.Format("2006-01-02"), err)
	}

	return price, true, nil
}
