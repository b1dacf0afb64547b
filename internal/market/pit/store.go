package pit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"qeval/internal/market"
)

// BarStore persists daily bars in Postgres so point-in-time queries stay
// reproducible when the provider is unreachable or has pruned old history
type BarStore struct {
	db *sql.DB
}

// NewBarStore creates a new bar store
func NewBarStore(db *sql.DB) *BarStore {
	return &BarStore{db: db}
}

// Upsert writes bars idempotently, keyed by (ticker, bar_date).
// Last write wins on conflict so corrected provider data replaces stale rows.
func (s *BarStore) Upsert(ctx context.Context, bars []market.Bar) error {
	query := `
		INSERT INTO market_bars (ticker, bar_date, open, high, low, close, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (ticker, bar_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	for _, bar := range bars {
		if _, err := s.db.ExecContext(ctx, query,
			bar.Ticker, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		); err != nil {
			return fmt.Errorf("failed to upsert bar %s/%s: %w",
				bar.Ticker, bar.Date.Format("2006-01-02"), err)
		}
	}

	return nil
}

// Query returns stored bars for [start, end], ordered by date ascending
func (s *BarStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]market.Bar, error) {
	query := `
		SELECT ticker, bar_date, open, high, low, close, volume
		FROM market_bars
		WHERE ticker = $1 AND bar_date BETWEEN $2 AND $3
		ORDER BY bar_date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var bar market.Bar
		if err := rows.Scan(&bar.Ticker, &bar.Date, &bar.Open, &bar.High,
			&bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, bar)
	}

	return bars, rows.Err()
}
