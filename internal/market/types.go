package market

import (
	"context"
	"time"
)

// Bar represents one daily OHLCV bar
type Bar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Fundamentals maps metric names to values as reported for a ticker.
// An empty map means the provider has no fundamentals for the ticker.
type Fundamentals map[string]float64

// Gateway supplies historical bars and fundamentals for a ticker.
// Implementations must return bars ordered by date ascending.
type Gateway interface {
	History(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)
	FundamentalsAsOf(ctx context.Context, ticker string, date time.Time) (Fundamentals, error)
}
