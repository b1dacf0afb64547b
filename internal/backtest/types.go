package backtest

import (
	"time"

	"qeval/internal/decision"
)

// SimulatedTrade is one hypothetical round trip produced by the simulator.
// Trades are aggregated immediately and never persisted individually.
type SimulatedTrade struct {
	Ticker     string            `json:"ticker"`
	EntryDate  time.Time         `json:"entry_date"`
	EntryPrice float64           `json:"entry_price"`
	ExitDate   time.Time         `json:"exit_date"`
	ExitPrice  float64           `json:"exit_price"`
	ReturnPct  float64           `json:"return_pct"`
	Confidence int               `json:"confidence"`
	Decision   decision.Decision `json:"decision"`
}

// Skip records a ticker/date unit the simulator could not evaluate. The run
// continues past skips; callers inspect them to judge coverage.
type Skip struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// Metrics are the aggregate statistics over a set of returns
type Metrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgReturn     float64 `json:"avg_return"`
	TotalReturn   float64 `json:"total_return"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
}

// BacktestResult is the immutable outcome of one simulation run
type BacktestResult struct {
	StrategyName string           `json:"strategy_name"`
	StartDate    time.Time        `json:"start_date"`
	EndDate      time.Time        `json:"end_date"`
	Tickers      []string         `json:"tickers"`
	Trades       []SimulatedTrade `json:"trades"`
	Skipped      []Skip           `json:"skipped,omitempty"`
	Metrics      Metrics          `json:"metrics"`
}
