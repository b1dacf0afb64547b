package backtest

import (
	"context"
	"errors"
	"strings"
	"time"

	"qeval/internal/config"
	"qeval/internal/decision"
	apperrors "qeval/internal/errors"
	"qeval/internal/logging"
	"qeval/internal/market/pit"
)

// MetricsRecorder receives simulation observations. Implemented by
// monitor.MetricsCollector; nil disables collection.
type MetricsRecorder interface {
	RecordBacktest(duration time.Duration, trades int)
	RecordBacktestSkip(reason string)
}

// Simulator walks an as-of date forward through history, evaluating the
// decision function on each trading day with only the data available up to
// that day, and records the hypothetical trades BUY signals would have opened.
type Simulator struct {
	data    *pit.Access
	decide  decision.Function
	cfg     config.BacktestConfig
	metrics MetricsRecorder
	logger  *logging.Logger
}

// NewSimulator creates a walk-forward simulator. metrics may be nil.
func NewSimulator(data *pit.Access, decide decision.Function, cfg config.BacktestConfig, metrics MetricsRecorder, logger *logging.Logger) *Simulator {
	return &Simulator{
		data:    data,
		decide:  decide,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// TestStrategy simulates the strategy over [start, end] for the ticker
// universe. Per-ticker-per-date failures are recorded and skipped; the run
// only fails on malformed inputs.
func (s *Simulator) TestStrategy(ctx context.Context, strategyName string, start, end time.Time, tickers []string, holdingPeriodDays int, minConfidence int) (*BacktestResult, error) {
	if end.Before(start) {
		return nil, apperrors.NewInvalidConfig("date_range", "end date before start date")
	}
	if holdingPeriodDays <= 0 {
		return nil, apperrors.NewInvalidConfig("holding_period_days", "holding period must be positive")
	}
	if minConfidence < 0 || minConfidence > 100 {
		return nil, apperrors.NewInvalidConfig("min_confidence", "confidence floor must be within [0, 100]")
	}

	result := &BacktestResult{
		StrategyName: strategyName,
		StartDate:    start,
		EndDate:      end,
		Tickers:      tickers,
		Trades:       make([]SimulatedTrade, 0),
	}

	log := s.logger.WithField("strategy", strategyName)
	log.Infof("walk-forward simulation: %s .. %s over %d tickers",
		start.Format("2006-01-02"), end.Format("2006-01-02"), len(tickers))

	started := time.Now()

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, ticker := range tickers {
			trade, err := s.evaluateDay(ctx, ticker, day, holdingPeriodDays, minConfidence)
			if err != nil {
				result.Skipped = append(result.Skipped, Skip{
					Ticker: ticker,
					Date:   day,
					Reason: err.Error(),
				})
				if s.metrics != nil {
					s.metrics.RecordBacktestSkip(skipReason(err))
				}
				log.WithField("ticker", ticker).
					Debugf("skipping %s: %v", day.Format("2006-01-02"), err)
				continue
			}
			if trade != nil {
				result.Trades = append(result.Trades, *trade)
			}
		}
	}

	result.Metrics = AggregateTrades(result.Trades)

	if s.metrics != nil {
		s.metrics.RecordBacktest(time.Since(started), result.Metrics.TotalTrades)
	}

	log.Infof("simulation complete: %d trades, %d skipped, win rate %.1f%%",
		result.Metrics.TotalTrades, len(result.Skipped), result.Metrics.WinRate)

	return result, nil
}

// skipReason maps a per-ticker-day failure to a low-cardinality metric label
func skipReason(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(string(appErr.Code))
	}
	return "error"
}

// evaluateDay evaluates one ticker on one test date. Returns (nil, nil) when
// the decision is not an actionable BUY.
func (s *Simulator) evaluateDay(ctx context.Context, ticker string, day time.Time, holdingPeriodDays, minConfidence int) (*SimulatedTrade, error) {
	technicals, ok, err := s.data.IndicatorsAsOf(ctx, ticker, day)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewDataUnavailable(ticker, day, nil).
			WithDetails("insufficient history for indicators")
	}

	// Entry price: the test date's session, or the latest session before it
	entryPrice, found, err := s.data.PriceAsOf(ctx, ticker, day)
	if err != nil {
		return nil, err
	}
	if !found || entryPrice <= 0 {
		return nil, apperrors.NewDataUnavailable(ticker, day, nil).
			WithDetails("no price at or before test date")
	}

	fundamentals, err := s.data.FundamentalsAsOf(ctx, ticker, day)
	if err != nil {
		// Fundamentals are optional input; technicals still carry the decision
		s.logger.WithField("ticker", ticker).
			Debugf("fundamentals unavailable on %s: %v", day.Format("2006-01-02"), err)
		fundamentals = nil
	}

	eval, err := s.decide.Evaluate(ctx, decision.Input{
		Fundamentals: fundamentals,
		Technicals:   technicals,
		Price:        decision.PriceContext{Ticker: ticker, Price: entryPrice},
		Risk:         decision.RiskContext{PositionSizePct: s.cfg.PositionSizePct},
	})
	if err != nil {
		return nil, err
	}

	if eval.FinalDecision != decision.DecisionBuy || eval.ConfidenceScore < minConfidence {
		return nil, nil
	}

	exitDate := day.AddDate(0, 0, holdingPeriodDays)
	exitPrice := s.exitPrice(ctx, ticker, exitDate, entryPrice)

	return &SimulatedTrade{
		Ticker:     ticker,
		EntryDate:  day,
		EntryPrice: entryPrice,
		ExitDate:   exitDate,
		ExitPrice:  exitPrice,
		ReturnPct:  (exitPrice - entryPrice) / entryPrice * 100,
		Confidence: eval.ConfidenceScore,
		Decision:   eval.FinalDecision,
	}, nil
}

// exitPrice resolves the closing price for the exit date: exact session if it
// traded, else the latest session at or before it, else the entry price. A
// missing exit price must never abort the run.
func (s *Simulator) exitPrice(ctx context.Context, ticker string, exitDate time.Time, entryPrice float64) float64 {
	price, found, err := s.data.PriceAsOf(ctx, ticker, exitDate)
	if err != nil || !found || price <= 0 {
		s.logger.WithField("ticker", ticker).
			Warnf("no exit price at or before %s, falling back to entry price",
				exitDate.Format("2006-01-02"))
		return entryPrice
	}
	return price
}
