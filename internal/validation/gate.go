// Package validation gates strategy promotion: a strategy is approved for
// production only when its recent walk-forward performance clears every
// threshold.
package validation

import (
	"context"
	"fmt"
	"time"

	"qeval/internal/backtest"
	"qeval/internal/clock"
	"qeval/internal/config"
	apperrors "qeval/internal/errors"
	"qeval/internal/logging"
)

// Promotion thresholds. Deliberately fixed constants of the gate, not runtime
// configuration: loosening them should be a reviewed code change.
const (
	MinWinRate     = 55.0
	MinAvgReturn   = 5.0
	MinSharpe      = 0.5
	MaxDrawdownPct = 25.0
)

// Checks holds the per-threshold outcomes
type Checks struct {
	WinRateOK   bool `json:"win_rate_ok"`
	AvgReturnOK bool `json:"avg_return_ok"`
	SharpeOK    bool `json:"sharpe_ok"`
	DrawdownOK  bool `json:"drawdown_ok"`
}

// StrategyValidationResult is the gate's verdict for one strategy
type StrategyValidationResult struct {
	StrategyName string                   `json:"strategy_name"`
	Validated    bool                     `json:"validated"`
	Checks       Checks                   `json:"checks"`
	Issues       []string                 `json:"issues,omitempty"`
	Backtest     *backtest.BacktestResult `json:"backtest,omitempty"`
	ValidatedAt  time.Time                `json:"validated_at"`
}

// Gate validates strategies against the fixed promotion thresholds
type Gate struct {
	simulator *backtest.Simulator
	cfg       config.BacktestConfig
	clk       clock.Clock
	logger    *logging.Logger
}

// NewGate creates a strategy gate
func NewGate(simulator *backtest.Simulator, cfg config.BacktestConfig, clk clock.Clock, logger *logging.Logger) *Gate {
	return &Gate{
		simulator: simulator,
		cfg:       cfg,
		clk:       clk,
		logger:    logger,
	}
}

// ValidateStrategy simulates the strategy over the trailing test period and
// checks the aggregate metrics against every threshold
func (g *Gate) ValidateStrategy(ctx context.Context, strategyName string, testTickers []string, testPeriodDays int) (*StrategyValidationResult, error) {
	if testPeriodDays <= 0 {
		return nil, apperrors.NewInvalidConfig("test_period_days", "test period must be positive")
	}

	end := g.clk.Now()
	start := end.AddDate(0, 0, -testPeriodDays)

	result, err := g.simulator.TestStrategy(ctx, strategyName, start, end,
		testTickers, g.cfg.HoldingPeriodDays, int(g.cfg.MinConfidence))
	if err != nil {
		return nil, fmt.Errorf("validation backtest failed: %w", err)
	}

	status := &StrategyValidationResult{
		StrategyName: strategyName,
		Backtest:     result,
		ValidatedAt:  end,
	}

	m := result.Metrics
	status.Checks.WinRateOK = m.WinRate >= MinWinRate
	status.Checks.AvgReturnOK = m.AvgReturn >= MinAvgReturn
	status.Checks.SharpeOK = m.SharpeRatio >= MinSharpe
	status.Checks.DrawdownOK = m.MaxDrawdown <= MaxDrawdownPct

	if !status.Checks.WinRateOK {
		status.Issues = append(status.Issues,
			fmt.Sprintf("win rate %.1f%% below minimum %.1f%%", m.WinRate, MinWinRate))
	}
	if !status.Checks.AvgReturnOK {
		status.Issues = append(status.Issues,
			fmt.Sprintf("average return %.2f%% below minimum %.2f%%", m.AvgReturn, MinAvgReturn))
	}
	if !status.Checks.SharpeOK {
		status.Issues = append(status.Issues,
			fmt.Sprintf("sharpe ratio %.2f below minimum %.2f", m.SharpeRatio, MinSharpe))
	}
	if !status.Checks.DrawdownOK {
		status.Issues = append(status.Issues,
			fmt.Sprintf("max drawdown %.1f%% above limit %.1f%%", m.MaxDrawdown, MaxDrawdownPct))
	}

	status.Validated = status.Checks.WinRateOK && status.Checks.AvgReturnOK &&
		status.Checks.SharpeOK && status.Checks.DrawdownOK

	if status.Validated {
		g.logger.Infof("strategy %s validated for promotion", strategyName)
	} else {
		g.logger.Warnf("strategy %s rejected: %d issue(s)", strategyName, len(status.Issues))
	}

	return status, nil
}
