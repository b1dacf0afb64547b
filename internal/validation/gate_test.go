package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qeval/internal/backtest"
	"qeval/internal/clock"
	"qeval/internal/config"
	"qeval/internal/decision"
	"qeval/internal/logging"
	"qeval/internal/market/pit"
	"qeval/internal/testutils"
)

func newTestGate(gateway *testutils.FakeGateway, now time.Time) *Gate {
	cfg := config.BacktestConfig{HoldingPeriodDays: 30, MinConfidence: 70, PositionSizePct: 5}
	access := pit.NewAccess(gateway, nil, nil, nil, logging.NewNop())
	decide := decision.Func(func(ctx context.Context, input decision.Input) (*decision.Evaluation, error) {
		return &decision.Evaluation{FinalDecision: decision.DecisionBuy, ConfidenceScore: 90}, nil
	})
	sim := backtest.NewSimulator(access, decide, cfg, nil, logging.NewNop())
	return NewGate(sim, cfg, clock.NewFixed(now), logging.NewNop())
}

func TestValidateStrategyApproves(t *testing.T) {
	now := testutils.Day(2025, time.June, 2)

	gateway := testutils.NewFakeGateway()
	// Steady riser with history past the holding period, so every round trip
	// realizes roughly a 10% gain
	gateway.SetBars("AAPL", testutils.LinearBars("AAPL", now.AddDate(0, 0, -340), 400, 100, 1))

	gate := newTestGate(gateway, now)

	result, err := gate.ValidateStrategy(context.Background(), "steady-riser", []string{"AAPL"}, 30)
	require.NoError(t, err)

	assert.True(t, result.Validated)
	assert.Empty(t, result.Issues)
	assert.True(t, result.Checks.WinRateOK)
	assert.True(t, result.Checks.AvgReturnOK)
	assert.True(t, result.Checks.SharpeOK)
	assert.True(t, result.Checks.DrawdownOK)
	assert.Equal(t, now, result.ValidatedAt)
	require.NotNil(t, result.Backtest)
	assert.Greater(t, result.Backtest.Metrics.TotalTrades, 0)
}

func TestValidateStrategyRejectsLoser(t *testing.T) {
	now := testutils.Day(2025, time.June, 2)

	gateway := testutils.NewFakeGateway()
	gateway.SetBars("DECL", testutils.LinearBars("DECL", now.AddDate(0, 0, -340), 400, 400, -0.5))

	gate := newTestGate(gateway, now)

	result, err := gate.ValidateStrategy(context.Background(), "steady-decliner", []string{"DECL"}, 30)
	require.NoError(t, err)

	assert.False(t, result.Validated)
	assert.False(t, result.Checks.WinRateOK)
	assert.False(t, result.Checks.AvgReturnOK)
	assert.NotEmpty(t, result.Issues)
}

func TestValidateStrategyRejectsEmptyBacktest(t *testing.T) {
	now := testutils.Day(2025, time.June, 2)

	// No history at all: zero trades, every threshold unmet
	gate := newTestGate(testutils.NewFakeGateway(), now)

	result, err := gate.ValidateStrategy(context.Background(), "no-data", []string{"GHOST"}, 30)
	require.NoError(t, err)

	assert.False(t, result.Validated)
	assert.Zero(t, result.Backtest.Metrics.TotalTrades)
}

func TestValidateStrategyRejectsBadPeriod(t *testing.T) {
	gate := newTestGate(testutils.NewFakeGateway(), testutils.Day(2025, time.June, 2))

	_, err := gate.ValidateStrategy(context.Background(), "bad", []string{"AAPL"}, 0)
	assert.Error(t, err)
}
