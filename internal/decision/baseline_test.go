package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qeval/internal/indicator"
)

func evaluate(t *testing.T, technicals indicator.Bundle, price float64) *Evaluation {
	t.Helper()
	eval, err := NewBaseline().Evaluate(context.Background(), Input{
		Technicals: technicals,
		Price:      PriceContext{Ticker: "ACME", Price: price},
	})
	require.NoError(t, err)
	return eval
}

func TestBaselineEvaluate(t *testing.T) {
	t.Run("strong uptrend buys", func(t *testing.T) {
		// Trend 25 + momentum 15 + RSI 5 puts the score at 95
		eval := evaluate(t, indicator.Bundle{
			Close: 120, SMA20: 110, SMA50: 100,
			EMA12: 115, EMA26: 105,
			Momentum20Pct: 12, RSI14: 55,
		}, 120)

		assert.Equal(t, DecisionBuy, eval.FinalDecision)
		assert.Equal(t, 95, eval.ConfidenceScore)
		assert.InDelta(t, 138.0, eval.TargetPrice, 1e-9)
		assert.InDelta(t, 110.4, eval.StopLossPrice, 1e-9)
	})

	t.Run("overbought uptrend waits", func(t *testing.T) {
		eval := evaluate(t, indicator.Bundle{
			Close: 120, SMA20: 110, SMA50: 100,
			EMA12: 115, EMA26: 105,
			Momentum20Pct: 2, RSI14: 80,
		}, 120)

		assert.Equal(t, DecisionWait, eval.FinalDecision)
		assert.Equal(t, 60, eval.ConfidenceScore)
		assert.Zero(t, eval.TargetPrice)
	})

	t.Run("collapsing momentum sells", func(t *testing.T) {
		eval := evaluate(t, indicator.Bundle{
			Close: 80, SMA20: 90, SMA50: 100,
			EMA12: 85, EMA26: 95,
			Momentum20Pct: -15, RSI14: 65,
		}, 80)

		assert.Equal(t, DecisionSell, eval.FinalDecision)
		assert.Equal(t, 25, eval.ConfidenceScore)
	})

	t.Run("score is clamped", func(t *testing.T) {
		eval := evaluate(t, indicator.Bundle{
			Close: 50, SMA20: 90, SMA50: 100,
			EMA12: 85, EMA26: 95,
			Momentum20Pct: -30, RSI14: 65,
		}, 50)

		assert.GreaterOrEqual(t, eval.ConfidenceScore, 0)
		assert.LessOrEqual(t, eval.ConfidenceScore, 100)
	})
}
