package decision

import (
	"context"

	"qeval/internal/indicator"
)

// Baseline price levels relative to entry
const (
	baselineTargetPct   = 15.0
	baselineStopLossPct = 8.0
)

// Baseline is a rule-based momentum strategy used to exercise the simulator
// and validation gate without the external recommendation engine. Signals are
// derived from the indicator bundle only.
type Baseline struct{}

// NewBaseline creates the baseline strategy
func NewBaseline() *Baseline {
	return &Baseline{}
}

// Evaluate scores trend, momentum, and RSI and maps the total to a decision
func (b *Baseline) Evaluate(ctx context.Context, input Input) (*Evaluation, error) {
	t := input.Technicals

	score := 50
	score += trendScore(t)
	score += momentumScore(t)
	score += rsiScore(t)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	eval := &Evaluation{
		FinalDecision:   DecisionWait,
		ConfidenceScore: score,
	}

	switch {
	case score >= 70:
		eval.FinalDecision = DecisionBuy
		eval.TargetPrice = input.Price.Price * (1 + baselineTargetPct/100)
		eval.StopLossPrice = input.Price.Price * (1 - baselineStopLossPct/100)
	case score <= 30:
		eval.FinalDecision = DecisionSell
	}

	return eval, nil
}

func trendScore(t indicator.Bundle) int {
	score := 0
	if t.Close > t.SMA20 {
		score += 10
	}
	if t.SMA20 > t.SMA50 {
		score += 10
	}
	if t.EMA12 > t.EMA26 {
		score += 5
	}
	return score
}

func momentumScore(t indicator.Bundle) int {
	switch {
	case t.Momentum20Pct >= 10:
		return 15
	case t.Momentum20Pct >= 3:
		return 10
	case t.Momentum20Pct <= -10:
		return -20
	case t.Momentum20Pct <= -3:
		return -10
	default:
		return 0
	}
}

// rsiScore penalizes overbought and rewards neutral-to-oversold readings
func rsiScore(t indicator.Bundle) int {
	switch {
	case t.RSI14 >= 75:
		return -15
	case t.RSI14 >= 60:
		return -5
	case t.RSI14 <= 30:
		return 10
	default:
		return 5
	}
}
