// Package decision defines the boundary to the recommendation engine. The
// engine itself (an LLM-driven multi-signal framework) lives outside this
// repository; the simulator and tracker only depend on this contract.
package decision

import (
	"context"

	"qeval/internal/indicator"
	"qeval/internal/market"
)

// Decision is the final recommendation for a ticker
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionWait Decision = "WAIT"
	DecisionSell Decision = "SELL"
)

// PriceContext is the price situation at decision time
type PriceContext struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

// RiskContext carries portfolio-level constraints handed to the engine
type RiskContext struct {
	PositionSizePct float64 `json:"position_size_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
}

// Input bundles everything the engine may consider. All market-derived
// fields must be computed from data timestamped at or before the decision
// date; assembling Input is the caller's anti-lookahead responsibility.
type Input struct {
	Fundamentals market.Fundamentals `json:"fundamentals"`
	Technicals   indicator.Bundle    `json:"technicals"`
	Price        PriceContext        `json:"price"`
	Risk         RiskContext         `json:"risk"`
}

// Evaluation is the engine's verdict
type Evaluation struct {
	FinalDecision   Decision `json:"final_decision"`
	ConfidenceScore int      `json:"confidence_score"` // 0-100
	TargetPrice     float64  `json:"target_price,omitempty"`
	StopLossPrice   float64  `json:"stop_loss_price,omitempty"`
}

// Function evaluates a single ticker on a single date
type Function interface {
	Evaluate(ctx context.Context, input Input) (*Evaluation, error)
}

// Func adapts a plain function to the Function interface
type Func func(ctx context.Context, input Input) (*Evaluation, error)

// Evaluate implements Function
func (f Func) Evaluate(ctx context.Context, input Input) (*Evaluation, error) {
	return f(ctx, input)
}
