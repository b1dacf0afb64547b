package tracker

import (
	"time"

	"qeval/internal/decision"
)

// HorizonDays are the fixed elapsed-time checkpoints at which an outcome's
// return is measured
var HorizonDays = []int{1, 3, 7, 14, 30, 60, 90}

// completionAgeDays is the age at which tracking becomes terminal
const completionAgeDays = 90

// EvaluationStatus is the tracking state of an outcome row
type EvaluationStatus string

const (
	StatusPending   EvaluationStatus = "PENDING"
	StatusTracking  EvaluationStatus = "TRACKING"
	StatusCompleted EvaluationStatus = "COMPLETED"
)

// OutcomeQuality is the derived performance category of a recommendation
type OutcomeQuality string

const (
	QualityExcellent OutcomeQuality = "excellent"
	QualityGood      OutcomeQuality = "good"
	QualityNeutral   OutcomeQuality = "neutral"
	QualityPoor      OutcomeQuality = "poor"
	QualityFailed    OutcomeQuality = "failed"
	QualityUnknown   OutcomeQuality = ""
)

// Recommendation is a production recommendation emitted by the decision
// engine. The tracker only reads these; it never creates or mutates them.
type Recommendation struct {
	ID              string            `json:"id"`
	Ticker          string            `json:"ticker"`
	Date            time.Time         `json:"date"`
	Decision        decision.Decision `json:"decision"`
	Confidence      int               `json:"confidence"`
	EntryPrice      *float64          `json:"entry_price,omitempty"`
	TargetPrice     *float64          `json:"target_price,omitempty"`
	StopLossPrice   *float64          `json:"stop_loss_price,omitempty"`
	PositionSizePct *float64          `json:"position_size_pct,omitempty"`
}

// RecommendationOutcome is the audit-trail row tracking one production
// recommendation's realized performance. Created once, mutated only by the
// periodic refresh, never deleted.
type RecommendationOutcome struct {
	RecommendationID   string            `json:"recommendation_id"`
	Ticker             string            `json:"ticker"`
	RecommendationDate time.Time         `json:"recommendation_date"`
	Decision           decision.Decision `json:"decision"`
	Confidence         int               `json:"confidence"`
	EntryPrice         float64           `json:"entry_price"`
	TargetPrice        *float64          `json:"target_price,omitempty"`
	StopLossPrice      *float64          `json:"stop_loss_price,omitempty"`

	// Horizon observations, keyed by horizon days. A missing key means the
	// horizon is not yet observable.
	HorizonPrices  map[int]float64 `json:"horizon_prices,omitempty"`
	HorizonReturns map[int]float64 `json:"horizon_returns,omitempty"`

	PeakPrice       *float64   `json:"peak_price,omitempty"`
	PeakDate        *time.Time `json:"peak_date,omitempty"`
	PeakReturnPct   *float64   `json:"peak_return_pct,omitempty"`
	TroughPrice     *float64   `json:"trough_price,omitempty"`
	TroughDate      *time.Time `json:"trough_date,omitempty"`
	TroughReturnPct *float64   `json:"trough_return_pct,omitempty"`

	HitTarget   bool `json:"hit_target"`
	HitStopLoss bool `json:"hit_stop_loss"`

	BenchmarkReturn30Pct *float64 `json:"benchmark_return_30days_pct,omitempty"`
	BenchmarkReturn90Pct *float64 `json:"benchmark_return_90days_pct,omitempty"`
	Alpha30Pct           *float64 `json:"alpha_30days_pct,omitempty"`
	Alpha90Pct           *float64 `json:"alpha_90days_pct,omitempty"`

	Status  EvaluationStatus `json:"evaluation_status"`
	Quality OutcomeQuality   `json:"outcome_quality"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Return30 returns the 30-day return when populated
func (o *RecommendationOutcome) Return30() (float64, bool) {
	r, ok := o.HorizonReturns[30]
	return r, ok
}

// EqualObservations reports whether two rows carry identical observed data.
// Timestamps are excluded: a refresh that observed nothing new must leave the
// stored row untouched, so the tracker compares before writing.
func (o *RecommendationOutcome) EqualObservations(other *RecommendationOutcome) bool {
	if o.Status != other.Status || o.Quality != other.Quality ||
		o.HitTarget != other.HitTarget || o.HitStopLoss != other.HitStopLoss {
		return false
	}
	if !equalFloatMaps(o.HorizonPrices, other.HorizonPrices) ||
		!equalFloatMaps(o.HorizonReturns, other.HorizonReturns) {
		return false
	}
	return equalFloatPtr(o.PeakPrice, other.PeakPrice) &&
		equalTimePtr(o.PeakDate, other.PeakDate) &&
		equalFloatPtr(o.PeakReturnPct, other.PeakReturnPct) &&
		equalFloatPtr(o.TroughPrice, other.TroughPrice) &&
		equalTimePtr(o.TroughDate, other.TroughDate) &&
		equalFloatPtr(o.TroughReturnPct, other.TroughReturnPct) &&
		equalFloatPtr(o.BenchmarkReturn30Pct, other.BenchmarkReturn30Pct) &&
		equalFloatPtr(o.BenchmarkReturn90Pct, other.BenchmarkReturn90Pct) &&
		equalFloatPtr(o.Alpha30Pct, other.Alpha30Pct) &&
		equalFloatPtr(o.Alpha90Pct, other.Alpha90Pct)
}

func equalFloatMaps(a, b map[int]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// UpdateSummary reports the outcome of one batch pass. Failures on single
// rows never abort the pass; they are counted here instead.
type UpdateSummary struct {
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Issues    []string `json:"issues,omitempty"`
}
