// Package report aggregates persisted recommendation outcomes into
// performance summaries. Pure query and formatting; nothing here mutates.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"qeval/internal/clock"
	"qeval/internal/decision"
	apperrors "qeval/internal/errors"
	"qeval/internal/logging"
	"qeval/internal/tracker"
)

// ConfidenceBucket is performance aggregated over one confidence range
type ConfidenceBucket struct {
	Low       int     `json:"low"`
	High      int     `json:"high"`
	Count     int     `json:"count"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	AvgReturn float64 `json:"avg_return_30d"`
}

// Performer is one ticker's realized 30-day result
type Performer struct {
	RecommendationID string    `json:"recommendation_id"`
	Ticker           string    `json:"ticker"`
	Date             time.Time `json:"date"`
	Confidence       int       `json:"confidence"`
	Return30Pct      float64   `json:"return_30d_pct"`
}

// Stats is the overall outcome summary for a period
type Stats struct {
	PeriodDays       int                               `json:"period_days"`
	TotalOutcomes    int                               `json:"total_outcomes"`
	ByDecision       map[decision.Decision]int         `json:"by_decision"`
	Evaluated        int                               `json:"evaluated"` // 30-day return observed
	Wins             int                               `json:"wins"`
	Losses           int                               `json:"losses"`
	WinRate          float64                           `json:"win_rate"`
	AvgReturn30      float64                           `json:"avg_return_30d"`
	BestReturn30     float64                           `json:"best_return_30d"`
	WorstReturn30    float64                           `json:"worst_return_30d"`
	AvgBenchmark30   float64                           `json:"avg_benchmark_return_30d"`
	AvgAlpha30       float64                           `json:"avg_alpha_30d"`
	AlphaSamples     int                               `json:"alpha_samples"`
	QualityHistogram map[tracker.OutcomeQuality]int    `json:"quality_histogram"`
	Buckets          []ConfidenceBucket                `json:"confidence_buckets"`
	ByStatus         map[tracker.EvaluationStatus]int  `json:"by_status"`
}

// Reporter aggregates persisted outcomes
type Reporter struct {
	store  tracker.OutcomeStore
	clk    clock.Clock
	logger *logging.Logger
}

// NewReporter creates a performance reporter
func NewReporter(store tracker.OutcomeStore, clk clock.Clock, logger *logging.Logger) *Reporter {
	return &Reporter{
		store:  store,
		clk:    clk,
		logger: logger,
	}
}

// Stats computes the overall summary for the trailing period
func (r *Reporter) Stats(ctx context.Context, periodDays int) (*Stats, error) {
	outcomes, err := r.load(ctx, periodDays)
	if err != nil {
		return nil, err
	}
	return computeStats(outcomes, periodDays), nil
}

// TopPerformers returns the best n outcomes by 30-day return
func (r *Reporter) TopPerformers(ctx context.Context, periodDays, n int) ([]Performer, error) {
	outcomes, err := r.load(ctx, periodDays)
	if err != nil {
		return nil, err
	}
	performers := evaluatedPerformers(outcomes)
	sort.Slice(performers, func(i, j int) bool {
		return performers[i].Return30Pct > performers[j].Return30Pct
	})
	return clip(performers, n), nil
}

// BottomPerformers returns the worst n outcomes by 30-day return
func (r *Reporter) BottomPerformers(ctx context.Context, periodDays, n int) ([]Performer, error) {
	outcomes, err := r.load(ctx, periodDays)
	if err != nil {
		return nil, err
	}
	performers := evaluatedPerformers(outcomes)
	sort.Slice(performers, func(i, j int) bool {
		return performers[i].Return30Pct < performers[j].Return30Pct
	})
	return clip(performers, n), nil
}

// Recent returns the newest outcome rows
func (r *Reporter) Recent(ctx context.Context, limit int) ([]*tracker.RecommendationOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.store.ListRecent(ctx, limit)
}

// TextReport renders the combined plain-text report for the period
func (r *Reporter) TextReport(ctx context.Context, periodDays int) (string, error) {
	outcomes, err := r.load(ctx, periodDays)
	if err != nil {
		return "", err
	}
	stats := computeStats(outcomes, periodDays)

	performers := evaluatedPerformers(outcomes)
	sort.Slice(performers, func(i, j int) bool {
		return performers[i].Return30Pct > performers[j].Return30Pct
	})
	top := clip(performers, 5)
	bottom := clip(reversed(performers), 5)

	var b strings.Builder
	fmt.Fprintf(&b, "RECOMMENDATION PERFORMANCE REPORT (last %d days)\n", periodDays)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.clk.Now().Format("2006-01-02 15:04 MST"))

	fmt.Fprintf(&b, "Outcomes tracked: %d (evaluated at 30d: %d)\n", stats.TotalOutcomes, stats.Evaluated)
	for _, d := range []decision.Decision{decision.DecisionBuy, decision.DecisionWait, decision.DecisionSell} {
		if count := stats.ByDecision[d]; count > 0 {
			fmt.Fprintf(&b, "  %-4s %d\n", d, count)
		}
	}
	b.WriteString("\n")

	if stats.Evaluated > 0 {
		fmt.Fprintf(&b, "Win rate:        %.1f%% (%d wins / %d losses)\n", stats.WinRate, stats.Wins, stats.Losses)
		fmt.Fprintf(&b, "Avg 30d return:  %+.2f%%\n", stats.AvgReturn30)
		fmt.Fprintf(&b, "Best / worst:    %+.2f%% / %+.2f%%\n", stats.BestReturn30, stats.WorstReturn30)
		if stats.AlphaSamples > 0 {
			fmt.Fprintf(&b, "Benchmark 30d:   %+.2f%% avg, alpha %+.2f%% avg (%d samples)\n",
				stats.AvgBenchmark30, stats.AvgAlpha30, stats.AlphaSamples)
		}
		b.WriteString("\n")

		b.WriteString("By confidence:\n")
		for _, bucket := range stats.Buckets {
			if bucket.Count == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %3d-%-3d  %3d outcomes  win rate %5.1f%%  avg %+.2f%%\n",
				bucket.Low, bucket.High, bucket.Count, bucket.WinRate, bucket.AvgReturn)
		}
		b.WriteString("\n")

		b.WriteString("Outcome quality:\n")
		for _, q := range []tracker.OutcomeQuality{
			tracker.QualityExcellent, tracker.QualityGood, tracker.QualityNeutral,
			tracker.QualityPoor, tracker.QualityFailed,
		} {
			if count := stats.QualityHistogram[q]; count > 0 {
				fmt.Fprintf(&b, "  %-10s %d\n", q, count)
			}
		}
		b.WriteString("\n")

		writePerformers(&b, "Top performers (30d):", top)
		writePerformers(&b, "Bottom performers (30d):", bottom)
	} else {
		b.WriteString("No outcomes with an observable 30-day return in this period.\n")
	}

	return b.String(), nil
}

func (r *Reporter) load(ctx context.Context, periodDays int) ([]*tracker.RecommendationOutcome, error) {
	if periodDays <= 0 {
		return nil, apperrors.NewInvalidConfig("period_days", "period must be positive")
	}
	since := r.clk.Now().AddDate(0, 0, -periodDays)
	return r.store.ListSince(ctx, since)
}

func computeStats(outcomes []*tracker.RecommendationOutcome, periodDays int) *Stats {
	stats := &Stats{
		PeriodDays:       periodDays,
		TotalOutcomes:    len(outcomes),
		ByDecision:       make(map[decision.Decision]int),
		ByStatus:         make(map[tracker.EvaluationStatus]int),
		QualityHistogram: make(map[tracker.OutcomeQuality]int),
	}

	// 90-100, 80-89, ..., 0-9
	buckets := make([]ConfidenceBucket, 0, 10)
	buckets = append(buckets, ConfidenceBucket{Low: 90, High: 100})
	for low := 80; low >= 0; low -= 10 {
		buckets = append(buckets, ConfidenceBucket{Low: low, High: low + 9})
	}

	var sumReturn, sumBench, sumAlpha float64
	for _, o := range outcomes {
		stats.ByDecision[o.Decision]++
		stats.ByStatus[o.Status]++
		if o.Quality != tracker.QualityUnknown {
			stats.QualityHistogram[o.Quality]++
		}

		ret, ok := o.Return30()
		if !ok {
			continue
		}
		stats.Evaluated++
		sumReturn += ret
		if ret > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
		if stats.Evaluated == 1 || ret > stats.BestReturn30 {
			stats.BestReturn30 = ret
		}
		if stats.Evaluated == 1 || ret < stats.WorstReturn30 {
			stats.WorstReturn30 = ret
		}

		if o.BenchmarkReturn30Pct != nil && o.Alpha30Pct != nil {
			stats.AlphaSamples++
			sumBench += *o.BenchmarkReturn30Pct
			sumAlpha += *o.Alpha30Pct
		}

		for i := range buckets {
			if o.Confidence >= buckets[i].Low && o.Confidence <= buckets[i].High {
				buckets[i].Count++
				buckets[i].AvgReturn += ret
				if ret > 0 {
					buckets[i].Wins++
				}
				break
			}
		}
	}

	if stats.Evaluated > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Evaluated) * 100
		stats.AvgReturn30 = sumReturn / float64(stats.Evaluated)
	}
	if stats.AlphaSamples > 0 {
		stats.AvgBenchmark30 = sumBench / float64(stats.AlphaSamples)
		stats.AvgAlpha30 = sumAlpha / float64(stats.AlphaSamples)
	}
	for i := range buckets {
		if buckets[i].Count > 0 {
			buckets[i].WinRate = float64(buckets[i].Wins) / float64(buckets[i].Count) * 100
			buckets[i].AvgReturn /= float64(buckets[i].Count)
		}
	}
	stats.Buckets = buckets

	return stats
}

func evaluatedPerformers(outcomes []*tracker.RecommendationOutcome) []Performer {
	performers := make([]Performer, 0, len(outcomes))
	for _, o := range outcomes {
		ret, ok := o.Return30()
		if !ok {
			continue
		}
		performers = append(performers, Performer{
			RecommendationID: o.RecommendationID,
			Ticker:           o.Ticker,
			Date:             o.RecommendationDate,
			Confidence:       o.Confidence,
			Return30Pct:      ret,
		})
	}
	return performers
}

func writePerformers(b *strings.Builder, title string, performers []Performer) {
	if len(performers) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for _, p := range performers {
		fmt.Fprintf(b, "  %-6s %s  conf %3d  %+.2f%%\n",
			p.Ticker, p.Date.Format("2006-01-02"), p.Confidence, p.Return30Pct)
	}
	b.WriteString("\n")
}

func clip(performers []Performer, n int) []Performer {
	if n <= 0 || n > len(performers) {
		n = len(performers)
	}
	return performers[:n]
}

func reversed(performers []Performer) []Performer {
	out := make([]Performer, len(performers))
	for i, p := range performers {
		out[len(performers)-1-i] = p
	}
	return out
}
