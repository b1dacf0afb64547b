// Package job bundles the batch entry points shared by the CLI subcommands
// and the scheduler.
package job

import (
	"context"
	"time"

	"qeval/internal/benchmark"
	"qeval/internal/logging"
	"qeval/internal/monitor"
	"qeval/internal/report"
	"qeval/internal/tracker"
)

// Runner executes the recurring evaluation jobs
type Runner struct {
	tracker    *tracker.Tracker
	comparator *benchmark.Comparator
	reporter   *report.Reporter
	metrics    *monitor.MetricsCollector
	logger     *logging.Logger
}

// NewRunner creates a job runner. metrics may be nil when the caller does not
// export them.
func NewRunner(trk *tracker.Tracker, cmp *benchmark.Comparator, rep *report.Reporter, metrics *monitor.MetricsCollector, logger *logging.Logger) *Runner {
	return &Runner{
		tracker:    trk,
		comparator: cmp,
		reporter:   rep,
		metrics:    metrics,
		logger:     logger,
	}
}

// Backfill creates outcome rows for recommendations missing one
func (r *Runner) Backfill(ctx context.Context, daysBack int) (*tracker.UpdateSummary, error) {
	start := time.Now()
	summary, err := r.tracker.Backfill(ctx, daysBack)
	r.record("backfill", start, summary, err)
	return summary, err
}

// Update refreshes active outcomes, then the benchmark cache, then alpha.
// Benchmark and alpha failures are logged but do not fail the outcome
// refresh that already happened.
func (r *Runner) Update(ctx context.Context, daysBack int) (*tracker.UpdateSummary, error) {
	start := time.Now()
	summary, err := r.tracker.UpdateOutcomes(ctx, daysBack)
	r.record("update", start, summary, err)
	if err != nil {
		return nil, err
	}

	if _, err := r.UpdateBenchmark(ctx, daysBack); err != nil {
		r.logger.Warnf("benchmark update failed: %v", err)
	} else if _, err := r.CalculateAlpha(ctx); err != nil {
		r.logger.Warnf("alpha calculation failed: %v", err)
	}

	return summary, nil
}

// UpdateBenchmark refreshes the reference index price cache
func (r *Runner) UpdateBenchmark(ctx context.Context, daysBack int) (int, error) {
	start := time.Now()
	rows, err := r.comparator.UpdateBenchmark(ctx, daysBack)
	r.record("benchmark", start, nil, err)
	return rows, err
}

// CalculateAlpha fills alpha on outcomes that have a 30-day return and no
// benchmark snapshot yet
func (r *Runner) CalculateAlpha(ctx context.Context) (*tracker.UpdateSummary, error) {
	start := time.Now()
	summary, err := r.comparator.CalculateAlpha(ctx)
	r.record("alpha", start, summary, err)
	return summary, err
}

// Report renders the plain-text performance report for the trailing period
func (r *Runner) Report(ctx context.Context, periodDays int) (string, error) {
	start := time.Now()
	text, err := r.reporter.TextReport(ctx, periodDays)
	r.record("report", start, nil, err)
	return text, err
}

// Stats computes the overall performance summary
func (r *Runner) Stats(ctx context.Context, periodDays int) (*report.Stats, error) {
	return r.reporter.Stats(ctx, periodDays)
}

// Recent returns the newest outcome rows
func (r *Runner) Recent(ctx context.Context, limit int) ([]*tracker.RecommendationOutcome, error) {
	return r.reporter.Recent(ctx, limit)
}

func (r *Runner) record(name string, start time.Time, summary *tracker.UpdateSummary, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordJob(name, time.Since(start), err)
	if summary != nil {
		r.metrics.RecordOutcomes(name, summary.Processed, summary.Updated, summary.Failed)
	}
}
