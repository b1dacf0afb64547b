// Package monitor exposes Prometheus metrics for batch jobs, data fetches,
// and the HTTP API.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector collects evaluation pipeline metrics
type MetricsCollector struct {
	// Batch job metrics
	jobDuration *prometheus.HistogramVec
	jobRuns     *prometheus.CounterVec
	jobFailures *prometheus.CounterVec

	// Outcome tracking metrics
	outcomesProcessed *prometheus.CounterVec
	outcomesUpdated   *prometheus.CounterVec
	outcomesFailed    *prometheus.CounterVec

	// Backtest metrics
	backtestDuration prometheus.Histogram
	backtestTrades   prometheus.Counter
	backtestSkips    *prometheus.CounterVec

	// Market data metrics
	fetchLatency        *prometheus.HistogramVec
	fetchErrors         *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	lookaheadViolations prometheus.Counter

	// API metrics
	apiRequestsTotal *prometheus.CounterVec
	apiResponseTime  *prometheus.HistogramVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qeval_job_duration_seconds",
			Help:    "Batch job execution time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"job"}),

		jobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_job_runs_total",
			Help: "Batch job executions",
		}, []string{"job"}),

		jobFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_job_failures_total",
			Help: "Batch job executions that returned an error",
		}, []string{"job"}),

		outcomesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_outcomes_processed_total",
			Help: "Outcome rows examined by tracking jobs",
		}, []string{"job"}),

		outcomesUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_outcomes_updated_total",
			Help: "Outcome rows written by tracking jobs",
		}, []string{"job"}),

		outcomesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_outcomes_failed_total",
			Help: "Outcome rows that failed to refresh",
		}, []string{"job"}),

		backtestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "qeval_backtest_duration_seconds",
			Help:    "Walk-forward simulation execution time",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		backtestTrades: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qeval_backtest_trades_total",
			Help: "Simulated trades produced by backtests",
		}),

		backtestSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_backtest_skips_total",
			Help: "Ticker-days skipped during backtests",
		}, []string{"reason"}),

		fetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qeval_market_fetch_latency_seconds",
			Help:    "Market data provider request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		fetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_market_fetch_errors_total",
			Help: "Failed market data provider requests",
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_cache_requests_total",
			Help: "Point-in-time cache lookups by result",
		}, []string{"result"}),

		lookaheadViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qeval_lookahead_violations_total",
			Help: "Bars or inputs dated after their as-of date",
		}),

		apiRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qeval_api_requests_total",
			Help: "HTTP API requests",
		}, []string{"method", "path", "status"}),

		apiResponseTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qeval_api_response_seconds",
			Help:    "HTTP API response time",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// RecordJob records one batch job execution
func (mc *MetricsCollector) RecordJob(job string, duration time.Duration, err error) {
	mc.jobRuns.WithLabelValues(job).Inc()
	mc.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		mc.jobFailures.WithLabelValues(job).Inc()
	}
}

// RecordOutcomes records per-row counters from a tracking job summary
func (mc *MetricsCollector) RecordOutcomes(job string, processed, updated, failed int) {
	mc.outcomesProcessed.WithLabelValues(job).Add(float64(processed))
	mc.outcomesUpdated.WithLabelValues(job).Add(float64(updated))
	mc.outcomesFailed.WithLabelValues(job).Add(float64(failed))
}

// RecordBacktest records one simulation run
func (mc *MetricsCollector) RecordBacktest(duration time.Duration, trades int) {
	mc.backtestDuration.Observe(duration.Seconds())
	mc.backtestTrades.Add(float64(trades))
}

// RecordBacktestSkip records one skipped ticker-day
func (mc *MetricsCollector) RecordBacktestSkip(reason string) {
	mc.backtestSkips.WithLabelValues(reason).Inc()
}

// RecordFetch records one market data provider request
func (mc *MetricsCollector) RecordFetch(endpoint string, duration time.Duration, err error) {
	mc.fetchLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
	if err != nil {
		mc.fetchErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordCache records one point-in-time cache lookup
func (mc *MetricsCollector) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	mc.cacheHits.WithLabelValues(result).Inc()
}

// RecordLookaheadViolation records one tripped lookahead guard
func (mc *MetricsCollector) RecordLookaheadViolation() {
	mc.lookaheadViolations.Inc()
}

// RecordAPIRequest records one HTTP request
func (mc *MetricsCollector) RecordAPIRequest(method, path, status string, duration time.Duration) {
	mc.apiRequestsTotal.WithLabelValues(method, path, status).Inc()
	mc.apiResponseTime.WithLabelValues(method, path).Observe(duration.Seconds())
}
