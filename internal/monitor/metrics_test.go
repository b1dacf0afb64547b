package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// promauto registers against the default registry, so the collector is built
// exactly once for the whole test binary
var mc = NewMetricsCollector()

func TestRecordJob(t *testing.T) {
	mc.RecordJob("update", 2*time.Second, nil)
	mc.RecordJob("update", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.jobRuns.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.jobFailures.WithLabelValues("update")))
}

func TestRecordOutcomes(t *testing.T) {
	mc.RecordOutcomes("backfill", 10, 7, 2)

	assert.Equal(t, 10.0, testutil.ToFloat64(mc.outcomesProcessed.WithLabelValues("backfill")))
	assert.Equal(t, 7.0, testutil.ToFloat64(mc.outcomesUpdated.WithLabelValues("backfill")))
	assert.Equal(t, 2.0, testutil.ToFloat64(mc.outcomesFailed.WithLabelValues("backfill")))
}

func TestRecordBacktest(t *testing.T) {
	mc.RecordBacktest(3*time.Second, 12)
	mc.RecordBacktestSkip("data_unavailable")
	mc.RecordBacktestSkip("data_unavailable")

	assert.Equal(t, 12.0, testutil.ToFloat64(mc.backtestTrades))
	assert.Equal(t, 2.0, testutil.ToFloat64(mc.backtestSkips.WithLabelValues("data_unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(mc.backtestDuration))
}

func TestRecordFetch(t *testing.T) {
	mc.RecordFetch("time_series_daily", 200*time.Millisecond, nil)
	mc.RecordFetch("time_series_daily", 100*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.fetchErrors.WithLabelValues("time_series_daily")))
	assert.Equal(t, 1, testutil.CollectAndCount(mc.fetchLatency))
}

func TestRecordCacheAndLookahead(t *testing.T) {
	mc.RecordCache(true)
	mc.RecordCache(true)
	mc.RecordCache(false)
	mc.RecordLookaheadViolation()

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.cacheHits.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.cacheHits.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.lookaheadViolations))
}

func TestRecordAPIRequest(t *testing.T) {
	mc.RecordAPIRequest("GET", "/api/v1/stats", "200", 50*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.apiRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(mc.apiResponseTime))
}
