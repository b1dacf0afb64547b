package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qeval/internal/testutils"
)

const sampleConfig = `
app:
  name: qeval
  env: test
server:
  host: 127.0.0.1
  port: 9090
database:
  host: db.internal
  port: 5432
  user: qeval
  dbname: qeval
backtest:
  holding_period_days: 14
  min_confidence: 80
benchmark:
  symbol: QQQ
market_data:
  requests_per_minute: 30
  timeout: 10s
logging:
  level: debug
`

func TestLoad(t *testing.T) {
	path := testutils.CreateTempFile(t, "config.yaml", sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qeval", cfg.App.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 14, cfg.Backtest.HoldingPeriodDays)
	assert.Equal(t, 80.0, cfg.Backtest.MinConfidence)
	assert.Equal(t, "QQQ", cfg.Benchmark.Symbol)
	assert.Equal(t, 30, cfg.MarketData.RequestsPerMinute)
	assert.Equal(t, 10*time.Second, cfg.MarketData.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := testutils.CreateTempFile(t, "config.yaml", "app:\n  name: qeval\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Backtest.HoldingPeriodDays)
	assert.Equal(t, 70.0, cfg.Backtest.MinConfidence)
	assert.Equal(t, 5.0, cfg.Backtest.PositionSizePct)
	assert.Equal(t, 90, cfg.Tracker.BackfillDays)
	assert.Equal(t, 120, cfg.Tracker.LookbackDays)
	assert.Equal(t, "SPY", cfg.Benchmark.Symbol)
	assert.Equal(t, 60, cfg.MarketData.RequestsPerMinute)
	assert.Equal(t, "/metrics", cfg.Monitoring.PrometheusPath)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QEVAL_DB_HOST", "override.internal")
	t.Setenv("QEVAL_LOG_LEVEL", "warn")

	path := testutils.CreateTempFile(t, "config.yaml", sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("bad confidence", func(t *testing.T) {
		path := testutils.CreateTempFile(t, "config.yaml", "backtest:\n  min_confidence: 150\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad server port", func(t *testing.T) {
		path := testutils.CreateTempFile(t, "config.yaml", "server:\n  port: 99999\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}
