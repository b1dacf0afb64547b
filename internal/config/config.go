package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "qeval/internal/errors"
	"qeval/internal/logging"
)

// Config is the application configuration. Every component receives the
// section it needs through its constructor; nothing reads this globally.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    logging.Config   `yaml:"logging"`
}

// AppConfig identifies the running application
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig configures the read-only HTTP surface
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the Postgres connection pool
type DatabaseConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	DBName   string        `yaml:"dbname"`
	SSLMode  string        `yaml:"sslmode"`
	MaxOpen  int           `yaml:"max_open"`
	MaxIdle  int           `yaml:"max_idle"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig configures the optional shared price cache
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// MarketDataConfig configures the market data provider client
type MarketDataConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// BacktestConfig carries the walk-forward simulation defaults
type BacktestConfig struct {
	HoldingPeriodDays int     `yaml:"holding_period_days"`
	MinConfidence     float64 `yaml:"min_confidence"`
	PositionSizePct   float64 `yaml:"position_size_pct"`
}

// TrackerConfig carries the live outcome tracker defaults
type TrackerConfig struct {
	BackfillDays int `yaml:"backfill_days"`
	LookbackDays int `yaml:"lookback_days"`
}

// BenchmarkConfig names the reference index for alpha computation
type BenchmarkConfig struct {
	Symbol string `yaml:"symbol"`
}

// SchedulerConfig configures the cron-triggered batch jobs
type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	UpdateSpec    string `yaml:"update_spec"`
	BenchmarkSpec string `yaml:"benchmark_spec"`
	ReportSpec    string `yaml:"report_spec"`
}

// MonitoringConfig configures Prometheus exposure
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

// Load loads configuration from a YAML file, applying .env and
// environment-variable overrides
func Load(filename string) (*Config, error) {
	// Best effort: a missing .env file is not an error
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides(NewEnvManager("", ""))
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnvOverrides lets deployment environments override secrets and
// endpoints without editing the YAML file
func (c *Config) applyEnvOverrides(env *EnvManager) {
	c.Database.Host = env.GetString("DB_HOST", c.Database.Host)
	c.Database.Port = env.GetInt("DB_PORT", c.Database.Port)
	c.Database.User = env.GetString("DB_USER", c.Database.User)
	c.Database.Password = env.GetEncryptedString("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = env.GetString("DB_NAME", c.Database.DBName)
	c.Redis.Addr = env.GetString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = env.GetEncryptedString("REDIS_PASSWORD", c.Redis.Password)
	c.MarketData.APIKey = env.GetEncryptedString("MARKET_API_KEY", c.MarketData.APIKey)
	c.MarketData.BaseURL = env.GetString("MARKET_BASE_URL", c.MarketData.BaseURL)
	c.Logging.Level = env.GetString("LOG_LEVEL", c.Logging.Level)
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Backtest.HoldingPeriodDays <= 0 {
		c.Backtest.HoldingPeriodDays = 30
	}
	if c.Backtest.MinConfidence <= 0 {
		c.Backtest.MinConfidence = 70
	}
	if c.Backtest.PositionSizePct <= 0 {
		c.Backtest.PositionSizePct = 5
	}
	if c.Tracker.BackfillDays <= 0 {
		c.Tracker.BackfillDays = 90
	}
	if c.Tracker.LookbackDays <= 0 {
		c.Tracker.LookbackDays = 120
	}
	if c.Benchmark.Symbol == "" {
		c.Benchmark.Symbol = "SPY"
	}
	if c.MarketData.RequestsPerMinute <= 0 {
		c.MarketData.RequestsPerMinute = 60
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 30 * time.Second
	}
	if c.Monitoring.PrometheusPath == "" {
		c.Monitoring.PrometheusPath = "/metrics"
	}
}

// Validate rejects malformed configuration before any work begins
func (c *Config) Validate() error {
	if c.Database.Host != "" && c.Database.Port <= 0 {
		return apperrors.NewInvalidConfig("database.port", "database port must be positive")
	}
	if c.Backtest.MinConfidence < 0 || c.Backtest.MinConfidence > 100 {
		return apperrors.NewInvalidConfig("backtest.min_confidence", "confidence floor must be within [0, 100]")
	}
	if c.Backtest.PositionSizePct <= 0 || c.Backtest.PositionSizePct > 100 {
		return apperrors.NewInvalidConfig("backtest.position_size_pct", "position size must be within (0, 100]")
	}
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return apperrors.NewInvalidConfig("server.port", "server port out of range")
	}
	return nil
}
