package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"qeval/internal/config"
	"qeval/internal/logging"
)

// DB wraps the Postgres connection pool
type DB struct {
	*sql.DB
	config *config.DatabaseConfig
	logger *logging.Logger
	stats  PoolStats
	mu     sync.RWMutex
}

// PoolStats is a snapshot of connection pool statistics
type PoolStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	LastUpdated        time.Time
}

// NewConnection creates a new database connection pool
func NewConnection(cfg *config.DatabaseConfig, logger *logging.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 25
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	var pingErr error
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		logger.Warnf("database ping attempt %d/%d failed: %v", i+1, maxRetries, pingErr)
		if i < maxRetries-1 {
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	if pingErr != nil {
		return nil, fmt.Errorf("failed to ping database %q after %d attempts: %w",
			cfg.DBName, maxRetries, pingErr)
	}

	logger.Infof("database connection established: max_open=%d, max_idle=%d",
		cfg.MaxOpen, cfg.MaxIdle)

	return &DB{
		DB:     db,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// GetPoolStats returns current connection pool statistics
func (db *DB) GetPoolStats() PoolStats {
	stats := db.DB.Stats()

	db.mu.Lock()
	db.stats = PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		LastUpdated:        time.Now(),
	}
	snapshot := db.stats
	db.mu.Unlock()

	if stats.WaitCount > 0 {
		db.logger.Warnf("database connection pool under pressure: wait_count=%d, in_use=%d",
			stats.WaitCount, stats.InUse)
	}

	return snapshot
}
