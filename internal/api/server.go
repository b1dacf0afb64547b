// Package api exposes the read-only HTTP surface: health, metrics, and
// outcome reporting endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qeval/internal/config"
	"qeval/internal/database"
	apperrors "qeval/internal/errors"
	"qeval/internal/job"
	"qeval/internal/logging"
	"qeval/internal/monitor"
	"qeval/internal/scheduler"
)

// Server represents the API server
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	runner     *job.Runner
	sched      *scheduler.Scheduler
	db         *database.DB
	metrics    *monitor.MetricsCollector
	logger     *logging.Logger
}

// NewServer creates a new API server. sched may be nil when the scheduler is
// disabled.
func NewServer(cfg *config.Config, runner *job.Runner, sched *scheduler.Scheduler, db *database.DB, metrics *monitor.MetricsCollector, logger *logging.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:  cfg,
		router:  gin.New(),
		runner:  runner,
		sched:   sched,
		db:      db,
		metrics: metrics,
		logger:  logger,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.metricsMiddleware())

	if s.config.Monitoring.PrometheusEnabled {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/stats", s.getStats)
		v1.GET("/report", s.getReport)
		v1.GET("/outcomes/recent", s.getRecentOutcomes)
		v1.GET("/tasks", s.getTasks)
	}

	s.router.GET("/health", s.getHealth)
}

// getHealth reports service and database health
func (s *Server) getHealth(c *gin.Context) {
	dbHealth := "ok"
	status := http.StatusOK
	if err := s.db.HealthCheck(c.Request.Context()); err != nil {
		dbHealth = "error"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": dbHealth,
		"time":   time.Now().UTC(),
		"services": gin.H{
			"database": dbHealth,
		},
	})
}

// getStats returns the overall performance summary
func (s *Server) getStats(c *gin.Context) {
	periodDays := intQuery(c, "period_days", 90)

	stats, err := s.runner.Stats(c.Request.Context(), periodDays)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getReport returns the plain-text performance report
func (s *Server) getReport(c *gin.Context) {
	periodDays := intQuery(c, "period_days", 90)

	text, err := s.runner.Report(c.Request.Context(), periodDays)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

// getRecentOutcomes returns the newest outcome rows
func (s *Server) getRecentOutcomes(c *gin.Context) {
	limit := intQuery(c, "limit", 20)

	outcomes, err := s.runner.Recent(c.Request.Context(), limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "count": len(outcomes)})
}

// getTasks lists the scheduled jobs and their last status
func (s *Server) getTasks(c *gin.Context) {
	if s.sched == nil {
		c.JSON(http.StatusOK, gin.H{"tasks": []interface{}{}, "scheduler": "disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": s.sched.ListTasks()})
}

func (s *Server) renderError(c *gin.Context, err error) {
	s.logger.WithError(err).Errorf("request failed: %s %s", c.Request.Method, c.Request.URL.Path)

	status := http.StatusInternalServerError
	code := apperrors.ErrCodeInternal
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		code = appErr.Code
	}

	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
}

// metricsMiddleware records request counters and latency
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.RecordAPIRequest(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// Start starts the HTTP server and blocks until it exits
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.logger.Infof("starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
