// Command qeval runs the recommendation evaluation pipeline: backtest-driven
// strategy validation, live outcome tracking, benchmark comparison, and
// reporting. Batch subcommands run once and exit; serve runs the scheduler
// and the read-only HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"qeval/internal/api"
	"qeval/internal/backtest"
	"qeval/internal/benchmark"
	"qeval/internal/cache"
	"qeval/internal/clock"
	"qeval/internal/config"
	"qeval/internal/database"
	"qeval/internal/decision"
	"qeval/internal/job"
	"qeval/internal/logging"
	"qeval/internal/market/alphavantage"
	"qeval/internal/market/pit"
	"qeval/internal/monitor"
	"qeval/internal/report"
	"qeval/internal/scheduler"
	"qeval/internal/tracker"
	"qeval/internal/validation"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "qeval: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing subcommand")
	}

	command := args[0]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "configs/config.yaml", "configuration file path")
	daysBack := flags.Int("days", 0, "lookback window in days (0 uses the configured default)")
	period := flags.Int("period", 90, "reporting period in days")
	limit := flags.Int("limit", 20, "row limit for recent outcomes")
	strategyName := flags.String("strategy", "baseline-momentum", "strategy name to validate")
	tickers := flags.String("tickers", "", "comma-separated ticker universe for validation")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	if command == "help" {
		usage()
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "backfill":
		return printSummary(app.runner.Backfill(ctx, orDefault(*daysBack, cfg.Tracker.BackfillDays)))
	case "update":
		return printSummary(app.runner.Update(ctx, orDefault(*daysBack, cfg.Tracker.LookbackDays)))
	case "benchmark":
		rows, err := app.runner.UpdateBenchmark(ctx, orDefault(*daysBack, cfg.Tracker.LookbackDays))
		if err != nil {
			return err
		}
		fmt.Printf("benchmark %s: %d daily prices upserted\n", cfg.Benchmark.Symbol, rows)
		return nil
	case "alpha":
		return printSummary(app.runner.CalculateAlpha(ctx))
	case "report":
		text, err := app.runner.Report(ctx, *period)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	case "stats":
		stats, err := app.runner.Stats(ctx, *period)
		if err != nil {
			return err
		}
		return printJSON(stats)
	case "recent":
		outcomes, err := app.runner.Recent(ctx, *limit)
		if err != nil {
			return err
		}
		return printJSON(outcomes)
	case "validate":
		return app.validate(ctx, *strategyName, splitTickers(*tickers), *period)
	case "serve":
		return app.serve(ctx, cfg)
	default:
		usage()
		return fmt.Errorf("unknown subcommand: %s", command)
	}
}

// app holds the wired service graph
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	db      *database.DB
	cache   cache.Cache
	runner  *job.Runner
	gate    *validation.Gate
	metrics *monitor.MetricsCollector
	sched   *scheduler.Scheduler
}

func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c, err := cache.New(&cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	clk := clock.Real{}
	metrics := monitor.NewMetricsCollector()
	gateway := alphavantage.NewClient(&cfg.MarketData, metrics, logger)

	barStore := pit.NewBarStore(db.DB)
	access := pit.NewAccess(gateway, barStore, c, metrics, logger)

	simulator := backtest.NewSimulator(access, decision.NewBaseline(), cfg.Backtest, metrics, logger)
	gate := validation.NewGate(simulator, cfg.Backtest, clk, logger)

	outcomeStore := tracker.NewPostgresOutcomeStore(db.DB)
	recSource := tracker.NewPostgresRecommendationSource(db.DB)
	trk := tracker.NewTracker(gateway, outcomeStore, recSource, clk, logger)

	priceStore := benchmark.NewPostgresPriceStore(db.DB)
	cmp := benchmark.NewComparator(gateway, priceStore, outcomeStore, cfg.Benchmark.Symbol, clk, logger)

	rep := report.NewReporter(outcomeStore, clk, logger)
	runner := job.NewRunner(trk, cmp, rep, metrics, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		cache:   c,
		runner:  runner,
		gate:    gate,
		metrics: metrics,
	}, nil
}

// Close releases shared resources
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warnf("cache close: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warnf("database close: %v", err)
		}
	}
}

// validate runs the strategy gate and exits non-zero on rejection
func (a *app) validate(ctx context.Context, strategyName string, tickers []string, testPeriodDays int) error {
	if len(tickers) == 0 {
		return fmt.Errorf("validate requires -tickers")
	}

	result, err := a.gate.ValidateStrategy(ctx, strategyName, tickers, testPeriodDays)
	if err != nil {
		return err
	}

	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Validated {
		return fmt.Errorf("strategy %s rejected", strategyName)
	}
	return nil
}

// serve runs the scheduler and the HTTP API until interrupted
func (a *app) serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(a.logger)
		sched.RegisterHandler(scheduler.TaskTypeUpdate, scheduler.TaskHandlerFunc(func(ctx context.Context) error {
			_, err := a.runner.Update(ctx, cfg.Tracker.LookbackDays)
			return err
		}))
		sched.RegisterHandler(scheduler.TaskTypeBenchmark, scheduler.TaskHandlerFunc(func(ctx context.Context) error {
			_, err := a.runner.UpdateBenchmark(ctx, cfg.Tracker.LookbackDays)
			return err
		}))
		sched.RegisterHandler(scheduler.TaskTypeReport, scheduler.TaskHandlerFunc(func(ctx context.Context) error {
			text, err := a.runner.Report(ctx, 90)
			if err != nil {
				return err
			}
			a.logger.Info(text)
			return nil
		}))

		for taskType, spec := range map[scheduler.TaskType]string{
			scheduler.TaskTypeUpdate:    cfg.Scheduler.UpdateSpec,
			scheduler.TaskTypeBenchmark: cfg.Scheduler.BenchmarkSpec,
			scheduler.TaskTypeReport:    cfg.Scheduler.ReportSpec,
		} {
			if spec == "" {
				continue
			}
			if err := sched.AddTask(taskType, spec); err != nil {
				return err
			}
		}

		sched.Start()
		defer sched.Stop()
		a.sched = sched
	}

	server := api.NewServer(cfg, a.runner, a.sched, a.db, a.metrics, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func printSummary(summary *tracker.UpdateSummary, err error) error {
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func splitTickers(raw string) []string {
	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: qeval <command> [flags]

commands:
  backfill   create outcome rows for recommendations missing one
  update     refresh active outcomes, benchmark prices and alpha
  benchmark  refresh the benchmark price cache only
  alpha      fill alpha on outcomes missing a benchmark snapshot
  report     print the plain-text performance report
  stats      print the performance summary as JSON
  recent     print the newest outcome rows as JSON
  validate   run the strategy promotion gate (-strategy, -tickers, -period)
  serve      run the scheduler and HTTP API

flags:
  -config string   configuration file path (default configs/config.yaml)
  -days int        lookback window in days
  -period int      reporting or validation period in days (default 90)
  -limit int       row limit for recent outcomes (default 20)`)
}
