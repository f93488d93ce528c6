// Command sodmasterd serves the sodmaster job and audit core over HTTP.
//
// Configuration comes from the environment (and an optional .env file):
// JOB_STORE_URL selects the job store, HTTP_ADDR the listen address. See
// sodmaster.Config for every key.
//
// Usage:
//
//	JOB_STORE_URL=redis://localhost:6379/0 sodmasterd
//
//	curl -X POST http://localhost:8080/a2a/run \
//	  -H "Content-Type: application/json" \
//	  -d '{"command":"ping","payload":{"value":42}}'
//
//	curl http://localhost:8080/a2a/jobs/<job_id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/alert"
	"github.com/sodmaster111/sodmaster/api"
	"github.com/sodmaster111/sodmaster/backoff"
	"github.com/sodmaster111/sodmaster/command"
	"github.com/sodmaster111/sodmaster/guardrail"
	"github.com/sodmaster111/sodmaster/health"
	"github.com/sodmaster111/sodmaster/middleware"
	"github.com/sodmaster111/sodmaster/observability"
	"github.com/sodmaster111/sodmaster/runner"
	"github.com/sodmaster111/sodmaster/store"
	"github.com/sodmaster111/sodmaster/trail"
	"github.com/sodmaster111/sodmaster/worker"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "sodmasterd: %v\n", err)
		os.Exit(1)
	}

	cfg, err := sodmaster.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sodmasterd: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sodmasterd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadEnv reads path when it exists. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env (%s): %w", path, err)
	}
	return nil
}

func run(ctx context.Context, cfg sodmaster.Config, logger *slog.Logger) error {
	// ──────────────────────────────────────────────────
	// 1. Job store
	// ──────────────────────────────────────────────────

	sel := store.Open(ctx, cfg.StoreURL(),
		store.WithLogger(logger),
		store.WithRedisNamespace(cfg.RedisNamespace),
		store.WithMigrate(true),
	)
	defer sel.Store.Close()

	logger.Info("job store selected",
		slog.String("backend", string(sel.Backend)),
		slog.Bool("degraded", sel.Degraded),
	)

	// ──────────────────────────────────────────────────
	// 2. Workers, metrics, alerts, audit trail
	// ──────────────────────────────────────────────────

	pool := worker.NewPool(logger,
		worker.WithPoolConcurrency(cfg.WorkerConcurrency),
		worker.WithPoolName("jobs"),
	)
	metrics := observability.New(observability.WithRuntimeCollectors())
	notifier := alert.New(cfg.Webhooks(),
		alert.WithLogger(logger),
		alert.WithTimeout(cfg.AlertTimeout),
		alert.WithRateLimit(cfg.AlertRatePerSec, int(cfg.AlertRatePerSec)+1),
		alert.WithRateLimitExempt(trail.AlertGuardrailViolation),
	)

	extra, err := guardrail.LoadFile(cfg.GuardrailsFile)
	if err != nil {
		return err
	}

	tr, err := trail.NewDefault(
		trail.WithHistoryLimit(cfg.AuditHistoryLimit),
		trail.WithGuardrails(extra...),
		trail.WithScheduler(pool),
		trail.WithAlerter(notifier),
		trail.WithRecorder(metrics),
		trail.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build audit trail: %w", err)
	}
	tr.Subscribe("a2a-failures", command.FailureBridge(tr, "a2a", trail.CUnitA2A))

	// ──────────────────────────────────────────────────
	// 3. Runner and features
	// ──────────────────────────────────────────────────

	policy := backoff.Policy{
		MaxAttempts: cfg.JobMaxAttempts,
		Strategy:    backoff.NewExponential(cfg.JobBackoffInitial, cfg.JobBackoffMax),
	}
	a2a, err := runner.New(sel.Store,
		runner.WithScheduler(pool),
		runner.WithPolicy(policy),
		runner.WithSLO(cfg.SLO()),
		runner.WithAlerter(notifier),
		runner.WithMetrics(metrics),
		runner.WithEmitter(tr),
		runner.WithFeature("a2a"),
		runner.WithCUnit(trail.CUnitA2A),
		runner.WithLogger(logger),
		runner.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Timeout(cfg.JobAttemptTimeout),
			middleware.Tracing(),
			middleware.Metrics(),
		),
	)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	// ──────────────────────────────────────────────────
	// 4. Health and HTTP
	// ──────────────────────────────────────────────────

	monitor := health.NewMonitor(sel, health.WithEmitter(tr), health.WithLogger(logger))
	if err := monitor.Start(ctx, cfg.HealthProbeSpec); err != nil {
		return err
	}

	surface := api.New(
		api.WithFeature(api.Feature{
			Name:     "a2a",
			Runner:   a2a,
			Commands: command.Builtins(),
			Secret:   cfg.A2ASecret,
		}),
		api.WithReadiness(monitor),
		api.WithAudit(tr),
		api.WithMetricsHandler(metrics.Handler()),
		api.WithLogger(logger),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           surface.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv, monitor, pool, cfg.ShutdownTimeout, logger)
	})
	return g.Wait()
}

// shutdown stops accepting requests, then waits for in-flight jobs.
func shutdown(srv *http.Server, monitor *health.Monitor, pool *worker.Pool, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down", slog.Duration("timeout", timeout))
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := monitor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health monitor: %w", err))
	}
	if err := pool.Stop(ctx); err != nil {
		logger.Warn("jobs still running at shutdown deadline",
			slog.Int("active", pool.Active()),
			slog.Int("pending", pool.Pending()),
		)
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
