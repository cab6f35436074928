// Command bulkfetch harvests every item of one root collection from a
// paginated JSON API into a resumable on-disk store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/artifact"
	"github.com/Sternrassler/bulkfetch/pkg/cache"
	"github.com/Sternrassler/bulkfetch/pkg/client"
	"github.com/Sternrassler/bulkfetch/pkg/fetch"
	"github.com/Sternrassler/bulkfetch/pkg/harvest"
	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/Sternrassler/bulkfetch/pkg/metrics"
	"github.com/Sternrassler/bulkfetch/pkg/pagination"
	"github.com/Sternrassler/bulkfetch/pkg/ratelimit"
	"github.com/Sternrassler/bulkfetch/pkg/store"
	"github.com/Sternrassler/bulkfetch/pkg/summary"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exit codes.
const (
	exitComplete = 0
	exitFailure  = 1
	exitMismatch = 2
	exitMissing  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	loadEnvFiles()

	cfg, err := loadConfig(args, os.Getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitComplete
		}
		fmt.Fprintf(stderr, "bulkfetch: %v\n", err)
		return exitFailure
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.Setup(logging.Config{Level: level, Pretty: cfg.LogPretty, Output: stderr})
	logger := logging.NewLogger(logging.ComponentCLI)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return exitFailure
	}
	defer app.Close()

	report, err := app.runner.Run(ctx)
	printReport(stdout, cfg, report)
	if err != nil {
		logger.Error().Err(err).Msg("Harvest failed")
	}
	return exitCode(err)
}

// exitCode maps a run error onto the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitComplete
	case errors.Is(err, harvest.ErrCompletenessMismatch):
		return exitMismatch
	case errors.Is(err, harvest.ErrIncomplete):
		return exitMissing
	default:
		return exitFailure
	}
}

// app owns the runner and every connection opened for it.
type app struct {
	runner  *harvest.Runner
	list    *ratelimit.Limiter
	detail  *ratelimit.Limiter
	closers []func()
}

func newApp(ctx context.Context, cfg *Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	// One limiter per endpoint class; every client of a class shares it.
	limiterLog := logging.NewLogger(logging.ComponentRateLimit)
	a.list = ratelimit.New("list", cfg.MinInterval, limiterLog)
	a.detail = ratelimit.New("detail", cfg.MinInterval, limiterLog)

	clientCfg := client.DefaultConfig(cfg.BaseURL)
	clientCfg.UserAgent = cfg.Session.UserAgent
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Retry.MaxAttempts = cfg.MaxAttempts
	clientCfg.Headers = client.SessionHeaders{
		Cookie:       cfg.Session.Cookie,
		XSRFToken:    cfg.Session.XSRFToken,
		BuildVersion: cfg.Session.BuildVersion,
	}

	listClient, err := client.New(clientCfg, a.list)
	if err != nil {
		return nil, fmt.Errorf("listing client: %w", err)
	}
	detailClient, err := client.New(clientCfg, a.detail)
	if err != nil {
		return nil, fmt.Errorf("detail client: %w", err)
	}

	listCfg := pagination.DefaultConfig(cfg.ListEndpoint)
	listCfg.PageSize = cfg.PageSize
	listCfg.MaxPages = cfg.MaxPages
	if cfg.RootField != "" {
		listCfg.RootField = cfg.RootField
	}
	if cfg.ItemsField != "" {
		listCfg.ItemsField = cfg.ItemsField
	}

	var pages harvest.PagePurger
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = rc.Close() })
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		mgr := cache.NewManager(rc, cfg.PageCacheTTL)
		listCfg.Cache = mgr
		pages = mgr
		logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", mgr.TTL()).Msg("Listing page cache enabled")
	}

	lister, err := pagination.NewLister(listClient, listCfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.StoreDir)
	if err != nil {
		return nil, err
	}

	parser, err := artifact.NewParser(artifact.DefaultConfig())
	if err != nil {
		return nil, err
	}

	fetchCfg := fetch.DefaultConfig(cfg.DetailEndpoint)
	fetchCfg.Workers = cfg.Workers
	fetchCfg.RetryPasses = cfg.RetryPasses
	fetchCfg.ProgressEvery = cfg.ProgressEvery
	if cfg.DetailIDField != "" {
		fetchCfg.IDField = cfg.DetailIDField
	}
	orch, err := fetch.New(detailClient, st, parser, fetchCfg)
	if err != nil {
		return nil, err
	}

	sinks := []summary.Sink{summary.NewCSVWriter(st, store.SummaryFile)}
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		pw, err := summary.NewPostgresWriter(pool, cfg.PostgresTable)
		if err != nil {
			return nil, err
		}
		if err := pw.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, pw)
	}

	a.runner, err = harvest.New(harvest.Config{
		RootID:       cfg.RootID,
		IDPath:       cfg.IDPath,
		ListEndpoint: cfg.ListEndpoint,
	}, harvest.Deps{
		Lister:  lister,
		Fetcher: orch,
		Store:   st,
		Summary: summary.NewBuilder(st, summary.DefaultFields()),
		Sinks:   sinks,
		Pages:   pages,
	})
	if err != nil {
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, a.status)
		if _, err := srv.Start(); err != nil {
			return nil, fmt.Errorf("metrics server: %w", err)
		}
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
	}

	ready = true
	return a, nil
}

// limiterStatus is one limiter's entry in the /status payload.
type limiterStatus struct {
	ratelimit.State
	Throttled bool          `json:"throttled"`
	Wait      time.Duration `json:"wait"`
}

func newLimiterStatus(s ratelimit.State, now time.Time) limiterStatus {
	return limiterStatus{
		State:     s,
		Throttled: s.IsThrottled(),
		Wait:      s.TimeUntilNext(now),
	}
}

// status is served on /status by the metrics server.
func (a *app) status() any {
	now := time.Now()
	return map[string]limiterStatus{
		"list":   newLimiterStatus(a.list.State(), now),
		"detail": newLimiterStatus(a.detail.State(), now),
	}
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func printReport(w io.Writer, cfg *Config, r *harvest.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "run:       %s\n", r.RunID)
	fmt.Fprintf(w, "root:      %s\n", r.RootID)
	fmt.Fprintf(w, "declared:  %d\n", r.DeclaredTotal)
	fmt.Fprintf(w, "unique:    %d (listed %d, without id %d)\n", r.UniqueIDs, r.ListedItems, r.ItemsNoID)
	if r.Fetch != nil {
		fmt.Fprintf(w, "fetched:   %d\n", r.Fetch.Fetched)
		fmt.Fprintf(w, "skipped:   %d\n", r.Fetch.Skipped)
		fmt.Fprintf(w, "passes:    %d\n", r.Fetch.Passes)
	}
	fmt.Fprintf(w, "missing:   %d\n", len(r.Missing))
	fmt.Fprintf(w, "rows:      %d\n", r.Rows)
	fmt.Fprintf(w, "store:     %s\n", cfg.StoreDir)
	fmt.Fprintf(w, "duration:  %s\n", r.Duration.Round(time.Millisecond))
}
