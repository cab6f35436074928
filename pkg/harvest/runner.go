// Package harvest runs the full pipeline for one root collection: list every
// item, check the listing is complete, fetch every detail into the store,
// reconcile, and project the result into the summary sinks.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/fetch"
	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/Sternrassler/bulkfetch/pkg/pagination"
	"github.com/Sternrassler/bulkfetch/pkg/store"
	"github.com/Sternrassler/bulkfetch/pkg/summary"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCompletenessMismatch aborts a run whose listing disagrees with its
	// declared total. Nothing is written to the store.
	ErrCompletenessMismatch = errors.New("listing completeness mismatch")

	// ErrIncomplete ends a run that still misses items after every pass.
	// Everything fetched stays persisted and missing.txt lists the rest.
	ErrIncomplete = errors.New("items still missing after all passes")
)

// Lister enumerates a root collection. *pagination.Lister satisfies it.
type Lister interface {
	ListAll(ctx context.Context, rootID string) (*pagination.Listing, error)
}

// Fetcher fills the store. *fetch.Orchestrator satisfies it.
type Fetcher interface {
	Run(ctx context.Context, ids []int64) (*fetch.Result, error)
}

// PagePurger drops cached listing pages. *cache.Manager satisfies it.
// Pages only need to survive an interrupted walk, so they are purged as soon
// as a walk completes.
type PagePurger interface {
	Purge(ctx context.Context, endpoint, rootID string) (int, error)
}

// Config holds runner configuration.
type Config struct {
	// RootID is the collection to harvest.
	RootID string

	// IDPath locates the item ID inside a listing item.
	IDPath string

	// ListEndpoint is passed to PagePurger after a finished walk.
	ListEndpoint string
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Lister  Lister
	Fetcher Fetcher
	Store   *store.FileStore
	Summary *summary.Builder

	// Sinks receive the summary rows in order. Optional.
	Sinks []summary.Sink

	// Pages is purged once the listing walk finishes. Optional.
	Pages PagePurger
}

// Report describes one run, complete or not.
type Report struct {
	RunID  string
	RootID string

	// PreviousRunID is the run that last wrote the store's manifest, if any.
	PreviousRunID string

	DeclaredTotal int
	ListedItems   int
	UniqueIDs     int
	ItemsNoID     int
	Fetch         *fetch.Result
	Missing       []int64
	Rows          int
	Duration      time.Duration
}

// Runner executes the pipeline.
type Runner struct {
	config Config
	deps   Deps
	logger zerolog.Logger
}

// New creates a runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if cfg.RootID == "" {
		return nil, fmt.Errorf("root id is required")
	}
	if cfg.IDPath == "" {
		return nil, fmt.Errorf("id path is required")
	}
	if deps.Lister == nil || deps.Fetcher == nil || deps.Store == nil || deps.Summary == nil {
		return nil, fmt.Errorf("lister, fetcher, store and summary builder are required")
	}
	return &Runner{
		config: cfg,
		deps:   deps,
		logger: logging.NewLogger(logging.ComponentHarvest).With().Str("root_id", cfg.RootID).Logger(),
	}, nil
}

// Run executes one harvest. The Report is returned even on error, filled as
// far as the run got.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:  uuid.Must(uuid.NewV7()).String(),
		RootID: r.config.RootID,
	}
	logger := r.logger.With().Str("run_id", report.RunID).Logger()
	done := func(err error) (*Report, error) {
		report.Duration = time.Since(start)
		return report, err
	}

	listing, err := r.deps.Lister.ListAll(ctx, r.config.RootID)
	if err != nil {
		return done(fmt.Errorf("list: %w", err))
	}
	r.purgePages(ctx, logger)
	ids, noID := pagination.UniqueIDs(listing.Items, r.config.IDPath)
	report.DeclaredTotal = listing.DeclaredTotal
	report.ListedItems = len(listing.Items)
	report.UniqueIDs = len(ids)
	report.ItemsNoID = noID

	if err := pagination.CheckCompleteness(listing.DeclaredTotal, len(ids)); err != nil {
		logger.Error().
			Int("declared_total", listing.DeclaredTotal).
			Int("listed", len(listing.Items)).
			Int("unique", len(ids)).
			Msg("Listing does not match declared total, aborting before fetch")
		return done(fmt.Errorf("%w: %w", ErrCompletenessMismatch, err))
	}

	r.checkPrevious(report, logger)

	if err := r.deps.Store.WriteListing(listing.Items); err != nil {
		return done(fmt.Errorf("write listing: %w", err))
	}
	if err := r.deps.Store.WriteManifest(store.Manifest{
		DeclaredTotal: listing.DeclaredTotal,
		UniqueCount:   len(ids),
		IDs:           ids,
		RootID:        r.config.RootID,
		RunID:         report.RunID,
		GeneratedAt:   time.Now().UTC(),
	}); err != nil {
		return done(fmt.Errorf("write manifest: %w", err))
	}

	logger.Info().
		Int("total", len(ids)).
		Msg("Listing verified, fetching details")

	res, err := r.deps.Fetcher.Run(ctx, ids)
	report.Fetch = res
	if res != nil {
		report.Missing = res.Missing
	}
	if err != nil {
		return done(fmt.Errorf("fetch: %w", err))
	}

	if !res.Complete() {
		if err := r.deps.Store.WriteMissing(res.Missing); err != nil {
			return done(fmt.Errorf("write missing list: %w", err))
		}
		logger.Error().
			Int("missing", len(res.Missing)).
			Str("file", store.MissingFile).
			Msg("Items still missing after all passes")
		return done(fmt.Errorf("%w: %d of %d", ErrIncomplete, len(res.Missing), len(ids)))
	}

	if err := r.deps.Store.RemoveMissing(); err != nil {
		return done(err)
	}

	rows, err := r.deps.Summary.Build(ids)
	if err != nil {
		return done(fmt.Errorf("build summary: %w", err))
	}
	for _, sink := range r.deps.Sinks {
		if err := sink.Write(ctx, rows); err != nil {
			return done(err)
		}
	}
	report.Rows = len(rows)

	logger.Info().
		Int("total", len(ids)).
		Int("fetched", res.Fetched).
		Int("skipped", res.Skipped).
		Int("rows", report.Rows).
		Dur("duration", time.Since(start)).
		Msg("Harvest complete")

	return done(nil)
}

// purgePages drops the cached pages of a finished walk so a later run lists
// from the network again.
func (r *Runner) purgePages(ctx context.Context, logger zerolog.Logger) {
	if r.deps.Pages == nil {
		return
	}
	n, err := r.deps.Pages.Purge(ctx, r.config.ListEndpoint, r.config.RootID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to purge cached listing pages")
		return
	}
	logger.Debug().Int("pages", n).Msg("Cached listing pages purged")
}

// checkPrevious reports the manifest left by an earlier run so a resumed
// store is visible in the logs. A store of another root is only warned about.
func (r *Runner) checkPrevious(report *Report, logger zerolog.Logger) {
	prev, err := r.deps.Store.ReadManifest()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn().Err(err).Msg("Ignoring unreadable manifest of previous run")
		}
		return
	}
	report.PreviousRunID = prev.RunID
	if prev.RootID != r.config.RootID {
		logger.Warn().
			Str("previous_root_id", prev.RootID).
			Str("previous_run_id", prev.RunID).
			Msg("Store holds a manifest of another root")
		return
	}
	logger.Info().
		Str("previous_run_id", prev.RunID).
		Int("previous_unique", prev.UniqueCount).
		Time("previous_generated_at", prev.GeneratedAt).
		Msg("Resuming store of previous run")
}
