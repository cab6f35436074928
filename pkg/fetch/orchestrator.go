// Package fetch drives a bounded worker pool that fills a store with the
// detail payload of every target ID, then reconciles against the store and
// repeats for whatever is still missing.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/artifact"
	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Caller issues one detail request. *client.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
}

// Store is the durable side of reconciliation. *store.FileStore satisfies it.
type Store interface {
	ExistsValid(id int64) bool
	Put(a *artifact.Artifact) error
	Missing(ids []int64) []int64
}

// Config holds orchestrator configuration.
type Config struct {
	// Endpoint is the detail path.
	Endpoint string

	// IDField is the request field carrying the item ID.
	IDField string

	// Workers is the pool size.
	Workers int

	// RetryPasses is the number of extra passes after the first one.
	RetryPasses int

	// ProgressEvery logs progress after this many completions. The last
	// completion of a pass is always logged.
	ProgressEvery int
}

// DefaultConfig returns safe default configuration.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		IDField:       "writeUpId",
		Workers:       4,
		RetryPasses:   3,
		ProgressEvery: 50,
	}
}

// Result summarises one Run.
type Result struct {
	// Targets is the number of distinct target IDs.
	Targets int

	// Fetched counts items fetched and persisted during this run.
	Fetched int

	// Skipped counts items found already persisted.
	Skipped int

	// Passes is the number of passes that had pending items.
	Passes int

	// Missing lists IDs still not persisted after the last pass, sorted.
	Missing []int64

	Duration time.Duration
}

// Complete reports whether every target is persisted.
func (r *Result) Complete() bool {
	return len(r.Missing) == 0
}

// Orchestrator fills a Store from a detail endpoint.
type Orchestrator struct {
	caller Caller
	store  Store
	parser *artifact.Parser
	config Config
	logger zerolog.Logger
}

// New creates an orchestrator.
func New(caller Caller, st Store, parser *artifact.Parser, cfg Config) (*Orchestrator, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("detail endpoint is required")
	}
	if cfg.IDField == "" {
		return nil, fmt.Errorf("id field is required")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1 (got %d)", cfg.Workers)
	}
	if cfg.RetryPasses < 0 {
		return nil, fmt.Errorf("retry_passes must be >= 0 (got %d)", cfg.RetryPasses)
	}
	if cfg.ProgressEvery < 1 {
		cfg.ProgressEvery = 50
	}

	return &Orchestrator{
		caller: caller,
		store:  st,
		parser: parser,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentFetch),
	}, nil
}

// Run fetches every ID of ids that the store does not already hold.
//
// Up to 1+RetryPasses passes are made; each recomputes the pending set from
// the store. A failed item aborts the run: no new IDs are started, in-flight
// items finish, and the first error is returned together with the partial
// Result. IDs still missing after the last pass are reported in
// Result.Missing without an error.
func (o *Orchestrator) Run(ctx context.Context, ids []int64) (*Result, error) {
	start := time.Now()
	result := &Result{Targets: countDistinct(ids)}
	var fetched, skipped atomic.Int64

	finish := func() *Result {
		result.Fetched = int(fetched.Load())
		result.Skipped = int(skipped.Load())
		result.Duration = time.Since(start)
		return result
	}

	maxPasses := 1 + o.config.RetryPasses
	for pass := 1; pass <= maxPasses; pass++ {
		pending := o.store.Missing(ids)
		itemsMissing.Set(float64(len(pending)))

		if pass == 1 {
			already := result.Targets - len(pending)
			skipped.Add(int64(already))
			itemsSkipped.Add(float64(already))
		}
		if len(pending) == 0 {
			break
		}

		result.Passes++
		passesTotal.Inc()
		o.logger.Info().
			Int("pass", pass).
			Int("max_passes", maxPasses).
			Int("pending", len(pending)).
			Int("total", result.Targets).
			Msg("Starting fetch pass")

		if err := o.runPass(ctx, pass, pending, &fetched, &skipped); err != nil {
			result.Missing = o.store.Missing(ids)
			itemsMissing.Set(float64(len(result.Missing)))
			return finish(), err
		}
	}

	result.Missing = o.store.Missing(ids)
	itemsMissing.Set(float64(len(result.Missing)))

	event := o.logger.Info()
	if len(result.Missing) > 0 {
		event = o.logger.Warn()
	}
	event.
		Int("total", result.Targets).
		Int64("fetched", fetched.Load()).
		Int64("skipped", skipped.Load()).
		Int("missing", len(result.Missing)).
		Int("passes", result.Passes).
		Dur("duration", time.Since(start)).
		Msg("Fetch finished")

	return finish(), nil
}

// runPass drains pending with a fixed pool of workers.
func (o *Orchestrator) runPass(ctx context.Context, pass int, pending []int64, fetched, skipped *atomic.Int64) error {
	queue := make(chan int64, len(pending))
	for _, id := range pending {
		queue <- id
	}
	close(queue)

	workers := o.config.Workers
	if workers > len(pending) {
		workers = len(pending)
	}

	var stop atomic.Bool
	progress := newProgress(len(pending), o.config.ProgressEvery, o.logger.With().Int("pass", pass).Logger())

	// Plain Group: a failure must not cancel calls already in flight.
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		workerID := w
		g.Go(func() error {
			processed := 0
			for id := range queue {
				if stop.Load() {
					return nil
				}

				didFetch, err := o.fetchOne(ctx, id)
				if err != nil {
					stop.Store(true)
					o.logger.Error().
						Err(err).
						Int64("item_id", id).
						Int("worker_id", workerID).
						Msg("Item failed, aborting run")
					return fmt.Errorf("item %d: %w", id, err)
				}

				if didFetch {
					fetched.Add(1)
				} else {
					skipped.Add(1)
				}
				processed++
				progress.done()
			}

			o.logger.Debug().
				Int("worker_id", workerID).
				Int("items_processed", processed).
				Msg("Worker completed")
			return nil
		})
	}

	return g.Wait()
}

// fetchOne fetches and persists one item. It returns false without touching
// the network when the store already holds the item.
func (o *Orchestrator) fetchOne(ctx context.Context, id int64) (bool, error) {
	if o.store.ExistsValid(id) {
		itemsSkipped.Inc()
		return false, nil
	}

	start := time.Now()
	defer func() {
		itemDuration.Observe(time.Since(start).Seconds())
	}()

	data, err := o.caller.Call(ctx, o.config.Endpoint, map[string]int64{o.config.IDField: id})
	if err != nil {
		return false, err
	}

	a, err := o.parser.Parse(data)
	if err != nil {
		return false, fmt.Errorf("parse detail: %w", err)
	}
	if a.ID != id {
		o.logger.Warn().
			Int64("item_id", id).
			Int64("returned_id", a.ID).
			Msg("Detail returned a different id, storing under returned id")
	}

	if err := o.store.Put(a); err != nil {
		return false, fmt.Errorf("persist: %w", err)
	}

	itemsFetched.Inc()
	return true, nil
}

func countDistinct(ids []int64) int {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
