package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"snapback/internal/catalog"
	"snapback/internal/config"
	"snapback/internal/flatten"
	"snapback/internal/logging"
	"snapback/internal/manifest"
	"snapback/internal/organize"
	"snapback/internal/resolver"
	"snapback/internal/services"
)

// CatalogStore is the persistence surface the pipeline writes to. The
// SQLite store in internal/catalog is the production implementation.
type CatalogStore interface {
	Upsert(ctx context.Context, record *catalog.Record) error
	BeginRun(ctx context.Context) (*catalog.Run, error)
	FinishRun(ctx context.Context, runID string, counts catalog.Counts, status catalog.RunStatus) error
	RecordError(ctx context.Context, runID, stableID, stage, message string) error
}

// Pipeline drives a full ingest run: manifest parse, per-entry resolve,
// flatten, place, and catalog upsert, executed by a bounded worker pool.
type Pipeline struct {
	cfg       *config.Config
	store     CatalogStore
	resolver  *resolver.Resolver
	flattener *flatten.Flattener
	organizer *organize.Organizer
	logger    *slog.Logger
	lock      *flock.Flock
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithResolver replaces the default resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.resolver = r
		}
	}
}

// WithFlattener replaces the default flattener.
func WithFlattener(f *flatten.Flattener) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.flattener = f
		}
	}
}

// New constructs an ingest pipeline.
func New(cfg *config.Config, store CatalogStore, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("ingest: config required")
	}
	if store == nil {
		return nil, errors.New("ingest: catalog store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:       cfg,
		store:     store,
		flattener: flatten.New(cfg, logger),
		organizer: organize.New(cfg, logger),
		logger:    logging.NewComponentLogger(logger, "ingest"),
		lock:      flock.New(filepath.Join(filepath.Dir(cfg.Paths.DatabasePath), "ingest.lock")),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolver == nil {
		r, err := resolver.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		p.resolver = r
	}
	return p, nil
}

// Summary is the final accounting of one ingest run.
type Summary struct {
	RunID  string
	Counts catalog.Counts
	Status catalog.RunStatus
}

// Run ingests every entry in the manifest at manifestPath. Item failures
// are recorded against the run and do not stop the remaining work; only a
// catalog write failure or cancellation ends the run early. At most one
// run executes per database at a time.
func (p *Pipeline) Run(ctx context.Context, manifestPath string) (*Summary, error) {
	held, err := p.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("ingest: acquire lock: %w", err)
	}
	if !held {
		return nil, errors.New("ingest: another ingest run is already in progress")
	}
	defer func() {
		if err := p.lock.Unlock(); err != nil {
			p.logger.Warn("failed to release ingest lock", logging.Error(err))
		}
	}()

	doc, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	run, err := p.store.BeginRun(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalogWrite, "catalog", "begin_run", "start ingest run", err)
	}
	runCtx := services.WithRunID(ctx, run.ID)
	p.logger.InfoContext(runCtx, "ingest run started",
		logging.String(logging.FieldRunID, run.ID),
		logging.Int("entries", len(doc.Entries)),
		logging.Int("skipped_parse", len(doc.Skipped)))

	tally := &runTally{}
	for _, skipped := range doc.Skipped {
		tally.attempt()
		tally.fail()
		p.recordItemError(runCtx, run.ID, "", StageParse, skipped.Error())
	}

	p.processEntries(runCtx, run.ID, doc.Entries, tally)

	counts := tally.counts()
	status := catalog.RunCompleted
	if tally.aborted() || counts.Attempted < len(doc.Entries)+len(doc.Skipped) {
		status = catalog.RunAborted
	}
	if err := p.store.FinishRun(context.WithoutCancel(runCtx), run.ID, counts, status); err != nil {
		return nil, services.Wrap(services.ErrCatalogWrite, "catalog", "finish_run", "finalize ingest run", err)
	}

	p.logger.InfoContext(runCtx, "ingest run finished",
		logging.String(logging.FieldRunID, run.ID),
		logging.String("status", string(status)),
		logging.Int("attempted", counts.Attempted),
		logging.Int("succeeded", counts.Succeeded),
		logging.Int("failed", counts.Failed))
	return &Summary{RunID: run.ID, Counts: counts, Status: status}, nil
}

// processEntries fans entries out to the worker pool. Workers stop picking
// up new entries once the run context is canceled or a fatal catalog error
// occurs, but never abandon an entry mid-flight.
func (p *Pipeline) processEntries(ctx context.Context, runID string, entries []manifest.Entry, tally *runTally) {
	workers := p.cfg.Ingest.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(entries) {
		workers = len(entries)
	}
	if workers == 0 {
		return
	}

	jobs := make(chan manifest.Entry)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				p.processOne(ctx, runID, entry, tally)
			}
		}()
	}

dispatch:
	for _, entry := range entries {
		if ctx.Err() != nil || tally.aborted() {
			break dispatch
		}
		select {
		case jobs <- entry:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
}

func (p *Pipeline) processOne(ctx context.Context, runID string, entry manifest.Entry, tally *runTally) {
	if tally.aborted() {
		return
	}
	// The entry runs to completion even if the run is canceled underneath
	// it; cancellation takes effect between entries.
	itemCtx := services.WithEntryID(context.WithoutCancel(ctx), entry.StableID)

	tally.attempt()
	stage, err := p.ingestEntry(itemCtx, entry)
	if err == nil {
		tally.succeed()
		return
	}

	tally.fail()
	itemLogger := logging.WithContext(itemCtx, p.logger)
	if services.FatalForRun(err) {
		tally.abort()
		itemLogger.ErrorContext(itemCtx, "catalog write failed, aborting run", logging.Error(err))
	} else {
		itemLogger.WarnContext(itemCtx, "entry failed",
			logging.String(logging.FieldStage, stage),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err))
	}
	p.recordItemError(itemCtx, runID, entry.StableID, stage, err.Error())
}

// recordItemError appends to the run's error ledger. A ledger write failure
// is logged and swallowed; it must not mask the item error it describes.
func (p *Pipeline) recordItemError(ctx context.Context, runID, stableID, stage, message string) {
	if err := p.store.RecordError(context.WithoutCancel(ctx), runID, stableID, stage, message); err != nil {
		p.logger.ErrorContext(ctx, "failed to record item error",
			logging.String(logging.FieldStage, stage),
			logging.Error(err))
	}
}
