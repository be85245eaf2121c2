package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/extraction"
	"github.com/eventradar/radar/internal/models"
)

// ErrRunInProgress is returned when a batch is requested while one is running.
var ErrRunInProgress = errors.New("extraction run already in progress")

// SourceCatalog is the read side of the source registry.
type SourceCatalog interface {
	Get(name string) (models.SourceDescriptor, bool)
	All() []models.SourceDescriptor
}

// CandidateExtractor turns fetched content into validated candidates.
// Provider failures are reported in Result.Failure, never returned.
type CandidateExtractor interface {
	Extract(ctx context.Context, raw *models.RawFetchResult, desc models.SourceDescriptor) extraction.Result
}

// HealthRecorder receives per-source outcomes.
type HealthRecorder interface {
	RecordSuccess(ctx context.Context, source string, found, added int, at time.Time) error
	RecordFailure(ctx context.Context, source string, cause error, at time.Time) error
}

// Observer is notified of every finished source, for metrics.
type Observer interface {
	ObserveSource(report SourceReport)
}

// PipelineConfig holds configuration for the extraction pipeline.
type PipelineConfig struct {
	Workers        int
	BatchDeadline  time.Duration
	ExtractTimeout time.Duration
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:        4,
		BatchDeadline:  20 * time.Minute,
		ExtractTimeout: 90 * time.Second,
	}
}

// aiProviderKey is the limiter bucket shared by all extraction calls.
const aiProviderKey = "ai"

// Pipeline runs fetch, extract, dedupe and store for a set of sources with
// a bounded worker pool. A failing source never aborts the batch.
type Pipeline struct {
	catalog   SourceCatalog
	fetcher   Fetcher
	extractor CandidateExtractor
	store     eventstore.Store
	health    HealthRecorder
	limiter   *ProviderLimiter
	observer  Observer
	logger    *slog.Logger
	config    PipelineConfig
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// NewPipeline creates a new extraction pipeline. health, limiter and
// observer may be nil.
func NewPipeline(
	catalog SourceCatalog,
	fetcher Fetcher,
	extractor CandidateExtractor,
	store eventstore.Store,
	health HealthRecorder,
	limiter *ProviderLimiter,
	logger *slog.Logger,
	config PipelineConfig,
) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if limiter == nil {
		limiter = NewProviderLimiter(0, 1)
	}
	return &Pipeline{
		catalog:   catalog,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		health:    health,
		limiter:   limiter,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// SetObserver attaches a metrics observer.
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// IsRunning returns whether a batch is currently running.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RunAll runs every registered source. Inactive sources are reported without
// any network call.
func (p *Pipeline) RunAll(ctx context.Context) (*RunReport, error) {
	return p.run(ctx, p.catalog.All(), true)
}

// RunSources runs the named sources, including inactive ones. Unknown names
// are rejected before anything runs.
func (p *Pipeline) RunSources(ctx context.Context, names []string) (*RunReport, error) {
	if len(names) == 0 {
		return nil, models.Invalidf("no sources named")
	}
	descs := make([]models.SourceDescriptor, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		desc, ok := p.catalog.Get(name)
		if !ok {
			return nil, models.Invalidf("unknown source: %s", name)
		}
		descs = append(descs, desc)
	}
	return p.run(ctx, descs, false)
}

func (p *Pipeline) run(ctx context.Context, descs []models.SourceDescriptor, skipInactive bool) (*RunReport, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunInProgress
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: p.now().UTC(),
		Sources:   make([]SourceReport, len(descs)),
	}

	// Starting sources stops at the deadline; sources already running finish
	// on their own fetch and extraction timeouts.
	startCtx := ctx
	if p.config.BatchDeadline > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, p.config.BatchDeadline)
		defer cancel()
	}

	p.logger.Info("extraction run started",
		"run_id", report.ID,
		"sources", len(descs),
		"workers", p.config.Workers,
		"deadline", p.config.BatchDeadline)

	dedup := NewDeduplicator(p.store)
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < p.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Sources[i] = p.runSource(ctx, startCtx, descs[i], dedup)
				if p.observer != nil {
					p.observer.ObserveSource(report.Sources[i])
				}
			}
		}()
	}

	for i, desc := range descs {
		if skipInactive && !desc.Active {
			report.Sources[i] = SourceReport{Source: desc.Name, Status: SourceInactive}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = p.now().UTC()
	report.summarize()

	p.logger.Info("extraction run complete",
		"run_id", report.ID,
		"ok", report.Totals.OK,
		"failed", report.Totals.Failed,
		"skipped", report.Totals.Skipped,
		"inactive", report.Totals.Inactive,
		"added", report.Totals.Added,
		"duplicates", report.Totals.Duplicates,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds())

	return report, nil
}

// runSource processes one source. startCtx gates only the start: once the
// provider slot is held the source runs to completion under ctx.
func (p *Pipeline) runSource(ctx, startCtx context.Context, desc models.SourceDescriptor, dedup *Deduplicator) (rep SourceReport) {
	rep.Source = desc.Name

	if startCtx.Err() != nil {
		rep.Status = SourceSkipped
		p.logger.Warn("source skipped", "source", desc.Name, "reason", "batch deadline reached")
		return rep
	}
	release, err := p.limiter.Acquire(startCtx, desc.ProviderKey())
	if err != nil {
		rep.Status = SourceSkipped
		p.logger.Warn("source skipped", "source", desc.Name, "reason", "rate limit wait exceeds batch deadline")
		return rep
	}
	defer release()

	start := time.Now()
	defer func() { rep.DurationMs = time.Since(start).Milliseconds() }()

	raw, err := p.fetcher.Fetch(ctx, desc)
	if err != nil {
		return p.fail(ctx, rep, desc, err)
	}

	result := p.extract(ctx, raw, desc)
	if result.Failure != nil {
		return p.fail(ctx, rep, desc, result.Failure)
	}
	rep.Found = result.Returned
	rep.Dropped = result.Dropped

	now := p.now()
	for _, c := range result.Candidates {
		id, dup, err := dedup.Claim(ctx, c)
		if err != nil {
			return p.fail(ctx, rep, desc, err)
		}
		if dup {
			rep.Duplicates++
			p.logger.Debug("duplicate candidate", "source", desc.Name, "event_id", id, "title", c.Title, "date", c.Date)
			continue
		}
		if err := p.store.Upsert(ctx, models.NewStoredEvent(id, desc.Name, c, now)); err != nil {
			dedup.Release(id)
			return p.fail(ctx, rep, desc, err)
		}
		rep.Added++
	}

	rep.Status = SourceOK
	if p.health != nil {
		if err := p.health.RecordSuccess(ctx, desc.Name, rep.Found, rep.Added, p.now()); err != nil {
			p.logger.Warn("failed to record source health", "source", desc.Name, "error", err)
		}
	}
	p.logger.Info("source processed",
		"source", desc.Name,
		"found", rep.Found,
		"dropped", rep.Dropped,
		"duplicates", rep.Duplicates,
		"added", rep.Added)
	return rep
}

func (p *Pipeline) extract(ctx context.Context, raw *models.RawFetchResult, desc models.SourceDescriptor) extraction.Result {
	release, err := p.limiter.Acquire(ctx, aiProviderKey)
	if err != nil {
		return extraction.Result{Failure: &models.ExtractionError{Source: desc.Name, Err: err}}
	}
	defer release()

	if p.config.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ExtractTimeout)
		defer cancel()
	}
	return p.extractor.Extract(ctx, raw, desc)
}

func (p *Pipeline) fail(ctx context.Context, rep SourceReport, desc models.SourceDescriptor, cause error) SourceReport {
	rep.Status = SourceFailed
	rep.ErrorCategory = models.ErrorCategory(cause)
	rep.Error = cause.Error()

	p.logger.Error("source failed",
		"source", desc.Name,
		"category", rep.ErrorCategory,
		"added", rep.Added,
		"error", cause)

	if p.health != nil {
		if err := p.health.RecordFailure(ctx, desc.Name, cause, p.now()); err != nil {
			p.logger.Warn("failed to record source health", "source", desc.Name, "error", err)
		}
	}
	return rep
}
