// Package cleanup removes stale and duplicate stored events.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/models"
)

// Removal reasons.
const (
	ReasonStale     = "stale"
	ReasonDuplicate = "duplicate"
)

// Removal is one record the plan deletes.
type Removal struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
	Score  int    `json:"score"`
	// KeptID is the surviving record for duplicate removals.
	KeptID string `json:"keptId,omitempty"`
}

// Plan is the full set of removals computed for one sweep.
type Plan struct {
	ID       string    `json:"id"`
	Today    string    `json:"today"`
	Scanned  int       `json:"scanned"`
	Removals []Removal `json:"removals"`
	Kept     int       `json:"kept"`
}

// Count returns the number of removals with the given reason.
func (p Plan) Count(reason string) int {
	n := 0
	for _, r := range p.Removals {
		if r.Reason == reason {
			n++
		}
	}
	return n
}

// Result is a plan plus what was actually deleted.
type Result struct {
	Plan    Plan `json:"plan"`
	DryRun  bool `json:"dryRun"`
	Deleted int  `json:"deleted"`
}

// Options controls a run.
type Options struct {
	DryRun bool
}

// BatchDeleter is implemented by stores that can delete many ids at once.
type BatchDeleter interface {
	DeleteMany(ctx context.Context, ids []string) (int, error)
}

// Job sweeps the event store.
type Job struct {
	store    eventstore.Store
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewJob creates a cleanup job. "Today" is evaluated in loc.
func NewJob(store eventstore.Store, loc *time.Location, logger *slog.Logger) *Job {
	if loc == nil {
		loc = time.UTC
	}
	return &Job{store: store, location: loc, logger: logger, now: time.Now}
}

// Plan computes removals without touching the store.
func (j *Job) Plan(ctx context.Context) (Plan, error) {
	events, err := eventstore.LoadAll(ctx, j.store)
	if err != nil {
		return Plan{}, fmt.Errorf("load events: %w", err)
	}
	return BuildPlan(events, models.Today(j.now(), j.location)), nil
}

// BuildPlan marks events dated before today as stale, then resolves
// canonical-key collisions among the rest by completeness score, newer
// createdAt and finally lexical id.
func BuildPlan(events []models.StoredEvent, today string) Plan {
	plan := Plan{ID: uuid.NewString(), Today: today, Scanned: len(events)}

	groups := make(map[string][]models.StoredEvent)
	var keys []string
	for _, ev := range events {
		if ev.Date < today {
			plan.Removals = append(plan.Removals, Removal{
				ID:     ev.ID,
				Title:  ev.Title,
				Date:   ev.Date,
				Reason: ReasonStale,
				Score:  ev.CompletenessScore(),
			})
			continue
		}
		key := ingestion.CanonicalKey(ev.Title, ev.Date)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], ev)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		plan.Kept++
		if len(group) == 1 {
			continue
		}
		sort.Slice(group, func(a, b int) bool { return better(group[a], group[b]) })
		keep := group[0]
		for _, ev := range group[1:] {
			plan.Removals = append(plan.Removals, Removal{
				ID:     ev.ID,
				Title:  ev.Title,
				Date:   ev.Date,
				Reason: ReasonDuplicate,
				Score:  ev.CompletenessScore(),
				KeptID: keep.ID,
			})
		}
	}
	return plan
}

// better reports whether a should survive over b.
func better(a, b models.StoredEvent) bool {
	sa, sb := a.CompletenessScore(), b.CompletenessScore()
	if sa != sb {
		return sa > sb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Run computes the plan and, unless DryRun is set, deletes every removal.
func (j *Job) Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	plan, err := j.Plan(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Plan: plan, DryRun: opts.DryRun}

	if !opts.DryRun && len(plan.Removals) > 0 {
		ids := make([]string, len(plan.Removals))
		for i, r := range plan.Removals {
			ids[i] = r.ID
		}
		res.Deleted, err = j.delete(ctx, ids)
		if err != nil {
			return res, fmt.Errorf("cleanup %s: %w", plan.ID, err)
		}
	}

	j.logger.Info("cleanup complete",
		"plan_id", plan.ID,
		"dry_run", opts.DryRun,
		"scanned", plan.Scanned,
		"stale", plan.Count(ReasonStale),
		"duplicates", plan.Count(ReasonDuplicate),
		"deleted", res.Deleted,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (j *Job) delete(ctx context.Context, ids []string) (int, error) {
	if bd, ok := j.store.(BatchDeleter); ok {
		return bd.DeleteMany(ctx, ids)
	}
	deleted := 0
	for _, id := range ids {
		if err := j.store.Delete(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
