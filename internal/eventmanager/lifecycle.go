// Package eventmanager applies admin review transitions to stored events and
// serves the admin listing views.
package eventmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/models"
)

// Manager drives the review state machine over the event store.
type Manager struct {
	store  eventstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a review manager.
func NewManager(store eventstore.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger, now: time.Now}
}

// Apply runs action over ids and returns how many existing records were
// processed. Unknown ids are ignored; repeated ids count once. Records whose
// state does not change are not rewritten.
func (m *Manager) Apply(ctx context.Context, action models.ReviewAction, ids []string) (int, error) {
	if _, err := models.ParseReviewAction(string(action)); err != nil {
		return 0, err
	}

	now := m.now()
	seen := make(map[string]bool, len(ids))
	updated := 0
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		ev, err := m.store.Get(ctx, id)
		if err != nil {
			if models.ErrorCategory(err) == models.CategoryNotFound {
				m.logger.Debug("review target missing", "event_id", id, "action", action)
				continue
			}
			return updated, fmt.Errorf("review %s: %w", id, err)
		}

		next, changed := models.ApplyReview(ev, action, now)
		if changed {
			if err := m.store.Upsert(ctx, next); err != nil {
				return updated, fmt.Errorf("review %s: %w", id, err)
			}
		}
		updated++
	}

	m.logger.Info("review applied", "action", action, "requested", len(ids), "updated", updated)
	return updated, nil
}

// Approve marks ids approved.
func (m *Manager) Approve(ctx context.Context, ids ...string) (int, error) {
	return m.Apply(ctx, models.ActionApprove, ids)
}

// Reject marks ids rejected.
func (m *Manager) Reject(ctx context.Context, ids ...string) (int, error) {
	return m.Apply(ctx, models.ActionReject, ids)
}

// Unreview returns ids to pending.
func (m *Manager) Unreview(ctx context.Context, ids ...string) (int, error) {
	return m.Apply(ctx, models.ActionUnreview, ids)
}

// Get returns a single event.
func (m *Manager) Get(ctx context.Context, id string) (models.StoredEvent, error) {
	return m.store.Get(ctx, id)
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status models.ReviewStatus
	Date   string
}

// List returns events matching f, ordered by date, time and title.
func (m *Manager) List(ctx context.Context, f Filter) ([]models.StoredEvent, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, models.Invalidf("unknown status %q", f.Status)
	}

	var (
		events []models.StoredEvent
		err    error
	)
	if f.Date != "" {
		ids, lerr := m.store.ListByDate(ctx, f.Date)
		if lerr != nil {
			return nil, lerr
		}
		events, err = eventstore.LoadIDs(ctx, m.store, ids)
	} else {
		events, err = eventstore.LoadAll(ctx, m.store)
	}
	if err != nil {
		return nil, err
	}

	out := events[:0]
	for _, ev := range events {
		if f.Status == "" || ev.Status == f.Status {
			out = append(out, ev)
		}
	}
	SortByStart(out)
	return out, nil
}

// CountByStatus tallies every stored event by review status.
func (m *Manager) CountByStatus(ctx context.Context) (map[models.ReviewStatus]int, error) {
	events, err := eventstore.LoadAll(ctx, m.store)
	if err != nil {
		return nil, err
	}
	counts := map[models.ReviewStatus]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, ev := range events {
		counts[ev.Status]++
	}
	return counts, nil
}

// SortByStart orders events by date, then time, then title, then id.
func SortByStart(events []models.StoredEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}
