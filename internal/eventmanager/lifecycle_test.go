package eventmanager

import (
	"context"
	"testing"
	"time"

	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/kv"
	"github.com/eventradar/radar/internal/logging"
	"github.com/eventradar/radar/internal/models"
)

func seed(t *testing.T, store eventstore.Store, events ...models.StoredEvent) {
	t.Helper()
	for _, ev := range events {
		if err := store.Upsert(context.Background(), ev); err != nil {
			t.Fatalf("seed %s: %v", ev.ID, err)
		}
	}
}

func pending(id, date, title string) models.StoredEvent {
	return models.StoredEvent{
		ID:        id,
		Title:     title,
		Date:      date,
		Source:    "test",
		Status:    models.StatusPending,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestManager(t *testing.T) (*Manager, eventstore.Store) {
	store := eventstore.NewKVStore(kv.NewMemoryStore())
	m := NewManager(store, logging.Discard())
	return m, store
}

func TestApplyCountsExistingRecords(t *testing.T) {
	m, store := newTestManager(t)
	seed(t, store, pending("a", "2026-04-01", "A"), pending("b", "2026-04-02", "B"))

	n, err := m.Approve(context.Background(), "a", "b", "missing", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 updated, got %d", n)
	}

	ev, _ := store.Get(context.Background(), "a")
	if ev.Status != models.StatusApproved || ev.ApprovedAt == nil {
		t.Errorf("expected approved with timestamp, got %+v", ev)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	m, store := newTestManager(t)
	seed(t, store, pending("a", "2026-04-01", "A"))
	ctx := context.Background()

	first := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return first }
	if _, err := m.Approve(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.now = func() time.Time { return first.Add(time.Hour) }
	n, err := m.Approve(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected repeated approve to count the record, got %d", n)
	}

	ev, _ := store.Get(ctx, "a")
	if ev.Status != models.StatusApproved || !ev.ApprovedAt.Equal(first) {
		t.Errorf("expected approvedAt unchanged at %v, got %+v", first, ev.ApprovedAt)
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seed(t, store, pending("a", "2026-04-01", "A"))

	steps := []struct {
		action       models.ReviewAction
		wantStatus   models.ReviewStatus
		wantApproved bool
		wantRejected bool
	}{
		{models.ActionApprove, models.StatusApproved, true, false},
		{models.ActionReject, models.StatusRejected, true, true},
		{models.ActionUnreview, models.StatusPending, false, false},
		{models.ActionReject, models.StatusRejected, false, true},
		{models.ActionApprove, models.StatusApproved, true, false},
	}

	for i, step := range steps {
		if _, err := m.Apply(ctx, step.action, []string{"a"}); err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		ev, err := store.Get(ctx, "a")
		if err != nil {
			t.Fatalf("step %d: get: %v", i, err)
		}
		if ev.Status != step.wantStatus {
			t.Errorf("step %d (%s): expected %s, got %s", i, step.action, step.wantStatus, ev.Status)
		}
		if (ev.ApprovedAt != nil) != step.wantApproved || (ev.RejectedAt != nil) != step.wantRejected {
			t.Errorf("step %d (%s): unexpected timestamps approved=%v rejected=%v", i, step.action, ev.ApprovedAt, ev.RejectedAt)
		}
	}
}

func TestApplyUnknownAction(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Apply(context.Background(), models.ReviewAction("publish"), []string{"a"}); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	late := pending("c", "2026-04-01", "C")
	late.Time = "20:00"
	early := pending("b", "2026-04-01", "B")
	early.Time = "09:00"
	seed(t, store, pending("a", "2026-04-02", "A"), late, early)
	m.Approve(ctx, "a")

	all, err := m.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected ordering b, c, a, got %v", ids(all))
	}

	byStatus, _ := m.List(ctx, Filter{Status: models.StatusPending})
	if len(byStatus) != 2 {
		t.Errorf("expected 2 pending, got %v", ids(byStatus))
	}

	byDate, _ := m.List(ctx, Filter{Date: "2026-04-02"})
	if len(byDate) != 1 || byDate[0].ID != "a" {
		t.Errorf("expected only a on 2026-04-02, got %v", ids(byDate))
	}

	if _, err := m.List(ctx, Filter{Status: "archived"}); err == nil {
		t.Error("expected error for unknown status")
	}

	counts, err := m.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[models.StatusApproved] != 1 || counts[models.StatusPending] != 2 || counts[models.StatusRejected] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func ids(events []models.StoredEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}
