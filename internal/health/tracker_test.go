package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eventradar/radar/internal/kv"
	"github.com/eventradar/radar/internal/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestTracker(store kv.Store) *Tracker {
	tr := NewTracker(store)
	tr.now = func() time.Time { return testNow }
	return tr
}

func TestTrackerClassification(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		active bool
		setup  func(tr *Tracker)
		want   models.HealthStatus
	}{
		{
			name:   "no data",
			active: true,
			setup:  func(*Tracker) {},
			want:   models.HealthUnknown,
		},
		{
			name:   "recent success",
			active: true,
			setup: func(tr *Tracker) {
				tr.RecordSuccess(ctx, "s", 3, 1, testNow.Add(-2*time.Hour))
			},
			want: models.HealthHealthy,
		},
		{
			name:   "success four days ago without error",
			active: true,
			setup: func(tr *Tracker) {
				tr.RecordSuccess(ctx, "s", 3, 1, testNow.Add(-4*24*time.Hour))
			},
			want: models.HealthDegraded,
		},
		{
			name:   "error after stale success",
			active: true,
			setup: func(tr *Tracker) {
				tr.RecordSuccess(ctx, "s", 3, 1, testNow.Add(-30*time.Hour))
				tr.RecordFailure(ctx, "s", errors.New("status 503"), testNow.Add(-time.Hour))
			},
			want: models.HealthFailing,
		},
		{
			name:   "error with no success ever",
			active: true,
			setup: func(tr *Tracker) {
				tr.RecordFailure(ctx, "s", errors.New("dns"), testNow.Add(-time.Hour))
			},
			want: models.HealthFailing,
		},
		{
			name:   "error after fresh success",
			active: true,
			setup: func(tr *Tracker) {
				tr.RecordSuccess(ctx, "s", 3, 1, testNow.Add(-2*time.Hour))
				tr.RecordFailure(ctx, "s", errors.New("timeout"), testNow.Add(-time.Hour))
			},
			want: models.HealthHealthy,
		},
		{
			name:   "success clears error",
			active: true,
			setup: func(tr *Tracker) {
				tr.RecordFailure(ctx, "s", errors.New("timeout"), testNow.Add(-3*time.Hour))
				tr.RecordSuccess(ctx, "s", 3, 1, testNow.Add(-time.Hour))
			},
			want: models.HealthHealthy,
		},
		{
			name:   "disabled",
			active: false,
			setup: func(tr *Tracker) {
				tr.RecordFailure(ctx, "s", errors.New("timeout"), testNow)
			},
			want: models.HealthInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(kv.NewMemoryStore())
			tt.setup(tr)

			rec, err := tr.Get(ctx, "s", tt.active)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, rec.Status)
			}
		})
	}
}

func TestTrackerFailureKeepsLastSuccess(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(kv.NewMemoryStore())
	success := testNow.Add(-5 * time.Hour)

	tr.RecordSuccess(ctx, "s", 1, 1, success)
	tr.RecordFailure(ctx, "s", errors.New("boom"), testNow)

	rec, err := tr.Get(ctx, "s", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LastSuccess == nil || !rec.LastSuccess.Equal(success) {
		t.Errorf("expected last success kept, got %v", rec.LastSuccess)
	}
	if rec.LastError != "boom" || rec.LastErrorAt == nil {
		t.Errorf("expected error recorded, got %q at %v", rec.LastError, rec.LastErrorAt)
	}
}

func TestTrackerTruncatesErrorOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(kv.NewMemoryStore())

	msg := "x" + strings.Repeat("ü", maxErrorChars)
	tr.RecordFailure(ctx, "s", errors.New(msg), testNow)

	rec, err := tr.Get(ctx, "s", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.LastError) > maxErrorChars {
		t.Errorf("expected at most %d bytes, got %d", maxErrorChars, len(rec.LastError))
	}
	if !utf8.ValidString(rec.LastError) {
		t.Errorf("expected valid UTF-8, got %q", rec.LastError)
	}
	if !strings.HasPrefix(rec.LastError, "xü") {
		t.Errorf("expected message prefix kept, got %q", rec.LastError)
	}
}

func TestTrackerRollingWindow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := kv.NewRedisStore(&redis.Options{Addr: mr.Addr()})
	defer store.Close()
	tr := newTestTracker(store)

	tr.RecordSuccess(ctx, "s", 5, 2, testNow)
	tr.RecordSuccess(ctx, "s", 4, 1, testNow.AddDate(0, 0, -1))
	tr.RecordSuccess(ctx, "s", 10, 10, testNow.AddDate(0, 0, -6))
	tr.RecordSuccess(ctx, "s", 100, 100, testNow.AddDate(0, 0, -7)) // outside window

	rec, err := tr.Get(ctx, "s", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Found7d != 19 || rec.Added7d != 13 {
		t.Errorf("expected found=19 added=13, got found=%d added=%d", rec.Found7d, rec.Added7d)
	}

	ttl := mr.TTL(counterKey("s", "found", testNow))
	if ttl <= 0 || ttl > counterTTL {
		t.Errorf("expected counter to expire within %v, got %v", counterTTL, ttl)
	}
}

func TestTrackerList(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(kv.NewMemoryStore())
	tr.RecordSuccess(ctx, "a", 1, 1, testNow)

	recs, err := tr.List(ctx, []models.SourceDescriptor{{Name: "a", Active: true}, {Name: "b", Active: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].Status != models.HealthHealthy || recs[1].Status != models.HealthUnknown {
		t.Errorf("unexpected records: %+v", recs)
	}

	known, err := tr.Known(ctx)
	if err != nil || len(known) != 1 || known[0] != "a" {
		t.Errorf("expected known [a], got %v (%v)", known, err)
	}
}
