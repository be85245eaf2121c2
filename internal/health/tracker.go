// Package health tracks per-source fetch and extraction outcomes. Status is
// derived on every read and never stored.
package health

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/eventradar/radar/internal/kv"
	"github.com/eventradar/radar/internal/models"
)

const (
	keySources = "health:sources"

	fieldLastSuccess = "last_success"
	fieldLastError   = "last_error"
	fieldLastErrorAt = "last_error_at"
	fieldLastRunAt   = "last_run_at"

	// WindowDays is the span of the rolling found/added counters.
	WindowDays = 7

	maxErrorChars = 500
)

// counterTTL keeps a day bucket a little longer than the window it feeds.
const counterTTL = (WindowDays + 1) * 24 * time.Hour

// Tracker records source outcomes in a kv.Store.
type Tracker struct {
	store kv.Store
	now   func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(store kv.Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

func recordKey(source string) string { return "health:" + source }

func counterKey(source, kind string, day time.Time) string {
	return fmt.Sprintf("health:%s:%s:%s", source, kind, day.UTC().Format(models.DateLayout))
}

// RecordSuccess stores the success time, clears the last error and adds to
// today's found/added counters.
func (t *Tracker) RecordSuccess(ctx context.Context, source string, found, added int, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339Nano)
	foundKey := counterKey(source, "found", at)
	addedKey := counterKey(source, "added", at)

	err := t.store.Atomic(ctx, func(tx kv.Tx) error {
		tx.HSet(recordKey(source), map[string]string{
			fieldLastSuccess: stamp,
			fieldLastRunAt:   stamp,
			fieldLastError:   "",
			fieldLastErrorAt: "",
		})
		tx.IncrBy(foundKey, int64(found))
		tx.Expire(foundKey, counterTTL)
		tx.IncrBy(addedKey, int64(added))
		tx.Expire(addedKey, counterTTL)
		tx.SAdd(keySources, source)
		return nil
	})
	if err != nil {
		return &models.StoreError{Op: "record success", Err: err}
	}
	return nil
}

// RecordFailure stores the error message. The last success is left alone.
func (t *Tracker) RecordFailure(ctx context.Context, source string, cause error, at time.Time) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxErrorChars {
		cut := maxErrorChars
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	stamp := at.UTC().Format(time.RFC3339Nano)

	err := t.store.Atomic(ctx, func(tx kv.Tx) error {
		tx.HSet(recordKey(source), map[string]string{
			fieldLastError:   msg,
			fieldLastErrorAt: stamp,
			fieldLastRunAt:   stamp,
		})
		tx.SAdd(keySources, source)
		return nil
	})
	if err != nil {
		return &models.StoreError{Op: "record failure", Err: err}
	}
	return nil
}

// Get returns the classified health of one source.
func (t *Tracker) Get(ctx context.Context, source string, active bool) (models.HealthRecord, error) {
	rec := models.HealthRecord{Source: source, Active: active}

	fields, err := t.store.HGetAll(ctx, recordKey(source))
	if err != nil {
		return rec, &models.StoreError{Op: "get health", Err: err}
	}
	rec.LastSuccess = parseStamp(fields[fieldLastSuccess])
	rec.LastError = fields[fieldLastError]
	rec.LastErrorAt = parseStamp(fields[fieldLastErrorAt])
	rec.LastRunAt = parseStamp(fields[fieldLastRunAt])

	now := t.now()
	if rec.Found7d, err = t.windowSum(ctx, source, "found", now); err != nil {
		return rec, err
	}
	if rec.Added7d, err = t.windowSum(ctx, source, "added", now); err != nil {
		return rec, err
	}

	rec.Classify(now)
	return rec, nil
}

// List returns the health of every given source, in order.
func (t *Tracker) List(ctx context.Context, descs []models.SourceDescriptor) ([]models.HealthRecord, error) {
	out := make([]models.HealthRecord, 0, len(descs))
	for _, d := range descs {
		rec, err := t.Get(ctx, d.Name, d.Active)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Known returns every source that has ever reported an outcome.
func (t *Tracker) Known(ctx context.Context) ([]string, error) {
	names, err := t.store.SMembers(ctx, keySources)
	if err != nil {
		return nil, &models.StoreError{Op: "list health sources", Err: err}
	}
	return names, nil
}

func (t *Tracker) windowSum(ctx context.Context, source, kind string, now time.Time) (int64, error) {
	var total int64
	for i := 0; i < WindowDays; i++ {
		raw, ok, err := t.store.Get(ctx, counterKey(source, kind, now.AddDate(0, 0, -i)))
		if err != nil {
			return 0, &models.StoreError{Op: "get health counter", Err: err}
		}
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

func parseStamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}
