package eventstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eventradar/radar/internal/kv"
	"github.com/eventradar/radar/internal/models"
)

const (
	keyAllIDs     = "events:all"
	keyDatePrefix = "events:date:"
	keyEvent      = "event:"
)

// KVStore persists events as hashes with set indexes.
type KVStore struct {
	kv  kv.Store
	now func() time.Time
}

// NewKVStore wraps a key-value store.
func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{kv: store, now: time.Now}
}

func eventKey(id string) string  { return keyEvent + id }
func dateKey(date string) string { return keyDatePrefix + date }

// Upsert replaces the record and moves it between date indexes if its date
// changed. Record and indexes are written in one batch.
func (s *KVStore) Upsert(ctx context.Context, ev models.StoredEvent) error {
	if ev.ID == "" {
		return &models.StoreError{Op: "upsert", Err: fmt.Errorf("event id is required")}
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}

	prev, err := s.kv.HGetAll(ctx, eventKey(ev.ID))
	if err != nil {
		return &models.StoreError{Op: "upsert", Err: err}
	}
	oldDate := prev["date"]

	err = s.kv.Atomic(ctx, func(tx kv.Tx) error {
		tx.Del(eventKey(ev.ID))
		tx.HSet(eventKey(ev.ID), encode(ev))
		tx.SAdd(keyAllIDs, ev.ID)
		if oldDate != "" && oldDate != ev.Date {
			tx.SRem(dateKey(oldDate), ev.ID)
		}
		tx.SAdd(dateKey(ev.Date), ev.ID)
		return nil
	})
	if err != nil {
		return &models.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// Get loads a record. Missing records yield models.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, id string) (models.StoredEvent, error) {
	fields, err := s.kv.HGetAll(ctx, eventKey(id))
	if err != nil {
		return models.StoredEvent{}, &models.StoreError{Op: "get", Err: err}
	}
	if len(fields) == 0 {
		return models.StoredEvent{}, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	ev, err := decode(id, fields)
	if err != nil {
		return models.StoredEvent{}, &models.StoreError{Op: "get", Err: err}
	}
	return ev, nil
}

// Exists reports whether a record is stored under id.
func (s *KVStore) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.kv.Exists(ctx, eventKey(id))
	if err != nil {
		return false, &models.StoreError{Op: "exists", Err: err}
	}
	return ok, nil
}

// ListIDs returns every id in the all-ids index, sorted.
func (s *KVStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, keyAllIDs)
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListByDate returns the ids indexed under an ISO date, sorted.
func (s *KVStore) ListByDate(ctx context.Context, date string) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, dateKey(date))
	if err != nil {
		return nil, &models.StoreError{Op: "list_by_date", Err: err}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a record and its index entries. Deleting a missing id is
// not an error.
func (s *KVStore) Delete(ctx context.Context, id string) error {
	fields, err := s.kv.HGetAll(ctx, eventKey(id))
	if err != nil {
		return &models.StoreError{Op: "delete", Err: err}
	}
	date := fields["date"]

	err = s.kv.Atomic(ctx, func(tx kv.Tx) error {
		tx.Del(eventKey(id))
		tx.SRem(keyAllIDs, id)
		if date != "" {
			tx.SRem(dateKey(date), id)
		}
		return nil
	})
	if err != nil {
		return &models.StoreError{Op: "delete", Err: err}
	}
	return nil
}
