package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/eventradar/radar/internal/models"
)

// NormalizeTitle lowercases a title and collapses its whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// CanonicalKey is the deduplication key: normalized title plus ISO date.
// Location is not part of the key, so two events with the same title on the
// same day at different venues collide.
func CanonicalKey(title, date string) string {
	return NormalizeTitle(title) + "|" + strings.TrimSpace(date)
}

// EventID derives the stored event id from a canonical key. Writers and the
// existence check use the same derivation, so lookup is a direct key check.
func EventID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:12])
}

// CandidateID is EventID(CanonicalKey(c.Title, c.Date)).
func CandidateID(c models.CandidateEvent) string {
	return EventID(CanonicalKey(c.Title, c.Date))
}

// ExistenceChecker is the part of the event store the deduplicator needs.
type ExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Deduplicator decides first-seen-wins within a run and checks the store
// across runs. It is safe for concurrent use by pipeline workers.
type Deduplicator struct {
	store ExistenceChecker

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates a deduplicator for one run.
func NewDeduplicator(store ExistenceChecker) *Deduplicator {
	return &Deduplicator{store: store, seen: make(map[string]struct{})}
}

// Claim reserves c's id for the caller. It reports dup=true when the id was
// already claimed in this run or exists in the store. A store failure is
// returned as *models.StoreError and leaves nothing claimed.
func (d *Deduplicator) Claim(ctx context.Context, c models.CandidateEvent) (id string, dup bool, err error) {
	id = CandidateID(c)

	d.mu.Lock()
	if _, ok := d.seen[id]; ok {
		d.mu.Unlock()
		return id, true, nil
	}
	d.seen[id] = struct{}{}
	d.mu.Unlock()

	exists, err := d.store.Exists(ctx, id)
	if err != nil {
		d.Release(id)
		if models.ErrorCategory(err) != models.CategoryStore {
			err = &models.StoreError{Op: "exists", Err: err}
		}
		return id, false, err
	}
	return id, exists, nil
}

// Release forgets a claim whose write failed so a later source may retry it.
func (d *Deduplicator) Release(id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

// IsDuplicate reports whether c would be rejected, without claiming it.
func (d *Deduplicator) IsDuplicate(ctx context.Context, c models.CandidateEvent) (bool, error) {
	id := CandidateID(c)

	d.mu.Lock()
	_, ok := d.seen[id]
	d.mu.Unlock()
	if ok {
		return true, nil
	}
	return d.store.Exists(ctx, id)
}
