// Package eventstore is the durable keyed storage of stored events and their
// all-ids and by-date indexes.
package eventstore

import (
	"context"

	"github.com/eventradar/radar/internal/models"
)

// Store is the event store contract. Implementations keep the indexes in step
// with the record in a single atomic operation.
type Store interface {
	Upsert(ctx context.Context, ev models.StoredEvent) error
	Get(ctx context.Context, id string) (models.StoredEvent, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListByDate(ctx context.Context, date string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// LoadAll fetches every record listed in the all-ids index. Ids whose record
// has vanished between listing and reading are skipped.
func LoadAll(ctx context.Context, s Store) ([]models.StoredEvent, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	return LoadIDs(ctx, s, ids)
}

// LoadIDs fetches the given records, skipping missing ones.
func LoadIDs(ctx context.Context, s Store, ids []string) ([]models.StoredEvent, error) {
	events := make([]models.StoredEvent, 0, len(ids))
	for _, id := range ids {
		ev, err := s.Get(ctx, id)
		if err != nil {
			if models.ErrorCategory(err) == models.CategoryNotFound {
				continue
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
