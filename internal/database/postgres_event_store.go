package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventradar/radar/internal/models"
	"github.com/lib/pq"
)

// PostgresEventStore implements eventstore.Store on PostgreSQL. The by-date
// index is the event_date column, so record and index cannot diverge.
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore creates a new PostgreSQL event store.
func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

const eventColumns = `id, title, event_date, event_time, location, city, category, description,
	detail_url, registration_url, thumbnail, source, status, created_at, approved_at, rejected_at`

// Upsert inserts or fully replaces an event in one transaction.
func (s *PostgresEventStore) Upsert(ctx context.Context, ev models.StoredEvent) error {
	if ev.ID == "" {
		return &models.StoreError{Op: "upsert", Err: fmt.Errorf("event id is required")}
	}
	if ev.Status == "" {
		ev.Status = models.StatusPending
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StoreError{Op: "upsert", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			event_date = EXCLUDED.event_date,
			event_time = EXCLUDED.event_time,
			location = EXCLUDED.location,
			city = EXCLUDED.city,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			detail_url = EXCLUDED.detail_url,
			registration_url = EXCLUDED.registration_url,
			thumbnail = EXCLUDED.thumbnail,
			source = EXCLUDED.source,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			approved_at = EXCLUDED.approved_at,
			rejected_at = EXCLUDED.rejected_at
	`

	_, err = tx.ExecContext(ctx, query,
		ev.ID,
		ev.Title,
		ev.Date,
		ev.Time,
		ev.Location,
		ev.City,
		ev.Category,
		ev.Description,
		ev.DetailURL,
		ev.RegistrationURL,
		ev.Thumbnail,
		ev.Source,
		string(ev.Status),
		ev.CreatedAt,
		nullTime(ev.ApprovedAt),
		nullTime(ev.RejectedAt),
	)
	if err != nil {
		return &models.StoreError{Op: "upsert", Err: fmt.Errorf("failed to upsert event: %w", err)}
	}

	if err := tx.Commit(); err != nil {
		return &models.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// Get retrieves an event by its ID.
func (s *PostgresEventStore) Get(ctx context.Context, id string) (models.StoredEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredEvent{}, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.StoredEvent{}, &models.StoreError{Op: "get", Err: err}
	}
	return ev, nil
}

// Exists reports whether an event with id is stored.
func (s *PostgresEventStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, &models.StoreError{Op: "exists", Err: err}
	}
	return exists, nil
}

// ListIDs returns every event id, sorted.
func (s *PostgresEventStore) ListIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, "list", `SELECT id FROM events ORDER BY id`)
}

// ListByDate returns the ids of events on an ISO date, sorted.
func (s *PostgresEventStore) ListByDate(ctx context.Context, date string) ([]string, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, &models.StoreError{Op: "list_by_date", Err: fmt.Errorf("invalid date %q", date)}
	}
	return s.queryIDs(ctx, "list_by_date", `SELECT id FROM events WHERE event_date = $1 ORDER BY id`, date)
}

// Delete removes an event. Deleting a missing id is not an error.
func (s *PostgresEventStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return &models.StoreError{Op: "delete", Err: err}
	}
	return nil
}

// DeleteMany removes a batch of events in a single statement.
func (s *PostgresEventStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, &models.StoreError{Op: "delete_many", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &models.StoreError{Op: "delete_many", Err: err}
	}
	return int(n), nil
}

func (s *PostgresEventStore) queryIDs(ctx context.Context, op, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StoreError{Op: op, Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &models.StoreError{Op: op, Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: op, Err: err}
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (models.StoredEvent, error) {
	var (
		ev         models.StoredEvent
		date       time.Time
		status     string
		approvedAt sql.NullTime
		rejectedAt sql.NullTime
	)

	err := row.Scan(
		&ev.ID,
		&ev.Title,
		&date,
		&ev.Time,
		&ev.Location,
		&ev.City,
		&ev.Category,
		&ev.Description,
		&ev.DetailURL,
		&ev.RegistrationURL,
		&ev.Thumbnail,
		&ev.Source,
		&status,
		&ev.CreatedAt,
		&approvedAt,
		&rejectedAt,
	)
	if err != nil {
		return ev, err
	}

	ev.Date = date.Format(models.DateLayout)
	ev.Status = models.DeriveStatus(status, nil)
	ev.CreatedAt = ev.CreatedAt.UTC()
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		ev.ApprovedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time.UTC()
		ev.RejectedAt = &t
	}
	return ev, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
