package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit events.
type Repository interface {
	Insert(ctx context.Context, event Event) error
	RecentByPhone(ctx context.Context, phone string, limit int) ([]Event, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed audit repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one event to the trail.
func (r *PostgresRepository) Insert(ctx context.Context, event Event) error {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO auth_events (id, device_id, phone, kind, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, id, event.DeviceID, event.Phone, event.Kind, event.Detail, event.CreatedAt.UTC())
	return err
}

// RecentByPhone lists the newest events for a phone number, newest first.
func (r *PostgresRepository) RecentByPhone(ctx context.Context, phone string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT id, device_id, phone, kind, detail, created_at
        FROM auth_events WHERE phone = $1 ORDER BY created_at DESC LIMIT $2`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			id    uuid.UUID
			event Event
		)
		if err := rows.Scan(&id, &event.DeviceID, &event.Phone, &event.Kind, &event.Detail, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.ID = id.String()
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
