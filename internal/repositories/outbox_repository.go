package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coffee-backend/internal/db"
	"coffee-backend/internal/models"
)

type OutboxRepository struct {
	DB      *pgxpool.Pool
	Retries int
}

func NewOutboxRepository(pool *pgxpool.Pool, retries int) *OutboxRepository {
	return &OutboxRepository{DB: pool, Retries: retries}
}

// insertOutbox records event inside tx. The unique key on
// (event_type, aggregate_kind, aggregate_id) makes a repeated insert a no-op.
func insertOutbox(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO outbox_events (event_type, aggregate_kind, aggregate_id, payload, status, created_at)
		VALUES ($1, $2, $3, $4, 'PENDING', $5)
		ON CONFLICT (event_type, aggregate_kind, aggregate_id) DO UPDATE SET event_type = EXCLUDED.event_type
		RETURNING id, status, attempts`,
		event.EventType, event.AggregateKind, event.AggregateID, []byte(event.Payload), event.CreatedAt,
	).Scan(&event.ID, &event.Status, &event.Attempts)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ListPending returns undelivered events oldest first, skipping dead ones.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	var out []*models.OutboxEvent
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx, `
			SELECT id, event_type, aggregate_kind, aggregate_id, payload, status, attempts, last_error, created_at, processed_at
			FROM outbox_events
			WHERE status IN ('PENDING', 'FAILED')
			ORDER BY created_at, id
			LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e := &models.OutboxEvent{}
			var payload []byte
			if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateKind, &e.AggregateID, &payload,
				&e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.ProcessedAt); err != nil {
				return err
			}
			e.Payload = payload
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox events: %w", err)
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		_, err := r.DB.Exec(ctx, `
			UPDATE outbox_events
			SET status = 'SENT', attempts = attempts + 1, last_error = NULL, processed_at = $2
			WHERE id = $1`, id, at)
		if err != nil {
			return fmt.Errorf("failed to mark outbox event sent: %w", err)
		}
		return nil
	})
}

// MarkFailed records a failed attempt. Events reaching maxAttempts become DEAD.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		_, err := r.DB.Exec(ctx, `
			UPDATE outbox_events
			SET attempts = attempts + 1,
			    last_error = $2,
			    status = CASE WHEN attempts + 1 >= $3 THEN 'DEAD' ELSE 'FAILED' END
			WHERE id = $1`, id, reason, maxAttempts)
		if err != nil {
			return fmt.Errorf("failed to mark outbox event failed: %w", err)
		}
		return nil
	})
}
