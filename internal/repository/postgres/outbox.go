package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type outboxRepository struct {
	tx *sqlx.Tx
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	_, err := r.tx.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return mapError(err, "create outbox event")
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message, retry_count, retry_at,
			created_at, processed_at, updated_at
		FROM outbox_events
		WHERE (status = 'PENDING' AND (retry_at IS NULL OR retry_at <= NOW()))
		   OR (status = 'FAILED' AND retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	events := []*model.OutboxEvent{}
	if err := r.tx.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, mapError(err, "get pending outbox events")
	}
	return events, nil
}

func (r *outboxRepository) Lease(ctx context.Context, ids []uuid.UUID, until time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := r.tx.ExecContext(ctx,
		`UPDATE outbox_events SET retry_at = $1, updated_at = NOW() WHERE id = ANY($2::uuid[])`,
		until, pq.Array(keys))
	return mapError(err, "lease outbox events")
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'PROCESSED', error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return mapError(err, "mark outbox event processed")
	}
	return checkAffected(res, "mark outbox event processed")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, retryAt *time.Time) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'FAILED', error_message = $1, retry_at = $2,
			retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $3
	`, errorMessage, retryAt, id)
	if err != nil {
		return mapError(err, "mark outbox event failed")
	}
	return checkAffected(res, "mark outbox event failed")
}
