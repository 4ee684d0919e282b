// internal/repository/postgres/webhook_event_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartstrategy-service/internal/domain/billing"
	xerrors "smartstrategy-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookEventRepository struct {
	db *pgxpool.Pool
}

func NewWebhookEventRepository(db *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Insert persists a received payload verbatim, before any processing.
func (r *WebhookEventRepository) Insert(ctx context.Context, e *billing.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, event, gateway_object_id, external_reference, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		e.ID, e.Event, e.GatewayObjectID, e.ExternalReference, e.Payload, e.Status,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

// MarkProcessed records successful processing.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string) error {
	query := `UPDATE webhook_events SET status = $1, processed_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, billing.WebhookProcessed, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// MarkFailed records a processing failure with its error message. The raw
// payload stays in place for replay.
func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id string, cause error) error {
	query := `UPDATE webhook_events SET status = $1, error_message = $2, processed_at = $3 WHERE id = $4`

	result, err := r.db.Exec(
		ctx, query,
		billing.WebhookFailed,
		sql.NullString{String: cause.Error(), Valid: true},
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// FindByID retrieves one stored event.
func (r *WebhookEventRepository) FindByID(ctx context.Context, id string) (*billing.WebhookEvent, error) {
	query := `
		SELECT id, event, gateway_object_id, external_reference, payload, status,
		       error_message, created_at, processed_at
		FROM webhook_events
		WHERE id = $1
	`

	var e billing.WebhookEvent
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Event, &e.GatewayObjectID, &e.ExternalReference, &e.Payload, &e.Status,
		&e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find webhook event: %w", err)
	}
	return &e, nil
}

// ListFailed retrieves failed events for manual replay, oldest first.
func (r *WebhookEventRepository) ListFailed(ctx context.Context, limit int) ([]billing.WebhookEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, event, gateway_object_id, external_reference, payload, status,
		       error_message, created_at, processed_at
		FROM webhook_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, billing.WebhookFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed webhooks: %w", err)
	}
	defer rows.Close()

	events := []billing.WebhookEvent{}
	for rows.Next() {
		var e billing.WebhookEvent
		err := rows.Scan(
			&e.ID, &e.Event, &e.GatewayObjectID, &e.ExternalReference, &e.Payload, &e.Status,
			&e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}
