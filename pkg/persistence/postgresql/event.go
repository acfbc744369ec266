package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

// EventRepository is the append-only store behind the card timeline.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *EventRepository) Append(ctx context.Context, event *models.CardEvent) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO card_events (id, tenant_id, card_id, contact_id, kind, actor, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.TenantID, event.CardID, event.ContactID,
		event.Kind, nullableString(event.Actor), payloadJSON, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", event.ID, err)
	}

	return nil
}

func (r *EventRepository) ListByCard(ctx context.Context, tenantID, cardID string) ([]*models.CardEvent, error) {
	return r.list(ctx,
		`SELECT id, tenant_id, card_id, contact_id, kind, actor, payload, occurred_at
		 FROM card_events WHERE tenant_id = $1 AND card_id = $2 ORDER BY seq`,
		tenantID, cardID,
	)
}

func (r *EventRepository) ListByContact(ctx context.Context, tenantID, contactID string) ([]*models.CardEvent, error) {
	return r.list(ctx,
		`SELECT id, tenant_id, card_id, contact_id, kind, actor, payload, occurred_at
		 FROM card_events WHERE tenant_id = $1 AND contact_id = $2 ORDER BY occurred_at, seq`,
		tenantID, contactID,
	)
}

func (r *EventRepository) list(ctx context.Context, query string, args ...any) ([]*models.CardEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	events := make([]*models.CardEvent, 0)

	for rows.Next() {
		event := &models.CardEvent{}

		var (
			actor       sql.NullString
			payloadJSON []byte
		)

		err := rows.Scan(
			&event.ID, &event.TenantID, &event.CardID, &event.ContactID,
			&event.Kind, &actor, &payloadJSON, &event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if actor.Valid {
			event.Actor = actor.String
		}

		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
