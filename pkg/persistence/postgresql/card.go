package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// CardRepository handles card and movement database operations. Movements are
// append-only: Save inserts only the movements the card gained since the last
// write, so history rows are never rewritten.
type CardRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const cardColumns = `
		id
	  , tenant_id
	  , flow_id
	  , step_id
	  , title
	  , field_values
	  , checklists
	  , assigned_to
	  , assigned_team_id
	  , contact_id
	  , position
	  , parent_card_id
	  , status
	  , created_at
	  , updated_at
`

func (r *CardRepository) ListByFlow(ctx context.Context, tenantID, flowID string, opts persistence.ListCardsOptions) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE tenant_id = $1 AND flow_id = $2`
	args := []any{tenantID, flowID}

	if opts.StepID != "" {
		args = append(args, opts.StepID)
		query += fmt.Sprintf(" AND step_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY position, created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	cards := make([]*models.Card, 0)

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}

		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	for _, card := range cards {
		card.Movements, err = r.loadMovements(ctx, tenantID, card.ID)
		if err != nil {
			return nil, err
		}
	}

	return cards, nil
}

func (r *CardRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE tenant_id = $1 AND id = $2`

	card, err := scanCard(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewCardError("GetByID", id, err)
	}

	card.Movements, err = r.loadMovements(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return card, nil
}

func (r *CardRepository) Save(ctx context.Context, card *models.Card) error {
	fieldValuesJSON, err := json.Marshal(card.FieldValues)
	if err != nil {
		return persistence.NewCardError("Save", card.ID, err)
	}

	checklistsJSON, err := json.Marshal(card.Checklists)
	if err != nil {
		return persistence.NewCardError("Save", card.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewCardError("Save", card.ID, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO cards (id, tenant_id, flow_id, step_id, title, field_values, checklists, assigned_to, assigned_team_id, contact_id, position, parent_card_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			step_id = EXCLUDED.step_id,
			title = EXCLUDED.title,
			field_values = EXCLUDED.field_values,
			checklists = EXCLUDED.checklists,
			assigned_to = EXCLUDED.assigned_to,
			assigned_team_id = EXCLUDED.assigned_team_id,
			contact_id = EXCLUDED.contact_id,
			position = EXCLUDED.position,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		card.ID, card.TenantID, card.FlowID, card.StepID, card.Title,
		fieldValuesJSON, checklistsJSON, card.AssignedTo, card.AssignedTeamID,
		card.ContactID, card.Position, card.ParentCardID, card.Status,
		card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return persistence.NewCardError("Save", card.ID, err)
	}

	var stored int

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM card_movements WHERE tenant_id = $1 AND card_id = $2`,
		card.TenantID, card.ID,
	).Scan(&stored)
	if err != nil {
		return persistence.NewCardError("Save", card.ID, err)
	}

	if stored > len(card.Movements) {
		err = fmt.Errorf("movement history shrank from %d to %d entries", stored, len(card.Movements))

		return persistence.NewCardError("Save", card.ID, err)
	}

	for _, movement := range card.Movements[stored:] {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO card_movements (id, tenant_id, card_id, from_step_id, to_step_id, moved_at, moved_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			movement.ID, card.TenantID, card.ID, movement.FromStepID,
			movement.ToStepID, movement.MovedAt, nullableString(movement.MovedBy),
		)
		if err != nil {
			return persistence.NewCardError("Save", card.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewCardError("Save", card.ID, err)
	}

	return nil
}

func (r *CardRepository) CountByStep(ctx context.Context, tenantID, stepID string) (int64, error) {
	var count int64

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE tenant_id = $1 AND step_id = $2`,
		tenantID, stepID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards on step %s: %w", stepID, err)
	}

	return count, nil
}

func (r *CardRepository) loadMovements(ctx context.Context, tenantID, cardID string) ([]models.Movement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, from_step_id, to_step_id, moved_at, moved_by
		 FROM card_movements WHERE tenant_id = $1 AND card_id = $2 ORDER BY seq`,
		tenantID, cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	movements := make([]models.Movement, 0)

	for rows.Next() {
		var (
			movement models.Movement
			movedBy  sql.NullString
		)

		err := rows.Scan(&movement.ID, &movement.FromStepID, &movement.ToStepID, &movement.MovedAt, &movedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}

		if movedBy.Valid {
			movement.MovedBy = movedBy.String
		}

		movements = append(movements, movement)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}

	return movements, nil
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}

	var fieldValuesJSON, checklistsJSON []byte

	err := row.Scan(
		&card.ID, &card.TenantID, &card.FlowID, &card.StepID, &card.Title,
		&fieldValuesJSON, &checklistsJSON, &card.AssignedTo, &card.AssignedTeamID,
		&card.ContactID, &card.Position, &card.ParentCardID, &card.Status,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(fieldValuesJSON) > 0 {
		if err := json.Unmarshal(fieldValuesJSON, &card.FieldValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal field values: %w", err)
		}
	}

	if len(checklistsJSON) > 0 {
		if err := json.Unmarshal(checklistsJSON, &card.Checklists); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checklists: %w", err)
		}
	}

	return card, nil
}
