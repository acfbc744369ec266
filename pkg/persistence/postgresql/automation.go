package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// AutomationRepository handles child-card automation database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const automationColumns = `
		id
	  , tenant_id
	  , step_id
	  , target_flow_id
	  , target_step_id
	  , active
	  , copy_field_values
	  , copy_assignment
	  , created_at
	  , updated_at
`

func (r *AutomationRepository) ListByStep(ctx context.Context, tenantID, stepID string, activeOnly bool) ([]*models.ChildCardAutomation, error) {
	query := `SELECT ` + automationColumns + ` FROM step_automations WHERE tenant_id = $1 AND step_id = $2`
	if activeOnly {
		query += ` AND active`
	}

	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, tenantID, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.ChildCardAutomation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, tenantID, id string) (*models.ChildCardAutomation, error) {
	query := `SELECT ` + automationColumns + ` FROM step_automations WHERE tenant_id = $1 AND id = $2`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	return automation, nil
}

func (r *AutomationRepository) Save(ctx context.Context, automation *models.ChildCardAutomation) error {
	query := `
		INSERT INTO step_automations (id, tenant_id, step_id, target_flow_id, target_step_id, active, copy_field_values, copy_assignment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			target_flow_id = EXCLUDED.target_flow_id,
			target_step_id = EXCLUDED.target_step_id,
			active = EXCLUDED.active,
			copy_field_values = EXCLUDED.copy_field_values,
			copy_assignment = EXCLUDED.copy_assignment,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		automation.ID, automation.TenantID, automation.StepID,
		automation.TargetFlowID, automation.TargetStepID, automation.Active,
		automation.CopyFieldValues, automation.CopyAssignment,
		automation.CreatedAt, automation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation %s: %w", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM step_automations WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete automation %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete automation %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrAutomationNotFound
	}

	return nil
}

func scanAutomation(row rowScanner) (*models.ChildCardAutomation, error) {
	automation := &models.ChildCardAutomation{}

	err := row.Scan(
		&automation.ID, &automation.TenantID, &automation.StepID,
		&automation.TargetFlowID, &automation.TargetStepID, &automation.Active,
		&automation.CopyFieldValues, &automation.CopyAssignment,
		&automation.CreatedAt, &automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return automation, nil
}
