package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

// AccessRepository handles flow access policies and per-step visibility
// overrides. A flow with no rows in either access table has an empty policy,
// which the access service interprets as company-wide visibility.
type AccessRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AccessRepository) GetFlowPolicy(ctx context.Context, tenantID, flowID string) (*models.FlowAccessPolicy, error) {
	policy := &models.FlowAccessPolicy{FlowID: flowID}

	teamIDs, err := r.queryStrings(ctx,
		`SELECT team_id FROM flow_team_access WHERE tenant_id = $1 AND flow_id = $2 ORDER BY team_id`,
		tenantID, flowID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query team access: %w", err)
	}

	policy.TeamIDs = teamIDs

	userIDs, err := r.queryStrings(ctx,
		`SELECT user_id FROM flow_user_exclusions WHERE tenant_id = $1 AND flow_id = $2 ORDER BY user_id`,
		tenantID, flowID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query user exclusions: %w", err)
	}

	policy.ExcludedUserIDs = userIDs

	return policy, nil
}

func (r *AccessRepository) SetTeamAccess(ctx context.Context, tenantID, flowID string, teamIDs []string) error {
	return r.replaceSet(ctx, "flow_team_access", "team_id", tenantID, flowID, teamIDs)
}

func (r *AccessRepository) SetUserExclusions(ctx context.Context, tenantID, flowID string, userIDs []string) error {
	return r.replaceSet(ctx, "flow_user_exclusions", "user_id", tenantID, flowID, userIDs)
}

func (r *AccessRepository) replaceSet(ctx context.Context, table, column, tenantID, flowID string, values []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND flow_id = $2`, table),
		tenantID, flowID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	for _, value := range values {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (tenant_id, flow_id, %s) VALUES ($1, $2, $3)`, table, column),
			tenantID, flowID, value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit %s update: %w", table, err)
	}

	return nil
}

// GetStepVisibility returns nil when no override row exists for the pair, so
// callers can fall back to the step's default visibility.
func (r *AccessRepository) GetStepVisibility(ctx context.Context, tenantID, stepID, userID string) (*models.StepVisibility, error) {
	visibility := &models.StepVisibility{StepID: stepID, UserID: userID}

	err := r.db.QueryRowContext(ctx,
		`SELECT can_view, can_edit FROM step_visibility WHERE tenant_id = $1 AND step_id = $2 AND user_id = $3`,
		tenantID, stepID, userID,
	).Scan(&visibility.CanView, &visibility.CanEdit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query step visibility: %w", err)
	}

	return visibility, nil
}

func (r *AccessRepository) SetStepVisibility(ctx context.Context, tenantID string, visibility *models.StepVisibility) error {
	query := `
		INSERT INTO step_visibility (tenant_id, step_id, user_id, can_view, can_edit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (step_id, user_id) DO UPDATE SET
			can_view = EXCLUDED.can_view,
			can_edit = EXCLUDED.can_edit
	`

	_, err := r.db.ExecContext(ctx, query,
		tenantID, visibility.StepID, visibility.UserID, visibility.CanView, visibility.CanEdit,
	)
	if err != nil {
		return fmt.Errorf("failed to save step visibility: %w", err)
	}

	return nil
}

func (r *AccessRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer closeRows(ctx, r.logger, rows)

	values := make([]string, 0)

	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, rows.Err()
}
