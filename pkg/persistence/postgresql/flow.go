package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *FlowRepository) List(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	query := `
		SELECT
			id
		  , tenant_id
		  , name
		  , description
		  , visibility
		  , created_at
		  , updated_at
		  , deleted_at
		FROM flows
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Flow, error) {
	query := `
		SELECT
			id
		  , tenant_id
		  , name
		  , description
		  , visibility
		  , created_at
		  , updated_at
		  , deleted_at
		FROM flows
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	flow, err := scanFlow(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	query := `
		INSERT INTO flows (id, tenant_id, name, description, visibility, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			visibility = EXCLUDED.visibility,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err := r.db.ExecContext(ctx, query,
		flow.ID, flow.TenantID, flow.Name, flow.Description, flow.Visibility,
		flow.CreatedAt, flow.UpdatedAt, flow.DeletedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// Delete soft deletes a flow by setting deleted_at.
func (r *FlowRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := `UPDATE flows SET deleted_at = $3 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, tenantID, id, time.Now().UTC())
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.Flow, error) {
	flow := &models.Flow{}

	err := row.Scan(
		&flow.ID, &flow.TenantID, &flow.Name, &flow.Description, &flow.Visibility,
		&flow.CreatedAt, &flow.UpdatedAt, &flow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return flow, nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

// StepRepository handles step-related database operations.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const stepColumns = `
		id
	  , flow_id
	  , title
	  , color
	  , position
	  , responsible_kind
	  , responsible_id
	  , step_type
	  , created_at
	  , updated_at
`

func (r *StepRepository) ListByFlow(ctx context.Context, tenantID, flowID string) ([]*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE tenant_id = $1 AND flow_id = $2 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, tenantID, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.Step, 0)

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func (r *StepRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE tenant_id = $1 AND id = $2`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) Save(ctx context.Context, tenantID string, step *models.Step) error {
	query := `
		INSERT INTO steps (id, tenant_id, flow_id, title, color, position, responsible_kind, responsible_id, step_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			color = EXCLUDED.color,
			position = EXCLUDED.position,
			responsible_kind = EXCLUDED.responsible_kind,
			responsible_id = EXCLUDED.responsible_id,
			step_type = EXCLUDED.step_type,
			updated_at = EXCLUDED.updated_at
	`

	kind := step.Responsible.Kind
	if kind == "" {
		kind = models.ResponsibleNone
	}

	var responsibleID *string
	if !step.Responsible.IsNone() {
		responsibleID = &step.Responsible.ID
	}

	var stepType *string
	if step.Type != "" {
		value := string(step.Type)
		stepType = &value
	}

	_, err := r.db.ExecContext(ctx, query,
		step.ID, tenantID, step.FlowID, step.Title, step.Color, step.Position,
		kind, responsibleID, stepType, step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save step %s: %w", step.ID, err)
	}

	return nil
}

// Reorder rewrites positions to the dense order of orderedIDs in one
// transaction. The deferred uniqueness constraint on (flow_id, position) is
// checked at commit, so the intermediate states stay invisible.
func (r *StepRepository) Reorder(ctx context.Context, tenantID, flowID string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for index, id := range orderedIDs {
		var result sql.Result

		result, err = tx.ExecContext(ctx,
			`UPDATE steps SET position = $1, updated_at = $2 WHERE tenant_id = $3 AND flow_id = $4 AND id = $5`,
			index+1, time.Now().UTC(), tenantID, flowID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to reposition step %s: %w", id, err)
		}

		var affected int64

		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to reposition step %s: %w", id, err)
		}

		if affected == 0 {
			err = persistence.ErrStepNotFound

			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}

func (r *StepRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM steps WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete step %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete step %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrStepNotFound
	}

	return nil
}

func scanStep(row rowScanner) (*models.Step, error) {
	step := &models.Step{}

	var (
		kind          string
		responsibleID sql.NullString
		stepType      sql.NullString
	)

	err := row.Scan(
		&step.ID, &step.FlowID, &step.Title, &step.Color, &step.Position,
		&kind, &responsibleID, &stepType, &step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.Responsible = models.Responsible{Kind: models.ResponsibleKind(kind)}
	if responsibleID.Valid {
		step.Responsible.ID = responsibleID.String
	}

	if stepType.Valid {
		step.Type = models.StepType(stepType.String)
	}

	return step, nil
}

// FieldRepository handles step field database operations.
type FieldRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const fieldColumns = `
		id
	  , step_id
	  , label
	  , slug
	  , field_type
	  , required
	  , position
	  , configuration
	  , created_at
	  , updated_at
`

func (r *FieldRepository) ListByStep(ctx context.Context, tenantID, stepID string) ([]*models.StepField, error) {
	query := `SELECT ` + fieldColumns + ` FROM step_fields WHERE tenant_id = $1 AND step_id = $2 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, tenantID, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	fields := make([]*models.StepField, 0)

	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}

		fields = append(fields, field)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	return fields, nil
}

func (r *FieldRepository) GetByID(ctx context.Context, tenantID, id string) (*models.StepField, error) {
	query := `SELECT ` + fieldColumns + ` FROM step_fields WHERE tenant_id = $1 AND id = $2`

	field, err := scanField(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan field: %w", err)
	}

	return field, nil
}

func (r *FieldRepository) Save(ctx context.Context, tenantID string, field *models.StepField) error {
	configurationJSON, err := json.Marshal(field.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal field configuration: %w", err)
	}

	query := `
		INSERT INTO step_fields (id, tenant_id, step_id, label, slug, field_type, required, position, configuration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			slug = EXCLUDED.slug,
			field_type = EXCLUDED.field_type,
			required = EXCLUDED.required,
			position = EXCLUDED.position,
			configuration = EXCLUDED.configuration,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		field.ID, tenantID, field.StepID, field.Label, nullableString(field.Slug),
		field.Type, field.Required, field.Position, configurationJSON,
		field.CreatedAt, field.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save field %s: %w", field.ID, err)
	}

	return nil
}

func (r *FieldRepository) Reorder(ctx context.Context, tenantID, stepID string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for index, id := range orderedIDs {
		var result sql.Result

		result, err = tx.ExecContext(ctx,
			`UPDATE step_fields SET position = $1, updated_at = $2 WHERE tenant_id = $3 AND step_id = $4 AND id = $5`,
			index+1, time.Now().UTC(), tenantID, stepID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to reposition field %s: %w", id, err)
		}

		var affected int64

		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to reposition field %s: %w", id, err)
		}

		if affected == 0 {
			err = persistence.ErrFieldNotFound

			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}

func (r *FieldRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM step_fields WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete field %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete field %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrFieldNotFound
	}

	return nil
}

func scanField(row rowScanner) (*models.StepField, error) {
	field := &models.StepField{}

	var (
		slug              sql.NullString
		configurationJSON []byte
	)

	err := row.Scan(
		&field.ID, &field.StepID, &field.Label, &slug, &field.Type,
		&field.Required, &field.Position, &configurationJSON,
		&field.CreatedAt, &field.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if slug.Valid {
		field.Slug = slug.String
	}

	if len(configurationJSON) > 0 {
		if err := json.Unmarshal(configurationJSON, &field.Configuration); err != nil {
			return nil, fmt.Errorf("failed to unmarshal field configuration: %w", err)
		}
	}

	return field, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
