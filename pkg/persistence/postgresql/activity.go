package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

// ActivityRepository handles card activity database operations.
type ActivityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const activityColumns = `
		id
	  , tenant_id
	  , card_id
	  , title
	  , notes
	  , due_at
	  , status
	  , completed_at
	  , created_by
	  , created_at
	  , updated_at
`

func (r *ActivityRepository) ListByCard(ctx context.Context, tenantID, cardID string) ([]*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id = $1 AND card_id = $2 ORDER BY due_at`

	return r.list(ctx, query, tenantID, cardID)
}

func (r *ActivityRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id = $1 AND id = $2`

	activity, err := scanActivity(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}

	return activity, nil
}

func (r *ActivityRepository) Save(ctx context.Context, activity *models.Activity) error {
	query := `
		INSERT INTO activities (id, tenant_id, card_id, title, notes, due_at, status, completed_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			notes = EXCLUDED.notes,
			due_at = EXCLUDED.due_at,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		activity.ID, activity.TenantID, activity.CardID, activity.Title,
		activity.Notes, activity.DueAt, activity.Status, activity.CompletedAt,
		nullableString(activity.CreatedBy), activity.CreatedAt, activity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity %s: %w", activity.ID, err)
	}

	return nil
}

// ListDuePending feeds the overdue sweep. It crosses tenants on purpose: the
// sweep is a background job, and each returned activity carries its tenant.
func (r *ActivityRepository) ListDuePending(ctx context.Context, before time.Time) ([]*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE status = $1 AND due_at < $2 ORDER BY due_at`

	return r.list(ctx, query, models.ActivityStatusPending, before)
}

func (r *ActivityRepository) list(ctx context.Context, query string, args ...any) ([]*models.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	activities := make([]*models.Activity, 0)

	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		activities = append(activities, activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}

func scanActivity(row rowScanner) (*models.Activity, error) {
	activity := &models.Activity{}

	var createdBy sql.NullString

	err := row.Scan(
		&activity.ID, &activity.TenantID, &activity.CardID, &activity.Title,
		&activity.Notes, &activity.DueAt, &activity.Status, &activity.CompletedAt,
		&createdBy, &activity.CreatedAt, &activity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if createdBy.Valid {
		activity.CreatedBy = createdBy.String
	}

	return activity, nil
}
