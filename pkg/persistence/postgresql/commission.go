package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

// CommissionRepository handles payments, teams, compensation levels, rules
// and calculation results.
type CommissionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CommissionRepository) GetPayment(ctx context.Context, tenantID, id string) (*models.Payment, error) {
	payment := &models.Payment{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, card_id, amount, status, confirmed_at, created_at
		 FROM payments WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&payment.ID, &payment.TenantID, &payment.CardID, &payment.Amount,
		&payment.Status, &payment.ConfirmedAt, &payment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	return payment, nil
}

func (r *CommissionRepository) SavePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, tenant_id, card_id, amount, status, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			confirmed_at = EXCLUDED.confirmed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.TenantID, payment.CardID, payment.Amount,
		payment.Status, payment.ConfirmedAt, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save payment %s: %w", payment.ID, err)
	}

	return nil
}

func (r *CommissionRepository) SaveTeam(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (id, tenant_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`

	_, err := r.db.ExecContext(ctx, query, team.ID, team.TenantID, team.Name)
	if err != nil {
		return fmt.Errorf("failed to save team %s: %w", team.ID, err)
	}

	return nil
}

func (r *CommissionRepository) GetTeam(ctx context.Context, tenantID, id string) (*models.Team, error) {
	team := &models.Team{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM teams WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&team.ID, &team.TenantID, &team.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan team: %w", err)
	}

	return team, nil
}

func (r *CommissionRepository) AddTeamMember(ctx context.Context, tenantID, teamID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_members (tenant_id, team_id, user_id) VALUES ($1, $2, $3)
		 ON CONFLICT (team_id, user_id) DO NOTHING`,
		tenantID, teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add member %s to team %s: %w", userID, teamID, err)
	}

	return nil
}

func (r *CommissionRepository) ListTeamMembers(ctx context.Context, tenantID, teamID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM team_members WHERE tenant_id = $1 AND team_id = $2 ORDER BY user_id`,
		tenantID, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	members := make([]string, 0)

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}

		members = append(members, userID)
	}

	return members, rows.Err()
}

func (r *CommissionRepository) SaveLevel(ctx context.Context, level *models.CompensationLevel) error {
	query := `
		INSERT INTO compensation_levels (id, tenant_id, user_id, name, commission_percentage, effective_from, effective_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			commission_percentage = EXCLUDED.commission_percentage,
			effective_from = EXCLUDED.effective_from,
			effective_to = EXCLUDED.effective_to
	`

	_, err := r.db.ExecContext(ctx, query,
		level.ID, level.TenantID, level.UserID, level.Name,
		level.CommissionPercentage, level.EffectiveFrom, level.EffectiveTo,
	)
	if err != nil {
		return fmt.Errorf("failed to save compensation level %s: %w", level.ID, err)
	}

	return nil
}

// ActiveLevel returns the user's current compensation level, or nil when the
// user has no open-ended level.
func (r *CommissionRepository) ActiveLevel(ctx context.Context, tenantID, userID string) (*models.CompensationLevel, error) {
	level := &models.CompensationLevel{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, name, commission_percentage, effective_from, effective_to
		 FROM compensation_levels
		 WHERE tenant_id = $1 AND user_id = $2 AND effective_to IS NULL
		 ORDER BY effective_from DESC
		 LIMIT 1`,
		tenantID, userID,
	).Scan(&level.ID, &level.TenantID, &level.UserID, &level.Name,
		&level.CommissionPercentage, &level.EffectiveFrom, &level.EffectiveTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan compensation level: %w", err)
	}

	return level, nil
}

func (r *CommissionRepository) SaveCardItem(ctx context.Context, item *models.CardItem) error {
	query := `
		INSERT INTO card_items (id, tenant_id, card_id, item_id, code, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			item_id = EXCLUDED.item_id,
			code = EXCLUDED.code,
			amount = EXCLUDED.amount
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.TenantID, item.CardID, item.ItemID, item.Code, item.Amount,
	)
	if err != nil {
		return fmt.Errorf("failed to save card item %s: %w", item.ID, err)
	}

	return nil
}

func (r *CommissionRepository) ListCardItems(ctx context.Context, tenantID, cardID string) ([]*models.CardItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, card_id, item_id, code, amount
		 FROM card_items WHERE tenant_id = $1 AND card_id = $2 ORDER BY id`,
		tenantID, cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query card items: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	items := make([]*models.CardItem, 0)

	for rows.Next() {
		item := &models.CardItem{}

		err := rows.Scan(&item.ID, &item.TenantID, &item.CardID, &item.ItemID, &item.Code, &item.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card item: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *CommissionRepository) SaveRule(ctx context.Context, rule *models.CommissionRule) error {
	query := `
		INSERT INTO commission_rules (id, tenant_id, team_id, item_id, code, percentage, fixed_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			item_id = EXCLUDED.item_id,
			code = EXCLUDED.code,
			percentage = EXCLUDED.percentage,
			fixed_amount = EXCLUDED.fixed_amount
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.TenantID, rule.TeamID, rule.ItemID, rule.Code,
		rule.Percentage, rule.FixedAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to save commission rule %s: %w", rule.ID, err)
	}

	return nil
}

// FindRule resolves the rule for an item: a rule bound to the exact item wins
// over a code-level fallback. Returns nil when neither matches.
func (r *CommissionRepository) FindRule(ctx context.Context, tenantID, teamID, itemID, code string) (*models.CommissionRule, error) {
	query := `
		SELECT id, tenant_id, team_id, item_id, code, percentage, fixed_amount
		FROM commission_rules
		WHERE tenant_id = $1 AND team_id = $2 AND (item_id = $3 OR (item_id IS NULL AND code = $4))
		ORDER BY item_id NULLS LAST
		LIMIT 1
	`

	rule := &models.CommissionRule{}

	err := r.db.QueryRowContext(ctx, query, tenantID, teamID, itemID, code).Scan(
		&rule.ID, &rule.TenantID, &rule.TeamID, &rule.ItemID, &rule.Code,
		&rule.Percentage, &rule.FixedAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan commission rule: %w", err)
	}

	return rule, nil
}

// SaveCalculation persists a calculation and its member distributions in one
// transaction.
func (r *CommissionRepository) SaveCalculation(ctx context.Context, calculation *models.CommissionCalculation, distributions []*models.CommissionDistribution) error {
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
		`INSERT INTO commission_calculations (id, tenant_id, payment_id, card_id, team_id, total_amount, total_distributed_percentage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		calculation.ID, calculation.TenantID, calculation.PaymentID,
		calculation.CardID, calculation.TeamID, calculation.TotalAmount,
		calculation.TotalDistributedPercentage, calculation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save calculation %s: %w", calculation.ID, err)
	}

	for _, distribution := range distributions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO commission_distributions (id, calculation_id, user_id, percentage, amount)
			 VALUES ($1, $2, $3, $4, $5)`,
			distribution.ID, calculation.ID, distribution.UserID,
			distribution.Percentage, distribution.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to save distribution %s: %w", distribution.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit calculation: %w", err)
	}

	return nil
}

func (r *CommissionRepository) ListCalculationsByCard(ctx context.Context, tenantID, cardID string) ([]*models.CommissionCalculation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, payment_id, card_id, team_id, total_amount, total_distributed_percentage, created_at
		 FROM commission_calculations WHERE tenant_id = $1 AND card_id = $2 ORDER BY created_at`,
		tenantID, cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	calculations := make([]*models.CommissionCalculation, 0)

	for rows.Next() {
		calculation := &models.CommissionCalculation{}

		err := rows.Scan(
			&calculation.ID, &calculation.TenantID, &calculation.PaymentID,
			&calculation.CardID, &calculation.TeamID, &calculation.TotalAmount,
			&calculation.TotalDistributedPercentage, &calculation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}

		calculations = append(calculations, calculation)
	}

	return calculations, rows.Err()
}

func (r *CommissionRepository) ListDistributions(ctx context.Context, calculationID string) ([]*models.CommissionDistribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, calculation_id, user_id, percentage, amount
		 FROM commission_distributions WHERE calculation_id = $1 ORDER BY user_id`,
		calculationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	distributions := make([]*models.CommissionDistribution, 0)

	for rows.Next() {
		distribution := &models.CommissionDistribution{}

		err := rows.Scan(
			&distribution.ID, &distribution.CalculationID, &distribution.UserID,
			&distribution.Percentage, &distribution.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}

		distributions = append(distributions, distribution)
	}

	return distributions, rows.Err()
}
