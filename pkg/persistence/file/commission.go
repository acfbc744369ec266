package file

import (
	"context"
	"slices"
	"sort"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

const (
	kindPayment       = "payments"
	kindTeam          = "teams"
	kindTeamMembers   = "team_members"
	kindLevel         = "levels"
	kindCardItem      = "card_items"
	kindRule          = "commission_rules"
	kindCalculation   = "commission_calculations"
	kindDistributions = "commission_distributions"
)

// CommissionRepository handles payment, team and commission documents.
type CommissionRepository struct {
	store *store
}

func (r *CommissionRepository) GetPayment(_ context.Context, tenantID, id string) (*models.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	payment := &models.Payment{}

	found, err := r.store.read(tenantID, kindPayment, id, payment)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return payment, nil
}

func (r *CommissionRepository) SavePayment(_ context.Context, payment *models.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(payment.TenantID, kindPayment, payment.ID, payment)
}

func (r *CommissionRepository) SaveTeam(_ context.Context, team *models.Team) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(team.TenantID, kindTeam, team.ID, team)
}

func (r *CommissionRepository) GetTeam(_ context.Context, tenantID, id string) (*models.Team, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	team := &models.Team{}

	found, err := r.store.read(tenantID, kindTeam, id, team)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return team, nil
}

func (r *CommissionRepository) AddTeamMember(_ context.Context, tenantID, teamID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var members []string
	if _, err := r.store.read(tenantID, kindTeamMembers, teamID, &members); err != nil {
		return err
	}

	if !slices.Contains(members, userID) {
		members = append(members, userID)
	}

	return r.store.write(tenantID, kindTeamMembers, teamID, members)
}

func (r *CommissionRepository) ListTeamMembers(_ context.Context, tenantID, teamID string) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var members []string
	if _, err := r.store.read(tenantID, kindTeamMembers, teamID, &members); err != nil {
		return nil, err
	}

	return members, nil
}

func (r *CommissionRepository) SaveLevel(_ context.Context, level *models.CompensationLevel) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(level.TenantID, kindLevel, level.ID, level)
}

func (r *CommissionRepository) ActiveLevel(_ context.Context, tenantID, userID string) (*models.CompensationLevel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindLevel)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		level := &models.CompensationLevel{}

		found, err := r.store.read(tenantID, kindLevel, id, level)
		if err != nil {
			return nil, err
		}

		if found && level.UserID == userID && level.Active() {
			return level, nil
		}
	}

	return nil, nil
}

func (r *CommissionRepository) SaveCardItem(_ context.Context, item *models.CardItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(item.TenantID, kindCardItem, item.ID, item)
}

func (r *CommissionRepository) ListCardItems(_ context.Context, tenantID, cardID string) ([]*models.CardItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindCardItem)
	if err != nil {
		return nil, err
	}

	items := make([]*models.CardItem, 0)

	for _, id := range ids {
		item := &models.CardItem{}

		found, err := r.store.read(tenantID, kindCardItem, id, item)
		if err != nil {
			return nil, err
		}

		if found && item.CardID == cardID {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

func (r *CommissionRepository) SaveRule(_ context.Context, rule *models.CommissionRule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(rule.TenantID, kindRule, rule.ID, rule)
}

// FindRule resolves the team's rule for an item: an item-bound rule beats a
// code-level fallback.
func (r *CommissionRepository) FindRule(_ context.Context, tenantID, teamID, itemID, code string) (*models.CommissionRule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindRule)
	if err != nil {
		return nil, err
	}

	var fallback *models.CommissionRule

	for _, id := range ids {
		rule := &models.CommissionRule{}

		found, err := r.store.read(tenantID, kindRule, id, rule)
		if err != nil {
			return nil, err
		}

		if !found || rule.TeamID != teamID {
			continue
		}

		if rule.ItemID != nil && *rule.ItemID == itemID {
			return rule, nil
		}

		if rule.ItemID == nil && rule.Code != nil && code != "" && *rule.Code == code {
			fallback = rule
		}
	}

	return fallback, nil
}

func (r *CommissionRepository) SaveCalculation(_ context.Context, calculation *models.CommissionCalculation, distributions []*models.CommissionDistribution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.write(calculation.TenantID, kindCalculation, calculation.ID, calculation); err != nil {
		return err
	}

	return r.store.write(calculation.TenantID, kindDistributions, calculation.ID, distributions)
}

func (r *CommissionRepository) ListCalculationsByCard(_ context.Context, tenantID, cardID string) ([]*models.CommissionCalculation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindCalculation)
	if err != nil {
		return nil, err
	}

	calculations := make([]*models.CommissionCalculation, 0)

	for _, id := range ids {
		calculation := &models.CommissionCalculation{}

		found, err := r.store.read(tenantID, kindCalculation, id, calculation)
		if err != nil {
			return nil, err
		}

		if found && calculation.CardID == cardID {
			calculations = append(calculations, calculation)
		}
	}

	sort.Slice(calculations, func(i, j int) bool {
		return calculations[i].CreatedAt.Before(calculations[j].CreatedAt)
	})

	return calculations, nil
}

func (r *CommissionRepository) ListDistributions(_ context.Context, calculationID string) ([]*models.CommissionDistribution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tenants, err := r.store.tenants()
	if err != nil {
		return nil, err
	}

	for _, tenantID := range tenants {
		var distributions []*models.CommissionDistribution

		found, err := r.store.read(tenantID, kindDistributions, calculationID, &distributions)
		if err != nil {
			return nil, err
		}

		if found {
			return distributions, nil
		}
	}

	return nil, nil
}
