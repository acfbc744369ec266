package file

import (
	"context"
	"sort"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

const kindAutomation = "automations"

// AutomationRepository handles child-card automation documents.
type AutomationRepository struct {
	store *store
}

func (r *AutomationRepository) ListByStep(_ context.Context, tenantID, stepID string, activeOnly bool) ([]*models.ChildCardAutomation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindAutomation)
	if err != nil {
		return nil, err
	}

	automations := make([]*models.ChildCardAutomation, 0)

	for _, id := range ids {
		automation := &models.ChildCardAutomation{}

		found, err := r.store.read(tenantID, kindAutomation, id, automation)
		if err != nil {
			return nil, err
		}

		if !found || automation.StepID != stepID {
			continue
		}

		if activeOnly && !automation.Active {
			continue
		}

		automations = append(automations, automation)
	}

	sort.Slice(automations, func(i, j int) bool {
		return automations[i].CreatedAt.Before(automations[j].CreatedAt)
	})

	return automations, nil
}

func (r *AutomationRepository) GetByID(_ context.Context, tenantID, id string) (*models.ChildCardAutomation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	automation := &models.ChildCardAutomation{}

	found, err := r.store.read(tenantID, kindAutomation, id, automation)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return automation, nil
}

func (r *AutomationRepository) Save(_ context.Context, automation *models.ChildCardAutomation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(automation.TenantID, kindAutomation, automation.ID, automation)
}

func (r *AutomationRepository) Delete(_ context.Context, tenantID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	removed, err := r.store.remove(tenantID, kindAutomation, id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.ErrAutomationNotFound
	}

	return nil
}
