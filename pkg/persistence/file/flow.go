package file

import (
	"context"
	"sort"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

const (
	kindFlow  = "flows"
	kindStep  = "steps"
	kindField = "fields"
)

// FlowRepository handles flow documents.
type FlowRepository struct {
	store *store
}

func (r *FlowRepository) List(_ context.Context, tenantID string) ([]*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindFlow)
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow := &models.Flow{}

		found, err := r.store.read(tenantID, kindFlow, id, flow)
		if err != nil {
			return nil, err
		}

		if found && flow.DeletedAt == nil {
			flows = append(flows, flow)
		}
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].CreatedAt.Before(flows[j].CreatedAt) })

	return flows, nil
}

func (r *FlowRepository) GetByID(_ context.Context, tenantID, id string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.getLocked(tenantID, id)
}

func (r *FlowRepository) getLocked(tenantID, id string) (*models.Flow, error) {
	flow := &models.Flow{}

	found, err := r.store.read(tenantID, kindFlow, id, flow)
	if err != nil {
		return nil, err
	}

	if !found || flow.DeletedAt != nil {
		return nil, nil
	}

	return flow, nil
}

func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(flow.TenantID, kindFlow, flow.ID, flow)
}

func (r *FlowRepository) Delete(_ context.Context, tenantID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	removed, err := r.store.remove(tenantID, kindFlow, id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

// StepRepository handles step documents.
type StepRepository struct {
	store *store
}

func (r *StepRepository) ListByFlow(_ context.Context, tenantID, flowID string) ([]*models.Step, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listByFlowLocked(tenantID, flowID)
}

func (r *StepRepository) listByFlowLocked(tenantID, flowID string) ([]*models.Step, error) {
	ids, err := r.store.ids(tenantID, kindStep)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.Step, 0)

	for _, id := range ids {
		step := &models.Step{}

		found, err := r.store.read(tenantID, kindStep, id, step)
		if err != nil {
			return nil, err
		}

		if found && step.FlowID == flowID {
			steps = append(steps, step)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })

	return steps, nil
}

func (r *StepRepository) GetByID(_ context.Context, tenantID, id string) (*models.Step, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	step := &models.Step{}

	found, err := r.store.read(tenantID, kindStep, id, step)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return step, nil
}

func (r *StepRepository) Save(_ context.Context, tenantID string, step *models.Step) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(tenantID, kindStep, step.ID, step)
}

// Reorder rewrites step positions to the dense 1..N order of orderedIDs. The
// store lock makes the rewrite atomic for concurrent readers; the SQL backend
// uses a transaction for the same guarantee.
func (r *StepRepository) Reorder(_ context.Context, tenantID, flowID string, orderedIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	steps := make([]*models.Step, 0, len(orderedIDs))

	for _, id := range orderedIDs {
		step := &models.Step{}

		found, err := r.store.read(tenantID, kindStep, id, step)
		if err != nil {
			return err
		}

		if !found || step.FlowID != flowID {
			return persistence.ErrStepNotFound
		}

		steps = append(steps, step)
	}

	for index, step := range steps {
		step.Position = index + 1

		if err := r.store.write(tenantID, kindStep, step.ID, step); err != nil {
			return err
		}
	}

	return nil
}

func (r *StepRepository) Delete(_ context.Context, tenantID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	removed, err := r.store.remove(tenantID, kindStep, id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.ErrStepNotFound
	}

	// Drop the step's field documents with it.
	fieldIDs, err := r.store.ids(tenantID, kindField)
	if err != nil {
		return err
	}

	for _, fieldID := range fieldIDs {
		field := &models.StepField{}

		found, err := r.store.read(tenantID, kindField, fieldID, field)
		if err != nil {
			return err
		}

		if found && field.StepID == id {
			if _, err := r.store.remove(tenantID, kindField, fieldID); err != nil {
				return err
			}
		}
	}

	return nil
}

// FieldRepository handles step field documents.
type FieldRepository struct {
	store *store
}

func (r *FieldRepository) ListByStep(_ context.Context, tenantID, stepID string) ([]*models.StepField, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindField)
	if err != nil {
		return nil, err
	}

	fields := make([]*models.StepField, 0)

	for _, id := range ids {
		field := &models.StepField{}

		found, err := r.store.read(tenantID, kindField, id, field)
		if err != nil {
			return nil, err
		}

		if found && field.StepID == stepID {
			fields = append(fields, field)
		}
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Position < fields[j].Position })

	return fields, nil
}

func (r *FieldRepository) GetByID(_ context.Context, tenantID, id string) (*models.StepField, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	field := &models.StepField{}

	found, err := r.store.read(tenantID, kindField, id, field)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return field, nil
}

func (r *FieldRepository) Save(_ context.Context, tenantID string, field *models.StepField) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(tenantID, kindField, field.ID, field)
}

func (r *FieldRepository) Reorder(_ context.Context, tenantID, stepID string, orderedIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	fields := make([]*models.StepField, 0, len(orderedIDs))

	for _, id := range orderedIDs {
		field := &models.StepField{}

		found, err := r.store.read(tenantID, kindField, id, field)
		if err != nil {
			return err
		}

		if !found || field.StepID != stepID {
			return persistence.ErrFieldNotFound
		}

		fields = append(fields, field)
	}

	for index, field := range fields {
		field.Position = index + 1

		if err := r.store.write(tenantID, kindField, field.ID, field); err != nil {
			return err
		}
	}

	return nil
}

func (r *FieldRepository) Delete(_ context.Context, tenantID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	removed, err := r.store.remove(tenantID, kindField, id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.ErrFieldNotFound
	}

	return nil
}
