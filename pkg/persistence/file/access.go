package file

import (
	"context"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

const (
	kindFlowPolicy     = "flow_access"
	kindStepVisibility = "step_visibility"
)

// AccessRepository handles the sparse visibility override documents.
type AccessRepository struct {
	store *store
}

func (r *AccessRepository) GetFlowPolicy(_ context.Context, tenantID, flowID string) (*models.FlowAccessPolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	policy := &models.FlowAccessPolicy{FlowID: flowID}

	if _, err := r.store.read(tenantID, kindFlowPolicy, flowID, policy); err != nil {
		return nil, err
	}

	policy.FlowID = flowID

	return policy, nil
}

func (r *AccessRepository) SetTeamAccess(ctx context.Context, tenantID, flowID string, teamIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	policy := &models.FlowAccessPolicy{FlowID: flowID}
	if _, err := r.store.read(tenantID, kindFlowPolicy, flowID, policy); err != nil {
		return err
	}

	policy.TeamIDs = teamIDs

	return r.store.write(tenantID, kindFlowPolicy, flowID, policy)
}

func (r *AccessRepository) SetUserExclusions(ctx context.Context, tenantID, flowID string, userIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	policy := &models.FlowAccessPolicy{FlowID: flowID}
	if _, err := r.store.read(tenantID, kindFlowPolicy, flowID, policy); err != nil {
		return err
	}

	policy.ExcludedUserIDs = userIDs

	return r.store.write(tenantID, kindFlowPolicy, flowID, policy)
}

func (r *AccessRepository) GetStepVisibility(_ context.Context, tenantID, stepID, userID string) (*models.StepVisibility, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	visibility := &models.StepVisibility{}

	found, err := r.store.read(tenantID, kindStepVisibility, stepID+"-"+userID, visibility)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return visibility, nil
}

func (r *AccessRepository) SetStepVisibility(_ context.Context, tenantID string, visibility *models.StepVisibility) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(tenantID, kindStepVisibility, visibility.StepID+"-"+visibility.UserID, visibility)
}
