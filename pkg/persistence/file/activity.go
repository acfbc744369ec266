package file

import (
	"context"
	"sort"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

const kindActivity = "activities"

// ActivityRepository handles scheduled activity documents.
type ActivityRepository struct {
	store *store
}

func (r *ActivityRepository) ListByCard(_ context.Context, tenantID, cardID string) ([]*models.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindActivity)
	if err != nil {
		return nil, err
	}

	activities := make([]*models.Activity, 0)

	for _, id := range ids {
		activity := &models.Activity{}

		found, err := r.store.read(tenantID, kindActivity, id, activity)
		if err != nil {
			return nil, err
		}

		if found && activity.CardID == cardID {
			activities = append(activities, activity)
		}
	}

	sort.Slice(activities, func(i, j int) bool { return activities[i].DueAt.Before(activities[j].DueAt) })

	return activities, nil
}

func (r *ActivityRepository) GetByID(_ context.Context, tenantID, id string) (*models.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	activity := &models.Activity{}

	found, err := r.store.read(tenantID, kindActivity, id, activity)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return activity, nil
}

func (r *ActivityRepository) Save(_ context.Context, activity *models.Activity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(activity.TenantID, kindActivity, activity.ID, activity)
}

func (r *ActivityRepository) ListDuePending(_ context.Context, before time.Time) ([]*models.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tenants, err := r.store.tenants()
	if err != nil {
		return nil, err
	}

	due := make([]*models.Activity, 0)

	for _, tenantID := range tenants {
		ids, err := r.store.ids(tenantID, kindActivity)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			activity := &models.Activity{}

			found, err := r.store.read(tenantID, kindActivity, id, activity)
			if err != nil {
				return nil, err
			}

			if found && activity.Status == models.ActivityStatusPending && activity.DueAt.Before(before) {
				due = append(due, activity)
			}
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	return due, nil
}
