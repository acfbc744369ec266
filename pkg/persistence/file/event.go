package file

import (
	"context"
	"sort"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

const kindEvent = "events"

// EventRepository handles the append-only card event documents.
type EventRepository struct {
	store *store
}

func (r *EventRepository) Append(_ context.Context, event *models.CardEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(event.TenantID, kindEvent, event.ID, event)
}

func (r *EventRepository) ListByCard(ctx context.Context, tenantID, cardID string) ([]*models.CardEvent, error) {
	return r.list(tenantID, func(event *models.CardEvent) bool {
		return event.CardID == cardID
	})
}

func (r *EventRepository) ListByContact(ctx context.Context, tenantID, contactID string) ([]*models.CardEvent, error) {
	return r.list(tenantID, func(event *models.CardEvent) bool {
		return event.ContactID != nil && *event.ContactID == contactID
	})
}

func (r *EventRepository) list(tenantID string, match func(*models.CardEvent) bool) ([]*models.CardEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindEvent)
	if err != nil {
		return nil, err
	}

	events := make([]*models.CardEvent, 0)

	for _, id := range ids {
		event := &models.CardEvent{}

		found, err := r.store.read(tenantID, kindEvent, id, event)
		if err != nil {
			return nil, err
		}

		if found && match(event) {
			events = append(events, event)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}

		return events[i].ID < events[j].ID
	})

	return events, nil
}
