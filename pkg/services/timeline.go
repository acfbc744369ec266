package services

import (
	"context"
	"fmt"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// Timeline is the read-only projection over the append-only card event
// records. It never writes.
type Timeline struct {
	persistence persistence.Persistence
}

// NewTimeline creates a new timeline service.
func NewTimeline(p persistence.Persistence) *Timeline {
	return &Timeline{
		persistence: p,
	}
}

// CardTimeline reconstructs a card's chronological event list and derives the
// time spent in the current stage. Field labels are resolved against the live
// schema where possible; a field deleted since the event was written falls
// back to the raw key.
func (s *Timeline) CardTimeline(ctx context.Context, tenantID, cardID string) (*models.CardTimeline, error) {
	card, err := s.persistence.Cards().GetByID(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card == nil {
		return nil, ErrCardNotFound
	}

	records, err := s.persistence.Events().ListByCard(ctx, tenantID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card events: %w", err)
	}

	labels, err := s.fieldLabels(ctx, tenantID, card.FlowID)
	if err != nil {
		return nil, err
	}

	steps, err := s.stepTitles(ctx, tenantID, card.FlowID)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.TimelineEntry, 0, len(records))

	// Creation counts as entering the first stage, so even the first move
	// carries a duration.
	lastStageChange := card.CreatedAt

	for _, record := range records {
		entry := &models.TimelineEntry{
			ID:         record.ID,
			Kind:       record.Kind,
			Actor:      record.Actor,
			Payload:    record.Payload,
			OccurredAt: record.OccurredAt,
		}

		entry.Label = s.label(record, labels, steps)

		if record.Kind == models.EventStageChange {
			if record.Payload == nil {
				record.Payload = map[string]any{}
			}

			if !lastStageChange.IsZero() {
				record.Payload["duration_seconds"] = record.OccurredAt.Sub(lastStageChange).Seconds()
			}

			entry.Payload = record.Payload
			lastStageChange = record.OccurredAt
		}

		entries = append(entries, entry)
	}

	entered := card.CurrentStepEnteredAt()

	return &models.CardTimeline{
		CardID:              card.ID,
		Entries:             entries,
		TimeInCurrentStage:  time.Since(entered),
		CurrentStageEntered: entered,
	}, nil
}

// ContactHistory returns every event of every card linked to a contact, in
// chronological order.
func (s *Timeline) ContactHistory(ctx context.Context, tenantID, contactID string) ([]*models.CardEvent, error) {
	return s.persistence.Events().ListByContact(ctx, tenantID, contactID)
}

func (s *Timeline) label(record *models.CardEvent, fieldLabels, stepTitles map[string]string) string {
	switch record.Kind {
	case models.EventCardCreated:
		return "Card created"
	case models.EventStageChange:
		from := lookupString(record.Payload, "from_step_id")
		to := lookupString(record.Payload, "to_step_id")

		return fmt.Sprintf("Moved from %s to %s", labelOr(stepTitles, from), labelOr(stepTitles, to))
	case models.EventFieldUpdate:
		key := lookupString(record.Payload, "field")

		return "Updated " + labelOr(fieldLabels, key)
	case models.EventStatusChange:
		return "Status changed to " + lookupString(record.Payload, "to")
	case models.EventChecklistItem:
		item := lookupString(record.Payload, "item")
		if done, ok := record.Payload["done"].(bool); ok && done {
			return "Checked " + item
		}

		return "Unchecked " + item
	case models.EventActivityCreated:
		return "Activity scheduled: " + lookupString(record.Payload, "title")
	case models.EventActivityCompleted:
		return "Activity completed: " + lookupString(record.Payload, "title")
	default:
		return string(record.Kind)
	}
}

// fieldLabels maps both field ids and slugs to display labels across the
// whole flow.
func (s *Timeline) fieldLabels(ctx context.Context, tenantID, flowID string) (map[string]string, error) {
	steps, err := s.persistence.Steps().ListByFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flow steps: %w", err)
	}

	labels := make(map[string]string)

	for _, step := range steps {
		fields, err := s.persistence.Fields().ListByStep(ctx, tenantID, step.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list step fields: %w", err)
		}

		for _, field := range fields {
			labels[field.ID] = field.Label

			if field.Slug != "" {
				labels[field.Slug] = field.Label
			}
		}
	}

	return labels, nil
}

func (s *Timeline) stepTitles(ctx context.Context, tenantID, flowID string) (map[string]string, error) {
	steps, err := s.persistence.Steps().ListByFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flow steps: %w", err)
	}

	titles := make(map[string]string, len(steps))

	for _, step := range steps {
		titles[step.ID] = step.Title
	}

	return titles, nil
}

func lookupString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}

	value, _ := payload[key].(string)

	return value
}

func labelOr(labels map[string]string, key string) string {
	if label, ok := labels[key]; ok {
		return label
	}

	return key
}
