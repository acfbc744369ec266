package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// ErrActivityNotFound is returned when an activity is not found.
var ErrActivityNotFound = persistence.ErrActivityNotFound

// Activity schedules follow-up tasks on cards and sweeps them overdue when
// their due time passes.
type Activity struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewActivity creates a new activity service.
func NewActivity(p persistence.Persistence, logger *slog.Logger) *Activity {
	return &Activity{
		persistence: p,
		logger:      logger,
	}
}

// ListByCard retrieves a card's activities ordered by due time.
func (s *Activity) ListByCard(ctx context.Context, tenantID, cardID string) ([]*models.Activity, error) {
	return s.persistence.Activities().ListByCard(ctx, tenantID, cardID)
}

// Create schedules an activity on a card and appends the history record.
func (s *Activity) Create(ctx context.Context, actor models.Actor, activity *models.Activity) (*models.Activity, error) {
	if activity.Title == "" {
		return nil, NewValidationError("CreateActivity", "TITLE_REQUIRED", "activity title is required", ErrInvalidRequest)
	}

	if activity.DueAt.IsZero() {
		return nil, NewValidationError("CreateActivity", "DUE_AT_REQUIRED", "activity due time is required", ErrInvalidRequest)
	}

	card, err := s.persistence.Cards().GetByID(ctx, actor.TenantID, activity.CardID)
	if err != nil {
		return nil, err
	}

	if card == nil {
		return nil, ErrCardNotFound
	}

	now := time.Now().UTC()
	activity.ID = uuid.New().String()
	activity.TenantID = actor.TenantID
	activity.Status = models.ActivityStatusPending
	activity.CreatedBy = actor.UserID
	activity.CreatedAt = now
	activity.UpdatedAt = now

	if err := activity.Validate(); err != nil {
		return nil, NewValidationError("CreateActivity", "INVALID_ACTIVITY", err.Error(), ErrInvalidRequest)
	}

	err = s.persistence.Activities().Save(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.record(ctx, card, actor.UserID, models.EventActivityCreated, activity)

	return activity, nil
}

// Complete marks an activity done.
func (s *Activity) Complete(ctx context.Context, actor models.Actor, activityID string) (*models.Activity, error) {
	activity, err := s.persistence.Activities().GetByID(ctx, actor.TenantID, activityID)
	if err != nil {
		return nil, err
	}

	if activity == nil {
		return nil, ErrActivityNotFound
	}

	now := time.Now().UTC()
	activity.Status = models.ActivityStatusCompleted
	activity.CompletedAt = &now
	activity.UpdatedAt = now

	err = s.persistence.Activities().Save(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("failed to complete activity: %w", err)
	}

	card, err := s.persistence.Cards().GetByID(ctx, actor.TenantID, activity.CardID)
	if err == nil && card != nil {
		s.record(ctx, card, actor.UserID, models.EventActivityCompleted, activity)
	}

	return activity, nil
}

// SweepOverdue marks every pending activity whose due time has passed as
// overdue. It runs as a background job across tenants and returns the number
// of activities flipped.
func (s *Activity) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.persistence.Activities().ListDuePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due activities: %w", err)
	}

	swept := 0

	for _, activity := range due {
		activity.Status = models.ActivityStatusOverdue
		activity.UpdatedAt = now

		if err := s.persistence.Activities().Save(ctx, activity); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark activity overdue",
				"activity_id", activity.ID, "error", err)

			continue
		}

		swept++
	}

	return swept, nil
}

func (s *Activity) record(ctx context.Context, card *models.Card, actorID string, kind models.EventKind, activity *models.Activity) {
	event := &models.CardEvent{
		ID:        uuid.New().String(),
		TenantID:  card.TenantID,
		CardID:    card.ID,
		ContactID: card.ContactID,
		Kind:      kind,
		Actor:     actorID,
		Payload: map[string]any{
			"activity_id": activity.ID,
			"title":       activity.Title,
			"due_at":      activity.DueAt.Format(time.RFC3339),
		},
		OccurredAt: time.Now().UTC(),
	}

	if err := s.persistence.Events().Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append activity event",
			"card_id", card.ID, "kind", kind, "error", err)
	}
}
