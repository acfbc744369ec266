package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albertobarcelos/nexflow/pkg/eventbus"
	"github.com/albertobarcelos/nexflow/pkg/events"
	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// ErrCardNotFound is returned when a card is not found.
var ErrCardNotFound = persistence.ErrCardNotFound

// Card provides CRUD and state-transition logic for cards. Every successful
// mutation appends a history record; lifecycle transitions additionally
// publish an event on the bus for the worker side (automations, commission).
type Card struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewCard creates a new card service.
func NewCard(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Card {
	return &Card{
		persistence: p,
		publisher:   publisher,
		logger:      logger,
	}
}

// MoveOptions tunes a single move. AssignTo wins over the destination step's
// default responsible.
type MoveOptions struct {
	AssignTo *string
}

// List retrieves a flow's cards, optionally filtered by step and status.
func (s *Card) List(ctx context.Context, tenantID, flowID string, opts persistence.ListCardsOptions) ([]*models.Card, error) {
	return s.persistence.Cards().ListByFlow(ctx, tenantID, flowID, opts)
}

// Fetch retrieves a card by its ID.
func (s *Card) Fetch(ctx context.Context, tenantID, cardID string) (*models.Card, error) {
	card, err := s.persistence.Cards().GetByID(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card == nil {
		return nil, ErrCardNotFound
	}

	return card, nil
}

// Create adds a new card on the given step. The movement history starts with
// a synthetic entry whose from step is nil.
func (s *Card) Create(ctx context.Context, actor models.Actor, card *models.Card) (*models.Card, error) {
	if card.Title == "" {
		return nil, ErrCardTitleRequired
	}

	step, err := s.persistence.Steps().GetByID(ctx, actor.TenantID, card.StepID)
	if err != nil {
		return nil, err
	}

	if step == nil {
		return nil, ErrStepNotFound
	}

	if step.FlowID != card.FlowID {
		return nil, ErrStepNotInFlow
	}

	now := time.Now().UTC()
	card.ID = uuid.New().String()
	card.TenantID = actor.TenantID
	card.Status = models.CardStatusInProgress
	card.CreatedAt = now
	card.UpdatedAt = now
	card.Movements = []models.Movement{{
		ID:       uuid.New().String(),
		ToStepID: card.StepID,
		MovedAt:  now,
		MovedBy:  actor.UserID,
	}}

	if card.AssignedTo == nil && card.AssignedTeamID == nil {
		applyStepDefault(card, step)
	}

	if err := card.Validate(); err != nil {
		return nil, NewValidationError("create_card", "invalid_card", err.Error(), ErrInvalidRequest)
	}

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	s.record(ctx, card, actor.UserID, models.EventCardCreated, map[string]any{
		"flow_id": card.FlowID,
		"step_id": card.StepID,
		"title":   card.Title,
	})

	s.publish(ctx, card.ID, events.CardCreated{
		BaseEvent:    s.base(events.CardCreatedEvent, card.TenantID),
		CardID:       card.ID,
		FlowID:       card.FlowID,
		StepID:       card.StepID,
		ParentCardID: card.ParentCardID,
		CreatedBy:    actor.UserID,
	})

	return card, nil
}

// Move transitions a card to another step of its flow and appends the
// movement to the history. Terminal cards do not move.
func (s *Card) Move(ctx context.Context, actor models.Actor, cardID, toStepID string, opts MoveOptions) (*models.Card, error) {
	card, err := s.Fetch(ctx, actor.TenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card.IsTerminal() {
		return nil, ErrTerminalCard
	}

	step, err := s.persistence.Steps().GetByID(ctx, actor.TenantID, toStepID)
	if err != nil {
		return nil, err
	}

	if step == nil {
		return nil, ErrStepNotFound
	}

	if step.FlowID != card.FlowID {
		return nil, ErrStepNotInFlow
	}

	now := time.Now().UTC()
	fromStepID := card.StepID
	card.Movements = append(card.Movements, models.Movement{
		ID:         uuid.New().String(),
		FromStepID: &fromStepID,
		ToStepID:   toStepID,
		MovedAt:    now,
		MovedBy:    actor.UserID,
	})
	card.StepID = toStepID
	card.UpdatedAt = now

	switch {
	case opts.AssignTo != nil:
		card.AssignedTo = opts.AssignTo
	case card.AssignedTo == nil && card.AssignedTeamID == nil:
		applyStepDefault(card, step)
	}

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to move card: %w", err)
	}

	s.record(ctx, card, actor.UserID, models.EventStageChange, map[string]any{
		"from_step_id": fromStepID,
		"to_step_id":   toStepID,
	})

	s.publish(ctx, card.ID, events.CardMoved{
		BaseEvent:  s.base(events.CardMovedEvent, card.TenantID),
		CardID:     card.ID,
		FlowID:     card.FlowID,
		FromStepID: &fromStepID,
		ToStepID:   toStepID,
		MovedBy:    actor.UserID,
	})

	return card, nil
}

// SetTitle renames a card. Only elevated roles may do this.
func (s *Card) SetTitle(ctx context.Context, actor models.Actor, cardID, title string) (*models.Card, error) {
	if !actor.Role.Elevated() {
		return nil, ErrForbidden
	}

	if title == "" {
		return nil, ErrCardTitleRequired
	}

	card, err := s.Fetch(ctx, actor.TenantID, cardID)
	if err != nil {
		return nil, err
	}

	card.Title = title
	card.UpdatedAt = time.Now().UTC()

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to rename card: %w", err)
	}

	return card, nil
}

// UpdateFieldValues merges patch into the card's field values. Required-field
// completeness is a boundary gate before step transitions, not a storage
// invariant, so no schema validation happens here.
func (s *Card) UpdateFieldValues(ctx context.Context, actor models.Actor, cardID string, patch map[string]any) (*models.Card, error) {
	card, err := s.Fetch(ctx, actor.TenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card.FieldValues == nil {
		card.FieldValues = make(map[string]any, len(patch))
	}

	for key, value := range patch {
		card.FieldValues[key] = value
	}

	card.UpdatedAt = time.Now().UTC()

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to update card fields: %w", err)
	}

	for key, value := range patch {
		s.record(ctx, card, actor.UserID, models.EventFieldUpdate, map[string]any{
			"field": key,
			"value": value,
		})
	}

	return card, nil
}

// SetChecklistItem toggles one checklist entry on a card.
func (s *Card) SetChecklistItem(ctx context.Context, actor models.Actor, cardID, fieldID, item string, done bool) (*models.Card, error) {
	card, err := s.Fetch(ctx, actor.TenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card.Checklists == nil {
		card.Checklists = make(map[string]map[string]bool)
	}

	if card.Checklists[fieldID] == nil {
		card.Checklists[fieldID] = make(map[string]bool)
	}

	card.Checklists[fieldID][item] = done
	card.UpdatedAt = time.Now().UTC()

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to update checklist: %w", err)
	}

	s.record(ctx, card, actor.UserID, models.EventChecklistItem, map[string]any{
		"field_id": fieldID,
		"item":     item,
		"done":     done,
	})

	return card, nil
}

// Assign sets or clears the card's assigned user.
func (s *Card) Assign(ctx context.Context, actor models.Actor, cardID string, userID *string) (*models.Card, error) {
	card, err := s.Fetch(ctx, actor.TenantID, cardID)
	if err != nil {
		return nil, err
	}

	card.AssignedTo = userID
	card.UpdatedAt = time.Now().UTC()

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to assign card: %w", err)
	}

	return card, nil
}

// Complete marks the card as completed. The card row remains for history and
// commission purposes.
func (s *Card) Complete(ctx context.Context, actor models.Actor, cardID string) (*models.Card, error) {
	card, err := s.transition(ctx, actor, cardID, models.CardStatusCompleted)
	if err != nil {
		return nil, err
	}

	onFinisher := false

	step, err := s.persistence.Steps().GetByID(ctx, actor.TenantID, card.StepID)
	if err == nil && step != nil {
		onFinisher = step.IsFinisher()
	}

	s.publish(ctx, card.ID, events.CardCompleted{
		BaseEvent:   s.base(events.CardCompletedEvent, card.TenantID),
		CardID:      card.ID,
		FlowID:      card.FlowID,
		StepID:      card.StepID,
		OnFinisher:  onFinisher,
		CompletedBy: actor.UserID,
	})

	return card, nil
}

// Cancel marks the card as canceled.
func (s *Card) Cancel(ctx context.Context, actor models.Actor, cardID string) (*models.Card, error) {
	card, err := s.transition(ctx, actor, cardID, models.CardStatusCanceled)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, card.ID, events.CardCanceled{
		BaseEvent:  s.base(events.CardCanceledEvent, card.TenantID),
		CardID:     card.ID,
		FlowID:     card.FlowID,
		StepID:     card.StepID,
		CanceledBy: actor.UserID,
	})

	return card, nil
}

func (s *Card) transition(ctx context.Context, actor models.Actor, cardID string, status models.CardStatus) (*models.Card, error) {
	card, err := s.Fetch(ctx, actor.TenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card.IsTerminal() {
		return nil, ErrTerminalCard
	}

	previous := card.Status
	card.Status = status
	card.UpdatedAt = time.Now().UTC()

	err = s.persistence.Cards().Save(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to update card status: %w", err)
	}

	s.record(ctx, card, actor.UserID, models.EventStatusChange, map[string]any{
		"from": string(previous),
		"to":   string(status),
	})

	return card, nil
}

// record appends a history event. History failures are logged, not returned:
// the primary mutation already committed.
func (s *Card) record(ctx context.Context, card *models.Card, actorID string, kind models.EventKind, payload map[string]any) {
	event := &models.CardEvent{
		ID:         uuid.New().String(),
		TenantID:   card.TenantID,
		CardID:     card.ID,
		ContactID:  card.ContactID,
		Kind:       kind,
		Actor:      actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	if err := s.persistence.Events().Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append card event",
			"card_id", card.ID, "kind", kind, "error", err)
	}
}

func (s *Card) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

func (s *Card) base(eventType events.EventType, tenantID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
	}
}

func applyStepDefault(card *models.Card, step *models.Step) {
	switch {
	case step.Responsible.IsUser():
		id := step.Responsible.ID
		card.AssignedTo = &id
	case step.Responsible.IsTeam():
		id := step.Responsible.ID
		card.AssignedTeamID = &id
	}
}
