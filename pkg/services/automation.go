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

// ErrAutomationNotFound is returned when an automation is not found.
var ErrAutomationNotFound = persistence.ErrAutomationNotFound

// Automation manages child-card automation rules and executes them when a
// card lands on a step.
type Automation struct {
	persistence persistence.Persistence
	cards       *Card
	logger      *slog.Logger
}

// NewAutomation creates a new automation service.
func NewAutomation(p persistence.Persistence, cards *Card, logger *slog.Logger) *Automation {
	return &Automation{
		persistence: p,
		cards:       cards,
		logger:      logger,
	}
}

// ListByStep retrieves a step's automations.
func (s *Automation) ListByStep(ctx context.Context, tenantID, stepID string) ([]*models.ChildCardAutomation, error) {
	return s.persistence.Automations().ListByStep(ctx, tenantID, stepID, false)
}

// Create adds an automation rule. The target step must belong to the target
// flow, and both must exist in the tenant.
func (s *Automation) Create(ctx context.Context, tenantID string, automation *models.ChildCardAutomation) (*models.ChildCardAutomation, error) {
	if err := s.validateTarget(ctx, tenantID, automation); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	automation.ID = uuid.New().String()
	automation.TenantID = tenantID
	automation.CreatedAt = now
	automation.UpdatedAt = now

	if err := automation.Validate(); err != nil {
		return nil, NewValidationError("create_automation", "invalid_automation", err.Error(), ErrInvalidRequest)
	}

	err := s.persistence.Automations().Save(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	return automation, nil
}

// Update modifies an automation rule.
func (s *Automation) Update(ctx context.Context, tenantID, automationID string, automation *models.ChildCardAutomation) (*models.ChildCardAutomation, error) {
	existing, err := s.persistence.Automations().GetByID(ctx, tenantID, automationID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrAutomationNotFound
	}

	// The triggering step never changes on update.
	automation.StepID = existing.StepID

	if err := s.validateTarget(ctx, tenantID, automation); err != nil {
		return nil, err
	}

	existing.TargetFlowID = automation.TargetFlowID
	existing.TargetStepID = automation.TargetStepID
	existing.Active = automation.Active
	existing.CopyFieldValues = automation.CopyFieldValues
	existing.CopyAssignment = automation.CopyAssignment
	existing.UpdatedAt = time.Now().UTC()

	err = s.persistence.Automations().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update automation: %w", err)
	}

	return existing, nil
}

// Delete removes an automation rule.
func (s *Automation) Delete(ctx context.Context, tenantID, automationID string) error {
	return s.persistence.Automations().Delete(ctx, tenantID, automationID)
}

// OnCardMoved executes the active automations of the step a card just landed
// on. Each automation creates a child card in the target flow, optionally
// seeded with the parent's field values and assignment. Failures are logged
// per automation and never abort the triggering move, which has already
// committed.
func (s *Automation) OnCardMoved(ctx context.Context, tenantID, cardID, toStepID string) {
	automations, err := s.persistence.Automations().ListByStep(ctx, tenantID, toStepID, true)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load step automations",
			"step_id", toStepID, "error", err)

		return
	}

	if len(automations) == 0 {
		return
	}

	parent, err := s.persistence.Cards().GetByID(ctx, tenantID, cardID)
	if err != nil || parent == nil {
		s.logger.ErrorContext(ctx, "failed to load parent card for automation",
			"card_id", cardID, "error", err)

		return
	}

	for _, automation := range automations {
		if err := s.execute(ctx, parent, automation); err != nil {
			s.logger.ErrorContext(ctx, "automation failed",
				"automation_id", automation.ID, "card_id", parent.ID, "error", err)
		}
	}
}

func (s *Automation) execute(ctx context.Context, parent *models.Card, automation *models.ChildCardAutomation) error {
	child := &models.Card{
		FlowID:       automation.TargetFlowID,
		StepID:       automation.TargetStepID,
		Title:        parent.Title,
		ContactID:    parent.ContactID,
		ParentCardID: &parent.ID,
	}

	if automation.CopyFieldValues && parent.FieldValues != nil {
		child.FieldValues = make(map[string]any, len(parent.FieldValues))
		for key, value := range parent.FieldValues {
			child.FieldValues[key] = value
		}
	}

	if automation.CopyAssignment {
		child.AssignedTo = parent.AssignedTo
		child.AssignedTeamID = parent.AssignedTeamID
	}

	actor := models.Actor{TenantID: parent.TenantID, Role: models.RoleMember}

	_, err := s.cards.Create(ctx, actor, child)

	return err
}

func (s *Automation) validateTarget(ctx context.Context, tenantID string, automation *models.ChildCardAutomation) error {
	step, err := s.persistence.Steps().GetByID(ctx, tenantID, automation.StepID)
	if err != nil {
		return err
	}

	if step == nil {
		return ErrStepNotFound
	}

	target, err := s.persistence.Steps().GetByID(ctx, tenantID, automation.TargetStepID)
	if err != nil {
		return err
	}

	if target == nil {
		return ErrStepNotFound
	}

	if target.FlowID != automation.TargetFlowID {
		return ErrStepNotInFlow
	}

	return nil
}
