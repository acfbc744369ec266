package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

var (
	// ErrFlowNotFound is returned when a flow is not found.
	ErrFlowNotFound = persistence.ErrFlowNotFound
	// ErrStepNotFound is returned when a step is not found.
	ErrStepNotFound = persistence.ErrStepNotFound
	// ErrFieldNotFound is returned when a field is not found.
	ErrFieldNotFound = persistence.ErrFieldNotFound
)

// FlowSchema manages flows, their ordered steps and per-step field
// definitions.
type FlowSchema struct {
	persistence persistence.Persistence
}

// NewFlowSchema creates a new flow schema service.
func NewFlowSchema(persistence persistence.Persistence) *FlowSchema {
	return &FlowSchema{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *FlowSchema) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListFlows retrieves all flows of a tenant.
func (s *FlowSchema) ListFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	return s.persistence.Flows().List(ctx, tenantID)
}

// FetchFlow retrieves a flow by its ID.
func (s *FlowSchema) FetchFlow(ctx context.Context, tenantID, flowID string) (*models.Flow, error) {
	flow, err := s.persistence.Flows().GetByID(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, ErrFlowNotFound
	}

	return flow, nil
}

// CreateFlow adds a new flow. Steps are created separately; a flow starts
// empty.
func (s *FlowSchema) CreateFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if flow.Name == "" {
		return nil, ErrFlowNameRequired
	}

	if flow.Visibility == "" {
		flow.Visibility = models.VisibilityCompany
	}

	if !validVisibility(flow.Visibility) {
		return nil, ErrInvalidVisibility
	}

	now := time.Now().UTC()
	flow.ID = uuid.New().String()
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := flow.Validate(); err != nil {
		return nil, NewValidationError("create_flow", "invalid_flow", err.Error(), ErrInvalidRequest)
	}

	err := s.persistence.Flows().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return flow, nil
}

// UpdateFlow modifies a flow's name, description or visibility.
func (s *FlowSchema) UpdateFlow(ctx context.Context, tenantID, flowID string, flow *models.Flow) (*models.Flow, error) {
	existing, err := s.FetchFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}

	if flow.Name == "" {
		return nil, ErrFlowNameRequired
	}

	if flow.Visibility != "" && !validVisibility(flow.Visibility) {
		return nil, ErrInvalidVisibility
	}

	existing.Name = flow.Name
	existing.Description = flow.Description

	if flow.Visibility != "" {
		existing.Visibility = flow.Visibility
	}

	existing.UpdatedAt = time.Now().UTC()

	err = s.persistence.Flows().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return existing, nil
}

// DeleteFlow removes a flow and its steps. It fails while any card still
// references the flow: cards stay around for history and commission purposes.
func (s *FlowSchema) DeleteFlow(ctx context.Context, tenantID, flowID string) error {
	if _, err := s.FetchFlow(ctx, tenantID, flowID); err != nil {
		return err
	}

	cards, err := s.persistence.Cards().ListByFlow(ctx, tenantID, flowID, persistence.ListCardsOptions{})
	if err != nil {
		return fmt.Errorf("failed to check flow cards: %w", err)
	}

	if len(cards) > 0 {
		return ErrFlowHasCards
	}

	steps, err := s.persistence.Steps().ListByFlow(ctx, tenantID, flowID)
	if err != nil {
		return fmt.Errorf("failed to list flow steps: %w", err)
	}

	for _, step := range steps {
		if err := s.persistence.Steps().Delete(ctx, tenantID, step.ID); err != nil {
			return fmt.Errorf("failed to delete step %s: %w", step.ID, err)
		}
	}

	return s.persistence.Flows().Delete(ctx, tenantID, flowID)
}

// ListSteps retrieves a flow's steps in position order.
func (s *FlowSchema) ListSteps(ctx context.Context, tenantID, flowID string) ([]*models.Step, error) {
	if _, err := s.FetchFlow(ctx, tenantID, flowID); err != nil {
		return nil, err
	}

	return s.persistence.Steps().ListByFlow(ctx, tenantID, flowID)
}

// FetchStep retrieves a step by its ID.
func (s *FlowSchema) FetchStep(ctx context.Context, tenantID, stepID string) (*models.Step, error) {
	step, err := s.persistence.Steps().GetByID(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}

	if step == nil {
		return nil, ErrStepNotFound
	}

	return step, nil
}

// CreateStep appends a new step at the end of the flow.
func (s *FlowSchema) CreateStep(ctx context.Context, tenantID string, step *models.Step) (*models.Step, error) {
	if step.Title == "" {
		return nil, ErrStepTitleRequired
	}

	if _, err := s.FetchFlow(ctx, tenantID, step.FlowID); err != nil {
		return nil, err
	}

	existing, err := s.persistence.Steps().ListByFlow(ctx, tenantID, step.FlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flow steps: %w", err)
	}

	now := time.Now().UTC()
	step.ID = uuid.New().String()
	step.Position = len(existing) + 1
	step.CreatedAt = now
	step.UpdatedAt = now

	if step.Responsible.Kind == "" {
		step.Responsible = models.NoResponsible()
	}

	if err := step.Validate(); err != nil {
		return nil, NewValidationError("create_step", "invalid_step", err.Error(), ErrInvalidRequest)
	}

	err = s.persistence.Steps().Save(ctx, tenantID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to create step: %w", err)
	}

	return step, nil
}

// UpdateStep modifies a step's title, color, responsible or type. Position is
// only changed through ReorderSteps.
func (s *FlowSchema) UpdateStep(ctx context.Context, tenantID, stepID string, step *models.Step) (*models.Step, error) {
	existing, err := s.FetchStep(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}

	if step.Title == "" {
		return nil, ErrStepTitleRequired
	}

	existing.Title = step.Title
	existing.Color = step.Color
	existing.Type = step.Type

	if step.Responsible.Kind != "" {
		existing.Responsible = step.Responsible
	}

	existing.UpdatedAt = time.Now().UTC()

	err = s.persistence.Steps().Save(ctx, tenantID, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update step: %w", err)
	}

	return existing, nil
}

// ReorderSteps reassigns dense positions following orderedIDs. The list must
// name every step of the flow exactly once; the rewrite itself is atomic.
func (s *FlowSchema) ReorderSteps(ctx context.Context, tenantID, flowID string, orderedIDs []string) error {
	steps, err := s.ListSteps(ctx, tenantID, flowID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.ID)
	}

	if err := verifyCompleteOrder(ids, orderedIDs); err != nil {
		return err
	}

	return s.persistence.Steps().Reorder(ctx, tenantID, flowID, orderedIDs)
}

// DeleteStep removes a step and its fields. It fails while cards still sit on
// the step, or when the step is the flow's last one.
func (s *FlowSchema) DeleteStep(ctx context.Context, tenantID, stepID string) error {
	step, err := s.FetchStep(ctx, tenantID, stepID)
	if err != nil {
		return err
	}

	siblings, err := s.persistence.Steps().ListByFlow(ctx, tenantID, step.FlowID)
	if err != nil {
		return fmt.Errorf("failed to list flow steps: %w", err)
	}

	if len(siblings) <= 1 {
		return ErrLastStep
	}

	count, err := s.persistence.Cards().CountByStep(ctx, tenantID, stepID)
	if err != nil {
		return fmt.Errorf("failed to count step cards: %w", err)
	}

	if count > 0 {
		return ErrStepHasCards
	}

	if err := s.persistence.Steps().Delete(ctx, tenantID, stepID); err != nil {
		return err
	}

	// Close the position gap left by the removed step.
	remaining := make([]string, 0, len(siblings)-1)

	for _, sibling := range siblings {
		if sibling.ID != stepID {
			remaining = append(remaining, sibling.ID)
		}
	}

	return s.persistence.Steps().Reorder(ctx, tenantID, step.FlowID, remaining)
}

// ListFields retrieves a step's fields in position order.
func (s *FlowSchema) ListFields(ctx context.Context, tenantID, stepID string) ([]*models.StepField, error) {
	if _, err := s.FetchStep(ctx, tenantID, stepID); err != nil {
		return nil, err
	}

	return s.persistence.Fields().ListByStep(ctx, tenantID, stepID)
}

// CreateField adds a field definition to a step. The slug is derived from the
// label when not supplied. A user_select field whose label reads like
// "responsible" becomes the step's system-managed assigned_to field; a step
// can hold only one of those.
func (s *FlowSchema) CreateField(ctx context.Context, tenantID string, field *models.StepField) (*models.StepField, error) {
	if field.Label == "" {
		return nil, ErrFieldLabelRequired
	}

	if _, err := s.FetchStep(ctx, tenantID, field.StepID); err != nil {
		return nil, err
	}

	if field.Type == models.FieldTypeUserSelect && models.IsResponsibleLabel(field.Label) {
		field.Slug = models.SystemFieldSlug
	} else if field.Slug == "" {
		field.Slug = models.DeriveSlug(field.Label)
	}

	if field.Slug != "" && !models.ValidSlug(field.Slug) {
		return nil, ErrInvalidSlug
	}

	if err := models.ValidateFieldConfiguration(field.Type, field.Configuration); err != nil {
		return nil, NewValidationError("CreateField", "INVALID_FIELD_CONFIG", err.Error(), ErrInvalidFieldConfig)
	}

	siblings, err := s.persistence.Fields().ListByStep(ctx, tenantID, field.StepID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step fields: %w", err)
	}

	for _, sibling := range siblings {
		if field.Slug != "" && sibling.Slug == field.Slug {
			if field.Slug == models.SystemFieldSlug {
				return nil, ErrSystemFieldConflict
			}

			return nil, ErrDuplicateSlug
		}
	}

	now := time.Now().UTC()
	field.ID = uuid.New().String()
	field.Position = len(siblings) + 1
	field.CreatedAt = now
	field.UpdatedAt = now

	err = s.persistence.Fields().Save(ctx, tenantID, field)
	if err != nil {
		return nil, fmt.Errorf("failed to create field: %w", err)
	}

	return field, nil
}

// UpdateField modifies a field definition. The assigned_to slug is immutable
// once set.
func (s *FlowSchema) UpdateField(ctx context.Context, tenantID, fieldID string, field *models.StepField) (*models.StepField, error) {
	existing, err := s.persistence.Fields().GetByID(ctx, tenantID, fieldID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrFieldNotFound
	}

	if field.Label == "" {
		return nil, ErrFieldLabelRequired
	}

	if existing.IsSystem() && field.Slug != "" && field.Slug != models.SystemFieldSlug {
		return nil, ErrSystemFieldLocked
	}

	if field.Slug != "" && !models.ValidSlug(field.Slug) {
		return nil, ErrInvalidSlug
	}

	fieldType := existing.Type
	if field.Type != "" {
		fieldType = field.Type
	}

	configuration := existing.Configuration
	if field.Configuration != nil {
		configuration = field.Configuration
	}

	if err := models.ValidateFieldConfiguration(fieldType, configuration); err != nil {
		return nil, NewValidationError("UpdateField", "INVALID_FIELD_CONFIG", err.Error(), ErrInvalidFieldConfig)
	}

	if field.Slug != "" && field.Slug != existing.Slug {
		siblings, err := s.persistence.Fields().ListByStep(ctx, tenantID, existing.StepID)
		if err != nil {
			return nil, fmt.Errorf("failed to list step fields: %w", err)
		}

		for _, sibling := range siblings {
			if sibling.ID != existing.ID && sibling.Slug == field.Slug {
				return nil, ErrDuplicateSlug
			}
		}

		existing.Slug = field.Slug
	}

	existing.Label = field.Label
	existing.Type = fieldType
	existing.Required = field.Required
	existing.Configuration = configuration
	existing.UpdatedAt = time.Now().UTC()

	err = s.persistence.Fields().Save(ctx, tenantID, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update field: %w", err)
	}

	return existing, nil
}

// ReorderFields reassigns dense positions following orderedIDs.
func (s *FlowSchema) ReorderFields(ctx context.Context, tenantID, stepID string, orderedIDs []string) error {
	fields, err := s.ListFields(ctx, tenantID, stepID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(fields))
	for _, field := range fields {
		ids = append(ids, field.ID)
	}

	if err := verifyCompleteOrder(ids, orderedIDs); err != nil {
		return err
	}

	return s.persistence.Fields().Reorder(ctx, tenantID, stepID, orderedIDs)
}

// DeleteField removes a field definition.
func (s *FlowSchema) DeleteField(ctx context.Context, tenantID, fieldID string) error {
	existing, err := s.persistence.Fields().GetByID(ctx, tenantID, fieldID)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrFieldNotFound
	}

	return s.persistence.Fields().Delete(ctx, tenantID, fieldID)
}

func validVisibility(v models.VisibilityType) bool {
	switch v {
	case models.VisibilityCompany, models.VisibilityTeam, models.VisibilityUserExclusion:
		return true
	default:
		return false
	}
}

func verifyCompleteOrder(existingIDs, orderedIDs []string) error {
	if len(orderedIDs) != len(existingIDs) {
		return ErrIncompleteReorder
	}

	seen := make(map[string]bool, len(orderedIDs))

	for _, id := range orderedIDs {
		if seen[id] {
			return ErrIncompleteReorder
		}

		seen[id] = true
	}

	for _, id := range existingIDs {
		if !seen[id] {
			return ErrIncompleteReorder
		}
	}

	return nil
}
