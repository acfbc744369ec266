// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/albertobarcelos/nexflow/pkg/models"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"required,min=1"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty" validate:"omitempty,oneof=company team user_exclusion"`
}

// UpdateFlowRequest represents the request body for updating an existing flow.
type UpdateFlowRequest struct {
	Name        string `json:"name"        validate:"required,min=1"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty" validate:"omitempty,oneof=company team user_exclusion"`
}

// CreateStepRequest represents the request body for creating a new step.
type CreateStepRequest struct {
	Title           string  `json:"title" validate:"required,min=1"`
	Color           string  `json:"color,omitempty"`
	Type            string  `json:"type,omitempty"  validate:"omitempty,oneof=normal finisher"`
	ResponsibleKind string  `json:"responsible_kind,omitempty" validate:"omitempty,oneof=user team"`
	ResponsibleID   *string `json:"responsible_id,omitempty"`
}

// ReorderRequest carries the complete new ordering of a flow's steps or a
// step's fields.
type ReorderRequest struct {
	OrderedIDs []string `json:"ordered_ids" validate:"required,min=1"`
}

// CreateFieldRequest represents the request body for creating a step field.
type CreateFieldRequest struct {
	Label         string         `json:"label" validate:"required,min=1"`
	Type          string         `json:"type"  validate:"required"`
	Required      bool           `json:"required"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// UpdateFieldRequest represents the request body for updating a step field.
type UpdateFieldRequest struct {
	Label         string         `json:"label" validate:"required,min=1"`
	Slug          string         `json:"slug,omitempty"`
	Required      bool           `json:"required"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// CreateCardRequest represents the request body for creating a card.
type CreateCardRequest struct {
	FlowID         string         `json:"flow_id" validate:"required"`
	StepID         string         `json:"step_id" validate:"required"`
	Title          string         `json:"title"   validate:"required,min=1"`
	ContactID      *string        `json:"contact_id,omitempty"`
	FieldValues    map[string]any `json:"field_values,omitempty"`
	AssignedTo     *string        `json:"assigned_to,omitempty"`
	AssignedTeamID *string        `json:"assigned_team_id,omitempty"`
}

// MoveCardRequest represents the request body for moving a card.
type MoveCardRequest struct {
	ToStepID string  `json:"to_step_id" validate:"required"`
	AssignTo *string `json:"assign_to,omitempty"`
}

// RenameCardRequest represents the request body for renaming a card.
type RenameCardRequest struct {
	Title string `json:"title" validate:"required,min=1"`
}

// UpdateFieldValuesRequest carries a partial patch of a card's field values.
type UpdateFieldValuesRequest struct {
	Values map[string]any `json:"values" validate:"required"`
}

// ChecklistItemRequest toggles one checklist entry on a card.
type ChecklistItemRequest struct {
	FieldID string `json:"field_id" validate:"required"`
	Item    string `json:"item"     validate:"required"`
	Done    bool   `json:"done"`
}

// AssignCardRequest represents the request body for assigning a card.
type AssignCardRequest struct {
	UserID *string `json:"user_id"`
}

// TeamAccessRequest replaces a flow's team access list.
type TeamAccessRequest struct {
	TeamIDs []string `json:"team_ids" validate:"required"`
}

// UserExclusionsRequest replaces a flow's exclusion list. Role and teams are
// supplied per user so elevated users can be filtered on write.
type UserExclusionsRequest struct {
	Users []ExcludedUser `json:"users" validate:"required,dive"`
}

// ExcludedUser is one entry of an exclusion list update.
type ExcludedUser struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role,omitempty"`
}

// StepVisibilityRequest sets a per-step visibility override for one user.
type StepVisibilityRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	CanView bool   `json:"can_view"`
	CanEdit bool   `json:"can_edit"`
}

// CreateAutomationRequest represents the request body for creating a
// child-card automation on a step.
type CreateAutomationRequest struct {
	TargetFlowID    string `json:"target_flow_id" validate:"required"`
	TargetStepID    string `json:"target_step_id" validate:"required"`
	Active          bool   `json:"active"`
	CopyFieldValues bool   `json:"copy_field_values"`
	CopyAssignment  bool   `json:"copy_assignment"`
}

// CreateActivityRequest represents the request body for scheduling a card
// activity.
type CreateActivityRequest struct {
	Title string `json:"title"  validate:"required,min=1"`
	Notes string `json:"notes,omitempty"`
	DueAt string `json:"due_at" validate:"required"`
}

// CalculateCommissionRequest triggers a commission calculation for a
// payment/card pair.
type CalculateCommissionRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	CardID    string `json:"card_id"    validate:"required"`
}

func responsibleFromRequest(kind string, id *string) models.Responsible {
	switch kind {
	case "user":
		if id != nil {
			return models.UserResponsible(*id)
		}
	case "team":
		if id != nil {
			return models.TeamResponsible(*id)
		}
	}

	return models.NoResponsible()
}
