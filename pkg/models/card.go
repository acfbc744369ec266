package models

import "time"

// CardStatus is the lifecycle state of a card. Completed and canceled are
// terminal: the row survives for history and commission purposes but the card
// no longer moves.
type CardStatus string

const (
	CardStatusInProgress CardStatus = "inprogress"
	CardStatusCompleted  CardStatus = "completed"
	CardStatusCanceled   CardStatus = "canceled"
)

// Movement is one entry of a card's append-only movement history.
// FromStepID is nil only for the synthetic entry written at creation.
type Movement struct {
	ID         string    `json:"id"`
	FromStepID *string   `json:"from_step_id,omitempty"`
	ToStepID   string    `json:"to_step_id"`
	MovedAt    time.Time `json:"moved_at"`
	MovedBy    string    `json:"moved_by,omitempty"`
}

// Card is a work item moving through a flow's steps.
type Card struct {
	ID             string                     `json:"id"`
	TenantID       string                     `json:"tenant_id" validate:"required"`
	FlowID         string                     `json:"flow_id"   validate:"required"`
	StepID         string                     `json:"step_id"   validate:"required"`
	Title          string                     `json:"title"     validate:"required,min=1"`
	FieldValues    map[string]any             `json:"field_values,omitempty"`
	Checklists     map[string]map[string]bool `json:"checklists,omitempty"` // fieldID -> item -> done
	AssignedTo     *string                    `json:"assigned_to,omitempty"`
	AssignedTeamID *string                    `json:"assigned_team_id,omitempty"`
	ContactID      *string                    `json:"contact_id,omitempty"`
	Position       int                        `json:"position"`
	Movements      []Movement                 `json:"movements"`
	ParentCardID   *string                    `json:"parent_card_id,omitempty"`
	Status         CardStatus                 `json:"status"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// IsTerminal reports whether the card reached a final status.
func (c *Card) IsTerminal() bool {
	return c.Status == CardStatusCompleted || c.Status == CardStatusCanceled
}

// CurrentStepEnteredAt returns when the card entered its current step: the
// timestamp of the last movement, or the creation time if it never moved.
func (c *Card) CurrentStepEnteredAt() time.Time {
	if len(c.Movements) == 0 {
		return c.CreatedAt
	}

	return c.Movements[len(c.Movements)-1].MovedAt
}
