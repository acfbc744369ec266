package models

import "time"

// ChildCardAutomation spawns a linked child card when a parent card enters the
// trigger step. Automations are best-effort: a failing rule never aborts the
// move that fired it.
type ChildCardAutomation struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"      validate:"required"`
	StepID          string    `json:"step_id"        validate:"required"`
	TargetFlowID    string    `json:"target_flow_id" validate:"required"`
	TargetStepID    string    `json:"target_step_id" validate:"required"`
	Active          bool      `json:"active"`
	CopyFieldValues bool      `json:"copy_field_values"`
	CopyAssignment  bool      `json:"copy_assignment"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
