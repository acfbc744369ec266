package models

import "time"

// ActivityStatus is the lifecycle state of a scheduled card activity.
type ActivityStatus string

const (
	ActivityStatusPending   ActivityStatus = "pending"
	ActivityStatusCompleted ActivityStatus = "completed"
	ActivityStatusOverdue   ActivityStatus = "overdue"
)

// Activity is a scheduled follow-up attached to a card: a call, a meeting, a
// task with a due date. Pending activities past their due date are flagged
// overdue by the worker sweep.
type Activity struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id" validate:"required"`
	CardID      string         `json:"card_id"   validate:"required"`
	Title       string         `json:"title"     validate:"required,min=1"`
	Notes       string         `json:"notes,omitempty"`
	DueAt       time.Time      `json:"due_at"    validate:"required"`
	Status      ActivityStatus `json:"status"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
