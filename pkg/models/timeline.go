package models

import "time"

// EventKind discriminates the append-only card event records the timeline is
// rebuilt from.
type EventKind string

const (
	EventCardCreated       EventKind = "card_created"
	EventStageChange       EventKind = "stage_change"
	EventFieldUpdate       EventKind = "field_update"
	EventStatusChange      EventKind = "status_change"
	EventChecklistItem     EventKind = "checklist_item"
	EventActivityCreated   EventKind = "activity_created"
	EventActivityCompleted EventKind = "activity_completed"
)

// CardEvent is one append-only history record. Payload contents depend on the
// kind: stage_change carries from/to step ids, field_update carries the field
// key and new value, and so on.
type CardEvent struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id" validate:"required"`
	CardID     string         `json:"card_id"   validate:"required"`
	ContactID  *string        `json:"contact_id,omitempty"`
	Kind       EventKind      `json:"kind"      validate:"required"`
	Actor      string         `json:"actor,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// TimelineEntry is one row of the read-only timeline projection. Label is a
// human-readable summary; Payload keeps the kind-specific details, including
// derived values such as duration_seconds on stage changes.
type TimelineEntry struct {
	ID         string         `json:"id"`
	Kind       EventKind      `json:"kind"`
	Actor      string         `json:"actor,omitempty"`
	Label      string         `json:"label"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// CardTimeline is the full projection for one card.
type CardTimeline struct {
	CardID              string          `json:"card_id"`
	Entries             []*TimelineEntry `json:"entries"`
	TimeInCurrentStage  time.Duration   `json:"time_in_current_stage"`
	CurrentStageEntered time.Time       `json:"current_stage_entered"`
}
