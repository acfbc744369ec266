// Package events defines event types and structures for card lifecycle
// notifications.
package events

import (
	"time"
)

type EventType string

// Kafka topic carrying all card lifecycle events.
const Topic = "nexflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Card lifecycle events.
	CardCreatedEvent   EventType = "card.created"
	CardMovedEvent     EventType = "card.moved"
	CardCompletedEvent EventType = "card.completed"
	CardCanceledEvent  EventType = "card.canceled"

	// Commission pipeline events.
	PaymentConfirmedEvent     EventType = "payment.confirmed"
	CommissionCalculatedEvent EventType = "commission.calculated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CardCreated struct {
	BaseEvent

	CardID       string  `json:"card_id"`
	FlowID       string  `json:"flow_id"`
	StepID       string  `json:"step_id"`
	ParentCardID *string `json:"parent_card_id,omitempty"`
	CreatedBy    string  `json:"created_by,omitempty"`
}

func (c CardCreated) GetType() EventType {
	return CardCreatedEvent
}

type CardMoved struct {
	BaseEvent

	CardID     string  `json:"card_id"`
	FlowID     string  `json:"flow_id"`
	FromStepID *string `json:"from_step_id,omitempty"`
	ToStepID   string  `json:"to_step_id"`
	MovedBy    string  `json:"moved_by,omitempty"`
}

func (c CardMoved) GetType() EventType {
	return CardMovedEvent
}

type CardCompleted struct {
	BaseEvent

	CardID      string `json:"card_id"`
	FlowID      string `json:"flow_id"`
	StepID      string `json:"step_id"`
	OnFinisher  bool   `json:"on_finisher"`
	CompletedBy string `json:"completed_by,omitempty"`
}

func (c CardCompleted) GetType() EventType {
	return CardCompletedEvent
}

type CardCanceled struct {
	BaseEvent

	CardID     string `json:"card_id"`
	FlowID     string `json:"flow_id"`
	StepID     string `json:"step_id"`
	CanceledBy string `json:"canceled_by,omitempty"`
}

func (c CardCanceled) GetType() EventType {
	return CardCanceledEvent
}

type PaymentConfirmed struct {
	BaseEvent

	PaymentID string  `json:"payment_id"`
	CardID    string  `json:"card_id"`
	Amount    float64 `json:"amount"`
}

func (p PaymentConfirmed) GetType() EventType {
	return PaymentConfirmedEvent
}

type CommissionCalculated struct {
	BaseEvent

	CalculationID string  `json:"calculation_id"`
	PaymentID     string  `json:"payment_id"`
	CardID        string  `json:"card_id"`
	TeamID        string  `json:"team_id"`
	TotalAmount   float64 `json:"total_amount"`
}

func (c CommissionCalculated) GetType() EventType {
	return CommissionCalculatedEvent
}
