// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrStepNotFound indicates a step was not found by the given identifier.
	ErrStepNotFound = errors.New("step not found")

	// ErrFieldNotFound indicates a step field was not found by the given identifier.
	ErrFieldNotFound = errors.New("field not found")

	// ErrCardNotFound indicates a card was not found by the given identifier.
	ErrCardNotFound = errors.New("card not found")

	// ErrAutomationNotFound indicates an automation rule was not found.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrActivityNotFound indicates an activity was not found.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrPaymentNotFound indicates a payment was not found.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrTeamNotFound indicates a team was not found.
	ErrTeamNotFound = errors.New("team not found")

	// ErrTenantViolation indicates an entity referenced another entity of a
	// different tenant. This is a security fault, surfaced distinctly from
	// ordinary not-found errors and never silently filtered.
	ErrTenantViolation = errors.New("cross-tenant reference")
)

// FlowError wraps flow-related errors with additional context.
type FlowError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// CardError wraps card-related errors with additional context.
type CardError struct {
	Op     string
	CardID string
	Err    error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("%s operation failed for card %s: %v", e.Op, e.CardID, e.Err)
}

func (e *CardError) Unwrap() error {
	return e.Err
}

func (e *CardError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCardError creates a new card error with context.
func NewCardError(op, cardID string, err error) *CardError {
	return &CardError{Op: op, CardID: cardID, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsStepNotFound checks if an error indicates a step was not found.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsFieldNotFound checks if an error indicates a field was not found.
func IsFieldNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound)
}

// IsCardNotFound checks if an error indicates a card was not found.
func IsCardNotFound(err error) bool {
	return errors.Is(err, ErrCardNotFound)
}

// IsNotFound checks if an error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsFlowNotFound(err) ||
		IsStepNotFound(err) ||
		IsFieldNotFound(err) ||
		IsCardNotFound(err) ||
		errors.Is(err, ErrAutomationNotFound) ||
		errors.Is(err, ErrActivityNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrTeamNotFound)
}

// IsTenantViolation checks if an error indicates a cross-tenant reference.
func IsTenantViolation(err error) bool {
	return errors.Is(err, ErrTenantViolation)
}
