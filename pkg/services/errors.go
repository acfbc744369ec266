// Package services provides business logic and standardized error types for
// flow, card, access, automation, timeline and commission operations.
package services

import (
	"errors"
	"fmt"

	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrFlowNameRequired   = errors.New("flow name is required")
	ErrStepTitleRequired  = errors.New("step title is required")
	ErrCardTitleRequired  = errors.New("card title is required")
	ErrFieldLabelRequired = errors.New("field label is required")
	ErrInvalidSlug        = errors.New("slug must contain only lowercase letters, digits and underscores")
	ErrInvalidFieldConfig = errors.New("invalid field configuration")
	ErrIncompleteReorder  = errors.New("reorder must list every item exactly once")
	ErrStepNotInFlow      = errors.New("step does not belong to the flow")
	ErrInvalidVisibility  = errors.New("invalid visibility type")

	// Business Logic Conflicts (409 Conflict).
	ErrDuplicateSlug       = errors.New("a field with this slug already exists on the step")
	ErrSystemFieldLocked   = errors.New("the responsible field slug cannot be changed")
	ErrSystemFieldConflict = errors.New("the step already has a responsible field")
	ErrLastStep            = errors.New("cannot delete the flow's only step")
	ErrStepHasCards        = errors.New("cannot delete a step that still holds cards")
	ErrFlowHasCards        = errors.New("cannot delete a flow that still holds cards")
	ErrTerminalCard        = errors.New("card is completed or canceled and can no longer move")

	// Authorization Errors (403 Forbidden).
	ErrForbidden = errors.New("actor is not allowed to perform this operation")

	// Commission preconditions.
	ErrNoTeamAssigned = errors.New("card has no assigned team")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrStepTitleRequired) ||
		errors.Is(err, ErrCardTitleRequired) ||
		errors.Is(err, ErrFieldLabelRequired) ||
		errors.Is(err, ErrInvalidSlug) ||
		errors.Is(err, ErrInvalidFieldConfig) ||
		errors.Is(err, ErrIncompleteReorder) ||
		errors.Is(err, ErrStepNotInFlow) ||
		errors.Is(err, ErrInvalidVisibility) ||
		errors.Is(err, ErrNoTeamAssigned)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateSlug) ||
		errors.Is(err, ErrSystemFieldLocked) ||
		errors.Is(err, ErrSystemFieldConflict) ||
		errors.Is(err, ErrLastStep) ||
		errors.Is(err, ErrStepHasCards) ||
		errors.Is(err, ErrFlowHasCards) ||
		errors.Is(err, ErrTerminalCard)
}

// IsForbiddenError checks if an error should return HTTP 403. Tenant
// violations are included: a cross-tenant reference is a security fault and
// must not degrade into a plain not-found.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden) || persistence.IsTenantViolation(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
