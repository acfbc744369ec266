package models

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the flow's field constraints.
func (f *Flow) Validate() error { return validate.Struct(f) }

// Validate checks the step's field constraints.
func (s *Step) Validate() error { return validate.Struct(s) }

// Validate checks the card's field constraints.
func (c *Card) Validate() error { return validate.Struct(c) }

// Validate checks the automation's field constraints.
func (a *ChildCardAutomation) Validate() error { return validate.Struct(a) }

// Validate checks the activity's field constraints.
func (a *Activity) Validate() error { return validate.Struct(a) }
