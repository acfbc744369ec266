// Package models defines the core domain models for the multi-tenant flow engine.
package models

import "time"

// VisibilityType controls which users of a tenant may see a flow.
type VisibilityType string

const (
	VisibilityCompany       VisibilityType = "company"        // Every user of the tenant
	VisibilityTeam          VisibilityType = "team"           // Restricted to listed teams
	VisibilityUserExclusion VisibilityType = "user_exclusion" // Team-restricted minus excluded users
)

// Flow represents a named, tenant-scoped pipeline composed of ordered steps.
type Flow struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"   validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description,omitempty"`
	Visibility  VisibilityType `json:"visibility"  validate:"required,oneof=company team user_exclusion"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}
