// Package persistence provides the data storage abstraction layer for the
// flow engine. Every repository method is tenant-scoped: the tenant identifier
// travels as an explicit argument and implementations must filter every read
// and write by it.
package persistence

import (
	"context"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

// Persistence is the root of the storage layer, grouping the per-aggregate
// repositories behind a single connection lifecycle.
type Persistence interface {
	Flows() FlowRepository
	Steps() StepRepository
	Fields() FieldRepository
	Cards() CardRepository
	Access() AccessRepository
	Automations() AutomationRepository
	Events() EventRepository
	Activities() ActivityRepository
	Commissions() CommissionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores flow definitions.
type FlowRepository interface {
	List(ctx context.Context, tenantID string) ([]*models.Flow, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, tenantID, id string) error
}

// StepRepository stores the ordered steps of a flow.
type StepRepository interface {
	ListByFlow(ctx context.Context, tenantID, flowID string) ([]*models.Step, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Step, error)
	Save(ctx context.Context, tenantID string, step *models.Step) error
	// Reorder atomically rewrites positions so that orderedIDs maps to the
	// dense sequence 1..N. A partial rewrite must never be observable.
	Reorder(ctx context.Context, tenantID, flowID string, orderedIDs []string) error
	Delete(ctx context.Context, tenantID, id string) error
}

// FieldRepository stores per-step field definitions.
type FieldRepository interface {
	ListByStep(ctx context.Context, tenantID, stepID string) ([]*models.StepField, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.StepField, error)
	Save(ctx context.Context, tenantID string, field *models.StepField) error
	Reorder(ctx context.Context, tenantID, stepID string, orderedIDs []string) error
	Delete(ctx context.Context, tenantID, id string) error
}

// ListCardsOptions filters card listings.
type ListCardsOptions struct {
	StepID string // Empty means all steps of the flow
	Status *models.CardStatus
}

// CardRepository stores cards and their embedded movement history.
type CardRepository interface {
	ListByFlow(ctx context.Context, tenantID, flowID string, opts ListCardsOptions) ([]*models.Card, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Card, error)
	Save(ctx context.Context, card *models.Card) error
	CountByStep(ctx context.Context, tenantID, stepID string) (int64, error)
}

// AccessRepository stores the sparse visibility override tables.
type AccessRepository interface {
	// GetFlowPolicy returns the aggregated access rows for a flow. A flow with
	// no rows yields an empty policy, never an error.
	GetFlowPolicy(ctx context.Context, tenantID, flowID string) (*models.FlowAccessPolicy, error)
	SetTeamAccess(ctx context.Context, tenantID, flowID string, teamIDs []string) error
	SetUserExclusions(ctx context.Context, tenantID, flowID string, userIDs []string) error
	// GetStepVisibility returns nil when no override row exists.
	GetStepVisibility(ctx context.Context, tenantID, stepID, userID string) (*models.StepVisibility, error)
	SetStepVisibility(ctx context.Context, tenantID string, visibility *models.StepVisibility) error
}

// AutomationRepository stores child-card automation rules.
type AutomationRepository interface {
	ListByStep(ctx context.Context, tenantID, stepID string, activeOnly bool) ([]*models.ChildCardAutomation, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.ChildCardAutomation, error)
	Save(ctx context.Context, automation *models.ChildCardAutomation) error
	Delete(ctx context.Context, tenantID, id string) error
}

// EventRepository stores the append-only card event records the timeline is
// rebuilt from. Events are never updated or deleted.
type EventRepository interface {
	Append(ctx context.Context, event *models.CardEvent) error
	ListByCard(ctx context.Context, tenantID, cardID string) ([]*models.CardEvent, error)
	ListByContact(ctx context.Context, tenantID, contactID string) ([]*models.CardEvent, error)
}

// ActivityRepository stores scheduled card activities.
type ActivityRepository interface {
	ListByCard(ctx context.Context, tenantID, cardID string) ([]*models.Activity, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Activity, error)
	Save(ctx context.Context, activity *models.Activity) error
	// ListDuePending returns pending activities across all tenants whose due
	// date is before the cutoff. Used by the overdue sweep.
	ListDuePending(ctx context.Context, before time.Time) ([]*models.Activity, error)
}

// CommissionRepository stores payments, teams, compensation levels, rules and
// calculation results.
type CommissionRepository interface {
	GetPayment(ctx context.Context, tenantID, id string) (*models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error

	SaveTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, tenantID, id string) (*models.Team, error)
	AddTeamMember(ctx context.Context, tenantID, teamID, userID string) error
	ListTeamMembers(ctx context.Context, tenantID, teamID string) ([]string, error)

	SaveLevel(ctx context.Context, level *models.CompensationLevel) error
	// ActiveLevel returns the level with a nil EffectiveTo, or nil when the
	// user has no active level.
	ActiveLevel(ctx context.Context, tenantID, userID string) (*models.CompensationLevel, error)

	SaveCardItem(ctx context.Context, item *models.CardItem) error
	ListCardItems(ctx context.Context, tenantID, cardID string) ([]*models.CardItem, error)

	SaveRule(ctx context.Context, rule *models.CommissionRule) error
	// FindRule resolves the team's rule for an item: a rule bound to the item
	// id wins over a code-level fallback. Returns nil when nothing matches.
	FindRule(ctx context.Context, tenantID, teamID, itemID, code string) (*models.CommissionRule, error)

	SaveCalculation(ctx context.Context, calculation *models.CommissionCalculation, distributions []*models.CommissionDistribution) error
	ListCalculationsByCard(ctx context.Context, tenantID, cardID string) ([]*models.CommissionCalculation, error)
	ListDistributions(ctx context.Context, calculationID string) ([]*models.CommissionDistribution, error)
}
