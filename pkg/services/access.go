package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// DecisionCache caches flow visibility decisions per user. Implementations
// must treat a miss and an error the same way from the caller's point of
// view: the caller recomputes.
type DecisionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

const accessCacheTTL = 5 * time.Minute

// Access answers "can user U view/edit flow F and its steps". Decisions are
// cached; the write paths invalidate the flow's cached decisions.
type Access struct {
	persistence persistence.Persistence
	cache       DecisionCache
	logger      *slog.Logger
}

// NewAccess creates a new access service. cache may be nil, in which case
// every decision is computed from the store.
func NewAccess(p persistence.Persistence, cache DecisionCache, logger *slog.Logger) *Access {
	return &Access{
		persistence: p,
		cache:       cache,
		logger:      logger,
	}
}

// CanViewFlow implements the visibility algorithm:
//
//  1. A flow of another tenant is never visible; that is a security fault.
//  2. company: every tenant user sees the flow.
//  3. team: visible when no team rows are configured (open by default), or
//     when the actor belongs to at least one listed team.
//  4. user_exclusion: the team check above, then deny actors on the
//     exclusion list.
func (s *Access) CanViewFlow(ctx context.Context, actor models.Actor, flow *models.Flow) (bool, error) {
	if flow.TenantID != actor.TenantID {
		return false, persistence.ErrTenantViolation
	}

	if flow.Visibility == models.VisibilityCompany {
		return true, nil
	}

	key := s.decisionKey(actor.TenantID, flow.ID, actor.UserID)

	if cached, found := s.cachedDecision(ctx, key); found {
		return cached, nil
	}

	policy, err := s.persistence.Access().GetFlowPolicy(ctx, actor.TenantID, flow.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load flow policy: %w", err)
	}

	allowed := s.evaluate(flow.Visibility, policy, actor)

	s.storeDecision(ctx, key, allowed)

	return allowed, nil
}

func (s *Access) evaluate(visibility models.VisibilityType, policy *models.FlowAccessPolicy, actor models.Actor) bool {
	// No configured teams means the flow is open to the whole tenant.
	inTeam := len(policy.TeamIDs) == 0

	for _, teamID := range policy.TeamIDs {
		if actor.InTeam(teamID) {
			inTeam = true

			break
		}
	}

	if !inTeam {
		return false
	}

	if visibility == models.VisibilityUserExclusion && policy.Excludes(actor.UserID) {
		return false
	}

	return true
}

// CanViewStep resolves the sparse per-step override. An absent row means the
// step is visible.
func (s *Access) CanViewStep(ctx context.Context, actor models.Actor, stepID string) (bool, error) {
	visibility, err := s.persistence.Access().GetStepVisibility(ctx, actor.TenantID, stepID, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to load step visibility: %w", err)
	}

	if visibility == nil {
		return true, nil
	}

	return visibility.CanView, nil
}

// CanEditStep resolves the sparse per-step edit override, default allowed.
func (s *Access) CanEditStep(ctx context.Context, actor models.Actor, stepID string) (bool, error) {
	visibility, err := s.persistence.Access().GetStepVisibility(ctx, actor.TenantID, stepID, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to load step visibility: %w", err)
	}

	if visibility == nil {
		return true, nil
	}

	return visibility.CanEdit, nil
}

// GetFlowPolicy returns the flow's team access and exclusion lists.
func (s *Access) GetFlowPolicy(ctx context.Context, tenantID, flowID string) (*models.FlowAccessPolicy, error) {
	return s.persistence.Access().GetFlowPolicy(ctx, tenantID, flowID)
}

// SetTeamAccess replaces the flow's team access list.
func (s *Access) SetTeamAccess(ctx context.Context, tenantID, flowID string, teamIDs []string) error {
	err := s.persistence.Access().SetTeamAccess(ctx, tenantID, flowID, teamIDs)
	if err != nil {
		return fmt.Errorf("failed to set team access: %w", err)
	}

	s.invalidateFlow(ctx, tenantID, flowID)

	return nil
}

// SetUserExclusions replaces the flow's exclusion list. Elevated users are
// dropped before persisting: administrators and team leaders/admins are never
// eligible for exclusion, and filtering on the write path means no read-time
// override can miss.
func (s *Access) SetUserExclusions(ctx context.Context, tenantID, flowID string, users []models.Actor) error {
	userIDs := make([]string, 0, len(users))

	for _, user := range users {
		if user.Role.Elevated() {
			s.logger.WarnContext(ctx, "dropping elevated user from exclusion list",
				"flow_id", flowID, "user_id", user.UserID, "role", user.Role)

			continue
		}

		userIDs = append(userIDs, user.UserID)
	}

	err := s.persistence.Access().SetUserExclusions(ctx, tenantID, flowID, userIDs)
	if err != nil {
		return fmt.Errorf("failed to set user exclusions: %w", err)
	}

	s.invalidateFlow(ctx, tenantID, flowID)

	return nil
}

// SetStepVisibility writes a per-step override row.
func (s *Access) SetStepVisibility(ctx context.Context, tenantID string, visibility *models.StepVisibility) error {
	return s.persistence.Access().SetStepVisibility(ctx, tenantID, visibility)
}

func (s *Access) decisionKey(tenantID, flowID, userID string) string {
	return fmt.Sprintf("nexflow:access:%s:%s:%s", tenantID, flowID, userID)
}

func (s *Access) cachedDecision(ctx context.Context, key string) (bool, bool) {
	if s.cache == nil {
		return false, false
	}

	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "access cache read failed", "key", key, "error", err)

		return false, false
	}

	if !found {
		return false, false
	}

	return value == "1", true
}

func (s *Access) storeDecision(ctx context.Context, key string, allowed bool) {
	if s.cache == nil {
		return
	}

	value := "0"
	if allowed {
		value = "1"
	}

	if err := s.cache.Set(ctx, key, value, accessCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "access cache write failed", "key", key, "error", err)
	}
}

// invalidateFlow drops the cached decisions of every user of the flow. The
// cache keys carry the user id, so the implementation deletes by prefix.
func (s *Access) invalidateFlow(ctx context.Context, tenantID, flowID string) {
	if s.cache == nil {
		return
	}

	prefix := fmt.Sprintf("nexflow:access:%s:%s:", tenantID, flowID)

	if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
		s.logger.WarnContext(ctx, "access cache invalidation failed", "flow_id", flowID, "error", err)
	}
}
