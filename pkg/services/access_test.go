package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/albertobarcelos/nexflow/pkg/persistence/file"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, found := c.entries[key]

	return value, found, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value

	return nil
}

func (c *mapCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}

	return nil
}

func (c *mapCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

type accessFixture struct {
	persistence persistence.Persistence
	access      *Access
	cache       *mapCache
}

func newAccessFixture(t *testing.T) *accessFixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	cache := newMapCache()

	return &accessFixture{
		persistence: p,
		access:      NewAccess(p, cache, testLogger()),
		cache:       cache,
	}
}

func (f *accessFixture) createFlow(t *testing.T, visibility models.VisibilityType) *models.Flow {
	t.Helper()

	schema := NewFlowSchema(f.persistence)

	flow, err := schema.CreateFlow(t.Context(), &models.Flow{
		TenantID:   testTenant,
		Name:       "Restricted",
		Visibility: visibility,
	})
	require.NoError(t, err)

	return flow
}

func teamActor(userID string, teams ...string) models.Actor {
	return models.Actor{UserID: userID, TenantID: testTenant, Role: models.RoleMember, TeamIDs: teams}
}

func TestAccess_CompanyFlowVisibleToEveryone(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityCompany)

	allowed, err := f.access.CanViewFlow(t.Context(), teamActor("user-1"), flow)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAccess_CrossTenantFlowIsAViolation(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityCompany)

	actor := models.Actor{UserID: "intruder", TenantID: "tenant-b", Role: models.RoleMember}

	_, err := f.access.CanViewFlow(t.Context(), actor, flow)
	assert.ErrorIs(t, err, persistence.ErrTenantViolation)
}

func TestAccess_TeamFlowRequiresMembership(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityTeam)

	require.NoError(t, f.access.SetTeamAccess(t.Context(), testTenant, flow.ID, []string{"team-1"}))

	allowed, err := f.access.CanViewFlow(t.Context(), teamActor("member", "team-1"), flow)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = f.access.CanViewFlow(t.Context(), teamActor("outsider", "team-2"), flow)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAccess_TeamFlowWithoutTeamsIsOpen(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityTeam)

	allowed, err := f.access.CanViewFlow(t.Context(), teamActor("anyone"), flow)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAccess_UserExclusionDeniesListedMember(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityUserExclusion)

	require.NoError(t, f.access.SetTeamAccess(t.Context(), testTenant, flow.ID, []string{"team-1"}))
	require.NoError(t, f.access.SetUserExclusions(t.Context(), testTenant, flow.ID, []models.Actor{
		teamActor("excluded", "team-1"),
	}))

	allowed, err := f.access.CanViewFlow(t.Context(), teamActor("excluded", "team-1"), flow)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = f.access.CanViewFlow(t.Context(), teamActor("colleague", "team-1"), flow)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAccess_ElevatedUsersDroppedFromExclusions(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityUserExclusion)

	admin := models.Actor{UserID: "admin-1", TenantID: testTenant, Role: models.RoleAdministrator}
	leader := models.Actor{UserID: "leader-1", TenantID: testTenant, Role: models.RoleTeamLeader, TeamIDs: []string{"team-1"}}

	require.NoError(t, f.access.SetUserExclusions(t.Context(), testTenant, flow.ID, []models.Actor{
		admin, leader, teamActor("member-1"),
	}))

	policy, err := f.access.GetFlowPolicy(t.Context(), testTenant, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member-1"}, policy.ExcludedUserIDs)
}

func TestAccess_DecisionsAreCachedAndInvalidated(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityTeam)

	require.NoError(t, f.access.SetTeamAccess(t.Context(), testTenant, flow.ID, []string{"team-1"}))

	allowed, err := f.access.CanViewFlow(t.Context(), teamActor("outsider", "team-2"), flow)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 1, f.cache.size())

	// Policy writes evict the flow's cached decisions.
	require.NoError(t, f.access.SetTeamAccess(t.Context(), testTenant, flow.ID, []string{"team-2"}))
	assert.Equal(t, 0, f.cache.size())

	allowed, err = f.access.CanViewFlow(t.Context(), teamActor("outsider", "team-2"), flow)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAccess_StepVisibilityDefaultsOpen(t *testing.T) {
	f := newAccessFixture(t)
	flow := f.createFlow(t, models.VisibilityCompany)

	schema := NewFlowSchema(f.persistence)
	step := createTestStep(t, schema, flow.ID, "Hidden stage")

	actor := teamActor("member-1")

	allowed, err := f.access.CanViewStep(t.Context(), actor, step.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, f.access.SetStepVisibility(t.Context(), testTenant, &models.StepVisibility{
		StepID:  step.ID,
		UserID:  actor.UserID,
		CanView: false,
		CanEdit: false,
	}))

	allowed, err = f.access.CanViewStep(t.Context(), actor, step.ID)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = f.access.CanEditStep(t.Context(), actor, step.ID)
	require.NoError(t, err)
	assert.False(t, allowed)
}
