package file

import (
	"testing"
	"time"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "tenant-1"

func TestFlowRoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())

	flow := &models.Flow{
		ID:         "flow-1",
		TenantID:   testTenant,
		Name:       "Sales Pipeline",
		Visibility: models.VisibilityCompany,
		CreatedAt:  time.Now().UTC(),
	}

	require.NoError(t, p.Flows().Save(t.Context(), flow))

	fetched, err := p.Flows().GetByID(t.Context(), testTenant, "flow-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "Sales Pipeline", fetched.Name)

	// Unknown id yields nil, not an error
	missing, err := p.Flows().GetByID(t.Context(), testTenant, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Another tenant cannot see it
	other, err := p.Flows().GetByID(t.Context(), "tenant-2", "flow-1")
	require.NoError(t, err)
	assert.Nil(t, other)

	flows, err := p.Flows().List(t.Context(), testTenant)
	require.NoError(t, err)
	assert.Len(t, flows, 1)
}

func TestStepReorderIsDense(t *testing.T) {
	p := NewPersistence(t.TempDir())

	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, p.Steps().Save(t.Context(), testTenant, &models.Step{
			ID: id, FlowID: "flow-1", Title: id, Position: i + 1,
		}))
	}

	require.NoError(t, p.Steps().Reorder(t.Context(), testTenant, "flow-1", []string{"s3", "s1", "s2"}))

	steps, err := p.Steps().ListByFlow(t.Context(), testTenant, "flow-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, "s3", steps[0].ID)
	assert.Equal(t, "s1", steps[1].ID)
	assert.Equal(t, "s2", steps[2].ID)

	for i, step := range steps {
		assert.Equal(t, i+1, step.Position)
	}
}

func TestStepReorderUnknownStep(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Steps().Save(t.Context(), testTenant, &models.Step{
		ID: "s1", FlowID: "flow-1", Title: "s1", Position: 1,
	}))

	err := p.Steps().Reorder(t.Context(), testTenant, "flow-1", []string{"s1", "ghost"})
	assert.ErrorIs(t, err, persistence.ErrStepNotFound)
}

func TestStepDeleteRemovesFields(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Steps().Save(t.Context(), testTenant, &models.Step{
		ID: "s1", FlowID: "flow-1", Title: "s1", Position: 1,
	}))
	require.NoError(t, p.Fields().Save(t.Context(), testTenant, &models.StepField{
		ID: "f1", StepID: "s1", Label: "Budget", Slug: "budget", Type: models.FieldTypeNumber,
	}))

	require.NoError(t, p.Steps().Delete(t.Context(), testTenant, "s1"))

	fields, err := p.Fields().ListByStep(t.Context(), testTenant, "s1")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestCardListFiltering(t *testing.T) {
	p := NewPersistence(t.TempDir())

	completed := models.CardStatusCompleted

	cards := []*models.Card{
		{ID: "c1", TenantID: testTenant, FlowID: "flow-1", StepID: "s1", Title: "A", Status: models.CardStatusInProgress, Position: 2},
		{ID: "c2", TenantID: testTenant, FlowID: "flow-1", StepID: "s1", Title: "B", Status: completed, Position: 1},
		{ID: "c3", TenantID: testTenant, FlowID: "flow-1", StepID: "s2", Title: "C", Status: models.CardStatusInProgress, Position: 1},
	}
	for _, card := range cards {
		require.NoError(t, p.Cards().Save(t.Context(), card))
	}

	byStep, err := p.Cards().ListByFlow(t.Context(), testTenant, "flow-1", persistence.ListCardsOptions{StepID: "s1"})
	require.NoError(t, err)
	require.Len(t, byStep, 2)
	assert.Equal(t, "c2", byStep[0].ID) // Position order within the step

	byStatus, err := p.Cards().ListByFlow(t.Context(), testTenant, "flow-1", persistence.ListCardsOptions{Status: &completed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "c2", byStatus[0].ID)

	count, err := p.Cards().CountByStep(t.Context(), testTenant, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestAccessPolicyDefaultsEmpty(t *testing.T) {
	p := NewPersistence(t.TempDir())

	policy, err := p.Access().GetFlowPolicy(t.Context(), testTenant, "flow-1")
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Empty(t, policy.TeamIDs)
	assert.Empty(t, policy.ExcludedUserIDs)

	require.NoError(t, p.Access().SetTeamAccess(t.Context(), testTenant, "flow-1", []string{"t1"}))
	require.NoError(t, p.Access().SetUserExclusions(t.Context(), testTenant, "flow-1", []string{"u9"}))

	policy, err = p.Access().GetFlowPolicy(t.Context(), testTenant, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, policy.TeamIDs)
	assert.Equal(t, []string{"u9"}, policy.ExcludedUserIDs)
}

func TestStepVisibilitySparse(t *testing.T) {
	p := NewPersistence(t.TempDir())

	absent, err := p.Access().GetStepVisibility(t.Context(), testTenant, "s1", "u1")
	require.NoError(t, err)
	assert.Nil(t, absent)

	require.NoError(t, p.Access().SetStepVisibility(t.Context(), testTenant, &models.StepVisibility{
		StepID: "s1", UserID: "u1", CanView: false, CanEdit: false,
	}))

	row, err := p.Access().GetStepVisibility(t.Context(), testTenant, "s1", "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.CanView)
}

func TestAutomationActiveFilter(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Automations().Save(t.Context(), &models.ChildCardAutomation{
		ID: "a1", TenantID: testTenant, StepID: "s1", TargetFlowID: "flow-2", TargetStepID: "s9", Active: true,
	}))
	require.NoError(t, p.Automations().Save(t.Context(), &models.ChildCardAutomation{
		ID: "a2", TenantID: testTenant, StepID: "s1", TargetFlowID: "flow-2", TargetStepID: "s9", Active: false,
	}))

	all, err := p.Automations().ListByStep(t.Context(), testTenant, "s1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := p.Automations().ListByStep(t.Context(), testTenant, "s1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a1", active[0].ID)
}

func TestEventOrdering(t *testing.T) {
	p := NewPersistence(t.TempDir())

	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"e3", "e1", "e2"} {
		require.NoError(t, p.Events().Append(t.Context(), &models.CardEvent{
			ID:         id,
			TenantID:   testTenant,
			CardID:     "c1",
			Kind:       models.EventFieldUpdate,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := p.Events().ListByCard(t.Context(), testTenant, "c1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "e3", events[0].ID)
	assert.Equal(t, "e1", events[1].ID)
	assert.Equal(t, "e2", events[2].ID)
}

func TestActivityDueSweep(t *testing.T) {
	p := NewPersistence(t.TempDir())

	now := time.Now().UTC()

	require.NoError(t, p.Activities().Save(t.Context(), &models.Activity{
		ID: "act1", TenantID: testTenant, CardID: "c1", Title: "Call back",
		DueAt: now.Add(-time.Hour), Status: models.ActivityStatusPending,
	}))
	require.NoError(t, p.Activities().Save(t.Context(), &models.Activity{
		ID: "act2", TenantID: testTenant, CardID: "c1", Title: "Send contract",
		DueAt: now.Add(time.Hour), Status: models.ActivityStatusPending,
	}))

	due, err := p.Activities().ListDuePending(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "act1", due[0].ID)
}

func TestCommissionRulePriority(t *testing.T) {
	p := NewPersistence(t.TempDir())

	pct10 := 10.0
	pct5 := 5.0

	require.NoError(t, p.Commissions().SaveRule(t.Context(), &models.CommissionRule{
		ID: "r-code", TenantID: testTenant, TeamID: "t1",
		Code: strPtr("PLAN-A"), Percentage: &pct5,
	}))
	require.NoError(t, p.Commissions().SaveRule(t.Context(), &models.CommissionRule{
		ID: "r-item", TenantID: testTenant, TeamID: "t1",
		ItemID: strPtr("item-1"), Percentage: &pct10,
	}))

	rule, err := p.Commissions().FindRule(t.Context(), testTenant, "t1", "item-1", "PLAN-A")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "r-item", rule.ID)

	rule, err = p.Commissions().FindRule(t.Context(), testTenant, "t1", "item-2", "PLAN-A")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "r-code", rule.ID)

	rule, err = p.Commissions().FindRule(t.Context(), testTenant, "t1", "item-2", "PLAN-B")
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestCommissionCalculationRoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())

	calculation := &models.CommissionCalculation{
		ID: "calc-1", TenantID: testTenant, PaymentID: "pay-1", CardID: "c1",
		TeamID: "t1", TotalAmount: 1000, TotalDistributedPercentage: 100,
		CreatedAt: time.Now().UTC(),
	}
	distributions := []*models.CommissionDistribution{
		{ID: "d1", CalculationID: "calc-1", UserID: "u1", Percentage: 60, Amount: 600},
		{ID: "d2", CalculationID: "calc-1", UserID: "u2", Percentage: 40, Amount: 400},
	}

	require.NoError(t, p.Commissions().SaveCalculation(t.Context(), calculation, distributions))

	byCard, err := p.Commissions().ListCalculationsByCard(t.Context(), testTenant, "c1")
	require.NoError(t, err)
	require.Len(t, byCard, 1)

	fetched, err := p.Commissions().ListDistributions(t.Context(), "calc-1")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.InDelta(t, 1000.0, fetched[0].Amount+fetched[1].Amount, 0.0001)
}

func strPtr(s string) *string { return &s }
