package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/albertobarcelos/nexflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{
		"commission_distributions", "commission_calculations", "commission_rules",
		"card_items", "compensation_levels", "team_members", "teams", "payments",
		"activities", "card_events", "step_automations", "step_visibility",
		"flow_user_exclusions", "flow_team_access", "card_movements", "cards",
		"step_fields", "steps", "flows", "schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("nexflow_test"),
			postgres.WithUsername("nexflow"),
			postgres.WithPassword("nexflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func newFlow(tenantID, name string) *models.Flow {
	now := time.Now().UTC()

	return &models.Flow{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		Visibility: models.VisibilityCompany,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newStep(flowID, title string, position int) *models.Step {
	now := time.Now().UTC()

	return &models.Step{
		ID:          uuid.NewString(),
		FlowID:      flowID,
		Title:       title,
		Position:    position,
		Responsible: models.NoResponsible(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'flows')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "flows table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'commission_distributions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "commission_distributions table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_FlowRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Sales Pipeline")
	flow.Description = "Inbound deals"

	err := p.Flows().Save(ctx, flow)
	require.NoError(t, err)

	retrieved, err := p.Flows().GetByID(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, flow.Name, retrieved.Name)
	assert.Equal(t, flow.Description, retrieved.Description)
	assert.Equal(t, models.VisibilityCompany, retrieved.Visibility)

	// Another tenant must not see it
	other, err := p.Flows().GetByID(ctx, "tenant-b", flow.ID)
	require.NoError(t, err)
	assert.Nil(t, other)

	flows, err := p.Flows().List(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	err = p.Flows().Delete(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)

	deleted, err := p.Flows().GetByID(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	err = p.Flows().Delete(ctx, "tenant-a", uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestNewPersistence_StepReorder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Onboarding")
	require.NoError(t, p.Flows().Save(ctx, flow))

	first := newStep(flow.ID, "New", 1)
	second := newStep(flow.ID, "In Review", 2)
	third := newStep(flow.ID, "Done", 3)

	for _, step := range []*models.Step{first, second, third} {
		require.NoError(t, p.Steps().Save(ctx, "tenant-a", step))
	}

	err := p.Steps().Reorder(ctx, "tenant-a", flow.ID, []string{third.ID, first.ID, second.ID})
	require.NoError(t, err)

	steps, err := p.Steps().ListByFlow(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, third.ID, steps[0].ID)
	assert.Equal(t, 1, steps[0].Position)
	assert.Equal(t, first.ID, steps[1].ID)
	assert.Equal(t, 2, steps[1].Position)
	assert.Equal(t, second.ID, steps[2].ID)
	assert.Equal(t, 3, steps[2].Position)

	// Unknown step id keeps the old order
	err = p.Steps().Reorder(ctx, "tenant-a", flow.ID, []string{first.ID, uuid.NewString(), second.ID})
	require.ErrorIs(t, err, persistence.ErrStepNotFound)

	steps, err = p.Steps().ListByFlow(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	assert.Equal(t, third.ID, steps[0].ID)
}

func TestNewPersistence_StepResponsible(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Support")
	require.NoError(t, p.Flows().Save(ctx, flow))

	step := newStep(flow.ID, "Triage", 1)
	step.Responsible = models.TeamResponsible("team-7")
	step.Type = models.StepTypeFinisher
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", step))

	retrieved, err := p.Steps().GetByID(ctx, "tenant-a", step.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.True(t, retrieved.Responsible.IsTeam())
	assert.Equal(t, "team-7", retrieved.Responsible.ID)
	assert.True(t, retrieved.IsFinisher())
}

func TestNewPersistence_FieldConfiguration(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Checklist Flow")
	require.NoError(t, p.Flows().Save(ctx, flow))

	step := newStep(flow.ID, "Prep", 1)
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", step))

	now := time.Now().UTC()
	field := &models.StepField{
		ID:       uuid.NewString(),
		StepID:   step.ID,
		Label:    "Launch checklist",
		Slug:     "launch_checklist",
		Type:     models.FieldTypeChecklist,
		Position: 1,
		Configuration: map[string]any{
			"items": []any{"sign contract", "send invoice"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, p.Fields().Save(ctx, "tenant-a", field))

	retrieved, err := p.Fields().GetByID(ctx, "tenant-a", field.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "launch_checklist", retrieved.Slug)
	assert.Equal(t, []any{"sign contract", "send invoice"}, retrieved.Configuration["items"])
}

func TestNewPersistence_CardMovementsAppendOnly(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Deals")
	require.NoError(t, p.Flows().Save(ctx, flow))

	intake := newStep(flow.ID, "Intake", 1)
	closing := newStep(flow.ID, "Closing", 2)
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", intake))
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", closing))

	now := time.Now().UTC()
	card := &models.Card{
		ID:          uuid.NewString(),
		TenantID:    "tenant-a",
		FlowID:      flow.ID,
		StepID:      intake.ID,
		Title:       "Acme deal",
		FieldValues: map[string]any{"budget": float64(1200)},
		Status:      models.CardStatusInProgress,
		Movements: []models.Movement{
			{ID: uuid.NewString(), ToStepID: intake.ID, MovedAt: now, MovedBy: "user-1"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, p.Cards().Save(ctx, card))

	card.StepID = closing.ID
	fromID := intake.ID
	card.Movements = append(card.Movements, models.Movement{
		ID: uuid.NewString(), FromStepID: &fromID, ToStepID: closing.ID,
		MovedAt: now.Add(time.Minute), MovedBy: "user-1",
	})
	require.NoError(t, p.Cards().Save(ctx, card))

	retrieved, err := p.Cards().GetByID(ctx, "tenant-a", card.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	require.Len(t, retrieved.Movements, 2)
	assert.Nil(t, retrieved.Movements[0].FromStepID)
	require.NotNil(t, retrieved.Movements[1].FromStepID)
	assert.Equal(t, intake.ID, *retrieved.Movements[1].FromStepID)
	assert.Equal(t, float64(1200), retrieved.FieldValues["budget"])

	// Saving with a truncated history must fail
	card.Movements = card.Movements[:1]
	err = p.Cards().Save(ctx, card)
	require.Error(t, err)

	count, err := p.Cards().CountByStep(ctx, "tenant-a", closing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNewPersistence_ListCardsFilters(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Deals")
	require.NoError(t, p.Flows().Save(ctx, flow))

	intake := newStep(flow.ID, "Intake", 1)
	closing := newStep(flow.ID, "Closing", 2)
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", intake))
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", closing))

	now := time.Now().UTC()

	newCard := func(stepID string, status models.CardStatus) *models.Card {
		return &models.Card{
			ID:       uuid.NewString(),
			TenantID: "tenant-a",
			FlowID:   flow.ID,
			StepID:   stepID,
			Title:    "Deal",
			Status:   status,
			Movements: []models.Movement{
				{ID: uuid.NewString(), ToStepID: stepID, MovedAt: now, MovedBy: "user-1"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	require.NoError(t, p.Cards().Save(ctx, newCard(intake.ID, models.CardStatusInProgress)))
	require.NoError(t, p.Cards().Save(ctx, newCard(closing.ID, models.CardStatusInProgress)))
	require.NoError(t, p.Cards().Save(ctx, newCard(closing.ID, models.CardStatusCompleted)))

	all, err := p.Cards().ListByFlow(ctx, "tenant-a", flow.ID, persistence.ListCardsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inClosing, err := p.Cards().ListByFlow(ctx, "tenant-a", flow.ID, persistence.ListCardsOptions{StepID: closing.ID})
	require.NoError(t, err)
	assert.Len(t, inClosing, 2)

	completed := models.CardStatusCompleted
	done, err := p.Cards().ListByFlow(ctx, "tenant-a", flow.ID, persistence.ListCardsOptions{Status: &completed})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, models.CardStatusCompleted, done[0].Status)

	inProgress := models.CardStatusInProgress
	narrowed, err := p.Cards().ListByFlow(ctx, "tenant-a", flow.ID, persistence.ListCardsOptions{StepID: closing.ID, Status: &inProgress})
	require.NoError(t, err)
	assert.Len(t, narrowed, 1)
}

func TestNewPersistence_AccessPolicy(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := newFlow("tenant-a", "Restricted")
	require.NoError(t, p.Flows().Save(ctx, flow))

	policy, err := p.Access().GetFlowPolicy(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	assert.Empty(t, policy.TeamIDs)
	assert.Empty(t, policy.ExcludedUserIDs)

	require.NoError(t, p.Access().SetTeamAccess(ctx, "tenant-a", flow.ID, []string{"team-1", "team-2"}))
	require.NoError(t, p.Access().SetUserExclusions(ctx, "tenant-a", flow.ID, []string{"user-9"}))

	policy, err = p.Access().GetFlowPolicy(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"team-1", "team-2"}, policy.TeamIDs)
	assert.True(t, policy.Excludes("user-9"))

	// Replacing the set removes old entries
	require.NoError(t, p.Access().SetTeamAccess(ctx, "tenant-a", flow.ID, []string{"team-3"}))

	policy, err = p.Access().GetFlowPolicy(ctx, "tenant-a", flow.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"team-3"}, policy.TeamIDs)

	step := newStep(flow.ID, "Hidden", 1)
	require.NoError(t, p.Steps().Save(ctx, "tenant-a", step))

	visibility, err := p.Access().GetStepVisibility(ctx, "tenant-a", step.ID, "user-9")
	require.NoError(t, err)
	assert.Nil(t, visibility)

	require.NoError(t, p.Access().SetStepVisibility(ctx, "tenant-a", &models.StepVisibility{
		StepID: step.ID, UserID: "user-9", CanView: true, CanEdit: false,
	}))

	visibility, err = p.Access().GetStepVisibility(ctx, "tenant-a", step.ID, "user-9")
	require.NoError(t, err)
	require.NotNil(t, visibility)
	assert.True(t, visibility.CanView)
	assert.False(t, visibility.CanEdit)
}

func TestNewPersistence_CommissionRulesAndCalculation(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	team := &models.Team{ID: uuid.NewString(), TenantID: "tenant-a", Name: "Closers"}
	require.NoError(t, p.Commissions().SaveTeam(ctx, team))
	require.NoError(t, p.Commissions().AddTeamMember(ctx, "tenant-a", team.ID, "user-1"))
	require.NoError(t, p.Commissions().AddTeamMember(ctx, "tenant-a", team.ID, "user-2"))

	members, err := p.Commissions().ListTeamMembers(ctx, "tenant-a", team.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	percentage := 10.0
	codeRule := &models.CommissionRule{
		ID: uuid.NewString(), TenantID: "tenant-a", TeamID: team.ID,
		Code: strPtr("SKU"), Percentage: &percentage,
	}
	require.NoError(t, p.Commissions().SaveRule(ctx, codeRule))

	fixed := 50.0
	itemRule := &models.CommissionRule{
		ID: uuid.NewString(), TenantID: "tenant-a", TeamID: team.ID,
		ItemID: strPtr("item-1"), FixedAmount: &fixed,
	}
	require.NoError(t, p.Commissions().SaveRule(ctx, itemRule))

	// Item-bound rule beats the code-level fallback
	found, err := p.Commissions().FindRule(ctx, "tenant-a", team.ID, "item-1", "SKU")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, itemRule.ID, found.ID)

	found, err = p.Commissions().FindRule(ctx, "tenant-a", team.ID, "item-other", "SKU")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, codeRule.ID, found.ID)

	found, err = p.Commissions().FindRule(ctx, "tenant-a", team.ID, "item-other", "NOPE")
	require.NoError(t, err)
	assert.Nil(t, found)

	calculation := &models.CommissionCalculation{
		ID: uuid.NewString(), TenantID: "tenant-a", PaymentID: uuid.NewString(),
		CardID: uuid.NewString(), TeamID: team.ID, TotalAmount: 100,
		TotalDistributedPercentage: 100, CreatedAt: time.Now().UTC(),
	}
	distributions := []*models.CommissionDistribution{
		{ID: uuid.NewString(), CalculationID: calculation.ID, UserID: "user-1", Percentage: 60, Amount: 60},
		{ID: uuid.NewString(), CalculationID: calculation.ID, UserID: "user-2", Percentage: 40, Amount: 40},
	}
	require.NoError(t, p.Commissions().SaveCalculation(ctx, calculation, distributions))

	calculations, err := p.Commissions().ListCalculationsByCard(ctx, "tenant-a", calculation.CardID)
	require.NoError(t, err)
	require.Len(t, calculations, 1)

	stored, err := p.Commissions().ListDistributions(ctx, calculation.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestNewPersistence_ActiveLevel(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	closedAt := time.Now().UTC().Add(-24 * time.Hour)
	old := &models.CompensationLevel{
		ID: uuid.NewString(), TenantID: "tenant-a", UserID: "user-1",
		Name: "Junior", CommissionPercentage: 20,
		EffectiveFrom: closedAt.Add(-30 * 24 * time.Hour), EffectiveTo: &closedAt,
	}
	current := &models.CompensationLevel{
		ID: uuid.NewString(), TenantID: "tenant-a", UserID: "user-1",
		Name: "Senior", CommissionPercentage: 35,
		EffectiveFrom: closedAt,
	}
	require.NoError(t, p.Commissions().SaveLevel(ctx, old))
	require.NoError(t, p.Commissions().SaveLevel(ctx, current))

	level, err := p.Commissions().ActiveLevel(ctx, "tenant-a", "user-1")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, "Senior", level.Name)
	assert.InDelta(t, 35, level.CommissionPercentage, 0.0001)

	level, err = p.Commissions().ActiveLevel(ctx, "tenant-a", "user-unknown")
	require.NoError(t, err)
	assert.Nil(t, level)
}

func strPtr(s string) *string { return &s }
