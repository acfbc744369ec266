package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence/file"
	"github.com/albertobarcelos/nexflow/pkg/services"
	"github.com/albertobarcelos/nexflow/pkg/web"
)

const testTenant = "tenant-a"

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	flowService := services.NewFlowSchema(persistence)
	cardService := services.NewCard(persistence, nil, logger)
	accessService := services.NewAccess(persistence, nil, logger)
	automationService := services.NewAutomation(persistence, cardService, logger)
	timelineService := services.NewTimeline(persistence)
	activityService := services.NewActivity(persistence, logger)
	commissionService := services.NewCommission(persistence, nil, logger)

	handlers := web.NewAPIHandlers(
		flowService,
		cardService,
		accessService,
		automationService,
		timelineService,
		activityService,
		commissionService,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app
}

type requestOptions struct {
	role  string
	user  string
	teams string
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, opts *requestOptions) *http.Response {
	t.Helper()

	var buf *bytes.Buffer

	if body != nil {
		if str, ok := body.(string); ok {
			buf = bytes.NewBufferString(str)
		} else {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			buf = bytes.NewBuffer(encoded)
		}
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("X-User-ID", "user-1")

	if opts != nil {
		if opts.user != "" {
			req.Header.Set("X-User-ID", opts.user)
		}

		if opts.role != "" {
			req.Header.Set("X-User-Role", opts.role)
		}

		if opts.teams != "" {
			req.Header.Set("X-User-Teams", opts.teams)
		}
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var value T
	require.NoError(t, json.Unmarshal(raw, &value))

	return value
}

func createFlow(t *testing.T, app *fiber.App, name string) models.Flow {
	t.Helper()

	resp := doRequest(t, app, http.MethodPost, "/flows", web.CreateFlowRequest{Name: name}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decodeBody[models.Flow](t, resp)
}

func createStep(t *testing.T, app *fiber.App, flowID, title string) models.Step {
	t.Helper()

	resp := doRequest(t, app, http.MethodPost, "/flows/"+flowID+"/steps", web.CreateStepRequest{Title: title}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decodeBody[models.Step](t, resp)
}

func createCard(t *testing.T, app *fiber.App, flowID, stepID, title string) models.Card {
	t.Helper()

	resp := doRequest(t, app, http.MethodPost, "/cards", web.CreateCardRequest{
		FlowID: flowID,
		StepID: stepID,
		Title:  title,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decodeBody[models.Card](t, resp)
}

func TestAPIHandlers_TenantHeaderRequired(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/flows", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CreateFlow(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Sales Pipeline")
	assert.Equal(t, "Sales Pipeline", flow.Name)
	assert.Equal(t, models.VisibilityCompany, flow.Visibility)
	assert.Equal(t, testTenant, flow.TenantID)
	assert.NotEmpty(t, flow.ID)

	resp := doRequest(t, app, http.MethodPost, "/flows", web.CreateFlowRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/flows", "not-json", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetFlowNotFound(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/flows/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_TeamVisibilityForbidden(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/flows", web.CreateFlowRequest{
		Name:       "Restricted",
		Visibility: "team",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	flow := decodeBody[models.Flow](t, resp)

	resp = doRequest(t, app, http.MethodPut, "/flows/"+flow.ID+"/access/teams", web.TeamAccessRequest{
		TeamIDs: []string{"team-1"},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/flows/"+flow.ID, nil, &requestOptions{teams: "team-2"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/flows/"+flow.ID, nil, &requestOptions{teams: "team-1,team-9"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_ListFlowsFiltersInvisible(t *testing.T) {
	app := setupTestApp(t)

	createFlow(t, app, "Open flow")

	resp := doRequest(t, app, http.MethodPost, "/flows", web.CreateFlowRequest{
		Name:       "Hidden flow",
		Visibility: "team",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hidden := decodeBody[models.Flow](t, resp)

	resp = doRequest(t, app, http.MethodPut, "/flows/"+hidden.ID+"/access/teams", web.TeamAccessRequest{
		TeamIDs: []string{"team-1"},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/flows", nil, &requestOptions{teams: "team-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	flows := decodeBody[[]models.Flow](t, resp)
	require.Len(t, flows, 1)
	assert.Equal(t, "Open flow", flows[0].Name)
}

func TestAPIHandlers_StepReorder(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	first := createStep(t, app, flow.ID, "First")
	second := createStep(t, app, flow.ID, "Second")

	resp := doRequest(t, app, http.MethodPut, "/flows/"+flow.ID+"/steps/reorder", web.ReorderRequest{
		OrderedIDs: []string{second.ID, first.ID},
	}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Incomplete orderings are rejected.
	resp = doRequest(t, app, http.MethodPut, "/flows/"+flow.ID+"/steps/reorder", web.ReorderRequest{
		OrderedIDs: []string{second.ID},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/flows/"+flow.ID+"/steps", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	steps := decodeBody[[]models.Step](t, resp)
	require.Len(t, steps, 2)
	assert.Equal(t, "Second", steps[0].Title)
	assert.Equal(t, 1, steps[0].Position)
}

func TestAPIHandlers_DeleteLastStepConflict(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	only := createStep(t, app, flow.ID, "Only")

	resp := doRequest(t, app, http.MethodDelete, "/steps/"+only.ID, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_FieldSlugConflict(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	step := createStep(t, app, flow.ID, "Stage")

	resp := doRequest(t, app, http.MethodPost, "/steps/"+step.ID+"/fields", web.CreateFieldRequest{
		Label: "Estimated Value",
		Type:  "number",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	field := decodeBody[models.StepField](t, resp)
	assert.Equal(t, "estimated_value", field.Slug)

	resp = doRequest(t, app, http.MethodPost, "/steps/"+step.ID+"/fields", web.CreateFieldRequest{
		Label: "Estimated Value",
		Type:  "text",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_CardLifecycle(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	intake := createStep(t, app, flow.ID, "Intake")
	closing := createStep(t, app, flow.ID, "Closing")

	card := createCard(t, app, flow.ID, intake.ID, "Acme deal")
	require.Len(t, card.Movements, 1)

	resp := doRequest(t, app, http.MethodPost, "/cards/"+card.ID+"/move", web.MoveCardRequest{
		ToStepID: closing.ID,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	moved := decodeBody[models.Card](t, resp)
	assert.Equal(t, closing.ID, moved.StepID)
	assert.Len(t, moved.Movements, 2)

	resp = doRequest(t, app, http.MethodPost, "/cards/"+card.ID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Completed cards are terminal.
	resp = doRequest(t, app, http.MethodPost, "/cards/"+card.ID+"/move", web.MoveCardRequest{
		ToStepID: intake.ID,
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_RenameCardForbiddenForMembers(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	step := createStep(t, app, flow.ID, "Intake")
	card := createCard(t, app, flow.ID, step.ID, "Deal")

	resp := doRequest(t, app, http.MethodPut, "/cards/"+card.ID+"/title", web.RenameCardRequest{
		Title: "Renamed",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPut, "/cards/"+card.ID+"/title", web.RenameCardRequest{
		Title: "Renamed",
	}, &requestOptions{role: "administrator"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	renamed := decodeBody[models.Card](t, resp)
	assert.Equal(t, "Renamed", renamed.Title)
}

func TestAPIHandlers_CardTimeline(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	intake := createStep(t, app, flow.ID, "Intake")
	closing := createStep(t, app, flow.ID, "Closing")
	card := createCard(t, app, flow.ID, intake.ID, "Deal")

	resp := doRequest(t, app, http.MethodPost, "/cards/"+card.ID+"/move", web.MoveCardRequest{
		ToStepID: closing.ID,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/cards/"+card.ID+"/timeline", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	timeline := decodeBody[models.CardTimeline](t, resp)
	assert.Equal(t, card.ID, timeline.CardID)
	require.Len(t, timeline.Entries, 2)
	assert.Equal(t, models.EventCardCreated, timeline.Entries[0].Kind)
	assert.Equal(t, models.EventStageChange, timeline.Entries[1].Kind)
}

func TestAPIHandlers_Automations(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	step := createStep(t, app, flow.ID, "Stage")

	target := createFlow(t, app, "Onboarding")
	targetStep := createStep(t, app, target.ID, "Kickoff")

	resp := doRequest(t, app, http.MethodPost, "/steps/"+step.ID+"/automations", web.CreateAutomationRequest{
		TargetFlowID:    target.ID,
		TargetStepID:    targetStep.ID,
		Active:          true,
		CopyFieldValues: true,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	automation := decodeBody[models.ChildCardAutomation](t, resp)
	assert.Equal(t, step.ID, automation.StepID)

	// Target step of a different flow is rejected.
	resp = doRequest(t, app, http.MethodPost, "/steps/"+step.ID+"/automations", web.CreateAutomationRequest{
		TargetFlowID: flow.ID,
		TargetStepID: targetStep.ID,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/steps/"+step.ID+"/automations", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	automations := decodeBody[[]models.ChildCardAutomation](t, resp)
	assert.Len(t, automations, 1)

	resp = doRequest(t, app, http.MethodDelete, "/automations/"+automation.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIHandlers_Activities(t *testing.T) {
	app := setupTestApp(t)

	flow := createFlow(t, app, "Pipeline")
	step := createStep(t, app, flow.ID, "Stage")
	card := createCard(t, app, flow.ID, step.ID, "Deal")

	resp := doRequest(t, app, http.MethodPost, "/cards/"+card.ID+"/activities", web.CreateActivityRequest{
		Title: "Call back",
		DueAt: "2026-09-10T12:00:00Z",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	activity := decodeBody[models.Activity](t, resp)
	assert.Equal(t, models.ActivityStatusPending, activity.Status)

	resp = doRequest(t, app, http.MethodPost, "/cards/"+card.ID+"/activities", web.CreateActivityRequest{
		Title: "Bad due",
		DueAt: "not-a-time",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/activities/"+activity.ID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	completed := decodeBody[models.Activity](t, resp)
	assert.Equal(t, models.ActivityStatusCompleted, completed.Status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "healthy", payload["status"])
}
