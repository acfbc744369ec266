// Package web provides HTTP handlers and REST API endpoints for flow and card
// management.
package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/albertobarcelos/nexflow/pkg/services"
)

const (
	headerTenantID  = "X-Tenant-ID"
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerUserTeams = "X-User-Teams"
)

type APIHandlers struct {
	flows       *services.FlowSchema
	cards       *services.Card
	access      *services.Access
	automations *services.Automation
	timeline    *services.Timeline
	activities  *services.Activity
	commission  *services.Commission
	validator   *validator.Validate
}

func NewAPIHandlers(
	flows *services.FlowSchema,
	cards *services.Card,
	access *services.Access,
	automations *services.Automation,
	timeline *services.Timeline,
	activities *services.Activity,
	commission *services.Commission,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flows:       flows,
		cards:       cards,
		access:      access,
		automations: automations,
		timeline:    timeline,
		activities:  activities,
		commission:  commission,
		validator:   validator,
	}
}

// RegisterRoutes mounts every endpoint on the app. All routes except the
// health check require the tenant headers.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	api := app.Group("/", h.requireActor)

	api.Get("/flows", h.ListFlows)
	api.Post("/flows", h.CreateFlow)
	api.Get("/flows/:id", h.GetFlow)
	api.Put("/flows/:id", h.UpdateFlow)
	api.Delete("/flows/:id", h.DeleteFlow)

	api.Get("/flows/:id/access", h.GetFlowAccess)
	api.Put("/flows/:id/access/teams", h.SetTeamAccess)
	api.Put("/flows/:id/access/exclusions", h.SetUserExclusions)

	api.Get("/flows/:id/steps", h.ListSteps)
	api.Post("/flows/:id/steps", h.CreateStep)
	api.Put("/flows/:id/steps/reorder", h.ReorderSteps)

	api.Get("/steps/:id", h.GetStep)
	api.Put("/steps/:id", h.UpdateStep)
	api.Delete("/steps/:id", h.DeleteStep)
	api.Put("/steps/:id/visibility", h.SetStepVisibility)

	api.Get("/steps/:id/fields", h.ListFields)
	api.Post("/steps/:id/fields", h.CreateField)
	api.Put("/steps/:id/fields/reorder", h.ReorderFields)
	api.Put("/fields/:id", h.UpdateField)
	api.Delete("/fields/:id", h.DeleteField)

	api.Get("/flows/:id/cards", h.ListCards)
	api.Post("/cards", h.CreateCard)
	api.Get("/cards/:id", h.GetCard)
	api.Post("/cards/:id/move", h.MoveCard)
	api.Post("/cards/:id/complete", h.CompleteCard)
	api.Post("/cards/:id/cancel", h.CancelCard)
	api.Put("/cards/:id/title", h.RenameCard)
	api.Patch("/cards/:id/fields", h.UpdateCardFields)
	api.Put("/cards/:id/checklist", h.SetChecklistItem)
	api.Put("/cards/:id/assignee", h.AssignCard)
	api.Get("/cards/:id/timeline", h.GetCardTimeline)

	api.Get("/cards/:id/activities", h.ListActivities)
	api.Post("/cards/:id/activities", h.CreateActivity)
	api.Post("/activities/:id/complete", h.CompleteActivity)

	api.Get("/contacts/:id/history", h.GetContactHistory)

	api.Get("/steps/:id/automations", h.ListAutomations)
	api.Post("/steps/:id/automations", h.CreateAutomation)
	api.Put("/automations/:id", h.UpdateAutomation)
	api.Delete("/automations/:id", h.DeleteAutomation)

	api.Post("/payments/:id/confirm", h.ConfirmPayment)
	api.Post("/commissions/calculate", h.CalculateCommission)
}

// requireActor resolves the acting user from the request headers.
// Authentication happens upstream; the gateway forwards the resolved identity.
func (h *APIHandlers) requireActor(c fiber.Ctx) error {
	tenantID := c.Get(headerTenantID)
	if tenantID == "" {
		return badRequest(c, "X-Tenant-ID header is required")
	}

	actor := models.Actor{
		UserID:   c.Get(headerUserID),
		TenantID: tenantID,
		Role:     models.Role(c.Get(headerUserRole)),
	}

	if actor.Role == "" {
		actor.Role = models.RoleMember
	}

	if teams := c.Get(headerUserTeams); teams != "" {
		actor.TeamIDs = strings.Split(teams, ",")
	}

	c.Locals("actor", actor)

	return c.Next()
}

func actorFrom(c fiber.Ctx) models.Actor {
	actor, _ := c.Locals("actor").(models.Actor)

	return actor
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flows.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Nexflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Nexflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// ListFlows returns the flows the acting user can see.
func (h *APIHandlers) ListFlows(c fiber.Ctx) error {
	actor := actorFrom(c)

	flows, err := h.flows.ListFlows(c.Context(), actor.TenantID)
	if err != nil {
		return handleServiceError(c, err)
	}

	visible := make([]*models.Flow, 0, len(flows))

	for _, flow := range flows {
		allowed, err := h.access.CanViewFlow(c.Context(), actor, flow)
		if err != nil {
			return handleServiceError(c, err)
		}

		if allowed {
			visible = append(visible, flow)
		}
	}

	return c.JSON(visible)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		TenantID:    actor.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  models.VisibilityType(req.Visibility),
	}

	created, err := h.flows.CreateFlow(c.Context(), flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.fetchVisibleFlow(c, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(flow)
}

// fetchVisibleFlow loads a flow and enforces the visibility decision. The
// returned error, when non-nil, is already a rendered response.
func (h *APIHandlers) fetchVisibleFlow(c fiber.Ctx, flowID string) (*models.Flow, error) {
	actor := actorFrom(c)

	flow, err := h.flows.FetchFlow(c.Context(), actor.TenantID, flowID)
	if err != nil {
		return nil, handleServiceError(c, err)
	}

	allowed, err := h.access.CanViewFlow(c.Context(), actor, flow)
	if err != nil {
		return nil, handleServiceError(c, err)
	}

	if !allowed {
		return nil, forbidden(c, "flow is not visible to this user")
	}

	return flow, nil
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flows.UpdateFlow(c.Context(), actor.TenantID, c.Params("id"), &models.Flow{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  models.VisibilityType(req.Visibility),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	actor := actorFrom(c)

	if err := h.flows.DeleteFlow(c.Context(), actor.TenantID, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetFlowAccess(c fiber.Ctx) error {
	actor := actorFrom(c)

	policy, err := h.access.GetFlowPolicy(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(policy)
}

func (h *APIHandlers) SetTeamAccess(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req TeamAccessRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.access.SetTeamAccess(c.Context(), actor.TenantID, c.Params("id"), req.TeamIDs); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetUserExclusions(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req UserExclusionsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	users := make([]models.Actor, 0, len(req.Users))
	for _, user := range req.Users {
		users = append(users, models.Actor{
			UserID:   user.UserID,
			TenantID: actor.TenantID,
			Role:     models.Role(user.Role),
		})
	}

	if err := h.access.SetUserExclusions(c.Context(), actor.TenantID, c.Params("id"), users); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ListSteps(c fiber.Ctx) error {
	actor := actorFrom(c)

	steps, err := h.flows.ListSteps(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(steps)
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step := &models.Step{
		FlowID:      c.Params("id"),
		Title:       req.Title,
		Color:       req.Color,
		Type:        models.StepType(req.Type),
		Responsible: responsibleFromRequest(req.ResponsibleKind, req.ResponsibleID),
	}

	created, err := h.flows.CreateStep(c.Context(), actor.TenantID, step)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ReorderSteps(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req ReorderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.flows.ReorderSteps(c.Context(), actor.TenantID, c.Params("id"), req.OrderedIDs); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetStep(c fiber.Ctx) error {
	actor := actorFrom(c)

	step, err := h.flows.FetchStep(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flows.UpdateStep(c.Context(), actor.TenantID, c.Params("id"), &models.Step{
		Title:       req.Title,
		Color:       req.Color,
		Type:        models.StepType(req.Type),
		Responsible: responsibleFromRequest(req.ResponsibleKind, req.ResponsibleID),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	actor := actorFrom(c)

	if err := h.flows.DeleteStep(c.Context(), actor.TenantID, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetStepVisibility(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req StepVisibilityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.access.SetStepVisibility(c.Context(), actor.TenantID, &models.StepVisibility{
		StepID:  c.Params("id"),
		UserID:  req.UserID,
		CanView: req.CanView,
		CanEdit: req.CanEdit,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ListFields(c fiber.Ctx) error {
	actor := actorFrom(c)

	fields, err := h.flows.ListFields(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fields)
}

func (h *APIHandlers) CreateField(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateFieldRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	field := &models.StepField{
		StepID:        c.Params("id"),
		Label:         req.Label,
		Type:          models.FieldType(req.Type),
		Required:      req.Required,
		Configuration: req.Configuration,
	}

	created, err := h.flows.CreateField(c.Context(), actor.TenantID, field)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ReorderFields(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req ReorderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.flows.ReorderFields(c.Context(), actor.TenantID, c.Params("id"), req.OrderedIDs); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateField(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req UpdateFieldRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flows.UpdateField(c.Context(), actor.TenantID, c.Params("id"), &models.StepField{
		Label:         req.Label,
		Slug:          req.Slug,
		Required:      req.Required,
		Configuration: req.Configuration,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteField(c fiber.Ctx) error {
	actor := actorFrom(c)

	if err := h.flows.DeleteField(c.Context(), actor.TenantID, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ListCards returns a flow's cards, optionally filtered by step and status
// query parameters.
func (h *APIHandlers) ListCards(c fiber.Ctx) error {
	actor := actorFrom(c)

	if _, err := h.fetchVisibleFlow(c, c.Params("id")); err != nil {
		return err
	}

	opts := persistence.ListCardsOptions{
		StepID: c.Query("step_id"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.CardStatus(statusStr)
		opts.Status = &status
	}

	cards, err := h.cards.List(c.Context(), actor.TenantID, c.Params("id"), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cards)
}

func (h *APIHandlers) CreateCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateCardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	card := &models.Card{
		FlowID:         req.FlowID,
		StepID:         req.StepID,
		Title:          req.Title,
		ContactID:      req.ContactID,
		FieldValues:    req.FieldValues,
		AssignedTo:     req.AssignedTo,
		AssignedTeamID: req.AssignedTeamID,
	}

	created, err := h.cards.Create(c.Context(), actor, card)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	card, err := h.cards.Fetch(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(card)
}

func (h *APIHandlers) MoveCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req MoveCardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	moved, err := h.cards.Move(c.Context(), actor, c.Params("id"), req.ToStepID, services.MoveOptions{
		AssignTo: req.AssignTo,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(moved)
}

func (h *APIHandlers) CompleteCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	completed, err := h.cards.Complete(c.Context(), actor, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(completed)
}

func (h *APIHandlers) CancelCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	canceled, err := h.cards.Cancel(c.Context(), actor, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(canceled)
}

func (h *APIHandlers) RenameCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req RenameCardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	renamed, err := h.cards.SetTitle(c.Context(), actor, c.Params("id"), req.Title)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(renamed)
}

func (h *APIHandlers) UpdateCardFields(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req UpdateFieldValuesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.cards.UpdateFieldValues(c.Context(), actor, c.Params("id"), req.Values)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) SetChecklistItem(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req ChecklistItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.cards.SetChecklistItem(c.Context(), actor, c.Params("id"), req.FieldID, req.Item, req.Done)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) AssignCard(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req AssignCardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	assigned, err := h.cards.Assign(c.Context(), actor, c.Params("id"), req.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(assigned)
}

func (h *APIHandlers) GetCardTimeline(c fiber.Ctx) error {
	actor := actorFrom(c)

	timeline, err := h.timeline.CardTimeline(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(timeline)
}

func (h *APIHandlers) GetContactHistory(c fiber.Ctx) error {
	actor := actorFrom(c)

	history, err := h.timeline.ContactHistory(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(history)
}

func (h *APIHandlers) ListActivities(c fiber.Ctx) error {
	actor := actorFrom(c)

	activities, err := h.activities.ListByCard(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activities)
}

func (h *APIHandlers) CreateActivity(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateActivityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		return badRequest(c, "due_at must be RFC 3339")
	}

	created, err := h.activities.Create(c.Context(), actor, &models.Activity{
		CardID: c.Params("id"),
		Title:  req.Title,
		Notes:  req.Notes,
		DueAt:  dueAt,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) CompleteActivity(c fiber.Ctx) error {
	actor := actorFrom(c)

	completed, err := h.activities.Complete(c.Context(), actor, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(completed)
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	actor := actorFrom(c)

	automations, err := h.automations.ListByStep(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automations)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.automations.Create(c.Context(), actor.TenantID, &models.ChildCardAutomation{
		StepID:          c.Params("id"),
		TargetFlowID:    req.TargetFlowID,
		TargetStepID:    req.TargetStepID,
		Active:          req.Active,
		CopyFieldValues: req.CopyFieldValues,
		CopyAssignment:  req.CopyAssignment,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.automations.Update(c.Context(), actor.TenantID, c.Params("id"), &models.ChildCardAutomation{
		TargetFlowID:    req.TargetFlowID,
		TargetStepID:    req.TargetStepID,
		Active:          req.Active,
		CopyFieldValues: req.CopyFieldValues,
		CopyAssignment:  req.CopyAssignment,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	actor := actorFrom(c)

	if err := h.automations.Delete(c.Context(), actor.TenantID, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ConfirmPayment(c fiber.Ctx) error {
	actor := actorFrom(c)

	payment, err := h.commission.ConfirmPayment(c.Context(), actor.TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(payment)
}

func (h *APIHandlers) CalculateCommission(c fiber.Ctx) error {
	actor := actorFrom(c)

	var req CalculateCommissionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.commission.Calculate(c.Context(), actor.TenantID, req.PaymentID, req.CardID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}
