// Package main provides the Nexflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/albertobarcelos/nexflow/pkg/cache"
	"github.com/albertobarcelos/nexflow/pkg/eventbus"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/albertobarcelos/nexflow/pkg/services"
	"github.com/albertobarcelos/nexflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	redisURL    string
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	redisURL string,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		redisURL:    redisURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	var decisionCache services.DecisionCache

	if a.redisURL != "" {
		redisCache, err := cache.NewRedis(context.Background(), a.redisURL)
		if err != nil {
			a.logger.Error("Failed to connect to Redis, running without decision cache", "error", err)
		} else {
			decisionCache = redisCache
		}
	}

	flowService := services.NewFlowSchema(a.persistence)
	cardService := services.NewCard(a.persistence, a.eventBus, a.logger)
	accessService := services.NewAccess(a.persistence, decisionCache, a.logger)
	automationService := services.NewAutomation(a.persistence, cardService, a.logger)
	timelineService := services.NewTimeline(a.persistence)
	activityService := services.NewActivity(a.persistence, a.logger)
	commissionService := services.NewCommission(a.persistence, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(
		flowService,
		cardService,
		accessService,
		automationService,
		timelineService,
		activityService,
		commissionService,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Nexflow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
