// Package main provides the formflow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/formflow/pkg/cmd"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/schema"
	"github.com/dukex/formflow/pkg/services"
	"github.com/dukex/formflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *cmd.Engine
	validate    *validator.Validate
	app         *fiber.App
}

func NewAPI(logger *slog.Logger, persistence persistence.Persistence, engine *cmd.Engine) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		engine:      engine,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	schemas, err := schema.NewRegistry()
	if err != nil {
		panic(err)
	}

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, a.validate, schemas, a.logger),
		services.NewNode(schemas),
		a.engine.Executor,
		a.engine.Approvals,
		a.persistence,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("formflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	a.app = a.App()

	return a.app.Listen(":" + strconv.Itoa(port))
}

func (a *API) Shutdown() error {
	if a.app == nil {
		return nil
	}

	return a.app.Shutdown()
}
