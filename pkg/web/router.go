package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp assembles the HTTP application: middleware, liveness endpoints,
// and every resource route. Both the standalone API binary and the
// orchestrator daemon's embedded API serve this app.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Hiveplane API")
	})

	ag := app.Group("/agents")
	ag.Post("/", handlers.RegisterAgent)
	ag.Get("/", handlers.GetAgents)
	ag.Get("/:id", handlers.GetAgent)
	ag.Get("/:id/contracts", handlers.GetAgentContracts)
	ag.Post("/:id/state", handlers.TransitionAgentState)

	ct := app.Group("/contracts")
	ct.Post("/", handlers.CreateContract)
	ct.Get("/", handlers.GetContracts)
	ct.Get("/summary", handlers.GetContractSummary)
	ct.Get("/:id", handlers.GetContract)
	ct.Post("/:id/approve", handlers.ApproveContract)
	ct.Post("/:id/assign", handlers.AssignContract)
	ct.Post("/:id/start", handlers.StartContract)
	ct.Post("/:id/complete", handlers.CompleteContract)
	ct.Post("/:id/fail", handlers.FailContract)
	ct.Post("/:id/cancel", handlers.CancelContract)

	app.Get("/assignments", handlers.GetAssignments)

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/executions", handlers.StartExecution)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}
