package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	WorkTime       *handlers.WorkTimeHandler
	Engineers      *handlers.EngineersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/engineers/login", cfg.Engineers.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	engineers := protected.Group("/engineers")
	engineers.Get("/", cfg.Engineers.List)
	engineers.Post("/", auth.RequireRole(domain.RoleManager, domain.RoleAdmin), cfg.Engineers.Register)

	tickets := protected.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.GetHistory)
	tickets.Post("/:id/assign", auth.RequireRole(domain.RoleManager, domain.RoleAdmin), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/take", cfg.Tickets.TakeTicket)
	tickets.Post("/:id/assignment/cancel", cfg.Tickets.CancelAssignment)
	tickets.Post("/:id/start", cfg.Tickets.StartWork)
	tickets.Post("/:id/complete", cfg.Tickets.CompleteTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)

	worktime := protected.Group("/worktime")
	worktime.Get("/", cfg.WorkTime.Projection)
	worktime.Post("/check-in", cfg.WorkTime.CheckIn)
	worktime.Post("/check-out", cfg.WorkTime.CheckOut)
}
