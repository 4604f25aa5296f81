package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-sla/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	Metrics        http.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Post("", auth.RequireUser(), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	slaGroup := app.Group("/sla", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	slaGroup.Get("/config", cfg.SLA.Config)
	slaGroup.Get("/preview", cfg.SLA.Preview)
	slaGroup.Get("/summary", auth.RequireStaffRole(), cfg.SLA.Summary)
	slaGroup.Post("/sweep", auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin), cfg.SLA.Sweep)
}
