package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/school-records-api/internal/config"
	"github.com/noah-isme/school-records-api/internal/handler"
	"github.com/noah-isme/school-records-api/internal/middleware"
	"github.com/noah-isme/school-records-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	IncidentHandler   *handler.IncidentHandler
	AttendanceHandler *handler.AttendanceHandler
	EquipmentHandler  *handler.EquipmentHandler
	HealthChecks      map[string]handler.Pinger
	// RollCallLimiter guards bulk roll call; nil builds one from cfg.
	RollCallLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	if deps.IncidentHandler != nil {
		deps.IncidentHandler.Register(api.Group("/incidents"))
	}

	if deps.AttendanceHandler != nil {
		limiter := deps.RollCallLimiter
		if limiter == nil {
			limiter = middleware.RateLimit("roll_call", cfg.RollCallRateLimit, cfg.RollCallWindow)
		}
		deps.AttendanceHandler.Register(api.Group("/attendance"), limiter)
	}

	if deps.EquipmentHandler != nil {
		deps.EquipmentHandler.Register(api.Group("/equipment"))
	}
}
