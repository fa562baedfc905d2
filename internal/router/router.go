package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medcompli/cme-go-api/internal/config"
	"github.com/medcompli/cme-go-api/internal/handler"
	"github.com/medcompli/cme-go-api/internal/middleware"
	"github.com/medcompli/cme-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CatalogHandler    *handler.CatalogHandler
	RecordHandler     *handler.RecordHandler
	ComplianceHandler *handler.ComplianceHandler
	AuditHandler      *handler.AuditHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	reviewerRoles := []string{middleware.RoleUnitAdmin, middleware.RoleDOHAdmin}

	if deps.CatalogHandler != nil {
		catalog := api.Group("/catalog", jwtMiddleware)
		write := catalog.Group("", middleware.RequireRole(reviewerRoles...))
		deps.CatalogHandler.Register(catalog, write)
	}

	if deps.RecordHandler != nil {
		records := api.Group("/records", jwtMiddleware)
		review := records.Group("", middleware.RequireRole(reviewerRoles...))
		deps.RecordHandler.Register(records, review)
	}

	if deps.ComplianceHandler != nil {
		compliance := api.Group("/compliance", jwtMiddleware)
		deps.ComplianceHandler.Register(compliance)

		compliance.Post("/:practitionerId/cycle",
			middleware.WithAuth(deps.ComplianceHandler.StartCycle, middleware.AuthOptions{Role: middleware.RoleDOHAdmin}),
		)

		compliance.Post("/statistics",
			middleware.RequireRole(middleware.RoleDOHAdmin),
			middleware.RateLimit("compliance-statistics", cfg.StatisticsRateMax, cfg.StatisticsRateWin),
			deps.ComplianceHandler.Statistics,
		)
	}

	if deps.AuditHandler != nil {
		audit := api.Group("/audit", jwtMiddleware, middleware.RequireRole(middleware.RoleDOHAdmin))
		deps.AuditHandler.Register(audit)
	}
}
