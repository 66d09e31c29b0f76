package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler      *handler.GradingHandler
	DisputeHandler      *handler.DisputeHandler
	GradebookHandler    *handler.GradebookHandler
	RubricHandler       *handler.RubricHandler
	NotificationHandler *handler.NotificationHandler
	ActivityHandler     *handler.ActivityHandler
	HealthProbes        []handler.HealthProbe
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	authenticated := middleware.Authenticated()

	grading := api.Group("/grading", jwtMiddleware, authenticated)
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(grading)
	}
	if deps.DisputeHandler != nil {
		deps.DisputeHandler.Register(grading)
	}
	if deps.GradebookHandler != nil {
		deps.GradebookHandler.Register(grading)
	}
	if deps.RubricHandler != nil {
		deps.RubricHandler.Register(grading.Group("/rubrics"))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware, authenticated))
	}

	if deps.ActivityHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, authenticated, middleware.InstructorOnly())
		deps.ActivityHandler.Register(admin.Group("/activity"))
	}
}
