package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler        *handler.AuthHandler
	StudentHandler     *handler.StudentHandler
	InstructorHandler  *handler.InstructorHandler
	AdminHandler       *handler.AdminHandler
	DownloadHandler    *handler.DownloadHandler
	GradeStreamHandler *handler.GradeStreamHandler
	SessionMiddleware  fiber.Handler
	GradingStats       func() map[string]interface{}
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.GradingStats))

	session := deps.SessionMiddleware
	if session == nil {
		session = func(c *fiber.Ctx) error {
			return fiber.ErrUnauthorized
		}
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		deps.AuthHandler.Register(auth)
		deps.AuthHandler.RegisterProtected(auth, session)
	}

	if deps.StudentHandler != nil {
		student := api.Group("/student", session, middleware.RequireRole(models.RoleStudent))
		student.Use("/upload", middleware.RateLimit("upload", cfg.UploadRateLimit, time.Minute))
		deps.StudentHandler.Register(student)
	}

	if deps.GradeStreamHandler != nil {
		ws := api.Group("/ws", session, middleware.RequireRole(models.RoleStudent))
		deps.GradeStreamHandler.Register(ws)
	}

	if deps.InstructorHandler != nil {
		instructor := api.Group("/instructor", session, middleware.RequireRole(models.RoleInstructor))
		deps.InstructorHandler.Register(instructor)
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", session, middleware.RequireRole(models.RoleAdmin))
		deps.AdminHandler.Register(admin)
	}

	if deps.DownloadHandler != nil {
		assignments := api.Group("/assignments", session, middleware.RequireRole(models.RoleStudent, models.RoleInstructor, models.RoleAdmin))
		deps.DownloadHandler.Register(assignments)
	}
}
