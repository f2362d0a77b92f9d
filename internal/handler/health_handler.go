package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Service     string                 `json:"service"`
	Environment string                 `json:"environment"`
	Grading     map[string]interface{} `json:"grading,omitempty"`
}

// HealthCheck reports application health and, when available, grading queue load.
func HealthCheck(cfg config.Config, gradingStats func() map[string]interface{}) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if gradingStats != nil {
			payload.Grading = gradingStats()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
