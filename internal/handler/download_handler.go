package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// DownloadHandler streams stored submissions to authorized users.
type DownloadHandler struct {
	dashboards service.DashboardService
	logger     zerolog.Logger
}

// NewDownloadHandler constructs a download handler.
func NewDownloadHandler(dashboards service.DashboardService, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{
		dashboards: dashboards,
		logger:     logger.With().Str("component", "download_handler").Logger(),
	}
}

// Register wires download routes.
func (h *DownloadHandler) Register(router fiber.Router) {
	router.Get("/:id/download", h.download)
}

func (h *DownloadHandler) download(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	target, err := h.dashboards.DownloadTarget(withRequestContext(c), assignmentID, userIDFromContext(c), userRoleFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAssignmentForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to resolve download")
			return utils.SendError(c, fiber.StatusInternalServerError, "download failed")
		}
	}

	if target.URL != "" {
		return c.Redirect(target.URL, fiber.StatusFound)
	}
	return c.Download(target.Path, target.Filename)
}
