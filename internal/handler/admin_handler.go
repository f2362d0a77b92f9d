package handler

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// AdminHandler serves the admin dashboard and roster import.
type AdminHandler struct {
	dashboards service.DashboardService
	roster     service.RosterService
	logger     zerolog.Logger
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(dashboards service.DashboardService, roster service.RosterService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		dashboards: dashboards,
		roster:     roster,
		logger:     logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires admin routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Post("/roster", h.importRoster)
}

func (h *AdminHandler) dashboard(c *fiber.Ctx) error {
	dashboard, err := h.dashboards.AdminDashboard(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build admin dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load dashboard")
	}
	return utils.SendSuccess(c, "dashboard retrieved", dashboard)
}

// importRoster accepts the CSV as a multipart "file" field or as the raw request body.
func (h *AdminHandler) importRoster(c *fiber.Ctx) error {
	data := c.Body()
	if file, err := c.FormFile("file"); err == nil {
		reader, err := file.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
		}
		defer reader.Close()

		data, err = io.ReadAll(reader)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
		}
	}
	if len(data) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "roster csv is required")
	}

	ctx := withRequestContext(c)
	result, err := h.roster.Import(ctx, data)
	if err != nil {
		if errors.Is(err, service.ErrRosterMissingType) || errors.Is(err, service.ErrRosterMalformed) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("roster import failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "roster import failed")
	}

	h.dashboards.InvalidateAll(ctx)
	return utils.SendSuccess(c, "roster imported", result)
}
