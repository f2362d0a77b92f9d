package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// InstructorHandler serves the instructor dashboard and comment responses.
type InstructorHandler struct {
	dashboards service.DashboardService
	comments   service.CommentService
	logger     zerolog.Logger
}

// NewInstructorHandler constructs an instructor handler.
func NewInstructorHandler(dashboards service.DashboardService, comments service.CommentService, logger zerolog.Logger) *InstructorHandler {
	return &InstructorHandler{
		dashboards: dashboards,
		comments:   comments,
		logger:     logger.With().Str("component", "instructor_handler").Logger(),
	}
}

// Register wires instructor routes.
func (h *InstructorHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Post("/assignments/:id/response", h.respond)
}

func (h *InstructorHandler) dashboard(c *fiber.Ctx) error {
	dashboard, err := h.dashboards.InstructorDashboard(withRequestContext(c), userIDFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build instructor dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load dashboard")
	}
	return utils.SendSuccess(c, "dashboard retrieved", dashboard)
}

func (h *InstructorHandler) respond(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CommentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	comment, err := h.comments.InstructorResponse(withRequestContext(c), assignmentID, userIDFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrCommentEmpty):
			return utils.Fail(c, fiber.StatusBadRequest, "response text is required", validationDetails(err))
		case errors.Is(err, service.ErrAssignmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAssignmentForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrNoStudentComment):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to save instructor response")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to save response")
		}
	}
	return utils.SendSuccess(c, "response saved", comment)
}
