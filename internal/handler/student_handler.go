package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// StudentHandler serves the student portal: classes, uploads, results and comments.
type StudentHandler struct {
	dashboards  service.DashboardService
	submissions service.SubmissionService
	comments    service.CommentService
	validator   *validator.Validate
	maxBytes    int64
	logger      zerolog.Logger
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(dashboards service.DashboardService, submissions service.SubmissionService, comments service.CommentService, validate *validator.Validate, maxUploadMB int, logger zerolog.Logger) *StudentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &StudentHandler{
		dashboards:  dashboards,
		submissions: submissions,
		comments:    comments,
		validator:   validate,
		maxBytes:    int64(maxUploadMB) * 1024 * 1024,
		logger:      logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register wires student routes.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("/classes", h.classes)
	router.Post("/upload", h.upload)
	router.Get("/results", h.results)
	router.Post("/assignments/:id/comment", h.comment)
}

func (h *StudentHandler) classes(c *fiber.Ctx) error {
	classes, err := h.dashboards.StudentClasses(withRequestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "classes retrieved", classes)
}

func (h *StudentHandler) upload(c *fiber.Ctx) error {
	payload := dto.SubmissionUploadRequest{ClassName: strings.TrimSpace(c.FormValue("class_name"))}
	if err := h.validator.Struct(payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "class_name is required", validationDetails(err))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if file.Size > h.maxBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, service.ErrSubmissionTooLarge.Error())
	}

	reader, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, h.maxBytes+1))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}

	ack, err := h.submissions.Submit(withRequestContext(c), service.SubmissionRequest{
		StudentID:     userIDFromContext(c),
		ClassName:     payload.ClassName,
		Filename:      file.Filename,
		Content:       content,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, ack.Message, ack)
}

func (h *StudentHandler) results(c *fiber.Ctx) error {
	results, err := h.dashboards.StudentResults(withRequestContext(c), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *StudentHandler) comment(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CommentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	comment, err := h.comments.StudentComment(withRequestContext(c), assignmentID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "comment saved", comment)
}

func (h *StudentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request", validationDetails(err))
	case errors.Is(err, service.ErrSubmissionTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrGradingQueueFull):
		c.Set(fiber.HeaderRetryAfter, "30")
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAssignmentForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrCommentEmpty):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("student request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "request failed")
	}
}
