package service

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrCommentEmpty indicates the text is empty once markup is stripped.
	ErrCommentEmpty = errors.New("comment text is empty")
	// ErrNoStudentComment indicates an instructor tried to answer before the student commented.
	ErrNoStudentComment = errors.New("student has not commented on this assignment")
)

// CacheInvalidator drops cached views that include a class.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, classID uint)
}

// CommentService manages the single comment thread attached to each assignment.
type CommentService interface {
	StudentComment(ctx context.Context, assignmentID, studentID uint, req dto.CommentRequest) (dto.CommentResponse, error)
	InstructorResponse(ctx context.Context, assignmentID, instructorID uint, req dto.CommentRequest) (dto.CommentResponse, error)
}

type commentService struct {
	assignments repository.AssignmentRepository
	comments    repository.CommentRepository
	cache       CacheInvalidator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewCommentService constructs a comment service. cache may be nil.
func NewCommentService(assignments repository.AssignmentRepository, comments repository.CommentRepository, cache CacheInvalidator, validate *validator.Validate, logger zerolog.Logger) CommentService {
	if validate == nil {
		validate = validator.New()
	}
	return &commentService{
		assignments: assignments,
		comments:    comments,
		cache:       cache,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "comment_service").Logger(),
	}
}

func (s *commentService) StudentComment(ctx context.Context, assignmentID, studentID uint, req dto.CommentRequest) (dto.CommentResponse, error) {
	text, err := s.clean(req)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return dto.CommentResponse{}, err
	}
	if assignment.StudentID != studentID {
		return dto.CommentResponse{}, ErrAssignmentForbidden
	}

	comment := models.Comment{AssignmentID: assignment.ID}
	if assignment.Comment != nil {
		comment = *assignment.Comment
	}
	comment.StudentComment = text

	if err := s.comments.Save(ctx, &comment); err != nil {
		return dto.CommentResponse{}, err
	}

	s.invalidate(ctx, assignment)
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("student_id", studentID).Msg("student comment saved")
	return dto.NewCommentResponse(comment), nil
}

func (s *commentService) InstructorResponse(ctx context.Context, assignmentID, instructorID uint, req dto.CommentRequest) (dto.CommentResponse, error) {
	text, err := s.clean(req)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return dto.CommentResponse{}, err
	}
	if assignment.Class == nil || assignment.Class.InstructorID != instructorID {
		return dto.CommentResponse{}, ErrAssignmentForbidden
	}
	if assignment.Comment == nil || strings.TrimSpace(assignment.Comment.StudentComment) == "" {
		return dto.CommentResponse{}, ErrNoStudentComment
	}

	comment := *assignment.Comment
	comment.InstructorResponse = text

	if err := s.comments.Save(ctx, &comment); err != nil {
		return dto.CommentResponse{}, err
	}

	s.invalidate(ctx, assignment)
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("instructor_id", instructorID).Msg("instructor response saved")
	return dto.NewCommentResponse(comment), nil
}

func (s *commentService) clean(req dto.CommentRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", err
	}
	// Strict policy drops markup and entity-escapes the rest; store the plain text.
	text := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(req.Text)))
	if text == "" {
		return "", ErrCommentEmpty
	}
	return text, nil
}

func (s *commentService) load(ctx context.Context, assignmentID uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *commentService) invalidate(ctx context.Context, assignment models.Assignment) {
	if s.cache == nil || assignment.ClassID == nil {
		return
	}
	s.cache.Invalidate(ctx, *assignment.ClassID)
}
