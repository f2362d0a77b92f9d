package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/worker"
)

const structuredTimestampLayout = "20060102T150405.000000000"

var (
	// ErrGradingQueueFull indicates the grading queue has no free slot.
	ErrGradingQueueFull = errors.New("grading queue is full, try again shortly")
	// ErrSubmissionTooLarge indicates the payload exceeded the configured limit.
	ErrSubmissionTooLarge = errors.New("file exceeds maximum allowed size")
)

var plainTextExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".text": {},
}

// FileStorage persists submission bytes and returns their location (a path or URL).
type FileStorage interface {
	Save(ctx context.Context, name string, reader io.Reader) (string, error)
}

// JobQueue accepts background work without blocking.
type JobQueue interface {
	Submit(task worker.Task) error
}

// SubmissionRequest is an uploaded file waiting to be graded.
type SubmissionRequest struct {
	StudentID uint   `validate:"required,gt=0"`
	ClassName string `validate:"required"`
	Filename  string `validate:"required"`
	Content   []byte

	CorrelationID string
}

// SubmissionService accepts uploads and runs the grading pipeline in the background.
type SubmissionService interface {
	Submit(ctx context.Context, req SubmissionRequest) (dto.UploadAck, error)
	Process(ctx context.Context, req SubmissionRequest)
}

type submissionService struct {
	students    repository.StudentRepository
	classes     repository.ClassRepository
	assignments repository.AssignmentRepository
	storage     FileStorage
	grading     GradingService
	events      GradeEventService
	queue       JobQueue
	errors      *errlog.Log
	validator   *validator.Validate
	maxSize     int64
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// SubmissionServiceConfig groups the collaborators of the submission pipeline.
type SubmissionServiceConfig struct {
	Students    repository.StudentRepository
	Classes     repository.ClassRepository
	Assignments repository.AssignmentRepository
	Storage     FileStorage
	Grading     GradingService
	Events      GradeEventService
	Queue       JobQueue
	ErrorLog    *errlog.Log
	Validator   *validator.Validate
	MaxSizeMB   int
	Logger      zerolog.Logger
}

// NewSubmissionService constructs the submission pipeline.
func NewSubmissionService(cfg SubmissionServiceConfig) SubmissionService {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.ErrorLog == nil {
		cfg.ErrorLog = errlog.Nop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}

	return &submissionService{
		students:    cfg.Students,
		classes:     cfg.Classes,
		assignments: cfg.Assignments,
		storage:     cfg.Storage,
		grading:     cfg.Grading,
		events:      cfg.Events,
		queue:       cfg.Queue,
		errors:      cfg.ErrorLog,
		validator:   cfg.Validator,
		maxSize:     int64(cfg.MaxSizeMB) * 1024 * 1024,
		logger:      cfg.Logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grader/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, req SubmissionRequest) (dto.UploadAck, error) {
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.Filename = strings.TrimSpace(req.Filename)

	if err := s.validator.Struct(req); err != nil {
		return dto.UploadAck{}, err
	}
	if int64(len(req.Content)) > s.maxSize {
		return dto.UploadAck{}, ErrSubmissionTooLarge
	}

	job := req
	err := s.queue.Submit(func(workerCtx context.Context) {
		s.Process(workerCtx, job)
	})
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrPoolStopped) {
			return dto.UploadAck{}, ErrGradingQueueFull
		}
		return dto.UploadAck{}, fmt.Errorf("enqueue submission: %w", err)
	}

	s.logger.Info().
		Str("correlation_id", req.CorrelationID).
		Uint("student_id", req.StudentID).
		Str("class", req.ClassName).
		Str("filename", req.Filename).
		Int("size_bytes", len(req.Content)).
		Msg("submission queued for grading")

	return dto.UploadAck{Message: dto.UploadAckMessage}, nil
}

// Process grades and records one submission. Failures are written to the error
// log and never returned.
func (s *submissionService) Process(ctx context.Context, req SubmissionRequest) {
	ctx, span := s.tracer.Start(ctx, "submission.process", trace.WithAttributes(
		attribute.Int64("submission.student_id", int64(req.StudentID)),
		attribute.String("submission.class", req.ClassName),
		attribute.String("submission.filename", req.Filename),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.drop(span, fmt.Sprintf("Error processing file %s: %v", req.Filename, r))
		}
	}()

	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.drop(span, fmt.Sprintf("Student ID %d not found.", req.StudentID))
		} else {
			s.drop(span, fmt.Sprintf("Error processing file %s: %v", req.Filename, err))
		}
		return
	}

	class, err := s.classes.GetByName(ctx, req.ClassName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.drop(span, fmt.Sprintf("Class %s not found.", req.ClassName))
		} else {
			s.drop(span, fmt.Sprintf("Error processing file %s: %v", req.Filename, err))
		}
		return
	}

	structured := StructuredFilename(student.Email, class.Name, s.now(), req.Filename)
	location, err := s.storage.Save(ctx, structured, bytes.NewReader(req.Content))
	if err != nil {
		s.drop(span, fmt.Sprintf("Error processing file %s: %v", req.Filename, err))
		return
	}

	outcome := s.grading.Evaluate(ctx, req.Filename, SubmissionText(req.Filename, req.Content))

	classID := class.ID
	assignment := models.Assignment{
		Filename:        structured,
		FileURL:         location,
		MimeType:        mimetype.Detect(req.Content).String(),
		SizeBytes:       int64(len(req.Content)),
		Grade:           outcome.Grade,
		Feedback:        outcome.Feedback,
		GradingStatus:   outcome.Status,
		GradingProvider: outcome.Provider,
		GradingMeta:     datatypes.JSONMap(outcome.Meta),
		StudentID:       student.ID,
		ClassID:         &classID,
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		s.drop(span, fmt.Sprintf("Error processing file %s: %v", req.Filename, err))
		return
	}

	observability.Submissions().WithLabelValues(assignment.GradingStatus).Inc()
	s.logger.Info().
		Str("correlation_id", req.CorrelationID).
		Uint("assignment_id", assignment.ID).
		Uint("student_id", student.ID).
		Str("class", class.Name).
		Str("grading_status", assignment.GradingStatus).
		Msg("submission graded")

	if s.events != nil {
		s.events.Publish(ctx, dto.GradeEvent{
			AssignmentID: assignment.ID,
			StudentID:    student.ID,
			ClassID:      class.ID,
			ClassName:    class.Name,
			Filename:     assignment.Filename,
			Grade:        assignment.Grade,
			Status:       assignment.GradingStatus,
			RecordedAt:   assignment.CreatedAt,
		})
	}
}

func (s *submissionService) drop(span trace.Span, message string) {
	span.SetAttributes(attribute.String("submission.dropped", message))
	s.errors.Record(message, nil)
	s.logger.Warn().Msg(message)
	observability.Submissions().WithLabelValues("dropped").Inc()
}

// StructuredFilename names a stored submission after its owner, class and upload time.
func StructuredFilename(email, className string, at time.Time, original string) string {
	cleanEmail := strings.ReplaceAll(email, "@", "_at_")
	cleanClass := strings.ReplaceAll(className, " ", "_")
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))

	return fmt.Sprintf("%s-%s-%s-%s", cleanEmail, cleanClass, at.UTC().Format(structuredTimestampLayout), base)
}

// SubmissionText returns the text sent to the grader: the decoded content for
// plain-text files, otherwise NonTextPlaceholder.
func SubmissionText(filename string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := plainTextExtensions[ext]; !ok {
		return NonTextPlaceholder
	}
	return strings.ToValidUTF8(string(content), "")
}
