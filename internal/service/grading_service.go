package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

// NonTextPlaceholder is graded in place of content that cannot be decoded as text.
const NonTextPlaceholder = "[non-text submission: content extraction is not supported]"

var errGraderNotConfigured = errors.New("grader not configured")

// GradeOutcome is the result of one grading attempt. It is never an error:
// failures carry the fallback grade with Status set to grading_failed.
type GradeOutcome struct {
	Grade    string
	Feedback string
	Status   string
	Provider string
	Reason   string
	Meta     map[string]interface{}
}

// Failed reports whether the outcome holds the fallback grade.
func (o GradeOutcome) Failed() bool {
	return o.Status == models.GradingStatusFailed
}

// GradingService turns a Grader into a call that always yields a grade.
type GradingService interface {
	Evaluate(ctx context.Context, filename, text string) GradeOutcome
}

type gradingService struct {
	grader  ai.Grader
	errors  *errlog.Log
	timeout time.Duration
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewGradingService wraps grader. A nil grader makes every evaluation fail.
func NewGradingService(grader ai.Grader, errorLog *errlog.Log, timeout time.Duration, logger zerolog.Logger) GradingService {
	if errorLog == nil {
		errorLog = errlog.Nop()
	}
	return &gradingService{
		grader:  grader,
		errors:  errorLog,
		timeout: timeout,
		logger:  logger.With().Str("component", "grading_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/gema-grader/internal/service/grading"),
	}
}

func (s *gradingService) Evaluate(ctx context.Context, filename, text string) GradeOutcome {
	ctx, span := s.tracer.Start(ctx, "grading.evaluate", trace.WithAttributes(
		attribute.String("submission.filename", filename),
		attribute.Int("submission.length", len(text)),
	))
	defer span.End()

	if s.grader == nil {
		return s.fail(span, filename, "", errGraderNotConfigured)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.grader.Grade(ctx, ai.GradeRequest{Filename: filename, Content: text})
	if err != nil {
		return s.fail(span, filename, s.grader.Provider(), err)
	}

	grade := strings.TrimSpace(result.Grade)
	feedback := strings.TrimSpace(result.Feedback)
	if !ai.ValidGrade(grade) || feedback == "" {
		return s.fail(span, filename, s.grader.Provider(), ai.ErrUnparsableResponse)
	}

	meta := map[string]interface{}{"structured": result.Structured}
	for key, value := range result.Usage {
		meta[key] = value
	}

	span.SetAttributes(attribute.String("grading.grade", grade))
	return GradeOutcome{
		Grade:    grade,
		Feedback: feedback,
		Status:   models.GradingStatusGraded,
		Provider: s.grader.Provider(),
		Meta:     meta,
	}
}

func (s *gradingService) fail(span trace.Span, filename, provider string, err error) GradeOutcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	s.errors.Recordf("Error in evaluate_grade for %s: %v", filename, err)
	s.logger.Warn().Err(err).Str("filename", filename).Msg("grading failed, storing fallback grade")

	return GradeOutcome{
		Grade:    models.FallbackGrade,
		Feedback: models.FallbackFeedback,
		Status:   models.GradingStatusFailed,
		Provider: provider,
		Reason:   err.Error(),
		Meta:     map[string]interface{}{"reason": err.Error()},
	}
}
