package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

func TestGradingServiceEvaluateSuccess(t *testing.T) {
	grader := &stubGrader{result: ai.GradeResult{Grade: "B+", Feedback: "Solid work.", Structured: true}}
	svc := NewGradingService(grader, errlog.Nop(), time.Second, zerolog.Nop())

	outcome := svc.Evaluate(context.Background(), "essay.txt", "hello")
	require.False(t, outcome.Failed())
	require.Equal(t, "B+", outcome.Grade)
	require.Equal(t, "Solid work.", outcome.Feedback)
	require.Equal(t, models.GradingStatusGraded, outcome.Status)
	require.Equal(t, "stub", outcome.Provider)
	require.Equal(t, true, outcome.Meta["structured"])
	require.Equal(t, "hello", grader.lastRequest().Content)
}

func TestGradingServiceEvaluateFallsBackOnError(t *testing.T) {
	var buf bytes.Buffer
	grader := &stubGrader{err: ai.ErrUnparsableResponse}
	svc := NewGradingService(grader, errlog.New(&buf), time.Second, zerolog.Nop())

	outcome := svc.Evaluate(context.Background(), "essay.txt", "hello")
	require.True(t, outcome.Failed())
	require.Equal(t, "Error", outcome.Grade)
	require.Equal(t, "Could not generate feedback.", outcome.Feedback)
	require.Contains(t, outcome.Reason, "could not extract grade")
	require.Contains(t, buf.String(), "essay.txt")
}

func TestGradingServiceEvaluateRejectsEmptyResult(t *testing.T) {
	grader := &stubGrader{result: ai.GradeResult{Grade: "A", Feedback: "   "}}
	svc := NewGradingService(grader, nil, 0, zerolog.Nop())

	outcome := svc.Evaluate(context.Background(), "essay.txt", "hello")
	require.True(t, outcome.Failed())
	require.Equal(t, models.FallbackGrade, outcome.Grade)
}

func TestGradingServiceEvaluateRejectsOverlongGrade(t *testing.T) {
	var buf bytes.Buffer
	grader := &stubGrader{result: ai.GradeResult{Grade: "B+ (solid work, needs citations)", Feedback: "ok"}}
	svc := NewGradingService(grader, errlog.New(&buf), 0, zerolog.Nop())

	outcome := svc.Evaluate(context.Background(), "essay.txt", "hello")
	require.True(t, outcome.Failed())
	require.Equal(t, models.FallbackGrade, outcome.Grade)
	require.LessOrEqual(t, len(outcome.Grade), ai.MaxGradeLength)
	require.Contains(t, buf.String(), "essay.txt")
}

func TestGradingServiceWithoutGrader(t *testing.T) {
	svc := NewGradingService(nil, errlog.Nop(), time.Second, zerolog.Nop())

	outcome := svc.Evaluate(context.Background(), "essay.txt", "hello")
	require.True(t, outcome.Failed())
	require.Equal(t, models.FallbackFeedback, outcome.Feedback)
}

type slowGrader struct{}

func (slowGrader) Grade(ctx context.Context, req ai.GradeRequest) (ai.GradeResult, error) {
	<-ctx.Done()
	return ai.GradeResult{}, ctx.Err()
}

func (slowGrader) Provider() string { return "slow" }

func TestGradingServiceTimeout(t *testing.T) {
	svc := NewGradingService(slowGrader{}, errlog.Nop(), 20*time.Millisecond, zerolog.Nop())

	outcome := svc.Evaluate(context.Background(), "essay.txt", "hello")
	require.True(t, outcome.Failed())
	require.Equal(t, "slow", outcome.Provider)
	require.Contains(t, outcome.Reason, "deadline exceeded")
}
