package ai

import (
	"context"
	"errors"
)

// ErrUnparsableResponse indicates the model reply matched neither response contract.
var ErrUnparsableResponse = errors.New("could not extract grade or feedback from response")

// GradeRequest carries the decoded submission text sent to the grading model.
type GradeRequest struct {
	Filename string
	Content  string
}

// GradeResult is the parsed grade returned by a Grader.
type GradeResult struct {
	Grade      string                 `json:"grade"`
	Feedback   string                 `json:"feedback"`
	Structured bool                   `json:"structured"`
	Usage      map[string]interface{} `json:"usage,omitempty"`
}

// Grader describes a language model capable of grading a written submission.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (GradeResult, error)
	Provider() string
}
