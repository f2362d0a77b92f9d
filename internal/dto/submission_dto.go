package dto

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// UploadAckMessage is sent for every accepted upload, regardless of the grading outcome.
const UploadAckMessage = "File received, grading in progress!"

// SubmissionUploadRequest describes the multipart form fields of an upload.
type SubmissionUploadRequest struct {
	ClassName string `form:"class_name" validate:"required,min=1,max=255"`
}

// UploadAck is the immediate acknowledgement returned by the upload endpoint.
type UploadAck struct {
	Message string `json:"message"`
}

// AssignmentResult is one row of a student's results listing.
type AssignmentResult struct {
	ID                 uint      `json:"id"`
	Filename           string    `json:"filename"`
	ClassName          string    `json:"class_name"`
	Grade              string    `json:"grade"`
	Feedback           string    `json:"feedback"`
	GradingStatus      string    `json:"grading_status"`
	StudentComment     string    `json:"student_comment"`
	InstructorResponse string    `json:"instructor_response"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewAssignmentResult converts an Assignment into its listing form.
func NewAssignmentResult(model models.Assignment) AssignmentResult {
	result := AssignmentResult{
		ID:            model.ID,
		Filename:      model.Filename,
		ClassName:     "N/A",
		Grade:         model.Grade,
		Feedback:      model.Feedback,
		GradingStatus: model.GradingStatus,
		CreatedAt:     model.CreatedAt,
	}
	if model.Class != nil && model.Class.Name != "" {
		result.ClassName = model.Class.Name
	}
	if model.Comment != nil {
		result.StudentComment = model.Comment.StudentComment
		result.InstructorResponse = model.Comment.InstructorResponse
	}
	return result
}

// GradeEvent is broadcast after an assignment row is recorded.
type GradeEvent struct {
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	ClassID      uint      `json:"class_id"`
	ClassName    string    `json:"class_name"`
	Filename     string    `json:"filename"`
	Grade        string    `json:"grade"`
	Status       string    `json:"status"`
	RecordedAt   time.Time `json:"recorded_at"`
}
