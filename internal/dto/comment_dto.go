package dto

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// CommentRequest carries a student comment or an instructor response.
type CommentRequest struct {
	Text string `json:"text" form:"text" validate:"required,max=4000"`
}

// CommentResponse serializes the comment thread of an assignment.
type CommentResponse struct {
	AssignmentID       uint      `json:"assignment_id"`
	StudentComment     string    `json:"student_comment"`
	InstructorResponse string    `json:"instructor_response"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewCommentResponse converts a Comment model.
func NewCommentResponse(model models.Comment) CommentResponse {
	return CommentResponse{
		AssignmentID:       model.AssignmentID,
		StudentComment:     model.StudentComment,
		InstructorResponse: model.InstructorResponse,
		UpdatedAt:          model.UpdatedAt,
	}
}
