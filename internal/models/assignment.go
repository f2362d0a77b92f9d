package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// GradingStatusGraded marks a submission the grader evaluated successfully.
	GradingStatusGraded = "graded"
	// GradingStatusFailed marks a submission stored with the fallback grade.
	GradingStatusFailed = "grading_failed"

	// FallbackGrade and FallbackFeedback are persisted when grading fails.
	FallbackGrade    = "Error"
	FallbackFeedback = "Could not generate feedback."
)

// Assignment is one graded file submitted by a student.
type Assignment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Filename        string            `gorm:"size:512;not null" json:"filename"`
	FileURL         string            `gorm:"size:1024" json:"file_url"`
	MimeType        string            `gorm:"size:128" json:"mime_type"`
	SizeBytes       int64             `json:"size_bytes"`
	Grade           string            `gorm:"size:16" json:"grade"`
	Feedback        string            `gorm:"type:text" json:"feedback"`
	GradingStatus   string            `gorm:"size:32;not null;default:graded" json:"grading_status"`
	GradingProvider string            `gorm:"size:32" json:"grading_provider"`
	GradingMeta     datatypes.JSONMap `json:"grading_meta"`
	StudentID       uint              `gorm:"not null;index" json:"student_id"`
	Student         Student           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	ClassID         *uint             `gorm:"index" json:"class_id"`
	Class           *Class            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"class,omitempty"`
	Comment         *Comment          `json:"comment,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// GradingFailed reports whether the stored grade is the fallback value.
func (a Assignment) GradingFailed() bool {
	return a.GradingStatus == GradingStatusFailed
}

// Comment holds the single student/instructor exchange for an assignment.
type Comment struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	AssignmentID       uint      `gorm:"not null;uniqueIndex" json:"assignment_id"`
	StudentComment     string    `gorm:"type:text" json:"student_comment"`
	InstructorResponse string    `gorm:"type:text" json:"instructor_response"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AllModels lists every table managed by auto-migration.
func AllModels() []interface{} {
	return []interface{}{
		&Instructor{},
		&Admin{},
		&Student{},
		&Class{},
		&Assignment{},
		&Comment{},
	}
}
