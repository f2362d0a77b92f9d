package dto

import (
	"github.com/noah-isme/gema-grader/internal/models"
)

// ClassSummary describes a class without its roster.
type ClassSummary struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Year       int    `json:"year"`
	Semester   string `json:"semester"`
	Instructor string `json:"instructor"`
}

// NewClassSummary converts a Class model.
func NewClassSummary(model models.Class) ClassSummary {
	return ClassSummary{
		ID:         model.ID,
		Name:       model.Name,
		Year:       model.Year,
		Semester:   string(model.Semester),
		Instructor: model.Instructor.Name,
	}
}

// StudentAssignments groups one student's assignments inside a class.
type StudentAssignments struct {
	StudentID   uint               `json:"student_id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Assignments []AssignmentResult `json:"assignments"`
}

// ClassDashboard is a class with its students and their assignments.
type ClassDashboard struct {
	ClassSummary
	InstructorEmail string               `json:"instructor_email"`
	Students        []StudentAssignments `json:"students"`
}

// InstructorDashboardResponse lists every class an instructor teaches.
type InstructorDashboardResponse struct {
	InstructorID uint             `json:"instructor_id"`
	Name         string           `json:"name"`
	Classes      []ClassDashboard `json:"classes"`
}

// AdminDashboardResponse lists every class in the system.
type AdminDashboardResponse struct {
	Classes []ClassDashboard `json:"classes"`
}

// DownloadTarget tells the handler where a stored submission lives.
type DownloadTarget struct {
	Filename string
	Path     string
	URL      string
}
