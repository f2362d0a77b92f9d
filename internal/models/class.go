package models

import (
	"strings"
	"time"
)

// Semester enumerates the academic terms a class can run in.
type Semester string

const (
	SemesterFall   Semester = "FALL"
	SemesterSpring Semester = "SPRING"
)

// ParseSemester normalises raw input into a known semester.
func ParseSemester(raw string) (Semester, bool) {
	switch Semester(strings.ToUpper(strings.TrimSpace(raw))) {
	case SemesterFall:
		return SemesterFall, true
	case SemesterSpring:
		return SemesterSpring, true
	default:
		return "", false
	}
}

// Class is a course offering owned by a single instructor.
type Class struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Year         int          `json:"year"`
	Semester     Semester     `gorm:"size:16;not null" json:"semester"`
	InstructorID uint         `gorm:"not null;index" json:"instructor_id"`
	Instructor   Instructor   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"instructor"`
	Students     []Student    `gorm:"many2many:class_students;" json:"students,omitempty"`
	Assignments  []Assignment `json:"assignments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
