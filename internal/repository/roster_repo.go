package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

const classStudentsTable = "class_students"

// RosterStore is the set of lookups and inserts a roster import performs inside one transaction.
type RosterStore interface {
	FindStudentByEmail(ctx context.Context, email string) (models.Student, bool, error)
	CreateStudent(ctx context.Context, student *models.Student) error
	FindInstructorByEmail(ctx context.Context, email string) (models.Instructor, bool, error)
	CreateInstructor(ctx context.Context, instructor *models.Instructor) error
	FindClassByName(ctx context.Context, name string) (models.Class, bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	IsEnrolled(ctx context.Context, classID, studentID uint) (bool, error)
	Enroll(ctx context.Context, classID, studentID uint) error
}

// RosterRepository runs roster reconciliation atomically.
type RosterRepository interface {
	WithinTransaction(ctx context.Context, fn func(store RosterStore) error) error
}

type rosterRepository struct {
	db *gorm.DB
}

type rosterStore struct {
	tx *gorm.DB
}

// NewRosterRepository constructs a roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) WithinTransaction(ctx context.Context, fn func(store RosterStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&rosterStore{tx: tx})
	})
}

func (s *rosterStore) FindStudentByEmail(ctx context.Context, email string) (models.Student, bool, error) {
	var student models.Student
	result := s.tx.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&student)
	if result.Error != nil {
		return models.Student{}, false, result.Error
	}
	return student, result.RowsAffected > 0, nil
}

func (s *rosterStore) CreateStudent(ctx context.Context, student *models.Student) error {
	return s.tx.WithContext(ctx).Create(student).Error
}

func (s *rosterStore) FindInstructorByEmail(ctx context.Context, email string) (models.Instructor, bool, error) {
	var instructor models.Instructor
	result := s.tx.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&instructor)
	if result.Error != nil {
		return models.Instructor{}, false, result.Error
	}
	return instructor, result.RowsAffected > 0, nil
}

func (s *rosterStore) CreateInstructor(ctx context.Context, instructor *models.Instructor) error {
	return s.tx.WithContext(ctx).Create(instructor).Error
}

func (s *rosterStore) FindClassByName(ctx context.Context, name string) (models.Class, bool, error) {
	var class models.Class
	result := s.tx.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&class)
	if result.Error != nil {
		return models.Class{}, false, result.Error
	}
	return class, result.RowsAffected > 0, nil
}

func (s *rosterStore) CreateClass(ctx context.Context, class *models.Class) error {
	return s.tx.WithContext(ctx).Omit("Instructor", "Students", "Assignments").Create(class).Error
}

func (s *rosterStore) IsEnrolled(ctx context.Context, classID, studentID uint) (bool, error) {
	var count int64
	err := s.tx.WithContext(ctx).Table(classStudentsTable).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *rosterStore) Enroll(ctx context.Context, classID, studentID uint) error {
	return s.tx.WithContext(ctx).Table(classStudentsTable).Create(map[string]interface{}{
		"class_id":   classID,
		"student_id": studentID,
	}).Error
}
