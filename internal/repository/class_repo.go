package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ClassRepository exposes class lookups used by uploads and dashboards.
type ClassRepository interface {
	GetByID(ctx context.Context, id uint) (models.Class, error)
	GetByName(ctx context.Context, name string) (models.Class, error)
	ListByInstructor(ctx context.Context, instructorID uint) ([]models.Class, error)
	ListAll(ctx context.Context) ([]models.Class, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Class{}).
		Preload("Instructor").
		Preload("Students", func(db *gorm.DB) *gorm.DB {
			return db.Order("students.name ASC")
		})
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}

	return class, nil
}

func (r *classRepository) GetByName(ctx context.Context, name string) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&class).Error; err != nil {
		return models.Class{}, err
	}

	return class, nil
}

func (r *classRepository) ListByInstructor(ctx context.Context, instructorID uint) ([]models.Class, error) {
	var classes []models.Class
	if err := r.baseQuery(ctx).
		Where("instructor_id = ?", instructorID).
		Order("name ASC").
		Find(&classes).Error; err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *classRepository) ListAll(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.baseQuery(ctx).Order("name ASC").Find(&classes).Error; err != nil {
		return nil, err
	}

	return classes, nil
}
