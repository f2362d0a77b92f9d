package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// InstructorRepository provides access to instructor records.
type InstructorRepository interface {
	GetByID(ctx context.Context, id uint) (models.Instructor, error)
	GetByEmail(ctx context.Context, email string) (models.Instructor, error)
}

// AdminRepository provides access to admin records.
type AdminRepository interface {
	GetByID(ctx context.Context, id uint) (models.Admin, error)
	GetByEmail(ctx context.Context, email string) (models.Admin, error)
}

type instructorRepository struct {
	db *gorm.DB
}

type adminRepository struct {
	db *gorm.DB
}

// NewInstructorRepository constructs an instructor repository.
func NewInstructorRepository(db *gorm.DB) InstructorRepository {
	return &instructorRepository{db: db}
}

// NewAdminRepository constructs an admin repository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *instructorRepository) GetByID(ctx context.Context, id uint) (models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.WithContext(ctx).First(&instructor, id).Error; err != nil {
		return models.Instructor{}, err
	}
	return instructor, nil
}

func (r *instructorRepository) GetByEmail(ctx context.Context, email string) (models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&instructor).Error; err != nil {
		return models.Instructor{}, err
	}
	return instructor, nil
}

func (r *adminRepository) GetByID(ctx context.Context, id uint) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return models.Admin{}, err
	}
	return admin, nil
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		return models.Admin{}, err
	}
	return admin, nil
}
