package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// CommentRepository persists the one-to-one assignment comment thread.
type CommentRepository interface {
	GetByAssignment(ctx context.Context, assignmentID uint) (models.Comment, error)
	Save(ctx context.Context, comment *models.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository constructs a comment repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) GetByAssignment(ctx context.Context, assignmentID uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&comment).Error; err != nil {
		return models.Comment{}, err
	}

	return comment, nil
}

func (r *commentRepository) Save(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}
