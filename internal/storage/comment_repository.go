package storage

import (
	"context"

	"gorm.io/gorm"

	"social-go/internal/models"
)

// CommentRepository defines the interface for comment data operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]models.Comment, error)
	BodiesReferencing(ctx context.Context, needle string, excludeAuthorID uint) ([]string, error)
	DeleteByAuthor(ctx context.Context, authorID uint) (int64, error)
}

type gormCommentRepository struct {
	db *gorm.DB
}

// NewGormCommentRepository creates a new GORM-based CommentRepository.
func NewGormCommentRepository(db *gorm.DB) CommentRepository {
	return &gormCommentRepository{db: db}
}

func (r *gormCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *gormCommentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("id").Find(&comments).Error
	return comments, err
}

func (r *gormCommentRepository) ListByAuthor(ctx context.Context, authorID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("id").Find(&comments).Error
	return comments, err
}

func (r *gormCommentRepository) BodiesReferencing(ctx context.Context, needle string, excludeAuthorID uint) ([]string, error) {
	var bodies []string
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where(`body LIKE ? ESCAPE '\' AND author_id != ?`, likeContains(needle), excludeAuthorID).
		Pluck("body", &bodies).Error
	return bodies, err
}

func (r *gormCommentRepository) DeleteByAuthor(ctx context.Context, authorID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("author_id = ?", authorID).Delete(&models.Comment{})
	return res.RowsAffected, res.Error
}
