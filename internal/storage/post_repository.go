package storage

import (
	"context"

	"gorm.io/gorm"

	"social-go/internal/models"
)

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]models.Post, error)
	// ListFeed returns posts visible to viewerID: its own, its friends', and those of public authors.
	ListFeed(ctx context.Context, viewerID uint, friendIDs []uint, limit, offset int) ([]models.Post, error)
	// BodiesReferencing returns bodies containing needle, skipping posts authored by excludeAuthorID.
	BodiesReferencing(ctx context.Context, needle string, excludeAuthorID uint) ([]string, error)
	Delete(ctx context.Context, id uint) (int64, error)
	DeleteByAuthor(ctx context.Context, authorID uint) (int64, error)
}

type gormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-based PostRepository.
func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &gormPostRepository{db: db}
}

func (r *gormPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *gormPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *gormPostRepository) ListByAuthor(ctx context.Context, authorID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("id").Find(&posts).Error
	return posts, err
}

func (r *gormPostRepository) ListFeed(ctx context.Context, viewerID uint, friendIDs []uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	query := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Joins("JOIN users ON users.id = posts.author_id").
		Order("posts.created_at DESC").
		Order("posts.id DESC")

	if len(friendIDs) > 0 {
		query = query.Where("posts.author_id = ? OR posts.author_id IN ? OR users.visibility = ?", viewerID, friendIDs, models.VisibilityPublic)
	} else {
		query = query.Where("posts.author_id = ? OR users.visibility = ?", viewerID, models.VisibilityPublic)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Select("posts.*").Find(&posts).Error
	return posts, err
}

func (r *gormPostRepository) BodiesReferencing(ctx context.Context, needle string, excludeAuthorID uint) ([]string, error) {
	var bodies []string
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where(`body LIKE ? ESCAPE '\' AND author_id != ?`, likeContains(needle), excludeAuthorID).
		Pluck("body", &bodies).Error
	return bodies, err
}

func (r *gormPostRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	return res.RowsAffected, res.Error
}

func (r *gormPostRepository) DeleteByAuthor(ctx context.Context, authorID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("author_id = ?", authorID).Delete(&models.Post{})
	return res.RowsAffected, res.Error
}
