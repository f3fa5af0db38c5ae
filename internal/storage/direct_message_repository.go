package storage

import (
	"context"

	"gorm.io/gorm"

	"social-go/internal/models"
)

// DirectMessageRepository 定义了私信数据操作的接口。
type DirectMessageRepository interface {
	Create(ctx context.Context, message *models.DirectMessage) error
	// ListConversation returns the messages exchanged between two users, oldest first.
	ListConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]models.DirectMessage, error)
	ListInvolving(ctx context.Context, userID uint) ([]models.DirectMessage, error)
	// BodiesReferencing skips messages where excludeUserID is sender or recipient.
	BodiesReferencing(ctx context.Context, needle string, excludeUserID uint) ([]string, error)
	DeleteInvolving(ctx context.Context, userID uint) (int64, error)
}

type gormDirectMessageRepository struct {
	db *gorm.DB
}

// NewGormDirectMessageRepository 创建一个新的基于 GORM 的 DirectMessageRepository。
func NewGormDirectMessageRepository(db *gorm.DB) DirectMessageRepository {
	return &gormDirectMessageRepository{db: db}
}

func (r *gormDirectMessageRepository) Create(ctx context.Context, message *models.DirectMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *gormDirectMessageRepository) ListConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	query := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&messages).Error
	return messages, err
}

func (r *gormDirectMessageRepository) ListInvolving(ctx context.Context, userID uint) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("id").
		Find(&messages).Error
	return messages, err
}

func (r *gormDirectMessageRepository) BodiesReferencing(ctx context.Context, needle string, excludeUserID uint) ([]string, error) {
	var bodies []string
	err := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where(`body LIKE ? ESCAPE '\' AND sender_id != ? AND recipient_id != ?`, likeContains(needle), excludeUserID, excludeUserID).
		Pluck("body", &bodies).Error
	return bodies, err
}

func (r *gormDirectMessageRepository) DeleteInvolving(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("sender_id = ? OR recipient_id = ?", userID, userID).Delete(&models.DirectMessage{})
	return res.RowsAffected, res.Error
}
