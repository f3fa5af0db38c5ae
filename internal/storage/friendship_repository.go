package storage

import (
	"context"

	"gorm.io/gorm"

	"social-go/internal/models"
)

// FriendshipRepository defines the interface for friendship edge operations.
// Mutations are conditional on the expected prior state and report the number
// of rows they touched, so callers can treat a lost race as a no-op.
type FriendshipRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	// FindBetween returns every edge between the two users, in either direction.
	FindBetween(ctx context.Context, userA, userB uint) ([]models.Friendship, error)
	// AcceptPending flips the pending requester->target edge to accepted.
	AcceptPending(ctx context.Context, requesterID, targetID uint) (int64, error)
	// DeletePending removes a pending edge between the two users in either direction.
	DeletePending(ctx context.Context, userA, userB uint) (int64, error)
	DeleteAccepted(ctx context.Context, userA, userB uint) (int64, error)
	DeleteInvolving(ctx context.Context, userID uint) (int64, error)
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
	ListIncomingPending(ctx context.Context, userID uint) ([]models.Friendship, error)
	ListOutgoingPending(ctx context.Context, userID uint) ([]models.Friendship, error)
}

type gormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GormFriendshipRepository.
func NewGormFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &gormFriendshipRepository{db: db}
}

// Create inserts a new edge. The model hook fills the canonical pair columns.
func (r *gormFriendshipRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	return r.db.WithContext(ctx).Create(friendship).Error
}

func (r *gormFriendshipRepository) FindBetween(ctx context.Context, userA, userB uint) ([]models.Friendship, error) {
	low, high := models.CanonicalPair(userA, userB)
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		Order("id").
		Find(&edges).Error
	return edges, err
}

func (r *gormFriendshipRepository) AcceptPending(ctx context.Context, requesterID, targetID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("requester_id = ? AND target_id = ? AND status = ?", requesterID, targetID, models.FriendshipStatusPending).
		Update("status", models.FriendshipStatusAccepted)
	return res.RowsAffected, res.Error
}

func (r *gormFriendshipRepository) DeletePending(ctx context.Context, userA, userB uint) (int64, error) {
	low, high := models.CanonicalPair(userA, userB)
	res := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND status = ?", low, high, models.FriendshipStatusPending).
		Delete(&models.Friendship{})
	return res.RowsAffected, res.Error
}

func (r *gormFriendshipRepository) DeleteAccepted(ctx context.Context, userA, userB uint) (int64, error) {
	low, high := models.CanonicalPair(userA, userB)
	res := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND status = ?", low, high, models.FriendshipStatusAccepted).
		Delete(&models.Friendship{})
	return res.RowsAffected, res.Error
}

func (r *gormFriendshipRepository) DeleteInvolving(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("requester_id = ? OR target_id = ?", userID, userID).
		Delete(&models.Friendship{})
	return res.RowsAffected, res.Error
}

// GetFriendIDs retrieves the IDs of users with an accepted edge to userID.
func (r *gormFriendshipRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var idsPart1 []uint
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("requester_id = ? AND status = ?", userID, models.FriendshipStatusAccepted).
		Pluck("target_id", &idsPart1).Error
	if err != nil {
		return nil, err
	}

	var idsPart2 []uint
	err = r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("target_id = ? AND status = ?", userID, models.FriendshipStatusAccepted).
		Pluck("requester_id", &idsPart2).Error
	if err != nil {
		return nil, err
	}

	return append(idsPart1, idsPart2...), nil
}

func (r *gormFriendshipRepository) ListIncomingPending(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND status = ?", userID, models.FriendshipStatusPending).
		Order("id").
		Find(&edges).Error
	return edges, err
}

func (r *gormFriendshipRepository) ListOutgoingPending(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", userID, models.FriendshipStatusPending).
		Order("id").
		Find(&edges).Error
	return edges, err
}
