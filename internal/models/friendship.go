package models

import (
	"errors"

	"gorm.io/gorm"
)

// FriendshipStatus 定义好友关系边的状态
type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

// ErrSelfFriendship is returned when an edge would connect a user to itself.
var ErrSelfFriendship = errors.New("friendship edge cannot point to its own requester")

// Friendship is a directed friend-request edge with a status.
// UserLowID/UserHighID hold the unordered pair; their unique index keeps at
// most one edge per pair regardless of direction.
type Friendship struct {
	BaseModel
	RequesterID uint             `gorm:"not null;index" json:"requesterId"`
	TargetID    uint             `gorm:"not null;index" json:"targetId"`
	UserLowID   uint             `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"-"`
	UserHighID  uint             `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"-"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// CanonicalPair returns the two user IDs ordered low, high.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// EnsureCanonicalOrder fills UserLowID/UserHighID from the requester and target.
func (f *Friendship) EnsureCanonicalOrder() {
	f.UserLowID, f.UserHighID = CanonicalPair(f.RequesterID, f.TargetID)
}

// BeforeCreate rejects self-edges and keeps the canonical pair in sync.
func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.RequesterID == f.TargetID {
		return ErrSelfFriendship
	}
	f.EnsureCanonicalOrder()
	return nil
}

// Involves reports whether userID is either endpoint of the edge.
func (f *Friendship) Involves(userID uint) bool {
	return f.RequesterID == userID || f.TargetID == userID
}

// FriendRequestWithUser is a listing DTO: the edge plus the other endpoint's public info.
type FriendRequestWithUser struct {
	Friendship
	User *UserBasicInfo `json:"user"`
}
