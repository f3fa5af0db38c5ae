package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"social-go/internal/kafka"
	"social-go/internal/logger"
	"social-go/internal/models"
	"social-go/internal/storage"
)

// FriendshipState is the relationship between a viewer and a subject, seen from the viewer.
type FriendshipState string

const (
	StateNone     FriendshipState = "none"
	StateSent     FriendshipState = "sent"     // viewer -> subject pending
	StateReceived FriendshipState = "received" // subject -> viewer pending
	StateFriend   FriendshipState = "friend"
	StateSelf     FriendshipState = "self"
)

var ErrSelfFriendship = models.ErrSelfFriendship

// FriendshipService computes and changes the friendship state between two users.
// Transitions that do not apply in the current state are no-ops; every
// transition returns the state it leaves behind.
type FriendshipService interface {
	Status(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error)
	Request(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error)
	Accept(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error)
	CancelOrDecline(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error)
	Unfriend(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error)
	ListFriends(ctx context.Context, viewer Identity) ([]*models.UserBasicInfo, error)
	ListIncoming(ctx context.Context, viewer Identity) ([]*models.FriendRequestWithUser, error)
	ListOutgoing(ctx context.Context, viewer Identity) ([]*models.FriendRequestWithUser, error)
}

type friendshipService struct {
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	publisher      *kafka.EventPublisher
}

// NewFriendshipService 创建一个新的 FriendshipService 实例。
func NewFriendshipService(userRepo storage.UserRepository, friendshipRepo storage.FriendshipRepository, publisher *kafka.EventPublisher) FriendshipService {
	return &friendshipService{
		userRepo:       userRepo,
		friendshipRepo: friendshipRepo,
		publisher:      publisher,
	}
}

// resolveState picks the state from the edges between viewer and subject.
// An accepted edge wins over pending ones, and the viewer's own pending
// request wins over the subject's.
func resolveState(viewerID, subjectID uint, edges []models.Friendship) FriendshipState {
	if viewerID == subjectID {
		return StateSelf
	}
	var sent, received bool
	for _, e := range edges {
		switch {
		case e.Status == models.FriendshipStatusAccepted && e.Involves(viewerID) && e.Involves(subjectID):
			return StateFriend
		case e.Status != models.FriendshipStatusPending:
		case e.RequesterID == viewerID && e.TargetID == subjectID:
			sent = true
		case e.RequesterID == subjectID && e.TargetID == viewerID:
			received = true
		}
	}
	switch {
	case sent:
		return StateSent
	case received:
		return StateReceived
	default:
		return StateNone
	}
}

func (s *friendshipService) Status(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error) {
	if viewer.UserID == subjectID {
		return StateSelf, nil
	}
	edges, err := s.friendshipRepo.FindBetween(ctx, viewer.UserID, subjectID)
	if err != nil {
		return "", fmt.Errorf("查询好友关系失败: %w", err)
	}
	return resolveState(viewer.UserID, subjectID, edges), nil
}

// Request sends a friend request. Requesting someone whose request is
// already waiting for the viewer accepts it instead.
func (s *friendshipService) Request(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error) {
	if viewer.UserID == subjectID {
		return StateSelf, ErrSelfFriendship
	}

	state, err := s.Status(ctx, viewer, subjectID)
	if err != nil {
		return "", err
	}
	switch state {
	case StateSent, StateFriend:
		return state, nil
	case StateReceived:
		return s.accept(ctx, viewer, subjectID, "request")
	}

	if _, err := s.userRepo.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: id %d", ErrUserNotFound, subjectID)
		}
		return "", fmt.Errorf("检查目标用户失败: %w", err)
	}

	edge := &models.Friendship{
		RequesterID: viewer.UserID,
		TargetID:    subjectID,
		Status:      models.FriendshipStatusPending,
	}
	if createErr := s.friendshipRepo.Create(ctx, edge); createErr != nil {
		// Lost a race on the pair index: whatever edge won decides the outcome.
		state, err := s.Status(ctx, viewer, subjectID)
		if err != nil {
			return "", err
		}
		switch state {
		case StateReceived:
			return s.accept(ctx, viewer, subjectID, "request")
		case StateNone:
			return "", fmt.Errorf("创建好友请求失败: %w", createErr)
		}
		return state, nil
	}

	s.publish(ctx, viewer, subjectID, "request", StateSent)
	return StateSent, nil
}

func (s *friendshipService) Accept(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error) {
	if viewer.UserID == subjectID {
		return StateSelf, nil
	}
	return s.accept(ctx, viewer, subjectID, "accept")
}

func (s *friendshipService) accept(ctx context.Context, viewer Identity, subjectID uint, action string) (FriendshipState, error) {
	n, err := s.friendshipRepo.AcceptPending(ctx, subjectID, viewer.UserID)
	if err != nil {
		return "", fmt.Errorf("接受好友请求失败: %w", err)
	}
	state, err := s.Status(ctx, viewer, subjectID)
	if err != nil {
		return "", err
	}
	if n > 0 {
		s.publish(ctx, viewer, subjectID, action, state)
	}
	return state, nil
}

func (s *friendshipService) CancelOrDecline(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error) {
	if viewer.UserID == subjectID {
		return StateSelf, nil
	}
	n, err := s.friendshipRepo.DeletePending(ctx, viewer.UserID, subjectID)
	if err != nil {
		return "", fmt.Errorf("取消好友请求失败: %w", err)
	}
	state, err := s.Status(ctx, viewer, subjectID)
	if err != nil {
		return "", err
	}
	if n > 0 {
		s.publish(ctx, viewer, subjectID, "cancel", state)
	}
	return state, nil
}

func (s *friendshipService) Unfriend(ctx context.Context, viewer Identity, subjectID uint) (FriendshipState, error) {
	if viewer.UserID == subjectID {
		return StateSelf, nil
	}
	n, err := s.friendshipRepo.DeleteAccepted(ctx, viewer.UserID, subjectID)
	if err != nil {
		return "", fmt.Errorf("删除好友失败: %w", err)
	}
	state, err := s.Status(ctx, viewer, subjectID)
	if err != nil {
		return "", err
	}
	if n > 0 {
		s.publish(ctx, viewer, subjectID, "unfriend", state)
	}
	return state, nil
}

func (s *friendshipService) ListFriends(ctx context.Context, viewer Identity) ([]*models.UserBasicInfo, error) {
	ids, err := s.friendshipRepo.GetFriendIDs(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取好友ID列表失败: %w", err)
	}
	friends, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("获取好友信息失败: %w", err)
	}
	return friends, nil
}

// ListIncoming returns pending requests addressed to the viewer, with the requester's info.
func (s *friendshipService) ListIncoming(ctx context.Context, viewer Identity) ([]*models.FriendRequestWithUser, error) {
	edges, err := s.friendshipRepo.ListIncomingPending(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取收到的好友请求失败: %w", err)
	}
	return s.withUsers(ctx, edges, func(e models.Friendship) uint { return e.RequesterID })
}

// ListOutgoing returns the viewer's own pending requests, with the target's info.
func (s *friendshipService) ListOutgoing(ctx context.Context, viewer Identity) ([]*models.FriendRequestWithUser, error) {
	edges, err := s.friendshipRepo.ListOutgoingPending(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取发出的好友请求失败: %w", err)
	}
	return s.withUsers(ctx, edges, func(e models.Friendship) uint { return e.TargetID })
}

func (s *friendshipService) withUsers(ctx context.Context, edges []models.Friendship, other func(models.Friendship) uint) ([]*models.FriendRequestWithUser, error) {
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, other(e))
	}
	infos, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("获取用户信息失败: %w", err)
	}
	byID := make(map[uint]*models.UserBasicInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	result := make([]*models.FriendRequestWithUser, 0, len(edges))
	for _, e := range edges {
		result = append(result, &models.FriendRequestWithUser{Friendship: e, User: byID[other(e)]})
	}
	return result, nil
}

func (s *friendshipService) publish(ctx context.Context, viewer Identity, subjectID uint, action string, state FriendshipState) {
	logger.Debug("friendship changed",
		zap.Uint("viewer_id", viewer.UserID), zap.Uint("subject_id", subjectID),
		zap.String("action", action), zap.String("state", string(state)))
	s.publisher.FriendshipChanged(ctx, kafka.FriendshipChangedEvent{
		ActorID:   viewer.UserID,
		SubjectID: subjectID,
		Action:    action,
		State:     string(state),
		Timestamp: time.Now(),
	})
}
