package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/models"
	"social-go/internal/storage"
)

var ErrInvalidVisibility = errors.New("visibility must be \"public\" or \"friends\"")

// PublicProfile is what a viewer sees of another user.
type PublicProfile struct {
	models.UserBasicInfo
	Visibility models.Visibility        `json:"visibility"`
	Friendship FriendshipState          `json:"friendship"`
	Posts      []*models.PostWithAuthor `json:"posts"`
}

// UserService 定义了用户相关服务的接口。
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
	GetPublicProfile(ctx context.Context, viewer Identity, username string) (*PublicProfile, error)
	UpdateVisibility(ctx context.Context, identity Identity, visibility models.Visibility) (*models.User, error)
	// UpdateAvatar stores a new avatar file and removes the previous one when
	// nobody else uses it.
	UpdateAvatar(ctx context.Context, identity Identity, reader io.Reader, size int64, fileName, mimeType string) (*models.User, error)
	SearchUsers(ctx context.Context, viewer Identity, query string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// userService 是 UserService 的实现。
type userService struct {
	repos       contentRepos
	friendships FriendshipService
	content     ContentService
	uploads     storage.StorageService
	media       mediaFiles
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(db *gorm.DB, friendships FriendshipService, content ContentService, uploads storage.StorageService, scanner *media.Scanner, files FileStore) UserService {
	return &userService{
		repos:       newContentRepos(db),
		friendships: friendships,
		content:     content,
		uploads:     uploads,
		media:       mediaFiles{scanner: scanner, files: files},
	}
}

// GetUserProfile 获取用户自己的资料。
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repos.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	return user, nil
}

func (s *userService) GetPublicProfile(ctx context.Context, viewer Identity, username string) (*PublicProfile, error) {
	user, err := s.repos.users.GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("获取用户 %q 失败: %w", username, err)
	}

	state, err := s.friendships.Status(ctx, viewer, user.ID)
	if err != nil {
		return nil, err
	}
	posts, err := s.content.ListUserPosts(ctx, viewer, user.ID)
	if err != nil {
		return nil, err
	}

	return &PublicProfile{
		UserBasicInfo: models.UserBasicInfo{ID: user.ID, Username: user.Username, Avatar: user.Avatar},
		Visibility:    user.Visibility,
		Friendship:    state,
		Posts:         posts,
	}, nil
}

func (s *userService) UpdateVisibility(ctx context.Context, identity Identity, visibility models.Visibility) (*models.User, error) {
	if !visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	if err := s.repos.users.UpdateProfile(ctx, identity.UserID, map[string]interface{}{"visibility": visibility}); err != nil {
		return nil, fmt.Errorf("更新可见性失败: %w", err)
	}
	return s.GetUserProfile(ctx, identity.UserID)
}

func (s *userService) UpdateAvatar(ctx context.Context, identity Identity, reader io.Reader, size int64, fileName, mimeType string) (*models.User, error) {
	user, err := s.GetUserProfile(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	info, err := s.uploads.UploadFile(ctx, storage.UploadKindAvatar, reader, size, fileName, mimeType)
	if err != nil {
		return nil, fmt.Errorf("保存头像失败: %w", err)
	}
	if err := s.repos.users.UpdateProfile(ctx, user.ID, map[string]interface{}{"avatar": info.Name}); err != nil {
		_ = s.media.files.Remove(info.Path)
		return nil, fmt.Errorf("更新头像失败: %w", err)
	}

	if old := user.Avatar; old != "" && old != info.Name {
		if p, ok := s.media.files.AvatarPath(old); ok {
			res := s.media.cleanup(ctx, s.repos, []string{p}, user.ID)
			if res.Err != nil {
				logger.Warn("old avatar not removed", zap.Uint("user_id", user.ID), zap.Error(res.Err))
			}
		}
	}

	user.Avatar = info.Name
	return user, nil
}

func (s *userService) SearchUsers(ctx context.Context, viewer Identity, query string) ([]models.User, error) {
	if query == "" {
		return []models.User{}, nil
	}
	users, err := s.repos.users.SearchUsers(ctx, query, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("搜索用户失败: %w", err)
	}
	return users, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repos.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取用户列表失败: %w", err)
	}
	return users, nil
}
