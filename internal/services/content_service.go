package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/models"
	"social-go/internal/storage"
)

var (
	ErrPostNotFound = fmt.Errorf("post %w", ErrNotFound)
	ErrEmptyContent = errors.New("content has neither text nor attachments")
)

const maxFeedPageSize = 100

// ContentService publishes and reads posts, comments and direct messages.
// Bodies are rendered server-side from text plus attachment URLs.
type ContentService interface {
	CreatePost(ctx context.Context, author Identity, text string, attachments []string) (*models.Post, error)
	GetPost(ctx context.Context, viewer Identity, postID uint) (*models.PostWithAuthor, error)
	ListUserPosts(ctx context.Context, viewer Identity, authorID uint) ([]*models.PostWithAuthor, error)
	Feed(ctx context.Context, viewer Identity, limit, offset int) ([]*models.PostWithAuthor, error)
	// DeletePost removes the row, then the media only that post referenced.
	DeletePost(ctx context.Context, actor Identity, postID uint) error
	CreateComment(ctx context.Context, author Identity, postID uint, text string, attachments []string) (*models.Comment, error)
	ListComments(ctx context.Context, viewer Identity, postID uint) ([]models.Comment, error)
	SendDirectMessage(ctx context.Context, sender Identity, recipientID uint, text string, attachments []string) (*models.DirectMessage, error)
	ListConversation(ctx context.Context, viewer Identity, otherID uint, limit, offset int) ([]models.DirectMessage, error)
}

type contentService struct {
	repos          contentRepos
	friendshipRepo storage.FriendshipRepository
	media          mediaFiles
}

// NewContentService 创建一个新的 ContentService 实例。
func NewContentService(db *gorm.DB, scanner *media.Scanner, files FileStore) ContentService {
	return &contentService{
		repos:          newContentRepos(db),
		friendshipRepo: storage.NewGormFriendshipRepository(db),
		media:          mediaFiles{scanner: scanner, files: files},
	}
}

func (s *contentService) render(text string, attachments []string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return "", ErrEmptyContent
	}
	return s.media.scanner.Render(text, attachments)
}

func (s *contentService) CreatePost(ctx context.Context, author Identity, text string, attachments []string) (*models.Post, error) {
	body, err := s.render(text, attachments)
	if err != nil {
		return nil, err
	}
	post := &models.Post{AuthorID: author.UserID, Body: body}
	if err := s.repos.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("创建帖子失败: %w", err)
	}
	return post, nil
}

// canView reports whether viewer may read content authored by author.
func (s *contentService) canView(ctx context.Context, viewer Identity, author *models.User) (bool, error) {
	if viewer.IsAdmin || viewer.UserID == author.ID || author.Visibility != models.VisibilityFriends {
		return true, nil
	}
	edges, err := s.friendshipRepo.FindBetween(ctx, viewer.UserID, author.ID)
	if err != nil {
		return false, err
	}
	return resolveState(viewer.UserID, author.ID, edges) == StateFriend, nil
}

// visiblePost loads a post the viewer is allowed to see. Invisible posts
// are reported as missing.
func (s *contentService) visiblePost(ctx context.Context, viewer Identity, postID uint) (*models.Post, *models.User, error) {
	post, err := s.repos.posts.GetByID(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrPostNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("获取帖子失败: %w", err)
	}
	author, err := s.repos.users.GetByID(ctx, post.AuthorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrPostNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("获取作者失败: %w", err)
	}
	ok, err := s.canView(ctx, viewer, author)
	if err != nil {
		return nil, nil, fmt.Errorf("检查可见性失败: %w", err)
	}
	if !ok {
		return nil, nil, ErrPostNotFound
	}
	return post, author, nil
}

func (s *contentService) GetPost(ctx context.Context, viewer Identity, postID uint) (*models.PostWithAuthor, error) {
	post, author, err := s.visiblePost(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}
	return &models.PostWithAuthor{
		Post:   *post,
		Author: &models.UserBasicInfo{ID: author.ID, Username: author.Username, Avatar: author.Avatar},
	}, nil
}

func (s *contentService) ListUserPosts(ctx context.Context, viewer Identity, authorID uint) ([]*models.PostWithAuthor, error) {
	author, err := s.repos.users.GetByID(ctx, authorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取用户失败: %w", err)
	}
	ok, err := s.canView(ctx, viewer, author)
	if err != nil {
		return nil, fmt.Errorf("检查可见性失败: %w", err)
	}
	if !ok {
		return []*models.PostWithAuthor{}, nil
	}
	posts, err := s.repos.posts.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("获取帖子列表失败: %w", err)
	}
	return s.withAuthors(ctx, posts)
}

func (s *contentService) Feed(ctx context.Context, viewer Identity, limit, offset int) ([]*models.PostWithAuthor, error) {
	if limit <= 0 || limit > maxFeedPageSize {
		limit = maxFeedPageSize
	}
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	posts, err := s.repos.posts.ListFeed(ctx, viewer.UserID, friendIDs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取动态失败: %w", err)
	}
	return s.withAuthors(ctx, posts)
}

func (s *contentService) withAuthors(ctx context.Context, posts []models.Post) ([]*models.PostWithAuthor, error) {
	seen := make(map[uint]struct{})
	var ids []uint
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; !ok {
			seen[p.AuthorID] = struct{}{}
			ids = append(ids, p.AuthorID)
		}
	}
	infos, err := s.repos.users.GetMultipleBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("获取作者信息失败: %w", err)
	}
	byID := make(map[uint]*models.UserBasicInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	result := make([]*models.PostWithAuthor, 0, len(posts))
	for _, p := range posts {
		result = append(result, &models.PostWithAuthor{Post: p, Author: byID[p.AuthorID]})
	}
	return result, nil
}

func (s *contentService) DeletePost(ctx context.Context, actor Identity, postID uint) error {
	post, err := s.repos.posts.GetByID(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("获取帖子失败: %w", err)
	}
	if !actor.canActOn(post.AuthorID) {
		return ErrForbidden
	}

	n, err := s.repos.posts.Delete(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("删除帖子失败: %w", err)
	}
	if n == 0 {
		return ErrPostNotFound
	}

	// The row is gone, so any remaining reference (the author's other posts
	// included) keeps a file alive.
	cleanup := s.media.cleanup(ctx, s.repos, s.media.scanner.Extract(post.Body), 0)
	logger.Info("post deleted",
		zap.Uint("post_id", post.ID), zap.Uint("actor_id", actor.UserID),
		zap.Int("files_removed", len(cleanup.Removed)), zap.Int("files_kept", len(cleanup.Kept)))
	if cleanup.Err != nil {
		return &PartialFileCleanupError{Paths: cleanup.Failed, Err: cleanup.Err}
	}
	return nil
}

func (s *contentService) CreateComment(ctx context.Context, author Identity, postID uint, text string, attachments []string) (*models.Comment, error) {
	if _, _, err := s.visiblePost(ctx, author, postID); err != nil {
		return nil, err
	}
	body, err := s.render(text, attachments)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{AuthorID: author.UserID, PostID: postID, Body: body}
	if err := s.repos.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("创建评论失败: %w", err)
	}
	return comment, nil
}

func (s *contentService) ListComments(ctx context.Context, viewer Identity, postID uint) ([]models.Comment, error) {
	if _, _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	comments, err := s.repos.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("获取评论失败: %w", err)
	}
	return comments, nil
}

func (s *contentService) SendDirectMessage(ctx context.Context, sender Identity, recipientID uint, text string, attachments []string) (*models.DirectMessage, error) {
	if _, err := s.repos.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, recipientID)
		}
		return nil, fmt.Errorf("检查接收用户失败: %w", err)
	}
	body, err := s.render(text, attachments)
	if err != nil {
		return nil, err
	}
	msg := &models.DirectMessage{SenderID: sender.UserID, RecipientID: recipientID, Body: body}
	if err := s.repos.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("发送私信失败: %w", err)
	}
	return msg, nil
}

func (s *contentService) ListConversation(ctx context.Context, viewer Identity, otherID uint, limit, offset int) ([]models.DirectMessage, error) {
	if limit <= 0 || limit > maxFeedPageSize {
		limit = maxFeedPageSize
	}
	messages, err := s.repos.messages.ListConversation(ctx, viewer.UserID, otherID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取私信失败: %w", err)
	}
	return messages, nil
}
