package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"social-go/internal/config"
	"social-go/internal/kafka"
	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/models"
	"social-go/internal/storage"
)

var (
	ErrProtectedIdentity  = errors.New("identity is protected and cannot be deleted")
	ErrPartialFileCleanup = errors.New("some media files could not be removed")
	ErrStoreFailure       = errors.New("store failure")
)

// PartialFileCleanupError lists the files left on disk after the rows were
// removed. It is informational: the deletion itself succeeded.
type PartialFileCleanupError struct {
	Paths []string
	Err   error
}

func (e *PartialFileCleanupError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrPartialFileCleanup, strings.Join(e.Paths, ", "), e.Err)
}

func (e *PartialFileCleanupError) Unwrap() error { return e.Err }

func (e *PartialFileCleanupError) Is(target error) bool { return target == ErrPartialFileCleanup }

// DeletionReport describes what DeleteIdentity removed.
type DeletionReport struct {
	UserID         uint     `json:"userId"`
	Username       string   `json:"username"`
	RemovedFiles   []string `json:"removedFiles"`
	KeptFiles      []string `json:"keptFiles,omitempty"`
	FailedFiles    []string `json:"failedFiles,omitempty"`
	Friendships    int64    `json:"friendships"`
	Comments       int64    `json:"comments"`
	DirectMessages int64    `json:"directMessages"`
	Posts          int64    `json:"posts"`
}

// DeletionService removes an identity together with everything it owns.
type DeletionService interface {
	// DeleteIdentity deletes the target's media files (best effort) and then,
	// in one transaction, its friendships, comments, direct messages, posts
	// and the user row. A *PartialFileCleanupError may accompany a non-nil
	// report; any other error means nothing was committed.
	DeleteIdentity(ctx context.Context, actor Identity, targetID uint) (*DeletionReport, error)
	DeleteIdentityByUsername(ctx context.Context, actor Identity, username string) (*DeletionReport, error)
}

type deletionService struct {
	db        *gorm.DB
	media     mediaFiles
	authCfg   config.AuthConfig
	publisher *kafka.EventPublisher
}

// NewDeletionService 创建一个新的 DeletionService 实例。
func NewDeletionService(db *gorm.DB, scanner *media.Scanner, files FileStore, authCfg config.AuthConfig, publisher *kafka.EventPublisher) DeletionService {
	return &deletionService{
		db:        db,
		media:     mediaFiles{scanner: scanner, files: files},
		authCfg:   authCfg,
		publisher: publisher,
	}
}

func (s *deletionService) DeleteIdentityByUsername(ctx context.Context, actor Identity, username string) (*DeletionReport, error) {
	user, err := storage.NewGormUserRepository(s.db).GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %q: %v", ErrStoreFailure, username, err)
	}
	return s.DeleteIdentity(ctx, actor, user.ID)
}

func (s *deletionService) DeleteIdentity(ctx context.Context, actor Identity, targetID uint) (*DeletionReport, error) {
	if !actor.canActOn(targetID) {
		return nil, ErrForbidden
	}

	repos := newContentRepos(s.db)
	target, err := repos.users.GetByID(ctx, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, targetID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load user %d: %v", ErrStoreFailure, targetID, err)
	}
	if s.authCfg.IsAdmin(target.Username) {
		return nil, ErrProtectedIdentity
	}

	log := logger.L().With(zap.Uint("target_id", target.ID), zap.String("target", target.Username), zap.Uint("actor_id", actor.UserID))
	report := &DeletionReport{UserID: target.ID, Username: target.Username}

	paths, err := s.collectFiles(ctx, repos, target)
	if err != nil {
		return nil, fmt.Errorf("%w: collect media of user %d: %v", ErrStoreFailure, target.ID, err)
	}

	// Files go first and outside the transaction. If the transaction then
	// fails, the leftover rows point at missing files; that is tolerated.
	cleanup := s.media.cleanup(ctx, repos, paths, target.ID)
	report.RemovedFiles = cleanup.Removed
	report.KeptFiles = cleanup.Kept
	report.FailedFiles = cleanup.Failed

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if report.Friendships, err = storage.NewGormFriendshipRepository(tx).DeleteInvolving(ctx, target.ID); err != nil {
			return fmt.Errorf("delete friendships: %w", err)
		}
		if report.Comments, err = storage.NewGormCommentRepository(tx).DeleteByAuthor(ctx, target.ID); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if report.DirectMessages, err = storage.NewGormDirectMessageRepository(tx).DeleteInvolving(ctx, target.ID); err != nil {
			return fmt.Errorf("delete direct messages: %w", err)
		}
		if report.Posts, err = storage.NewGormPostRepository(tx).DeleteByAuthor(ctx, target.ID); err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
		n, err := storage.NewGormUserRepository(tx).Delete(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: id %d", ErrUserNotFound, target.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error("identity deletion rolled back", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	log.Info("identity deleted",
		zap.Int("files_removed", len(report.RemovedFiles)),
		zap.Int("files_kept", len(report.KeptFiles)),
		zap.Int("files_failed", len(report.FailedFiles)),
		zap.Int64("posts", report.Posts),
		zap.Int64("comments", report.Comments),
		zap.Int64("direct_messages", report.DirectMessages),
		zap.Int64("friendships", report.Friendships))

	s.publisher.IdentityDeleted(ctx, kafka.IdentityDeletedEvent{
		UserID:    target.ID,
		Username:  target.Username,
		ActorID:   actor.UserID,
		Timestamp: time.Now(),
	})

	if cleanup.Err != nil {
		return report, &PartialFileCleanupError{Paths: cleanup.Failed, Err: cleanup.Err}
	}
	return report, nil
}

// collectFiles gathers the avatar and every media file embedded in the
// target's posts, comments and direct messages, in that order.
func (s *deletionService) collectFiles(ctx context.Context, repos contentRepos, target *models.User) ([]string, error) {
	var paths []string
	seen := make(map[string]struct{})

	if target.Avatar != "" {
		if p, ok := s.media.files.AvatarPath(target.Avatar); ok {
			paths = appendUnique(paths, seen, p)
		}
	}

	posts, err := repos.posts.ListByAuthor(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		paths = appendUnique(paths, seen, s.media.scanner.Extract(p.Body)...)
	}

	comments, err := repos.comments.ListByAuthor(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		paths = appendUnique(paths, seen, s.media.scanner.Extract(c.Body)...)
	}

	messages, err := repos.messages.ListInvolving(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		paths = appendUnique(paths, seen, s.media.scanner.Extract(m.Body)...)
	}

	return paths, nil
}
