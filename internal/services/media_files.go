package services

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/storage"
)

// FileStore removes stored files and locates avatar files by name.
// *storage.LocalStorageService implements it.
type FileStore interface {
	storage.FileRemover
	AvatarPath(name string) (string, bool)
}

// contentRepos groups the repositories whose rows can reference media files.
type contentRepos struct {
	users    storage.UserRepository
	posts    storage.PostRepository
	comments storage.CommentRepository
	messages storage.DirectMessageRepository
}

func newContentRepos(db *gorm.DB) contentRepos {
	return contentRepos{
		users:    storage.NewGormUserRepository(db),
		posts:    storage.NewGormPostRepository(db),
		comments: storage.NewGormCommentRepository(db),
		messages: storage.NewGormDirectMessageRepository(db),
	}
}

// cleanupResult is the outcome of a best-effort file cleanup.
type cleanupResult struct {
	Removed []string
	Kept    []string
	Failed  []string
	Err     error
}

// mediaFiles removes media files once nothing else points at them.
type mediaFiles struct {
	scanner *media.Scanner
	files   FileStore
}

// cleanup removes every path in paths that is not referenced by content or
// avatars outside excludeUserID (0 excludes nobody). A failure on one path
// never stops the others.
func (m mediaFiles) cleanup(ctx context.Context, repos contentRepos, paths []string, excludeUserID uint) cleanupResult {
	var res cleanupResult
	for _, path := range paths {
		inUse, err := m.referencedElsewhere(ctx, repos, path, excludeUserID)
		if err != nil {
			logger.Warn("media reference check failed", zap.String("path", path), zap.Error(err))
			res.Failed = append(res.Failed, path)
			res.Err = multierr.Append(res.Err, fmt.Errorf("check references of %s: %w", path, err))
			continue
		}
		if inUse {
			res.Kept = append(res.Kept, path)
			continue
		}
		if err := m.files.Remove(path); err != nil {
			logger.Warn("media file removal failed", zap.String("path", path), zap.Error(err))
			res.Failed = append(res.Failed, path)
			res.Err = multierr.Append(res.Err, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		res.Removed = append(res.Removed, path)
	}
	return res
}

func (m mediaFiles) referencedElsewhere(ctx context.Context, repos contentRepos, path string, excludeUserID uint) (bool, error) {
	name := filepath.Base(path)

	if avatar, ok := m.files.AvatarPath(name); ok && avatar == path {
		n, err := repos.users.CountOtherAvatarUsers(ctx, name, excludeUserID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}

	lookups := []func(context.Context, string, uint) ([]string, error){
		repos.posts.BodiesReferencing,
		repos.comments.BodiesReferencing,
		repos.messages.BodiesReferencing,
	}
	// The LIKE prefilter is coarse; each candidate body is re-scanned so only
	// a reference resolving to the very same file counts.
	for _, needle := range searchNeedles(name) {
		for _, lookup := range lookups {
			bodies, err := lookup(ctx, needle, excludeUserID)
			if err != nil {
				return false, err
			}
			for _, body := range bodies {
				for _, p := range m.scanner.Extract(body) {
					if p == path {
						return true, nil
					}
				}
			}
		}
	}
	return false, nil
}

// searchNeedles returns the forms a filename can take inside a src attribute.
func searchNeedles(name string) []string {
	if escaped := url.PathEscape(name); escaped != name {
		return []string{name, escaped}
	}
	return []string{name}
}

func appendUnique(dst []string, seen map[string]struct{}, paths ...string) []string {
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		dst = append(dst, p)
	}
	return dst
}
