package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"social-go/internal/config"
	"social-go/internal/kafka"
	"social-go/internal/media"
	"social-go/internal/models"
	"social-go/internal/storage"
	"social-go/internal/testutil"
)

// flakyFiles fails removal for selected paths.
type flakyFiles struct {
	*storage.LocalStorageService
	fail map[string]error
}

func (f *flakyFiles) Remove(p string) error {
	if err, ok := f.fail[p]; ok {
		return err
	}
	return f.LocalStorageService.Remove(p)
}

type testEnv struct {
	db          *gorm.DB
	store       *storage.LocalStorageService
	files       *flakyFiles
	scanner     *media.Scanner
	deletion    DeletionService
	friendships FriendshipService
	content     ContentService
	users       UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	store, err := storage.NewLocalStorageService(config.StorageConfig{BaseDir: t.TempDir(), AvatarDir: "uploads/avatars"})
	require.NoError(t, err)

	files := &flakyFiles{LocalStorageService: store, fail: map[string]error{}}
	scanner := media.NewScanner(store.BaseDir(), "uploads", "media")
	publisher := kafka.NewEventPublisher(nil, config.KafkaConfig{})
	authCfg := config.AuthConfig{AdminUsernames: []string{"admin"}}

	friendships := NewFriendshipService(storage.NewGormUserRepository(db), storage.NewGormFriendshipRepository(db), publisher)
	content := NewContentService(db, scanner, files)
	return &testEnv{
		db:          db,
		store:       store,
		files:       files,
		scanner:     scanner,
		deletion:    NewDeletionService(db, scanner, files, authCfg, publisher),
		friendships: friendships,
		content:     content,
		users:       NewUserService(db, friendships, content, store, scanner, files),
	}
}

func (e *testEnv) user(t *testing.T, username string) Identity {
	t.Helper()
	u := testutil.CreateUser(t, e.db, username)
	return Identity{UserID: u.ID, Username: u.Username, IsAdmin: username == "admin"}
}

// mediaFile creates a file under the storage base dir, e.g. "uploads/a.png".
func (e *testEnv) mediaFile(t *testing.T, rel string) string {
	t.Helper()
	p := filepath.Join(e.store.BaseDir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	return p
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func createPost(t *testing.T, db *gorm.DB, authorID uint, body string) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: authorID, Body: body}
	require.NoError(t, db.Create(post).Error)
	return post
}
