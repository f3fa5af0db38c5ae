package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/kafka"
	"social-go/internal/media"
	"social-go/internal/middleware"
	"social-go/internal/services"
	"social-go/internal/storage"
	"social-go/internal/testutil"
)

type testServer struct {
	router  *mux.Router
	store   *storage.LocalStorageService
	authSvc services.AuthService
	authCfg config.AuthConfig
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewTestDB(t)
	storageCfg := config.StorageConfig{BaseDir: t.TempDir(), AvatarDir: "uploads/avatars", MaxFileSizeMB: 1}
	store, err := storage.NewLocalStorageService(storageCfg)
	require.NoError(t, err)

	authCfg := config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: time.Hour, AdminUsernames: []string{"admin"}}
	scanner := media.NewScanner(store.BaseDir(), "uploads", "media")
	publisher := kafka.NewEventPublisher(nil, config.KafkaConfig{})
	userRepo := storage.NewGormUserRepository(db)

	authSvc := services.NewAuthService(userRepo, nil, authCfg)
	friendships := services.NewFriendshipService(userRepo, storage.NewGormFriendshipRepository(db), publisher)
	content := services.NewContentService(db, scanner, store)
	users := services.NewUserService(db, friendships, content, store, scanner, store)
	deletion := services.NewDeletionService(db, scanner, store, authCfg, publisher)

	router := NewRouter(Handlers{
		Auth:       NewAuthHandler(authSvc),
		User:       NewUserHandler(users, deletion, storageCfg),
		Content:    NewContentHandler(content),
		Friendship: NewFriendshipHandler(friendships),
		Upload:     NewUploadHandler(store, storageCfg),
		Admin:      NewAdminHandler(users, deletion),
	}, middleware.AuthMiddleware(authCfg, nil), store.BaseDir())

	return &testServer{router: router, store: store, authSvc: authSvc, authCfg: authCfg}
}

// signup registers username and returns its id and a bearer token.
func (s *testServer) signup(t *testing.T, username string) (uint, string) {
	t.Helper()
	user, err := s.authSvc.Register(context.Background(), username, "password1")
	require.NoError(t, err)
	token, err := auth.GenerateToken(user.ID, user.Username, s.authCfg)
	require.NoError(t, err)
	return user.ID, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, path, token, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func pathf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", CredentialsRequest{Username: "alice", Password: "password1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/register", "", CredentialsRequest{Username: "alice", Password: "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/register", "", CredentialsRequest{Username: "bad name", Password: "password1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", CredentialsRequest{Username: "alice", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", CredentialsRequest{Username: "alice", Password: "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login LoginResponse
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)

	rec = s.do(t, http.MethodGet, "/api/v1/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]interface{}
	decode(t, rec, &me)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, me, "passwordHash")

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/users/me", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/auth/logout", login.Token, nil).Code)
}

func TestFriendshipRoutes(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.signup(t, "alice")
	bobID, bob := s.signup(t, "bob")

	state := func(rec *httptest.ResponseRecorder) services.FriendshipState {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp FriendshipStateResponse
		decode(t, rec, &resp)
		return resp.State
	}

	assert.Equal(t, services.StateSent, state(s.do(t, http.MethodPost, pathf("/api/v1/friends/%d/request", bobID), alice, nil)))
	assert.Equal(t, services.StateReceived, state(s.do(t, http.MethodGet, pathf("/api/v1/friends/%d", aliceID), bob, nil)))

	rec := s.do(t, http.MethodGet, "/api/v1/friends/requests/incoming", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incoming []map[string]interface{}
	decode(t, rec, &incoming)
	assert.Len(t, incoming, 1)

	assert.Equal(t, services.StateFriend, state(s.do(t, http.MethodPost, pathf("/api/v1/friends/%d/accept", aliceID), bob, nil)))
	assert.Equal(t, services.StateNone, state(s.do(t, http.MethodDelete, pathf("/api/v1/friends/%d", bobID), alice, nil)))

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, pathf("/api/v1/friends/%d/request", aliceID), alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/friends/9999/request", alice, nil).Code)
}

func TestUploadPostAndDelete(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.signup(t, "alice")
	_, bob := s.signup(t, "bob")

	rec := s.upload(t, "/api/v1/upload/uploads", alice, "cat.PNG", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info storage.FileInfo
	decode(t, rec, &info)
	require.Regexp(t, `^/uploads/[0-9a-f-]+\.png$`, info.URL)
	onDisk := filepath.Join(s.store.BaseDir(), "uploads", filepath.Base(info.URL))
	require.FileExists(t, onDisk)

	served := httptest.NewRecorder()
	s.router.ServeHTTP(served, httptest.NewRequest(http.MethodGet, info.URL, nil))
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "png-bytes", served.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/posts", alice, ComposeRequest{Text: "hello", Attachments: []string{info.URL}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post struct {
		ID   uint   `json:"id"`
		Body string `json:"body"`
	}
	decode(t, rec, &post)
	assert.Contains(t, post.Body, info.URL)

	rec = s.do(t, http.MethodPost, pathf("/api/v1/posts/%d/comments", post.ID), bob, ComposeRequest{Text: "nice"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/feed", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed []map[string]interface{}
	decode(t, rec, &feed)
	assert.Len(t, feed, 1)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, pathf("/api/v1/posts/%d", post.ID), bob, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, pathf("/api/v1/posts/%d", post.ID), alice, nil).Code)
	assert.NoFileExists(t, onDisk)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, pathf("/api/v1/posts/%d", post.ID), alice, nil).Code)
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.signup(t, "alice")

	assert.Equal(t, http.StatusBadRequest, s.upload(t, "/api/v1/upload/avatar", alice, "a.png", []byte("x")).Code)
	assert.Equal(t, http.StatusBadRequest, s.upload(t, "/api/v1/upload/media", alice, "a.exe", []byte("x")).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge,
		s.upload(t, "/api/v1/upload/media", alice, "big.mp4", bytes.Repeat([]byte("x"), 2<<20)).Code)

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, ComposeRequest{Text: "x", Attachments: []string{"https://evil.example/a.png"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/posts", alice, ComposeRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarAndVisibility(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.signup(t, "alice")

	rec := s.upload(t, "/api/v1/users/me/avatar", alice, "me.jpg", []byte("jpg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		Avatar     string `json:"avatar"`
		Visibility string `json:"visibility"`
	}
	decode(t, rec, &me)
	require.NotEmpty(t, me.Avatar)
	assert.FileExists(t, filepath.Join(s.store.AvatarDir(), me.Avatar))

	rec = s.do(t, http.MethodPut, "/api/v1/users/me/visibility", alice, UpdateVisibilityRequest{Visibility: "friends"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &me)
	assert.Equal(t, "friends", me.Visibility)

	rec = s.do(t, http.MethodPut, "/api/v1/users/me/visibility", alice, UpdateVisibilityRequest{Visibility: "everyone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMyAccount(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.signup(t, "alice")

	rec := s.upload(t, "/api/v1/upload/media", alice, "clip.mp4", []byte("mp4"))
	require.Equal(t, http.StatusOK, rec.Code)
	var info storage.FileInfo
	decode(t, rec, &info)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/posts", alice, ComposeRequest{Attachments: []string{info.URL}}).Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/users/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report services.DeletionReport
	decode(t, rec, &report)
	assert.Equal(t, "alice", report.Username)
	assert.EqualValues(t, 1, report.Posts)
	assert.Len(t, report.RemovedFiles, 1)
	_, err := os.Stat(filepath.Join(s.store.BaseDir(), "media", filepath.Base(info.URL)))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/users/me", alice, nil).Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	_, admin := s.signup(t, "admin")
	_, alice := s.signup(t, "alice")

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/admin/users", alice, nil).Code)

	rec := s.do(t, http.MethodGet, "/api/v1/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]interface{}
	decode(t, rec, &users)
	assert.Len(t, users, 2)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, "/api/v1/admin/users/admin", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/admin/users/nobody", admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/api/v1/admin/users/admin", alice, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/v1/admin/users/alice", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/admin/users/alice", admin, nil).Code)
}

func TestWriteServiceErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{services.ErrUserNotFound, http.StatusNotFound},
		{services.ErrPostNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrProtectedIdentity, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{media.ErrUnsupportedAttachment, http.StatusBadRequest},
		{&services.PartialFileCleanupError{Paths: []string{"/x"}, Err: os.ErrPermission}, http.StatusOK},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, c.err)
		assert.Equal(t, c.code, rec.Code, c.err.Error())
	}
}
