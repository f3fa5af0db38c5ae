package apiserver

import (
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"social-go/internal/middleware"
)

// Handlers groups everything NewRouter mounts.
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Content    *ContentHandler
	Friendship *FriendshipHandler
	Upload     *UploadHandler
	Admin      *AdminHandler
}

// NewRouter 设置 HTTP 路由。
// baseDir is the storage base; /uploads/ and /media/ are served from it.
func NewRouter(h Handlers, authMW mux.MiddlewareFunc, baseDir string) *mux.Router {
	r := mux.NewRouter()

	// 认证路由
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Auth.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)

	// API 子路由 (需要认证)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", h.Auth.LogoutHandler).Methods(http.MethodPost)

	// 用户路由
	apiRouter.HandleFunc("/users/me", h.User.GetMyProfileHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", h.User.DeleteMyAccountHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/users/me/visibility", h.User.UpdateVisibilityHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/me/avatar", h.User.UpdateAvatarHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/users/search", h.User.SearchUsersHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/by-name/{username}", h.User.GetPublicProfileHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{userID:[0-9]+}/posts", h.Content.ListUserPostsHandler).Methods(http.MethodGet)

	// 帖子与评论
	apiRouter.HandleFunc("/posts", h.Content.CreatePostHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/feed", h.Content.FeedHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}", h.Content.GetPostHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}", h.Content.DeletePostHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/comments", h.Content.CreateCommentHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/comments", h.Content.ListCommentsHandler).Methods(http.MethodGet)

	// 私信
	apiRouter.HandleFunc("/messages/{userID:[0-9]+}", h.Content.SendDirectMessageHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/{userID:[0-9]+}", h.Content.ListConversationHandler).Methods(http.MethodGet)

	// 好友路由
	friendRouter := apiRouter.PathPrefix("/friends").Subrouter()
	friendRouter.HandleFunc("", h.Friendship.ListFriendsHandler).Methods(http.MethodGet)
	friendRouter.HandleFunc("/requests/incoming", h.Friendship.ListIncomingHandler).Methods(http.MethodGet)
	friendRouter.HandleFunc("/requests/outgoing", h.Friendship.ListOutgoingHandler).Methods(http.MethodGet)
	friendRouter.HandleFunc("/{userID:[0-9]+}", h.Friendship.StatusHandler).Methods(http.MethodGet)
	friendRouter.HandleFunc("/{userID:[0-9]+}", h.Friendship.UnfriendHandler).Methods(http.MethodDelete)
	friendRouter.HandleFunc("/{userID:[0-9]+}/request", h.Friendship.RequestHandler).Methods(http.MethodPost)
	friendRouter.HandleFunc("/{userID:[0-9]+}/request", h.Friendship.CancelOrDeclineHandler).Methods(http.MethodDelete)
	friendRouter.HandleFunc("/{userID:[0-9]+}/accept", h.Friendship.AcceptHandler).Methods(http.MethodPost)

	// 文件上传路由
	apiRouter.HandleFunc("/upload/{kind}", h.Upload.UploadFileHandler).Methods(http.MethodPost)

	// 管理员路由
	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AdminOnly)
	adminRouter.HandleFunc("/users", h.Admin.ListUsersHandler).Methods(http.MethodGet)
	adminRouter.HandleFunc("/users/{username}", h.Admin.DeleteUserHandler).Methods(http.MethodDelete)

	// 静态文件服务路由 - 用于访问上传的文件
	for _, mount := range []string{"uploads", "media"} {
		prefix := "/" + mount + "/"
		r.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(filepath.Join(baseDir, mount)))))
	}

	return r
}
