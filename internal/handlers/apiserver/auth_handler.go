package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/middleware"
	"social-go/internal/models"
	"social-go/internal/services"
	"social-go/internal/storage"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	AuthService services.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{AuthService: authService}
}

// CredentialsRequest 是注册与登录请求的结构体。
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 是成功登录后返回的结构体。
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ErrorResponse 是 API 错误响应的通用结构体。
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, user)
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSONError(w, "用户名和密码不能为空", http.StatusBadRequest)
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// LogoutHandler 处理用户登出请求，将当前 Token 加入黑名单。
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证或无法解析用户声明", http.StatusUnauthorized)
		return
	}
	if err := h.AuthService.Logout(r.Context(), claims); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "登出成功"})
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Warn("encode JSON response failed", zap.Error(err))
		}
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var partial *services.PartialFileCleanupError
	if errors.As(err, &partial) {
		// 行已删除，仅部分文件未能清理
		logger.Warn("partial media cleanup", zap.Strings("paths", partial.Paths), zap.Error(partial.Err))
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"message": "已删除，部分文件清理失败", "failedFiles": partial.Paths})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		writeJSONError(w, "用户名或密码错误", http.StatusUnauthorized)
	case errors.Is(err, services.ErrForbidden):
		writeJSONError(w, "没有权限执行此操作", http.StatusForbidden)
	case errors.Is(err, services.ErrProtectedIdentity),
		errors.Is(err, services.ErrUserAlreadyExists):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidVisibility),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrSelfFriendship),
		errors.Is(err, media.ErrInvalidAttachment),
		errors.Is(err, media.ErrUnsupportedAttachment),
		errors.Is(err, storage.ErrSizeMismatch):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSONError(w, "服务器内部错误", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return false
	}
	return true
}

// identityOr401 returns the caller or writes 401.
func identityOr401(w http.ResponseWriter, r *http.Request) (services.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeJSONError(w, "未认证", http.StatusUnauthorized)
	}
	return identity, ok
}

// pathID parses a numeric mux path variable.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := storage.ParseID(mux.Vars(r)[name])
	if err != nil {
		writeJSONError(w, "无效的ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
