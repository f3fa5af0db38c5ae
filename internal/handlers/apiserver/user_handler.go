package apiserver

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"social-go/internal/config"
	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/models"
	"social-go/internal/services"
)

// UserHandler 封装了用户相关的 HTTP 处理器方法。
type UserHandler struct {
	userService     services.UserService
	deletionService services.DeletionService
	storageCfg      config.StorageConfig
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService, deletionService services.DeletionService, storageCfg config.StorageConfig) *UserHandler {
	return &UserHandler{userService: userService, deletionService: deletionService, storageCfg: storageCfg}
}

// GetMyProfileHandler 处理获取当前登录用户信息的请求。
func (h *UserHandler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserProfile(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateVisibilityRequest 是修改帖子可见范围的请求结构体。
type UpdateVisibilityRequest struct {
	Visibility models.Visibility `json:"visibility"`
}

// UpdateVisibilityHandler 处理修改当前用户可见范围的请求。
func (h *UserHandler) UpdateVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	var req UpdateVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateVisibility(r.Context(), identity, req.Visibility)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateAvatarHandler 处理头像上传，替换旧头像。
func (h *UserHandler) UpdateAvatarHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}

	file, header, ok := readUpload(w, r, h.storageCfg.MaxFileSizeMB)
	if !ok {
		return
	}
	defer file.Close()

	if !media.SupportedExtension(filepath.Ext(header.Filename)) {
		writeJSONError(w, "不支持的文件类型", http.StatusBadRequest)
		return
	}

	user, err := h.userService.UpdateAvatar(r.Context(), identity, file, header.Size, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// GetPublicProfileHandler 处理获取指定用户公开信息的请求。
func (h *UserHandler) GetPublicProfileHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := identityOr401(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.GetPublicProfile(r.Context(), viewer, mux.Vars(r)["username"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// SearchUsersHandler 处理搜索用户的请求。
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := identityOr401(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSONError(w, "搜索查询不能为空", http.StatusBadRequest)
		return
	}

	users, err := h.userService.SearchUsers(r.Context(), viewer, query)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	results := make([]models.UserBasicInfo, len(users))
	for i, u := range users {
		results[i] = models.UserBasicInfo{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
	}
	writeJSONResponse(w, http.StatusOK, results)
}

// DeleteMyAccountHandler 注销当前账号，级联删除其全部内容与文件。
func (h *UserHandler) DeleteMyAccountHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}

	report, err := h.deletionService.DeleteIdentity(r.Context(), identity, identity.UserID)
	writeDeletionResult(w, report, err)
}

// writeDeletionResult answers 200 with the report when the rows are gone,
// even if some files stayed behind.
func writeDeletionResult(w http.ResponseWriter, report *services.DeletionReport, err error) {
	if err != nil && !(report != nil && errors.Is(err, services.ErrPartialFileCleanup)) {
		writeServiceError(w, err)
		return
	}
	if err != nil {
		logger.Warn("account deleted with leftover files", zap.Uint("userID", report.UserID), zap.Error(err))
	}
	writeJSONResponse(w, http.StatusOK, report)
}
