package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"social-go/internal/services"
)

// AdminHandler serves the admin-only user management routes.
type AdminHandler struct {
	userService     services.UserService
	deletionService services.DeletionService
}

func NewAdminHandler(userService services.UserService, deletionService services.DeletionService) *AdminHandler {
	return &AdminHandler{userService: userService, deletionService: deletionService}
}

// ListUsersHandler 列出全部用户。
func (h *AdminHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// DeleteUserHandler 按用户名删除用户及其全部内容。
func (h *AdminHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}

	report, err := h.deletionService.DeleteIdentityByUsername(r.Context(), identity, mux.Vars(r)["username"])
	writeDeletionResult(w, report, err)
}
