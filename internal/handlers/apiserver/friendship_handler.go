package apiserver

import (
	"context"
	"net/http"

	"social-go/internal/services"
)

// FriendshipHandler 封装了好友关系相关的 HTTP 处理器方法。
type FriendshipHandler struct {
	friendshipService services.FriendshipService
}

// NewFriendshipHandler 创建一个新的 FriendshipHandler 实例。
func NewFriendshipHandler(friendshipService services.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{friendshipService: friendshipService}
}

// FriendshipStateResponse carries the state from the caller's point of view.
type FriendshipStateResponse struct {
	UserID uint                     `json:"userId"`
	State  services.FriendshipState `json:"state"`
}

type transition func(ctx context.Context, viewer services.Identity, subjectID uint) (services.FriendshipState, error)

// handleTransition runs one state machine call against {userID}.
func (h *FriendshipHandler) handleTransition(w http.ResponseWriter, r *http.Request, fn transition) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	subjectID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	state, err := fn(r.Context(), identity, subjectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, FriendshipStateResponse{UserID: subjectID, State: state})
}

func (h *FriendshipHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.friendshipService.Status)
}

// RequestHandler 发送好友请求；若对方已向自己发出请求则直接成为好友。
func (h *FriendshipHandler) RequestHandler(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.friendshipService.Request)
}

func (h *FriendshipHandler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.friendshipService.Accept)
}

// CancelOrDeclineHandler 撤回自己发出的请求或拒绝对方的请求。
func (h *FriendshipHandler) CancelOrDeclineHandler(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.friendshipService.CancelOrDecline)
}

func (h *FriendshipHandler) UnfriendHandler(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.friendshipService.Unfriend)
}

// ListFriendsHandler 返回当前用户的好友列表。
func (h *FriendshipHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	friends, err := h.friendshipService.ListFriends(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// ListIncomingHandler 返回发给当前用户的待处理请求。
func (h *FriendshipHandler) ListIncomingHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	requests, err := h.friendshipService.ListIncoming(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListOutgoingHandler 返回当前用户发出的待处理请求。
func (h *FriendshipHandler) ListOutgoingHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	requests, err := h.friendshipService.ListOutgoing(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}
