package apiserver

import (
	"net/http"

	"social-go/internal/services"
)

// ContentHandler 封装了帖子、评论与私信相关的 HTTP 处理器方法。
type ContentHandler struct {
	contentService services.ContentService
}

// NewContentHandler 创建一个新的 ContentHandler 实例。
func NewContentHandler(contentService services.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

// ComposeRequest 是发帖、评论与私信共用的请求体。
// Attachments are public URLs previously returned by the upload endpoint.
type ComposeRequest struct {
	Text        string   `json:"text"`
	Attachments []string `json:"attachments,omitempty"`
}

// CreatePostHandler 处理发帖请求。
func (h *ContentHandler) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	var req ComposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.contentService.CreatePost(r.Context(), identity, req.Text, req.Attachments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, post)
}

// FeedHandler 返回当前用户可见的帖子流。
func (h *ContentHandler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	posts, err := h.contentService.Feed(r.Context(), identity, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, posts)
}

func (h *ContentHandler) GetPostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	post, err := h.contentService.GetPost(r.Context(), identity, postID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, post)
}

// ListUserPostsHandler 返回指定用户对当前用户可见的帖子。
func (h *ContentHandler) ListUserPostsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	posts, err := h.contentService.ListUserPosts(r.Context(), identity, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, posts)
}

// DeletePostHandler 删除帖子及仅被该帖子引用的媒体文件。
func (h *ContentHandler) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	if err := h.contentService.DeletePost(r.Context(), identity, postID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "帖子已删除"})
}

func (h *ContentHandler) CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var req ComposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.contentService.CreateComment(r.Context(), identity, postID, req.Text, req.Attachments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, comment)
}

func (h *ContentHandler) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	comments, err := h.contentService.ListComments(r.Context(), identity, postID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, comments)
}

// SendDirectMessageHandler 向 {userID} 发送私信。
func (h *ContentHandler) SendDirectMessageHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req ComposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.contentService.SendDirectMessage(r.Context(), identity, recipientID, req.Text, req.Attachments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, msg)
}

// ListConversationHandler 返回当前用户与 {userID} 之间的私信。
func (h *ContentHandler) ListConversationHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOr401(w, r)
	if !ok {
		return
	}
	otherID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	limit, offset := pagination(r)

	messages, err := h.contentService.ListConversation(r.Context(), identity, otherID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}
