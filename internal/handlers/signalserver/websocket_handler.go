package signalserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/logger"
	ws "social-go/internal/websocket"
)

// WebSocketHandler 负责处理信令 WebSocket 连接请求。
type WebSocketHandler struct {
	hub       *ws.Hub
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。blacklist may be nil.
func NewWebSocketHandler(hub *ws.Hub, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, blacklist: blacklist, cfg: cfg}
}

// ServeWS authenticates the ?token= query parameter and upgrades the connection.
// Anonymous connections are refused.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		logger.Warn("WebSocket 连接尝试失败：令牌无效", zap.Error(err))
		http.Error(w, "令牌无效", http.StatusUnauthorized)
		return
	}

	ws.ServeWs(h.hub, claims.UserID, claims.Username, w, r, h.cfg.WebSocket)
}

// ListLiveHandler returns the current live sessions as JSON.
func (h *WebSocketHandler) ListLiveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.hub.Registry().List()); err != nil {
		logger.Warn("encode live sessions failed", zap.Error(err))
	}
}
