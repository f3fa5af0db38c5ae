package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"social-go/internal/config"
	"social-go/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	SessionID string
	UserID    uint
	Username  string
}

// timings fills unset WebSocketConfig values with the package defaults.
func timings(cfg config.WebSocketConfig) (write, pong, ping time.Duration, maxSize int64) {
	write, pong, maxSize = writeWait, pongWait, maxMessageSize
	if cfg.WriteWaitSeconds > 0 {
		write = time.Duration(cfg.WriteWaitSeconds) * time.Second
	}
	if cfg.PongWaitSeconds > 0 {
		pong = time.Duration(cfg.PongWaitSeconds) * time.Second
	}
	ping = (pong * 9) / 10
	if cfg.PingPeriodSeconds > 0 && time.Duration(cfg.PingPeriodSeconds)*time.Second < pong {
		ping = time.Duration(cfg.PingPeriodSeconds) * time.Second
	}
	if cfg.MaxMessageSizeBytes > 0 {
		maxSize = int64(cfg.MaxMessageSizeBytes)
	}
	return write, pong, ping, maxSize
}

// readPump pumps frames from the websocket connection to the hub.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	_, pong, _, maxSize := timings(wsCfg)
	c.conn.SetReadLimit(maxSize)
	c.conn.SetReadDeadline(time.Now().Add(pong))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pong))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket 读取错误", zap.Uint("userID", c.UserID), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		frame := inboundFrame{client: c}
		var env Envelope
		if err := json.Unmarshal(data, &env); err == nil {
			frame.env = &env
		}

		select {
		case c.hub.inbound <- frame:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
// Each queued message is written as its own text frame.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	write, _, ping, _ := timings(wsCfg)
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(write))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(write))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches a new session for the
// authenticated user to hub.
func ServeWs(hub *Hub, userID uint, username string, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		SessionID: uuid.NewString(),
		UserID:    userID,
		Username:  username,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)
}
