package websocket

import "encoding/json"

// 信令消息类型
const (
	TypeWelcome      = "welcome"
	TypeError        = "error"
	TypeLiveStart    = "live.start"
	TypeLiveStop     = "live.stop"
	TypeLiveList     = "live.list"
	TypeLiveSessions = "live.sessions"
	TypeSignal       = "signal"
)

// Envelope is the JSON frame exchanged with clients. For "signal" the
// payload is relayed untouched from the sender to the session named in To.
type Envelope struct {
	Type     string          `json:"type"`
	Session  string          `json:"session,omitempty"` // the receiver's own session id (welcome)
	To       string          `json:"to,omitempty"`
	From     string          `json:"from,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Sessions []LiveSession   `json:"sessions,omitempty"`
	Error    string          `json:"error,omitempty"`
}
