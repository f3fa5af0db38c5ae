package websocket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"social-go/internal/logger"
)

type inboundFrame struct {
	client *Client
	env    *Envelope // nil when the frame was not valid JSON
}

type dropRequest struct {
	userID uint
	reply  chan int
}

// Hub owns the connected sessions and relays signaling frames between them.
// All session and registry mutations happen on the Run goroutine.
type Hub struct {
	// Connected clients keyed by session id. A user may hold several sessions.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	drop       chan dropRequest

	// closed when Run returns
	done chan struct{}

	registry *LiveRegistry

	// set while broadcastSessions runs; an eviction during it asks for another pass
	broadcasting bool
	rebroadcast  bool
}

// NewHub creates a new Hub around registry.
func NewHub(registry *LiveRegistry) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 256),
		drop:       make(chan dropRequest),
		done:       make(chan struct{}),
		registry:   registry,
	}
}

// Registry returns the live registry the hub maintains.
func (h *Hub) Registry() *LiveRegistry { return h.registry }

// DropUser disconnects every session of userID and ends their stream.
// It returns the number of sessions closed. Safe to call from any goroutine.
func (h *Hub) DropUser(userID uint) int {
	req := dropRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case h.drop <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// Run starts the hub and listens on its channels until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	logger.Info("signal hub started")
	defer func() {
		for id, c := range h.clients {
			delete(h.clients, id)
			close(c.send)
		}
		close(h.done)
		logger.Info("signal hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client.SessionID] = client
			logger.Info("客户端已注册", zap.Uint("userID", client.UserID), zap.String("session", client.SessionID))
			h.sendTo(client, &Envelope{Type: TypeWelcome, Session: client.SessionID})

		case client := <-h.unregister:
			if stored, ok := h.clients[client.SessionID]; ok && stored == client {
				h.remove(client)
				logger.Info("客户端已注销", zap.Uint("userID", client.UserID), zap.String("session", client.SessionID))
			}

		case frame := <-h.inbound:
			if _, ok := h.clients[frame.client.SessionID]; !ok {
				continue
			}
			h.handle(frame.client, frame.env)

		case req := <-h.drop:
			n := 0
			for _, c := range h.clients {
				if c.UserID == req.userID {
					h.remove(c)
					n++
				}
			}
			h.registry.ClearUser(req.userID)
			logger.Info("dropped user sessions", zap.Uint("userID", req.userID), zap.Int("sessions", n))
			req.reply <- n
		}
	}
}

// remove closes the client's send channel and clears its live entry.
func (h *Hub) remove(c *Client) {
	delete(h.clients, c.SessionID)
	close(c.send)
	before := len(h.registry.List())
	h.registry.ClearSession(c.SessionID)
	if len(h.registry.List()) != before {
		h.broadcastSessions()
	}
}

func (h *Hub) handle(c *Client, env *Envelope) {
	if env == nil {
		h.sendTo(c, &Envelope{Type: TypeError, Error: "invalid frame"})
		return
	}

	switch env.Type {
	case TypeLiveStart:
		h.registry.Start(c.UserID, c.Username, c.SessionID)
		h.broadcastSessions()

	case TypeLiveStop:
		if h.registry.Stop(c.UserID, c.SessionID) {
			h.broadcastSessions()
		}

	case TypeLiveList:
		h.sendTo(c, &Envelope{Type: TypeLiveSessions, Sessions: h.registry.List()})

	case TypeSignal:
		target, ok := h.clients[env.To]
		if !ok {
			h.sendTo(c, &Envelope{Type: TypeError, To: env.To, Error: "unknown session"})
			return
		}
		h.sendTo(target, &Envelope{Type: TypeSignal, From: c.SessionID, Payload: env.Payload})

	default:
		h.sendTo(c, &Envelope{Type: TypeError, Error: "unknown message type: " + env.Type})
	}
}

func (h *Hub) broadcastSessions() {
	if h.broadcasting {
		h.rebroadcast = true
		return
	}
	h.broadcasting = true
	defer func() { h.broadcasting = false }()

	for {
		h.rebroadcast = false
		env := &Envelope{Type: TypeLiveSessions, Sessions: h.registry.List()}
		for _, c := range h.clients {
			h.sendTo(c, env)
		}
		if !h.rebroadcast {
			return
		}
	}
}

// sendTo queues env for c; a client whose buffer is full is disconnected.
func (h *Hub) sendTo(c *Client, env *Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		logger.Error("无法序列化信令消息", zap.Error(err))
		return
	}
	select {
	case c.send <- b:
	default:
		logger.Warn("发送通道已满，移除客户端", zap.Uint("userID", c.UserID), zap.String("session", c.SessionID))
		h.remove(c)
	}
}
