package websocket

import (
	"sort"
	"sync"
	"time"
)

// LiveSession is one identity currently streaming.
type LiveSession struct {
	UserID    uint      `json:"userId"`
	Username  string    `json:"username"`
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

// LiveRegistry tracks who is live. One entry per user; starting again from
// another connection replaces the previous entry.
type LiveRegistry struct {
	mu     sync.RWMutex
	byUser map[uint]LiveSession
	now    func() time.Time
}

func NewLiveRegistry() *LiveRegistry {
	return &LiveRegistry{byUser: make(map[uint]LiveSession), now: time.Now}
}

// Start marks userID live on sessionID.
func (r *LiveRegistry) Start(userID uint, username, sessionID string) LiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := LiveSession{UserID: userID, Username: username, SessionID: sessionID, StartedAt: r.now()}
	r.byUser[userID] = s
	return s
}

// Stop ends the user's stream if it belongs to sessionID.
func (r *LiveRegistry) Stop(userID uint, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byUser[userID]; ok && s.SessionID == sessionID {
		delete(r.byUser, userID)
		return true
	}
	return false
}

// ClearSession drops whatever sessionID had started. Called on disconnect.
func (r *LiveRegistry) ClearSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.byUser {
		if s.SessionID == sessionID {
			delete(r.byUser, id)
		}
	}
}

func (r *LiveRegistry) ClearUser(userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)
}

// List returns the live sessions, oldest first.
func (r *LiveRegistry) List() []LiveSession {
	r.mu.RLock()
	out := make([]LiveSession, 0, len(r.byUser))
	for _, s := range r.byUser {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
