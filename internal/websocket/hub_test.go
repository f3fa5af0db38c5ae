package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/config"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(NewLiveRegistry())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseUint(r.URL.Query().Get("uid"), 10, 32)
		ServeWs(hub, uint(id), r.URL.Query().Get("name"), w, r, config.WebSocketConfig{})
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
	})
	return hub, srv
}

type peer struct {
	conn    *websocket.Conn
	session string
}

func dial(t *testing.T, srv *httptest.Server, uid uint, name string) *peer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?uid=" + strconv.FormatUint(uint64(uid), 10) + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &peer{conn: conn}
	welcome := p.next(t, TypeWelcome)
	require.NotEmpty(t, welcome.Session)
	p.session = welcome.Session
	return p
}

func (p *peer) send(t *testing.T, env Envelope) {
	t.Helper()
	require.NoError(t, p.conn.WriteJSON(env))
}

// next reads frames until one of type typ arrives.
func (p *peer) next(t *testing.T, typ string) Envelope {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var env Envelope
		_, data, err := p.conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env
		}
	}
}

func TestHubRelaysSignalsBetweenSessions(t *testing.T) {
	_, srv := startHub(t)
	alice := dial(t, srv, 1, "alice")
	bob := dial(t, srv, 2, "bob")

	alice.send(t, Envelope{Type: TypeSignal, To: bob.session, Payload: json.RawMessage(`{"sdp":"offer"}`)})

	got := bob.next(t, TypeSignal)
	assert.Equal(t, alice.session, got.From)
	assert.JSONEq(t, `{"sdp":"offer"}`, string(got.Payload))

	alice.send(t, Envelope{Type: TypeSignal, To: "missing"})
	errEnv := alice.next(t, TypeError)
	assert.Equal(t, "unknown session", errEnv.Error)
}

func TestHubLiveStartListAndDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, 1, "alice")
	bob := dial(t, srv, 2, "bob")

	alice.send(t, Envelope{Type: TypeLiveStart})
	update := bob.next(t, TypeLiveSessions)
	require.Len(t, update.Sessions, 1)
	assert.Equal(t, alice.session, update.Sessions[0].SessionID)

	bob.send(t, Envelope{Type: TypeLiveList})
	listed := bob.next(t, TypeLiveSessions)
	require.Len(t, listed.Sessions, 1)
	assert.Equal(t, "alice", listed.Sessions[0].Username)

	require.NoError(t, alice.conn.Close())
	cleared := bob.next(t, TypeLiveSessions)
	assert.Empty(t, cleared.Sessions)
	assert.Empty(t, hub.Registry().List())
}

func TestHubDropUserClosesSessions(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, 1, "alice")
	_ = dial(t, srv, 1, "alice")
	bob := dial(t, srv, 2, "bob")

	alice.send(t, Envelope{Type: TypeLiveStart})
	bob.next(t, TypeLiveSessions)

	assert.Equal(t, 2, hub.DropUser(1))
	assert.Empty(t, hub.Registry().List())

	require.NoError(t, alice.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := alice.conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Equal(t, 0, hub.DropUser(1))
}

func TestHubRejectsUnknownFrames(t *testing.T) {
	_, srv := startHub(t)
	alice := dial(t, srv, 1, "alice")

	require.NoError(t, alice.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "invalid frame", alice.next(t, TypeError).Error)

	alice.send(t, Envelope{Type: "chat"})
	assert.Contains(t, alice.next(t, TypeError).Error, "chat")
}

func TestHubEvictingSlowStreamerBroadcastsSessions(t *testing.T) {
	hub := NewHub(NewLiveRegistry())
	// unbuffered and never read, so every send to it is "full"
	slow := &Client{hub: hub, send: make(chan []byte), SessionID: "slow", UserID: 1, Username: "alice"}
	watcher := &Client{hub: hub, send: make(chan []byte, 4), SessionID: "watcher", UserID: 2, Username: "bob"}
	hub.clients[slow.SessionID] = slow
	hub.clients[watcher.SessionID] = watcher
	hub.registry.Start(slow.UserID, slow.Username, slow.SessionID)

	hub.sendTo(slow, &Envelope{Type: TypeLiveList})

	assert.NotContains(t, hub.clients, "slow")
	assert.Empty(t, hub.Registry().List())
	assert.False(t, hub.broadcasting)

	select {
	case data := <-watcher.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, TypeLiveSessions, env.Type)
		assert.Empty(t, env.Sessions)
	default:
		t.Fatal("watcher got no live.sessions update")
	}
}

func TestHubBroadcastSurvivesEvictionsMidLoop(t *testing.T) {
	hub := NewHub(NewLiveRegistry())
	for i, id := range []string{"a", "b", "c"} {
		c := &Client{hub: hub, send: make(chan []byte), SessionID: id, UserID: uint(i + 1), Username: id}
		hub.clients[id] = c
		hub.registry.Start(c.UserID, c.Username, id)
	}
	watcher := &Client{hub: hub, send: make(chan []byte, 16), SessionID: "watcher", UserID: 9, Username: "w"}
	hub.clients[watcher.SessionID] = watcher

	hub.broadcastSessions()

	assert.Len(t, hub.clients, 1)
	assert.Empty(t, hub.Registry().List())

	var last Envelope
	for len(watcher.send) > 0 {
		require.NoError(t, json.Unmarshal(<-watcher.send, &last))
	}
	assert.Equal(t, TypeLiveSessions, last.Type)
	assert.Empty(t, last.Sessions)
}
