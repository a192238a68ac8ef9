package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newTestConn dials a local upgrade server and returns the server-side
// connection, the kind the hub holds.
func newTestConn(t *testing.T) *websocket.Conn {
	t.Helper()

	ready := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return <-ready
}

func TestRegisterReplacesConnection(t *testing.T) {
	hub := NewHub()
	first := newTestConn(t)
	second := newTestConn(t)

	hub.Register("u1", first)
	hub.Register("u1", second)
	assert.True(t, hub.IsOnline("u1"))

	// the first connection was closed on replacement
	assert.Error(t, first.WriteMessage(websocket.TextMessage, []byte("x")))
}

func TestSendToUserNotConnected(t *testing.T) {
	hub := NewHub()
	assert.Error(t, hub.SendToUser("nobody", Event{Type: EventItemCreated}))
}

func TestSendToUserClosedConnectionUnregisters(t *testing.T) {
	hub := NewHub()
	conn := newTestConn(t)
	hub.Register("u1", conn)
	conn.Close()

	assert.Error(t, hub.SendToUser("u1", Event{Type: EventPartnerStatus}))
	assert.False(t, hub.IsOnline("u1"))
}

func TestFailedSendKeepsReplacementConnection(t *testing.T) {
	hub := NewHub()
	stale := newTestConn(t)
	replacement := newTestConn(t)

	hub.Register("u1", replacement)

	// a writer that failed on the stale connection must not tear down the
	// replacement registered in the meantime
	hub.dropConn("u1", stale)
	assert.True(t, hub.IsOnline("u1"))

	hub.dropConn("u1", replacement)
	assert.False(t, hub.IsOnline("u1"))
}
