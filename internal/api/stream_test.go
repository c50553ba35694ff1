package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosimgo/pkg/prosim"
)

func dialStream(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %d subscribers, have %d", n, hub.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParseNames(t *testing.T) {
	assert.Nil(t, parseNames(""))
	assert.Equal(t, []string{"a", "b"}, parseNames(" a, ,b "))
}

func TestHub_FiltersByName(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	ts := httptest.NewServer(NewServer("", nil, hub, func() {}).Handler)
	defer ts.Close()

	conn := dialStream(t, ts, "?names="+altitude)
	waitSubscribers(t, hub, 1)

	hub.Broadcast(prosim.Change{Name: "aircraft.heading", Value: 90.0, Time: time.Now()})
	hub.Broadcast(prosim.Change{Name: altitude, Value: 1200.0, Time: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, altitude, msg.Name)
	assert.Equal(t, 1200.0, msg.Value)
	_, err := uuid.Parse(msg.ID)
	assert.NoError(t, err, "subscriber id should be a uuid")
}

func TestHub_StreamsClientChanges(t *testing.T) {
	b := newTestBridge(t, true)
	ts := httptest.NewServer(b.srv.Handler)
	defer ts.Close()

	conn := dialStream(t, ts, "")
	waitSubscribers(t, b.hub, 1)

	require.NoError(t, b.client.Activate(altitude, 20*time.Millisecond, nil))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, altitude, msg.Name)
	assert.False(t, msg.Time.IsZero())
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(NewServer("", nil, hub, func() {}).Handler)
	defer ts.Close()

	conn := dialStream(t, ts, "")
	waitSubscribers(t, hub, 1)

	hub.Close()
	assert.Zero(t, hub.Len())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going-away close, got %v", err)

	// Late subscribers are turned away.
	late := dialStream(t, ts, "")
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}
