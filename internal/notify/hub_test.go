package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialHub serves the hub behind an httptest server and returns a connected
// client.
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Subscribe(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsFill(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	conn := dialHub(t, hub)

	hub.Fill(sampleFill())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "fill", msg["type"])
	require.Equal(t, "100", msg["amount_in"])
	require.Equal(t, "99", msg["amount_out"])
	require.EqualValues(t, 2, msg["slice_id"])
}

func TestHubBroadcastsOrderStatus(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	conn := dialHub(t, hub)

	hub.OrderStatus(sampleEvent())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "order_status", msg["type"])
	require.Equal(t, "PARTIAL_FILLED", msg["status"])
	require.Equal(t, "fill", msg["cause"])
}

func TestHubCloseDropsClients(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dialHub(t, hub)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	// Broadcasting after close is a no-op.
	require.NotPanics(t, func() { hub.Fill(sampleFill()) })
}
