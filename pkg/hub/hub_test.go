package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, func() bool { return h.Stats().Running }, time.Second, 5*time.Millisecond)
	return h, cancel
}

func serve(t *testing.T, h *Hub) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", h.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)
	url := serve(t, h)

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"status": "success"}))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)

		var got map[string]string
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "success", got["status"])
	}
	assert.Equal(t, uint64(2), h.Stats().Sent)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	h, _ := startHub(t)
	url := serve(t, h)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	url := serve(t, h)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "hub shutdown closes the socket")

	assert.Eventually(t, func() bool { return !h.Stats().Running }, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.ClientCount())
}

func TestJoinAfterStop(t *testing.T) {
	h, cancel := startHub(t)
	cancel()
	require.Eventually(t, func() bool { return !h.Stats().Running }, time.Second, 5*time.Millisecond)

	assert.False(t, h.join(&Client{hub: h, send: make(chan []byte, 1)}))
}

func TestBroadcastNeverBlocks(t *testing.T) {
	h := New(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			h.Broadcast([]byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	assert.Equal(t, uint64(300-cap(h.broadcast)), h.Stats().Dropped)
}

func TestSlowClientDropped(t *testing.T) {
	h, _ := startHub(t)

	// never drained: registered directly without a write pump
	c := &Client{hub: h, send: make(chan []byte, 1)}
	require.True(t, h.join(c))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast([]byte("one"))
	h.Broadcast([]byte("two"))

	require.Eventually(t, func() bool { return h.Stats().Dropped == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.ClientCount())
	assert.Equal(t, uint64(1), h.Stats().Dropped)
	assert.Equal(t, uint64(1), h.Stats().Sent)

	_, open := <-c.send
	assert.True(t, open, "first message is still buffered")
	_, open = <-c.send
	assert.False(t, open)
}
