package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/handle"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
)

func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := read(t, conn)
	require.Equal(t, "system", welcome.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPublishReachesEveryClient(t *testing.T) {
	hub := NewHub(Options{})
	srv := newServer(t, hub)

	a := dial(t, srv)
	b := dial(t, srv)
	assert.Equal(t, 2, hub.Clients())

	hub.Publish(handle.Event{Kind: handle.EventInstalled, AppID: "notes", HandleID: "h1"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, "icon_installed", msg.Type)
		assert.Equal(t, "notes", msg.AppID)
		assert.Equal(t, "h1", msg.HandleID)
		assert.NotZero(t, msg.Timestamp)
	}
}

func TestCacheObserver(t *testing.T) {
	hub := NewHub(Options{})
	srv := newServer(t, hub)
	conn := dial(t, srv)

	cache := handle.New(handle.Options{Observer: hub.Publish})
	h := cache.Install("notes", []byte{0x89, 'P', 'N', 'G'})
	cache.Evict("notes")

	installed := read(t, conn)
	assert.Equal(t, "icon_installed", installed.Type)
	assert.Equal(t, h.ID(), installed.HandleID)

	evicted := read(t, conn)
	assert.Equal(t, "icon_evicted", evicted.Type)
	assert.Equal(t, h.ID(), evicted.HandleID)
}

func TestPingAndUnknownMessages(t *testing.T) {
	hub := NewHub(Options{})
	conn := dial(t, newServer(t, hub))

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "subscribe"}))
	msg := read(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "unknown message type", msg.Message)
}

func TestDisconnectUnregisters(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(Options{Metrics: metrics})
	conn := dial(t, newServer(t, hub))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WSConnections))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WSConnections))

	// Publishing with nobody listening is fine.
	hub.Publish(handle.Event{Kind: handle.EventEvicted, AppID: "notes"})
}

func TestCloseDisconnectsAndRefuses(t *testing.T) {
	hub := NewHub(Options{})
	srv := newServer(t, hub)
	conn := dial(t, srv)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEnqueueNeverBlocks(t *testing.T) {
	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}

	assert.True(t, c.enqueue([]byte("a")))
	assert.False(t, c.enqueue([]byte("b")), "full queue")

	<-c.send
	close(c.done)
	assert.False(t, c.enqueue([]byte("c")), "closed client")
}
