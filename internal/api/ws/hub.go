package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/handle"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	queueSize    = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the desktop shell connects from a custom scheme
	},
}

// Message is the envelope for every frame in both directions
type Message struct {
	Type      string `json:"type"`
	AppID     string `json:"app_id,omitempty"`
	HandleID  string `json:"handle_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Options configures a Hub
type Options struct {
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Hub fans icon events out to connected clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	metrics *monitoring.Metrics
	logger  *zap.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// enqueue reports false when the client cannot keep up
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// NewHub creates an empty hub
func NewHub(opts Options) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		metrics: opts.Metrics,
		logger:  logging.OrNop(opts.Logger),
	}
}

// Publish broadcasts a cache event. It never blocks and is safe to use as
// a handle.Observer.
func (h *Hub) Publish(e handle.Event) {
	h.broadcast(Message{
		Type:      "icon_" + string(e.Kind),
		AppID:     e.AppID,
		HandleID:  e.HandleID,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) broadcast(msg Message) {
	frame, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.enqueue(frame) {
			h.logger.Warn("Dropping slow WebSocket client", zap.String("remote", c.conn.RemoteAddr().String()))
			c.close()
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams events until the
// client disconnects
func (h *Hub) HandleConnection(c *gin.Context) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream closed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
	if !h.register(cl) {
		conn.Close()
		return
	}
	defer h.unregister(cl)

	go h.writePump(cl)

	h.reply(cl, Message{Type: "system", Message: "Connected to icon events"})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "ping":
			h.reply(cl, Message{Type: "pong"})
		default:
			h.reply(cl, Message{Type: "error", Message: "unknown message type"})
		}
	}
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.IncWSConnections()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.DecWSConnections()
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) reply(c *client, msg Message) {
	msg.Timestamp = time.Now().Unix()
	frame, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	if !c.enqueue(frame) {
		c.close()
	}
}

// writePump is the only writer on the connection
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
