// Package notifications fans push events out to connected browser clients
// over WebSocket so the app shell can surface them as system notifications.
package notifications

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 16
)

// DefaultTitle is the notification title shown for push events that do not
// carry their own.
const DefaultTitle = "Kisan Sathi"

// Notification is the payload delivered to subscribers.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Tag   string `json:"tag,omitempty"`
	At    string `json:"at"`
}

// Hub fans notifications out to every connected client.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*connection]struct{}
	upgrader websocket.Upgrader
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the Hub.
type Option func(*Hub)

// WithNow overrides the clock used for notification timestamps.
func WithNow(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub constructs a notification hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
		now: time.Now,
		log: logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve upgrades the HTTP connection and registers the subscriber.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &connection{
		hub:    h,
		socket: conn,
		id:     uuid.NewString(),
		send:   make(chan Notification, sendBufferSize),
	}
	h.register(client)
	h.log.Debug("notification client connected", zap.String("client_id", client.id))

	go client.writeLoop()
	client.readLoop()
}

// Push delivers a raw push payload to every subscriber. The payload body is
// used verbatim; missing or malformed input degrades to an empty body under
// the fixed title rather than failing.
func (h *Hub) Push(payload []byte) {
	body := strings.TrimSpace(string(payload))

	// Push payloads may arrive as JSON {"title":..,"body":..} or plain text.
	var structured struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Icon  string `json:"icon"`
		Tag   string `json:"tag"`
	}
	notification := Notification{Title: DefaultTitle, Body: body}
	if err := json.Unmarshal(payload, &structured); err == nil {
		if structured.Title != "" {
			notification.Title = structured.Title
		}
		if structured.Body != "" {
			notification.Body = structured.Body
		}
		notification.Icon = structured.Icon
		notification.Tag = structured.Tag
	}

	h.Broadcast(notification)
}

// Broadcast delivers a notification to all connected clients.
func (h *Hub) Broadcast(notification Notification) {
	if notification.Title == "" {
		notification.Title = DefaultTitle
	}
	notification.At = h.now().UTC().Format(time.RFC3339)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- notification:
		default:
			h.log.Warn("dropping slow notification client", zap.String("client_id", client.id))
			go client.close()
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	id     string
	send   chan Notification
	once   sync.Once
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Subscribers only listen; inbound frames are drained to keep the
	// connection's control handlers running.
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case notification, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(notification); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
