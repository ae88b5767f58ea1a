// Package feed streams engine events (quotes, fills, hedges, risk
// state, marks) to WebSocket subscribers. It is a one-way broadcast:
// clients only send subscription filters, never orders.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"options-mm-go/infrastructure/logger"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a client may stay silent before the read
	// side gives up. pingPeriod must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames. Clients only send small
	// subscription messages.
	maxMessageSize = 1024

	// sendBufferSize is the per-client outgoing queue. Slow consumers
	// drop events rather than stall the engine.
	sendBufferSize = 64
)

// Topics carried on the feed.
const (
	TopicQuotes = "quotes"
	TopicFills  = "fills"
	TopicHedges = "hedges"
	TopicRisk   = "risk"
	TopicTicks  = "ticks"
	TopicPnL    = "pnl"
)

// Event is the JSON envelope sent to subscribers.
type Event struct {
	Topic   string      `json:"topic"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// subscribeMsg is the only inbound message shape: topic filters.
type subscribeMsg struct {
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed binds to an operator-facing port; origin checks are
	// left to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
	mu   sync.RWMutex
}

type broadcastMsg struct {
	topic string
	data  []byte
}

// Config carries the metadata included in the hello frame.
type Config struct {
	Env       string
	StartedAt time.Time
}

// Hub fans engine events out to all connected clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	log        *logger.Logger
	env        string
	startedAt  time.Time
	dropped    atomic.Uint64
	mu         sync.RWMutex
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(log *logger.Logger, cfg Config) *Hub {
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	env := cfg.Env
	if env == "" {
		env = "unknown"
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log,
		env:        env,
		startedAt:  startedAt,
	}
}

// Run drives registration and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("feed: client connected", zap.Int("clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("feed: client disconnected", zap.Int("clients", total))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.subscribed(msg.topic) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.dropped.Add(1)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues one event for broadcast. It never blocks: if the hub
// is saturated or stopped the event is dropped.
func (h *Hub) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(Event{Topic: topic, At: time.Now().UTC(), Payload: payload})
	if err != nil {
		h.log.LogError(err, "feed_marshal", map[string]interface{}{"topic": topic})
		return
	}
	select {
	case h.broadcast <- broadcastMsg{topic: topic, data: data}:
	default:
	}
}

// HandleWS upgrades the request and registers the client. New clients
// start subscribed to every topic; they narrow the filter themselves.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.LogError(err, "feed_upgrade", nil)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: map[string]bool{"*": true},
	}

	h.register <- c
	c.sendHello()

	go c.writePump()
	go c.readPump()
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped reports events discarded on slow client queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}
		c.applyFilter(sub)
	}
}

func (c *client) applyFilter(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(msg.Subscribe) > 0 || len(msg.Unsubscribe) > 0 {
		// An explicit filter replaces the connect-time wildcard.
		delete(c.subs, "*")
	}
	for _, topic := range msg.Subscribe {
		c.subs[topic] = true
	}
	for _, topic := range msg.Unsubscribe {
		delete(c.subs, topic)
	}
}

func (c *client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs["*"] || c.subs[topic]
}

// sendHello pushes a status envelope so clients can confirm the stream
// is live before any market event arrives.
func (c *client) sendHello() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	data, err := json.Marshal(Event{
		Topic: "status",
		At:    time.Now().UTC(),
		Payload: map[string]interface{}{
			"env":            c.hub.env,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
