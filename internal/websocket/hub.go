package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub fans view updates out to every connected browser and turns browser
// interaction messages into view events.
//
// The latest update of each view and kind is retained and replayed to new
// connections, so a browser that connects late still sees the current page.
type Hub struct {
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	inbound *events.Bus[ViewMessage]

	mu          sync.RWMutex
	connections map[string]*Connection // connection ID -> connection
	retained    map[string]types.ViewUpdate
	order       []string

	shutdownOnce sync.Once
	sendBuffer   int
	pingInterval time.Duration
	writeTimeout time.Duration
}

// ViewMessage is an interaction reported by the browser for one view.
type ViewMessage struct {
	View  string
	Event types.ViewEvent
}

// Connection is one browser attached to the page.
type Connection struct {
	ID     string
	sendCh chan types.ViewUpdate
	mu     sync.Mutex
	closed bool
}

// HubConfig contains configuration options for the Hub.
type HubConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// DefaultHubConfig returns sensible defaults for Hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   256,
	}
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg ...HubConfig) *Hub {
	config := DefaultHubConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}

	return &Hub{
		log:          logger.GetLogger().Named("websocket_hub"),
		metrics:      metrics.Get(),
		inbound:      events.NewBus[ViewMessage]("view_messages"),
		connections:  make(map[string]*Connection),
		retained:     make(map[string]types.ViewUpdate),
		sendBuffer:   config.SendBuffer,
		pingInterval: config.PingInterval,
		writeTimeout: config.WriteTimeout,
	}
}

// Register adds a connection and queues the retained page state on it.
func (h *Hub) Register(ctx context.Context) *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	buffer := h.sendBuffer
	if len(h.order) > buffer {
		buffer = len(h.order)
	}
	connection := &Connection{
		ID:     uuid.NewString(),
		sendCh: make(chan types.ViewUpdate, buffer),
	}
	for _, key := range h.order {
		connection.sendCh <- h.retained[key]
	}
	h.connections[connection.ID] = connection
	h.metrics.ViewConnections.Inc()

	h.log.Infow("WebSocket connection registered",
		"connectionID", connection.ID,
		"replayed", len(h.order))
	return connection
}

// Unregister removes a connection.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	conn, ok := h.connections[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.connections, id)
	h.mu.Unlock()

	h.closeConnection(conn, "unregistered")
}

func (h *Hub) closeConnection(conn *Connection, reason string) {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return
	}
	conn.closed = true
	close(conn.sendCh)
	conn.mu.Unlock()

	h.metrics.ViewConnections.Dec()
	h.log.Infow("WebSocket connection closed",
		"connectionID", conn.ID,
		"reason", reason)
}

// Broadcast sends u to every connection. Toasts are not retained.
func (h *Hub) Broadcast(u types.ViewUpdate) {
	h.mu.Lock()
	if u.Type != types.ViewUpdateToast {
		key := u.View + ":" + string(u.Type)
		if _, ok := h.retained[key]; !ok {
			h.order = append(h.order, key)
		}
		h.retained[key] = u
	}
	connections := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		connections = append(connections, conn)
	}
	h.mu.Unlock()

	for _, conn := range connections {
		conn.send(h.log, u)
	}
}

// Dispatch publishes an interaction reported for view.
func (h *Hub) Dispatch(view string, ev types.ViewEvent) {
	h.inbound.Publish(ViewMessage{View: view, Event: ev})
}

// Subscribe registers fn for interactions reported for view.
func (h *Hub) Subscribe(view string, fn func(types.ViewEvent)) events.Subscription {
	return h.inbound.Subscribe(func(msg ViewMessage) {
		if msg.View == view {
			fn(msg.Event)
		}
	})
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Shutdown closes every connection and stops dispatching.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		connections := make([]*Connection, 0, len(h.connections))
		for _, conn := range h.connections {
			connections = append(connections, conn)
		}
		h.connections = make(map[string]*Connection)
		h.mu.Unlock()

		for _, conn := range connections {
			h.closeConnection(conn, "server shutdown")
		}
		h.inbound.Close()
	})

	h.log.Info("WebSocket hub shutdown complete")
	return nil
}

func (c *Connection) send(log *zap.SugaredLogger, u types.ViewUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.sendCh <- u:
	default:
		log.Warnw("Connection send buffer full, dropping update",
			"connectionID", c.ID,
			"type", u.Type)
	}
}

// SendChannel returns the updates queued for the connection.
func (c *Connection) SendChannel() <-chan types.ViewUpdate {
	return c.sendCh
}

// IsClosed returns whether the connection is closed.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
