package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event type constants for client and server messages
const (
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeViewEvent = "view-event"
	MessageTypeUpdate    = "update"
	MessageTypeConnected = "connected"
	MessageTypeError     = "error"
)

// Handler attaches browsers to the hub.
type Handler struct {
	log            *zap.SugaredLogger
	hub            *Hub
	pingInterval   time.Duration
	writeTimeout   time.Duration
	allowedOrigins []string
	isDevelopment  bool
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, serverCfg *config.ServerConfig) *Handler {
	return &Handler{
		log:            logger.GetLogger().Named("websocket_handler"),
		hub:            hub,
		pingInterval:   hub.pingInterval,
		writeTimeout:   hub.writeTimeout,
		allowedOrigins: serverCfg.AllowedOrigins,
		isDevelopment:  serverCfg.Environment == config.EnvDevelopment,
	}
}

// getAcceptOptions returns WebSocket accept options based on configuration.
// In development, all origins are allowed. In production, only configured origins are allowed.
func (h *Handler) getAcceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	}

	if h.isDevelopment {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.allowedOrigins
	}

	return opts
}

// ClientMessage represents a message from the browser.
type ClientMessage struct {
	Type    string          `json:"type"`
	View    string          `json:"view,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message to the browser.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HandleWebSocket handles the upgrade and the connection lifecycle.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, h.getAcceptOptions())
	if err != nil {
		h.log.Errorw("Failed to accept WebSocket connection", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	connection := h.hub.Register(ctx)
	defer h.hub.Unregister(connection.ID)
	log := h.log.With("connectionID", connection.ID)

	if err := h.sendMessage(ctx, conn, ServerMessage{
		Type:    MessageTypeConnected,
		Payload: map[string]string{"connectionId": connection.ID},
	}); err != nil {
		log.Errorw("Failed to send connected message", "error", err)
		return
	}

	errCh := make(chan error, 3)
	go func() { errCh <- h.readLoop(ctx, conn, log) }()
	go func() { errCh <- h.writeLoop(ctx, conn, connection) }()
	go func() { errCh <- h.pingLoop(ctx, conn) }()

	err = <-errCh
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
		log.Warnw("WebSocket connection error", "error", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, log *zap.SugaredLogger) error {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		h.handleClientMessage(ctx, conn, log, msg)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, connection *Connection) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-connection.SendChannel():
			if !ok {
				return nil
			}
			if err := h.sendMessage(ctx, conn, ServerMessage{Type: MessageTypeUpdate, Payload: update}); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (h *Handler) handleClientMessage(ctx context.Context, conn *websocket.Conn, log *zap.SugaredLogger, msg ClientMessage) {
	switch msg.Type {
	case MessageTypePing:
		_ = h.sendMessage(ctx, conn, ServerMessage{Type: MessageTypePong})

	case MessageTypeViewEvent:
		var ev types.ViewEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil || !ev.Type.IsValid() || msg.View == "" {
			_ = h.sendMessage(ctx, conn, ServerMessage{
				Type:  MessageTypeError,
				Error: "Invalid view event: view and a known event type are required",
			})
			return
		}
		log.Debugw("View event received", "view", msg.View, "type", ev.Type)
		h.hub.Dispatch(msg.View, ev)

	default:
		log.Debugw("Unknown message type from client", "type", msg.Type)
	}
}

func (h *Handler) sendMessage(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
