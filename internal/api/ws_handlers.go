// Package api provides HTTP handlers for real-time notification WebSocket subscriptions.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/leadpulse/leadpulse/internal/middleware"
	"github.com/leadpulse/leadpulse/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper CORS checking based on configuration
		// For now, allow all origins (should be restricted in production)
		return true
	},
}

// WebSocketHandlers holds dependencies for notification WebSocket handlers.
type WebSocketHandlers struct {
	registry *notify.Registry
	fanout   *notify.Fanout
}

// NewWebSocketHandlers creates a new WebSocketHandlers instance.
func NewWebSocketHandlers(registry *notify.Registry, fanout *notify.Fanout) *WebSocketHandlers {
	return &WebSocketHandlers{
		registry: registry,
		fanout:   fanout,
	}
}

// subscribeMessage is the one inbound message type clients may send after
// connecting, to join additional channel rooms.
type subscribeMessage struct {
	Event    string   `json:"event"`
	Channels []string `json:"channels"`
}

// Subscribe handles WebSocket connections for real-time notifications.
// GET /ws?userId={id}&channels=a,b
//
// On connect the client joins its user room plus any requested channel
// rooms, and immediately receives an initial-state event with its unread
// count and active leads.
func (h *WebSocketHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "userId query parameter is required")
		return
	}

	var channels []string
	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				channels = append(channels, c)
			}
		}
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection",
			"error", err,
			"user_id", userID,
		)
		return
	}

	connID := uuid.New().String()
	h.registry.Register(conn, connID, userID, channels)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to notifications",
		"user_id", userID,
		"conn_id", connID,
		"channels", channels,
		"request_id", requestID,
	)

	// Send unread count and active leads so the client can render immediately
	if err := h.fanout.PushInitialState(ctx, conn, userID); err != nil {
		slog.WarnContext(ctx, "failed to push initial state",
			"error", err,
			"user_id", userID,
		)
	}

	// Handle connection lifecycle
	defer func() {
		h.registry.Unregister(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"user_id", userID,
			"conn_id", connID,
			"request_id", requestID,
		)
	}()

	// Read loop: detects disconnection and handles channel subscription
	// messages. Anything else from the client is ignored.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly",
					"error", err,
					"user_id", userID,
				)
			}
			break
		}

		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event != "subscribe-channels" {
			continue
		}
		channels = append(channels, msg.Channels...)
		h.registry.Register(conn, connID, userID, channels)
		slog.DebugContext(ctx, "websocket client joined channels",
			"user_id", userID,
			"channels", msg.Channels,
		)
	}
}
