package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsSubscriber adapts one websocket connection to the bus subscriber
// contract. Writes are serialized through the per-connection mutex since
// gorilla/websocket allows only one concurrent writer.
type wsSubscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSubscriber) Send(envelope models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(envelope)
}

// WebSocketHandler serves the broadcast and per-user notification endpoints
type WebSocketHandler struct {
	bus    interfaces.NotificationBus
	logger arbor.ILogger
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(bus interfaces.NotificationBus, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		bus:    bus,
		logger: logger,
	}
}

// HandleBroadcast subscribes the client to the shared topic.
// GET /ws/broadcast
func (h *WebSocketHandler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.TopicBroadcast)
}

// HandleUser subscribes the client to its private topic.
// GET /ws/user/{username}
func (h *WebSocketHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(r.URL.Path, "/ws/user/")
	username = strings.Trim(username, "/")
	if username == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	h.serve(w, r, models.UserTopic(username))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	sub := &wsSubscriber{conn: conn}
	h.bus.Connect(topic, sub)
	h.logger.Debug().Str("topic", topic).Msg("WebSocket client connected")

	defer func() {
		h.bus.Disconnect(topic, sub)
		conn.Close()
		h.logger.Debug().Str("topic", topic).Msg("WebSocket client disconnected")
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("topic", topic).Msg("WebSocket error")
			}
			break
		}
	}
}
