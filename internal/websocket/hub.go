package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"plan-chat-backend/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes chat events to every connected browser so sidebars stay in
// sync across tabs.
type Hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]string
	users       map[string]struct{}
}

func NewHub(users []string) *Hub {
	allowed := make(map[string]struct{}, len(users))
	for _, u := range users {
		allowed[u] = struct{}{}
	}
	return &Hub{
		connections: make(map[*websocket.Conn]string),
		users:       allowed,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on websocket requests, so the demo user
	// comes in as a query param.
	user := r.URL.Query().Get("user")
	if _, ok := h.users[user]; !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.registerConnection(user, conn)

	go func() {
		defer h.unregisterConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Run forwards events to all connections until ctx is done or events is
// closed.
func (h *Hub) Run(ctx context.Context, events <-chan models.ChatEvent) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case event, ok := <-events:
			if !ok {
				h.closeAll()
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("event", event.Type).Msg("failed to encode chat event")
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) registerConnection(user string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = user
	log.Info().Str("user", user).Int("total", len(h.connections)).Msg("WebSocket connected")
}

func (h *Hub) unregisterConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.connections[conn]
	if !ok {
		return
	}
	delete(h.connections, conn)
	conn.Close()
	log.Info().Str("user", user).Msg("WebSocket disconnected")
}

// broadcast is only called from Run, so each connection has a single writer.
// Connections that fail a write are dropped.
func (h *Hub) broadcast(data []byte) {
	var dead []*websocket.Conn

	h.mu.RLock()
	for conn, user := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("user", user).Msg("WebSocket write failed; dropping connection")
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range dead {
		h.unregisterConnection(conn)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.connections, conn)
	}
}
