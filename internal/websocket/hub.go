package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
)

// MessageHandler receives every inbound frame together with its client id.
type MessageHandler func(clientID string, raw []byte)

// Hub tracks one connection per client id. A second connection with the same
// id replaces the first.
type Hub struct {
	// Registered clients: client id -> connection
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	onMessage MessageHandler
	now       func() time.Time

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		now:        time.Now,
		logger:     log,
	}
}

// OnMessage sets the handler for inbound frames. Call before Run.
func (h *Hub) OnMessage(fn MessageHandler) {
	h.onMessage = fn
}

func (h *Hub) dispatch(clientID string, raw []byte) {
	if h.onMessage != nil {
		h.onMessage(clientID, raw)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok && old != client {
				close(old.Send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client connected", map[string]interface{}{"client_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.ID]; ok && cur == client {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.Info("Hub", "Client disconnected", map[string]interface{}{"client_id": client.ID})
			}
			h.mu.Unlock()
		}
	}
}

// Connected reports whether clientID has an open connection.
func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send serializes frame for clientID, stamping it with an ISO timestamp when
// it has none. Frames for unknown clients are dropped.
func (h *Hub) Send(clientID string, frame map[string]interface{}) {
	if _, ok := frame["timestamp"]; !ok {
		frame["timestamp"] = h.now().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal frame", map[string]interface{}{"client_id": clientID, "error": err.Error()})
		return
	}

	h.mu.RLock()
	client, ok := h.clients[clientID]
	if !ok {
		h.mu.RUnlock()
		h.logger.Debug("Hub", "Dropping frame for disconnected client", map[string]interface{}{"client_id": clientID, "type": frame["type"]})
		return
	}

	select {
	case client.Send <- data:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"client_id": clientID})
		h.unregister <- client
	}
}
