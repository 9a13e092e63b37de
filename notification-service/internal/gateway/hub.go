package gateway

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"taskboard/pkg/metrics"
)

// pushFrame is the wire format of one push event.
type pushFrame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub tracks every live WebSocket connection on this instance, keyed by
// user then connection. A user may hold several connections at once
// (multiple tabs, devices); an emit reaches all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if !ok {
		conns = make(map[string]*Client)
		h.clients[client.userID] = conns
	}
	conns[client.connID] = client
	h.mu.Unlock()

	metrics.PushConnections.Inc()
	h.logger.Info("WebSocket client connected",
		zap.String("user_id", client.userID),
		zap.String("conn_id", client.connID),
	)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if ok {
		if _, exists := conns[client.connID]; exists {
			delete(conns, client.connID)
			metrics.PushConnections.Dec()
		}
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket client disconnected",
		zap.String("user_id", client.userID),
		zap.String("conn_id", client.connID),
	)
}

// EmitToUser delivers an event to every live connection of a user on this
// instance. A slow connection is dropped rather than allowed to block the
// rest.
func (h *Hub) EmitToUser(userID string, event string, payload interface{}) {
	frame, err := json.Marshal(pushFrame{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal push frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients[userID]))
	for _, client := range h.clients[userID] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	for _, client := range conns {
		client.trySend(frame)
	}
}

// Broadcast delivers an event to every connection on this instance.
func (h *Hub) Broadcast(event string, payload interface{}) {
	frame, err := json.Marshal(pushFrame{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal push frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*Client, 0)
	for _, userConns := range h.clients {
		for _, client := range userConns {
			conns = append(conns, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range conns {
		client.trySend(frame)
	}
}

// ConnectionCount reports live connections, for readiness and tests.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// CloseAll disconnects every client, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0)
	for _, conns := range h.clients {
		for _, client := range conns {
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}
