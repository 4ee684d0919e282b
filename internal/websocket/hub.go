// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"smartstrategy-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

// Hub fans billing notifications out to a tenant's connected clients.
type Hub struct {
	// Registered clients by tenant ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage

	jwtVerifier *jwt.Verifier
	logger      *zap.Logger
}

type BroadcastMessage struct {
	TenantID int64
	Message  *Message
}

func NewHub(jwtVerifier *jwt.Verifier, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[int64]map[*Client]bool),
		Register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *BroadcastMessage, 256),
		jwtVerifier: jwtVerifier,
		logger:      logger,
	}
}

// AuthenticateClient validates the bearer token and returns the tenant it
// belongs to.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (int64, error) {
	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return 0, err
	}
	return claims.TenantID, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.tenantID] == nil {
		h.clients[client.tenantID] = make(map[*Client]bool)
	}
	h.clients[client.tenantID][client] = true

	h.logger.Info("websocket client connected",
		zap.Int64("tenant_id", client.tenantID),
		zap.Int("total", h.totalClients()))

	client.SendMessage(NewMessage(EventConnected, map[string]interface{}{
		"tenant_id": client.tenantID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.tenantID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.tenantID)
			}

			h.logger.Info("websocket client disconnected",
				zap.Int64("tenant_id", client.tenantID),
				zap.Int("total", h.totalClients()))
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[msg.TenantID]; ok {
		for client := range clients {
			client.SendMessage(msg.Message)
		}
	}
}

// BroadcastNotification pushes a persisted notification to the tenant's
// connected clients.
func (h *Hub) BroadcastNotification(tenantID int64, notification *NotificationData) {
	h.broadcast <- &BroadcastMessage{
		TenantID: tenantID,
		Message:  NewMessage(EventNotification, notification),
	}
}

// BroadcastUnreadCount pushes the new unread counter after reads.
func (h *Hub) BroadcastUnreadCount(tenantID int64, count int64) {
	h.broadcast <- &BroadcastMessage{
		TenantID: tenantID,
		Message: NewMessage(EventUnreadCount, map[string]interface{}{
			"unread_count": count,
		}),
	}
}

// ConnectedClients returns how many connections a tenant has open.
func (h *Hub) ConnectedClients(tenantID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[tenantID]; ok {
		return len(clients)
	}
	return 0
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
}
