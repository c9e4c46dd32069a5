// internal/ws/hub.go
package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/models"
)

// Hub maintains the set of active clients and routes messages to them. It
// also fans queue-change events out to sellers watching their products.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Inbound messages destined for a single user.
	direct chan directMessage

	// Map to quickly find clients by user ID.
	userClients map[uuid.UUID][]*Client

	mutex sync.Mutex
}

type directMessage struct {
	userID  uuid.UUID
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		direct:      make(chan directMessage, 64),
		clients:     make(map[*Client]bool),
		userClients: make(map[uuid.UUID][]*Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			h.addUserClient(client)
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.removeUserClient(client)
			}
		case msg := <-h.direct:
			h.deliver(msg.userID, msg.payload)
		}
	}
}

func (h *Hub) addUserClient(client *Client) {
	h.mutex.Lock()
	h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
	count := len(h.userClients[client.UserID])
	h.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"user_id":     client.UserID,
		"connections": count,
	}).Debug("WebSocket client connected")
}

func (h *Hub) removeUserClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns := h.userClients[client.UserID]
	for i, conn := range conns {
		if conn == client {
			h.userClients[client.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.userClients[client.UserID]) == 0 {
		delete(h.userClients, client.UserID)
	}
}

// SendToUser queues a message for delivery to all of the user's active
// connections. Safe to call from any goroutine.
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) {
	select {
	case h.direct <- directMessage{userID: userID, payload: message}:
	default:
		logrus.WithField("user_id", userID).Warn("WebSocket direct queue full, dropping message")
	}
}

func (h *Hub) deliver(userID uuid.UUID, message []byte) {
	h.mutex.Lock()
	conns := append([]*Client(nil), h.userClients[userID]...)
	h.mutex.Unlock()

	for _, client := range conns {
		if !client.enqueue(message) {
			// Slow or dead consumer, drop the connection.
			client.closeSend()
			delete(h.clients, client)
			h.removeUserClient(client)
		}
	}
}

// IsUserOnline reports whether the user has any active connection.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.userClients[userID]) > 0
}

// QueueChanged pushes a queue event to the product owner so the seller
// dashboard updates without polling. Implements services.QueueEvents.
func (h *Hub) QueueChanged(ownerID, productID uuid.UUID, event string, interest *models.BuyerInterest) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":       "queue_changed",
		"event":      event,
		"product_id": productID,
		"interest":   interest,
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode queue event")
		return
	}

	h.SendToUser(ownerID, payload)
}
