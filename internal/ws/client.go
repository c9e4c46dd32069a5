// internal/ws/client.go
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/services"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096 // 4KB
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages. Closed only via closeSend;
	// everything else goes through enqueue so a write never races the close.
	Send chan []byte

	// User ID derived from authentication.
	UserID uuid.UUID

	// Chat persistence.
	Chats *services.ChatService

	sendMu sync.Mutex
	closed bool
}

// enqueue offers a payload to the outbound buffer. It reports false when the
// buffer is full or the connection is already torn down.
func (c *Client) enqueue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once. The hub owns teardown.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WSMessage is the envelope for everything a peer may send us.
type WSMessage struct {
	Type       string    `json:"type"` // 'chat', 'read'
	ChatRoomID uuid.UUID `json:"chat_room_id,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var wsMsg WSMessage
	if err := json.Unmarshal(message, &wsMsg); err != nil {
		logrus.WithError(err).Debug("Dropping malformed websocket message")
		return
	}

	switch wsMsg.Type {
	case "chat":
		c.processChatMessage(&wsMsg)
	case "read":
		c.processReadReceipt(&wsMsg)
	}
}

func (c *Client) processChatMessage(wsMsg *WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	saved, err := c.Chats.SaveMessage(ctx, wsMsg.ChatRoomID, c.UserID, wsMsg.Content)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	room, err := c.Chats.GetRoom(ctx, wsMsg.ChatRoomID, c.UserID)
	if err != nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"type":         "chat",
		"chat_room_id": wsMsg.ChatRoomID,
		"message":      saved,
	})

	// Echo back to the sender and deliver to the other participant.
	c.enqueue(payload)
	c.Hub.SendToUser(c.Chats.Recipient(room, c.UserID), payload)
}

func (c *Client) processReadReceipt(wsMsg *WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := c.Chats.GetRoom(ctx, wsMsg.ChatRoomID, c.UserID)
	if err != nil {
		return
	}

	if err := c.Chats.MarkRead(ctx, wsMsg.ChatRoomID, c.UserID); err != nil {
		logrus.WithError(err).Warn("Failed to mark chat messages read")
		return
	}

	receipt, _ := json.Marshal(map[string]interface{}{
		"type":         "read_receipt",
		"chat_room_id": wsMsg.ChatRoomID,
		"read_by":      c.UserID,
	})
	c.Hub.SendToUser(c.Chats.Recipient(room, c.UserID), receipt)
}

func (c *Client) sendError(message string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"type":  "error",
		"error": message,
	})
	c.enqueue(payload)
}
