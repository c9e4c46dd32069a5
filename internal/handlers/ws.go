// internal/handlers/ws.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the frontend origin; token auth already
	// gates the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub         *ws.Hub
	chatService *services.ChatService
}

func NewWSHandler(hub *ws.Hub, chatService *services.ChatService) *WSHandler {
	return &WSHandler{
		hub:         hub,
		chatService: chatService,
	}
}

// GET /v1/ws
func (h *WSHandler) Serve(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	client := &ws.Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
		Chats:  h.chatService,
	}

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
