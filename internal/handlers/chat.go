// internal/handlers/chat.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// POST /v1/chats
func (h *ChatHandler) OpenRoom(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		ProductID uuid.UUID `json:"product_id" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	room, err := h.chatService.OpenRoom(c.Request.Context(), req.ProductID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"room": room,
	})
}

// GET /v1/chats
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	rooms, total, err := h.chatService.ListRooms(c.Request.Context(), userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(rooms, total, params))
}

// GET /v1/chats/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid chat room ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	messages, total, err := h.chatService.GetMessages(c.Request.Context(), roomID, userID, params)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(messages, total, params))
}

// POST /v1/chats/:id/messages
//
// REST fallback for clients without a websocket connection.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid chat room ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Content string `json:"content" validate:"required,max=4000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	message, err := h.chatService.SaveMessage(c.Request.Context(), roomID, userID, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": message,
	})
}

// GET /v1/chats/unread-count
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	count, err := h.chatService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"unread_count": count,
	})
}

func (h *ChatHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrChatRoomNotFound):
		utils.NotFoundResponse(c, "Chat room")
	case errors.Is(err, services.ErrProductNotFound):
		utils.NotFoundResponse(c, "Product")
	case errors.Is(err, services.ErrNotChatMember):
		utils.ForbiddenResponse(c, err.Error())
	case errors.Is(err, services.ErrChatWithSelf), errors.Is(err, services.ErrEmptyMessage):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		logrus.WithError(err).Error("Unhandled chat error")
		utils.InternalErrorResponse(c, "Something went wrong")
	}
}
