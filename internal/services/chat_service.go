// internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

var (
	ErrChatRoomNotFound = errors.New("chat room not found")
	ErrNotChatMember    = errors.New("user is not a participant of this chat")
	ErrChatWithSelf     = errors.New("cannot open a chat on your own product")
	ErrEmptyMessage     = errors.New("message content is empty")
)

// ChatService manages buyer/seller conversations. Each room is pinned to a
// (product, buyer) pair so one buyer asking about two products gets two
// threads.
type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// OpenRoom returns the existing room for this product and buyer, creating it
// on first contact.
func (s *ChatService) OpenRoom(ctx context.Context, productID, buyerID uuid.UUID) (*models.ChatRoom, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if product.OwnerID == buyerID {
		return nil, ErrChatWithSelf
	}

	var room models.ChatRoom
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND buyer_id = ?", productID, buyerID).
		First(&room).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	room = models.ChatRoom{
		ProductID: productID,
		BuyerID:   buyerID,
		SellerID:  product.OwnerID,
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat room: %w", err)
	}

	return &room, nil
}

func (s *ChatService) GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := s.db.WithContext(ctx).
		Preload("Product").
		First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatRoomNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !room.Participant(userID) {
		return nil, ErrNotChatMember
	}

	return &room, nil
}

// ListRooms returns the user's conversations ordered by most recent
// activity, for the chat list screen.
func (s *ChatService) ListRooms(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.ChatRoom, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Preload("Product")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count chat rooms: %w", err)
	}

	query = query.Order("last_message_at DESC NULLS LAST").Order("created_at DESC")
	query = utils.ApplyPagination(query, params)

	var rooms []models.ChatRoom
	if err := query.Find(&rooms).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch chat rooms: %w", err)
	}

	return rooms, total, nil
}

// GetMessages returns the room's history oldest-first and marks the other
// side's messages as read.
func (s *ChatService) GetMessages(ctx context.Context, roomID, userID uuid.UUID, params utils.PaginationParams) ([]models.ChatMessage, int64, error) {
	if _, err := s.GetRoom(ctx, roomID, userID); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("chat_room_id = ?", roomID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query = query.Order("created_at ASC")
	query = utils.ApplyPagination(query, params)

	var messages []models.ChatMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if err := s.MarkRead(ctx, roomID, userID); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// SaveMessage persists an outbound message and refreshes the room preview
// metadata used by the chat list.
func (s *ChatService) SaveMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	room, err := s.GetRoom(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}

	message := &models.ChatMessage{
		ChatRoomID: room.ID,
		SenderID:   senderID,
		Content:    content,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}

		now := time.Now()
		if err := tx.Model(&models.ChatRoom{}).Where("id = ?", room.ID).Updates(map[string]interface{}{
			"last_message_content": content,
			"last_message_at":      now,
		}).Error; err != nil {
			return fmt.Errorf("failed to update chat room metadata: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}

// Recipient returns the other participant of a room relative to userID.
func (s *ChatService) Recipient(room *models.ChatRoom, userID uuid.UUID) uuid.UUID {
	if room.BuyerID == userID {
		return room.SellerID
	}
	return room.BuyerID
}

func (s *ChatService) MarkRead(ctx context.Context, roomID, userID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("chat_room_id = ? AND sender_id != ? AND is_read = ?", roomID, userID, false).
		Update("is_read", true).Error; err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// UnreadCount returns how many messages are waiting for the user across all
// their rooms.
func (s *ChatService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Joins("JOIN chat_rooms ON chat_rooms.id = chat_messages.chat_room_id").
		Where("(chat_rooms.buyer_id = ? OR chat_rooms.seller_id = ?)", userID, userID).
		Where("chat_messages.sender_id != ? AND chat_messages.is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
