// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom pairs a buyer with a product's seller. One room per
// (product, buyer) so pickup coordination stays scoped to a single item.
type ChatRoom struct {
	BaseModel
	ProductID          uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_chat_rooms_product_buyer"`
	BuyerID            uuid.UUID  `json:"buyer_id" gorm:"type:uuid;not null;uniqueIndex:idx_chat_rooms_product_buyer"`
	SellerID           uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	LastMessageContent string     `json:"last_message_content" gorm:"size:512"`
	LastMessageAt      *time.Time `json:"last_message_at"`

	// Relationships
	Product  Product       `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Buyer    User          `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller   User          `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Messages []ChatMessage `json:"messages,omitempty" gorm:"foreignKey:ChatRoomID;constraint:OnDelete:CASCADE"`
}

type ChatMessage struct {
	BaseModel
	ChatRoomID uuid.UUID `json:"chat_room_id" gorm:"type:uuid;not null;index"`
	SenderID   uuid.UUID `json:"sender_id" gorm:"type:uuid;not null;index"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	IsRead     bool      `json:"is_read" gorm:"default:false;index"`

	// Relationships
	Sender User `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}

// Participant reports whether userID may read or post in the room.
func (r *ChatRoom) Participant(userID uuid.UUID) bool {
	return r.BuyerID == userID || r.SellerID == userID
}
