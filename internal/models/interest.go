// internal/models/interest.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// BuyerInterest is a buyer's claim on a pickup-queue slot for a product.
//
// Position is non-nil only while Status is active. For a given product the
// set of (product_id, position) pairs among active interests is unique
// (partial unique index, see database.createIndexes) and forms a dense
// zero-based ordering after every successful mutation.
type BuyerInterest struct {
	BaseModel
	ProductID       uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index"`
	BuyerUserID     *uuid.UUID     `json:"buyer_user_id,omitempty" gorm:"type:uuid;index"`
	BuyerName       string         `json:"buyer_name" gorm:"size:100;not null"`
	Phone           string         `json:"phone,omitempty" gorm:"size:20;index"`
	Email           string         `json:"email,omitempty" gorm:"size:255;index"`
	SMSOptIn        bool           `json:"sms_opt_in" gorm:"default:false"`
	PickupTime      time.Time      `json:"pickup_time" gorm:"not null;index"`
	OfferPriceCents *int64         `json:"offer_price_cents,omitempty"`
	Status          InterestStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Position        *int           `json:"position,omitempty"`

	// Relationships
	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// IsActive reports whether the interest still holds a queue slot.
func (b *BuyerInterest) IsActive() bool {
	return b.Status == InterestStatusActive
}
