// internal/models/listing.go
package models

import (
	"github.com/google/uuid"
)

// Listing is a named collection of products a seller shares as a unit,
// typically via the share key rendered as a link or QR code.
type Listing struct {
	BaseModel
	OwnerID     uuid.UUID     `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title       string        `json:"title" gorm:"size:255;not null"`
	Description string        `json:"description" gorm:"type:text"`
	ShareKey    string        `json:"share_key" gorm:"uniqueIndex;size:32;not null"`
	Status      ListingStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	Owner    User      `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Products []Product `json:"products,omitempty" gorm:"foreignKey:ListingID"`
}
