// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	ListingID   *uuid.UUID     `json:"listing_id,omitempty" gorm:"type:uuid;index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	PriceCents  int64          `json:"price_cents" gorm:"not null;default:0"`
	Status      ProductStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`

	// CoverImageURL mirrors the URL of the image with sort order 0. It is
	// recomputed whenever the image set changes so list views never have to
	// join against product_images.
	CoverImageURL string `json:"cover_image_url,omitempty" gorm:"size:512"`

	// Relationships
	Owner     User            `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Listing   *Listing        `json:"listing,omitempty" gorm:"foreignKey:ListingID"`
	Images    []ProductImage  `json:"images,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Interests []BuyerInterest `json:"interests,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// ProductImage is an ordered image attached to a product. SortOrder is unique
// per product; the image at sort order 0 is the product's cover.
type ProductImage struct {
	BaseModel
	ProductID  uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_product_images_order"`
	URL        string    `json:"url" gorm:"size:512;not null"`
	StorageKey string    `json:"storage_key" gorm:"size:512"`
	SortOrder  int       `json:"sort_order" gorm:"not null;uniqueIndex:idx_product_images_order"`
}
