// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the id client-side so inserts behave the same on
// every backend.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusArchived ListingStatus = "archived"
)

type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "active"
	ProductStatusSold    ProductStatus = "sold"
	ProductStatusRemoved ProductStatus = "removed"
)

type InterestStatus string

const (
	InterestStatusActive    InterestStatus = "active"
	InterestStatusMissed    InterestStatus = "missed"
	InterestStatusCompleted InterestStatus = "completed"
	InterestStatusDenied    InterestStatus = "denied"
)
