// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	DisplayName  string     `json:"display_name" gorm:"size:100;not null"`
	Phone        string     `json:"phone,omitempty" gorm:"size:20"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);default:'user'"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	GoogleID     *string    `json:"-" gorm:"uniqueIndex;size:255"`
	AvatarURL    string     `json:"avatar_url,omitempty" gorm:"size:512"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Listings []Listing `json:"listings,omitempty" gorm:"foreignKey:OwnerID"`
	Products []Product `json:"products,omitempty" gorm:"foreignKey:OwnerID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// IsOAuthOnly reports whether the account was created through Google sign-in
// and has no local password set.
func (u *User) IsOAuthOnly() bool {
	return u.PasswordHash == "" && u.GoogleID != nil
}
