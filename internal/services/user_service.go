// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

var (
	ErrWrongPassword  = errors.New("current password is incorrect")
	ErrNoLocalAccount = errors.New("account uses google sign-in and has no password")
)

type UserService struct {
	db *gorm.DB
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,min=2,max=100"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,e164"`
	AvatarURL   string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
}

// ProfileStats summarizes a user's activity for the profile screen.
type ProfileStats struct {
	ListingCount        int64 `json:"listing_count"`
	ProductCount        int64 `json:"product_count"`
	ActiveInterestCount int64 `json:"active_interest_count"`
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, *ProfileStats, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	stats := &ProfileStats{}
	s.db.WithContext(ctx).Model(&models.Listing{}).Where("owner_id = ?", userID).Count(&stats.ListingCount)
	s.db.WithContext(ctx).Model(&models.Product{}).Where("owner_id = ?", userID).Count(&stats.ProductCount)
	s.db.WithContext(ctx).Model(&models.BuyerInterest{}).
		Where("buyer_user_id = ? AND status = ?", userID, models.InterestStatusActive).
		Count(&stats.ActiveInterestCount)

	return &user, stats, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*models.User, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	updates := make(map[string]interface{})
	if req.DisplayName != "" {
		updates["display_name"] = req.DisplayName
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.AvatarURL != "" {
		updates["avatar_url"] = req.AvatarURL
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}

	return &user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if user.IsOAuthOnly() {
		return ErrNoLocalAccount
	}

	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		return ErrWrongPassword
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", user.PasswordHash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// GetMyInterests lists the queue entries a signed-in buyer has placed,
// newest first, with the product attached.
func (s *UserService) GetMyInterests(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.BuyerInterest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.BuyerInterest{}).
		Where("buyer_user_id = ?", userID).
		Preload("Product")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count interests: %w", err)
	}

	query = query.Order("created_at DESC")
	query = utils.ApplyPagination(query, params)

	var interests []models.BuyerInterest
	if err := query.Find(&interests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch interests: %w", err)
	}

	return interests, total, nil
}
