// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

type AdminService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type AdminDashboardStats struct {
	TotalUsers         int64 `json:"total_users"`
	ActiveUsers        int64 `json:"active_users"`
	NewUsersThisMonth  int64 `json:"new_users_this_month"`
	TotalListings      int64 `json:"total_listings"`
	TotalProducts      int64 `json:"total_products"`
	ActiveProducts     int64 `json:"active_products"`
	SoldProducts       int64 `json:"sold_products"`
	ActiveInterests    int64 `json:"active_interests"`
	CompletedPickups   int64 `json:"completed_pickups"`
	MissedPickups      int64 `json:"missed_pickups"`
	InterestsThisMonth int64 `json:"interests_this_month"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	Role          *models.UserRole   `json:"role,omitempty"`
	Status        *models.UserStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required"`
	Reason string            `json:"reason,omitempty" validate:"max=500"`
}

func NewAdminService(db *gorm.DB, notificationService *NotificationService) *AdminService {
	return &AdminService{
		db:                  db,
		notificationService: notificationService,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	db := s.db.WithContext(ctx)

	// User statistics
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&stats.ActiveUsers)
	db.Model(&models.User{}).Where("created_at >= ?", monthStart).Count(&stats.NewUsersThisMonth)

	// Inventory statistics
	db.Model(&models.Listing{}).Count(&stats.TotalListings)
	db.Model(&models.Product{}).Count(&stats.TotalProducts)
	db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive).Count(&stats.ActiveProducts)
	db.Model(&models.Product{}).Where("status = ?", models.ProductStatusSold).Count(&stats.SoldProducts)

	// Queue statistics
	db.Model(&models.BuyerInterest{}).Where("status = ?", models.InterestStatusActive).Count(&stats.ActiveInterests)
	db.Model(&models.BuyerInterest{}).Where("status = ?", models.InterestStatusCompleted).Count(&stats.CompletedPickups)
	db.Model(&models.BuyerInterest{}).Where("status = ?", models.InterestStatusMissed).Count(&stats.MissedPickups)
	db.Model(&models.BuyerInterest{}).Where("created_at >= ?", monthStart).Count(&stats.InterestsThisMonth)

	return stats, nil
}

// User Management
func (s *AdminService) GetUsers(ctx context.Context, filter AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})

	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.Search != "" {
		searchTerm := "%" + filter.Search + "%"
		query = query.Where("email ILIKE ? OR display_name ILIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"created_at", "email", "display_name", "last_login_at"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *AdminService) UpdateUserStatus(ctx context.Context, userID uuid.UUID, adminID uuid.UUID, req *UpdateUserStatusRequest) (*models.User, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	switch req.Status {
	case models.UserStatusActive, models.UserStatusSuspended:
	default:
		return nil, fmt.Errorf("invalid status %q", req.Status)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if user.ID == adminID {
		return nil, errors.New("admins cannot change their own status")
	}

	oldStatus := user.Status
	if oldStatus == req.Status {
		return &user, nil
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("status", req.Status).Error; err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	user.Status = req.Status

	audit := &models.AuditLog{
		UserID:       &adminID,
		Action:       "user_status_change",
		ResourceType: "user",
		ResourceID:   &userID,
		NewValues: models.JSONB{
			"status": string(req.Status),
			"reason": req.Reason,
		},
	}
	if err := s.db.WithContext(ctx).Create(audit).Error; err != nil {
		logrus.WithError(err).Warn("Failed to write audit log for status change")
	}

	if s.notificationService != nil {
		u := user
		go func() {
			if err := s.notificationService.SendUserStatusChangeNotification(&u, oldStatus, req.Reason); err != nil {
				logrus.WithError(err).Warn("Failed to send status change notification")
			}
		}()
	}

	return &user, nil
}

// Audit Logs
func (s *AdminService) GetAuditLogs(ctx context.Context, params utils.PaginationParams) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if params.Search != "" {
		searchTerm := "%" + params.Search + "%"
		query = query.Where("action ILIKE ? OR resource_type ILIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query = query.Order("created_at DESC")
	query = utils.ApplyPagination(query, params)

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return logs, total, nil
}
