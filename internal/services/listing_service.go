// internal/services/listing_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotListingOwner = errors.New("user does not own this listing")
)

// ListingService manages seller listings and the share-key lookup path that
// buyers hit from shared links and QR codes. Shared lookups are read-through
// cached in redis because they are unauthenticated and take the bulk of the
// read traffic.
type ListingService struct {
	db       *gorm.DB
	redis    *redis.Client
	cacheTTL time.Duration
}

type CreateListingRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description,omitempty"`
}

type UpdateListingRequest struct {
	Title       string               `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description *string              `json:"description,omitempty"`
	Status      models.ListingStatus `json:"status,omitempty"`
}

// SharedListing is the public shape served to anonymous visitors. It omits
// owner contact details and non-active products.
type SharedListing struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	OwnerName   string           `json:"owner_name"`
	Products    []models.Product `json:"products"`
}

func NewListingService(db *gorm.DB, redisClient *redis.Client, cacheTTL time.Duration) *ListingService {
	return &ListingService{
		db:       db,
		redis:    redisClient,
		cacheTTL: cacheTTL,
	}
}

func (s *ListingService) CreateListing(ctx context.Context, ownerID uuid.UUID, req *CreateListingRequest) (*models.Listing, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	shareKey, err := utils.GenerateShareKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate share key: %w", err)
	}

	listing := &models.Listing{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		ShareKey:    shareKey,
		Status:      models.ListingStatusActive,
	}

	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Owner").
		First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &listing, nil
}

func (s *ListingService) GetOwnerListings(ctx context.Context, ownerID uuid.UUID, params utils.PaginationParams) ([]models.Listing, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Listing{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

func (s *ListingService) UpdateListing(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, isAdmin bool, req *UpdateListingRequest) (*models.Listing, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var listing models.Listing
	if err := s.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !isAdmin && listing.OwnerID != ownerID {
		return nil, ErrNotListingOwner
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != "" {
		switch req.Status {
		case models.ListingStatusActive, models.ListingStatusArchived:
			updates["status"] = req.Status
		default:
			return nil, fmt.Errorf("invalid status %q", req.Status)
		}
	}

	if err := s.db.WithContext(ctx).Model(&listing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	s.invalidateShareKey(ctx, listing.ShareKey)

	return s.GetListing(ctx, id)
}

func (s *ListingService) DeleteListing(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, isAdmin bool) error {
	var listing models.Listing
	if err := s.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if !isAdmin && listing.OwnerID != ownerID {
		return ErrNotListingOwner
	}

	// Products survive the listing; they just become unlisted.
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("listing_id = ?", id).
			Update("listing_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach products: %w", err)
		}
		if err := tx.Delete(&listing).Error; err != nil {
			return fmt.Errorf("failed to delete listing: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	s.invalidateShareKey(ctx, listing.ShareKey)

	return nil
}

// RotateShareKey replaces the listing's share key, killing every previously
// shared link at once.
func (s *ListingService) RotateShareKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if listing.OwnerID != ownerID {
		return nil, ErrNotListingOwner
	}

	newKey, err := utils.GenerateShareKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate share key: %w", err)
	}

	oldKey := listing.ShareKey
	listing.ShareKey = newKey

	if err := s.db.WithContext(ctx).Model(&listing).Update("share_key", listing.ShareKey).Error; err != nil {
		return nil, fmt.Errorf("failed to rotate share key: %w", err)
	}

	s.invalidateShareKey(ctx, oldKey)

	return &listing, nil
}

// GetSharedListing resolves a share key for an anonymous visitor, serving
// from redis when possible. Archived listings resolve like missing ones so
// an old link leaks nothing.
func (s *ListingService) GetSharedListing(ctx context.Context, shareKey string) (*SharedListing, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, sharedListingKey(shareKey)).Result()
		if err == nil {
			var shared SharedListing
			if err := json.Unmarshal([]byte(cached), &shared); err == nil {
				return &shared, nil
			}
			logrus.WithField("share_key", shareKey).Warn("Dropping undecodable shared-listing cache entry")
			s.redis.Del(ctx, sharedListingKey(shareKey))
		} else if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).Warn("Redis unavailable, falling through to database")
		}
	}

	var listing models.Listing
	if err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Products", "status = ?", models.ProductStatusActive).
		First(&listing, "share_key = ? AND status = ?", shareKey, models.ListingStatusActive).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	shared := &SharedListing{
		ID:          listing.ID,
		Title:       listing.Title,
		Description: listing.Description,
		OwnerName:   listing.Owner.DisplayName,
		Products:    listing.Products,
	}

	if s.redis != nil {
		if payload, err := json.Marshal(shared); err == nil {
			if err := s.redis.Set(ctx, sharedListingKey(shareKey), payload, s.cacheTTL).Err(); err != nil {
				logrus.WithError(err).Warn("Failed to cache shared listing")
			}
		}
	}

	return shared, nil
}

// InvalidateByID drops the cached shared view for a listing after one of its
// products changes.
func (s *ListingService) InvalidateByID(ctx context.Context, listingID uuid.UUID) {
	if s.redis == nil {
		return
	}

	var listing models.Listing
	if err := s.db.WithContext(ctx).Select("share_key").First(&listing, "id = ?", listingID).Error; err != nil {
		return
	}

	s.invalidateShareKey(ctx, listing.ShareKey)
}

func (s *ListingService) invalidateShareKey(ctx context.Context, shareKey string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, sharedListingKey(shareKey)).Err(); err != nil {
		logrus.WithError(err).WithField("share_key", shareKey).Warn("Failed to invalidate shared listing cache")
	}
}

func sharedListingKey(shareKey string) string {
	return "shared_listing:" + shareKey
}
