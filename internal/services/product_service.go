// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

var (
	ErrImageNotFound     = errors.New("product image not found")
	ErrInvalidStatus     = errors.New("invalid product status")
	ErrIncompleteReorder = errors.New("reorder must include every image of the product")
)

type ProductService struct {
	db       *gorm.DB
	listings *ListingService
}

type CreateProductRequest struct {
	ListingID   *uuid.UUID `json:"listing_id,omitempty"`
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description string     `json:"description,omitempty"`
	PriceCents  int64      `json:"price_cents" validate:"min=0"`
	Tags        []string   `json:"tags,omitempty"`
}

type UpdateProductRequest struct {
	ListingID   *uuid.UUID           `json:"listing_id,omitempty"`
	Title       string               `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description *string              `json:"description,omitempty"`
	PriceCents  *int64               `json:"price_cents,omitempty" validate:"omitempty,min=0"`
	Tags        []string             `json:"tags,omitempty"`
	Status      models.ProductStatus `json:"status,omitempty"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	OwnerID   *uuid.UUID            `json:"owner_id,omitempty"`
	ListingID *uuid.UUID            `json:"listing_id,omitempty"`
	Status    *models.ProductStatus `json:"status,omitempty"`
	PriceMin  *int64                `json:"price_min,omitempty"`
	PriceMax  *int64                `json:"price_max,omitempty"`
	Tags      []string              `json:"tags,omitempty"`
}

func NewProductService(db *gorm.DB, listings *ListingService) *ProductService {
	return &ProductService{
		db:       db,
		listings: listings,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, ownerID uuid.UUID, req *CreateProductRequest) (*models.Product, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.ListingID != nil {
		var listing models.Listing
		if err := s.db.WithContext(ctx).First(&listing, "id = ?", *req.ListingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
		if listing.OwnerID != ownerID {
			return nil, ErrNotListingOwner
		}
	}

	product := &models.Product{
		OwnerID:     ownerID,
		ListingID:   req.ListingID,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Tags:        req.Tags,
		Status:      models.ProductStatusActive,
	}

	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.invalidateListing(ctx, req.ListingID)

	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Owner").
		First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, isAdmin bool, req *UpdateProductRequest) (*models.Product, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !isAdmin && product.OwnerID != ownerID {
		return nil, ErrNotProductOwner
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.PriceCents != nil {
		updates["price_cents"] = *req.PriceCents
	}
	if req.Tags != nil {
		updates["tags"] = req.Tags
	}
	if req.ListingID != nil {
		var listing models.Listing
		if err := s.db.WithContext(ctx).First(&listing, "id = ?", *req.ListingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
		if !isAdmin && listing.OwnerID != ownerID {
			return nil, ErrNotListingOwner
		}
		updates["listing_id"] = *req.ListingID
	}
	if req.Status != "" {
		switch req.Status {
		case models.ProductStatusActive, models.ProductStatusSold, models.ProductStatusRemoved:
			updates["status"] = req.Status
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
		}
	}

	if err := s.db.WithContext(ctx).Model(&product).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.invalidateListing(ctx, product.ListingID)
	if req.ListingID != nil {
		s.invalidateListing(ctx, req.ListingID)
	}

	return s.GetProduct(ctx, id)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, isAdmin bool) error {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if !isAdmin && product.OwnerID != ownerID {
		return ErrNotProductOwner
	}

	// Soft delete; images and interests cascade with the product.
	if err := s.db.WithContext(ctx).Select("Images", "Interests").Delete(&product).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.invalidateListing(ctx, product.ListingID)

	return nil
}

func (s *ProductService) SearchProducts(ctx context.Context, params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{}).Preload("Owner")

	// Apply filters
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}

	if params.ListingID != nil {
		query = query.Where("listing_id = ?", *params.ListingID)
	}

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	} else {
		// Default to active products only
		query = query.Where("status = ?", models.ProductStatusActive)
	}

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}

	if params.PriceMin != nil {
		query = query.Where("price_cents >= ?", *params.PriceMin)
	}

	if params.PriceMax != nil {
		query = query.Where("price_cents <= ?", *params.PriceMax)
	}

	if len(params.Tags) > 0 {
		query = query.Where("tags && ?", params.Tags)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// Apply sorting and pagination
	allowedSortFields := []string{"created_at", "updated_at", "title", "price_cents"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

func (s *ProductService) GetOwnerProducts(ctx context.Context, ownerID uuid.UUID, params utils.PaginationParams) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{}).Where("owner_id = ?", ownerID)

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

// AddImages appends uploaded images to the product's ordered image set and
// refreshes the derived cover URL.
func (s *ProductService) AddImages(ctx context.Context, productID uuid.UUID, ownerID uuid.UUID, uploads []UploadResult) ([]models.ProductImage, error) {
	var created []models.ProductImage

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if product.OwnerID != ownerID {
			return ErrNotProductOwner
		}

		var next int
		if err := tx.Model(&models.ProductImage{}).
			Where("product_id = ?", productID).
			Select("COALESCE(MAX(sort_order) + 1, 0)").
			Scan(&next).Error; err != nil {
			return fmt.Errorf("failed to compute image order: %w", err)
		}

		for i, upload := range uploads {
			image := models.ProductImage{
				ProductID:  productID,
				URL:        upload.URL,
				StorageKey: upload.Key,
				SortOrder:  next + i,
			}
			if err := tx.Create(&image).Error; err != nil {
				return fmt.Errorf("failed to save image record: %w", err)
			}
			created = append(created, image)
		}

		return refreshCoverImage(tx, productID)
	})

	if err != nil {
		return nil, err
	}

	return created, nil
}

// RemoveImage deletes one image and closes the sort-order gap so the
// remaining images stay contiguous from zero.
func (s *ProductService) RemoveImage(ctx context.Context, productID, imageID uuid.UUID, ownerID uuid.UUID) (*models.ProductImage, error) {
	var removed models.ProductImage

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if product.OwnerID != ownerID {
			return ErrNotProductOwner
		}

		if err := tx.First(&removed, "id = ? AND product_id = ?", imageID, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrImageNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if err := tx.Unscoped().Delete(&removed).Error; err != nil {
			return fmt.Errorf("failed to delete image: %w", err)
		}

		var rest []models.ProductImage
		if err := tx.Where("product_id = ?", productID).Order("sort_order ASC").Find(&rest).Error; err != nil {
			return fmt.Errorf("failed to fetch images: %w", err)
		}
		for i := range rest {
			if rest[i].SortOrder == i {
				continue
			}
			if err := tx.Model(&models.ProductImage{}).Where("id = ?", rest[i].ID).Update("sort_order", i).Error; err != nil {
				return fmt.Errorf("failed to reorder images: %w", err)
			}
		}

		return refreshCoverImage(tx, productID)
	})

	if err != nil {
		return nil, err
	}

	return &removed, nil
}

// ReorderImages applies a full new ordering. ids must be a permutation of
// the product's current image ids.
func (s *ProductService) ReorderImages(ctx context.Context, productID uuid.UUID, ownerID uuid.UUID, ids []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if product.OwnerID != ownerID {
			return ErrNotProductOwner
		}

		var count int64
		if err := tx.Model(&models.ProductImage{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if int(count) != len(ids) {
			return fmt.Errorf("%w: expected %d", ErrIncompleteReorder, count)
		}

		// Park orders in negative space first so intermediate states never
		// trip the (product_id, sort_order) unique index.
		for i, id := range ids {
			res := tx.Model(&models.ProductImage{}).
				Where("id = ? AND product_id = ?", id, productID).
				Update("sort_order", -(i + 1))
			if res.Error != nil {
				return fmt.Errorf("failed to reorder images: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrImageNotFound
			}
		}
		for i, id := range ids {
			if err := tx.Model(&models.ProductImage{}).
				Where("id = ?", id).
				Update("sort_order", i).Error; err != nil {
				return fmt.Errorf("failed to reorder images: %w", err)
			}
		}

		return refreshCoverImage(tx, productID)
	})
}

// refreshCoverImage re-derives Product.CoverImageURL from the image at sort
// order 0, or clears it when the product has no images left.
func refreshCoverImage(tx *gorm.DB, productID uuid.UUID) error {
	var cover models.ProductImage
	err := tx.Where("product_id = ?", productID).Order("sort_order ASC").First(&cover).Error

	url := ""
	if err == nil {
		url = cover.URL
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to derive cover image: %w", err)
	}

	if err := tx.Model(&models.Product{}).Where("id = ?", productID).
		Update("cover_image_url", url).Error; err != nil {
		return fmt.Errorf("failed to update cover image: %w", err)
	}

	return nil
}

func (s *ProductService) invalidateListing(ctx context.Context, listingID *uuid.UUID) {
	if s.listings != nil && listingID != nil {
		s.listings.InvalidateByID(ctx, *listingID)
	}
}
