// internal/services/product_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a standalone product", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		product, err := svc.CreateProduct(ctx, owner.ID, &CreateProductRequest{
			Title:      "Walnut bookshelf",
			PriceCents: 4500,
			Tags:       []string{"furniture", "wood"},
		})
		require.NoError(t, err)
		assert.Equal(t, models.ProductStatusActive, product.Status)
		assert.Nil(t, product.ListingID)
	})

	t.Run("attaches to an owned listing", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		listings := NewListingService(db, nil, time.Minute)
		svc := NewProductService(db, listings)

		listing, err := listings.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
		require.NoError(t, err)

		product, err := svc.CreateProduct(ctx, owner.ID, &CreateProductRequest{
			ListingID:  &listing.ID,
			Title:      "Walnut bookshelf",
			PriceCents: 4500,
		})
		require.NoError(t, err)
		require.NotNil(t, product.ListingID)
		assert.Equal(t, listing.ID, *product.ListingID)
	})

	t.Run("refuses someone else's listing", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		stranger := createTestUser(t, db, "stranger@example.com")
		listings := NewListingService(db, nil, time.Minute)
		svc := NewProductService(db, listings)

		listing, err := listings.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
		require.NoError(t, err)

		_, err = svc.CreateProduct(ctx, stranger.ID, &CreateProductRequest{
			ListingID:  &listing.ID,
			Title:      "Walnut bookshelf",
			PriceCents: 4500,
		})
		assert.ErrorIs(t, err, ErrNotListingOwner)
	})
}

func TestSearchProducts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	svc := NewProductService(db, NewListingService(db, nil, time.Minute))

	mk := func(title string, price int64, status models.ProductStatus) {
		p := &models.Product{OwnerID: owner.ID, Title: title, PriceCents: price, Status: status}
		require.NoError(t, db.Create(p).Error)
	}
	mk("Walnut bookshelf", 4500, models.ProductStatusActive)
	mk("Oak desk", 12000, models.ProductStatusActive)
	mk("Broken lamp", 500, models.ProductStatusRemoved)

	t.Run("defaults to active products", func(t *testing.T) {
		results, total, err := svc.SearchProducts(ctx, ProductSearchParams{
			PaginationParams: utils.PaginationParams{Page: 1, Limit: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, results, 2)
	})

	t.Run("filters by price range", func(t *testing.T) {
		min := int64(5000)
		results, total, err := svc.SearchProducts(ctx, ProductSearchParams{
			PaginationParams: utils.PaginationParams{Page: 1, Limit: 20},
			PriceMin:         &min,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, results, 1)
		assert.Equal(t, "Oak desk", results[0].Title)
	})

	t.Run("explicit status filter", func(t *testing.T) {
		removed := models.ProductStatusRemoved
		_, total, err := svc.SearchProducts(ctx, ProductSearchParams{
			PaginationParams: utils.PaginationParams{Page: 1, Limit: 20},
			Status:           &removed,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})
}

func TestProductImages(t *testing.T) {
	ctx := context.Background()

	upload := func(n int) []UploadResult {
		out := make([]UploadResult, n)
		for i := range out {
			out[i] = UploadResult{
				URL:      "https://cdn.example.com/img" + uuid.NewString() + ".jpg",
				Key:      "product_images/" + uuid.NewString() + ".jpg",
				Size:     1024,
				MimeType: "image/jpeg",
			}
		}
		return out
	}

	imageOrder := func(t *testing.T, svc *ProductService, productID uuid.UUID) []uuid.UUID {
		t.Helper()
		product, err := svc.GetProduct(ctx, productID)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(product.Images))
		for _, img := range product.Images {
			ids = append(ids, img.ID)
		}
		return ids
	}

	t.Run("first image becomes the cover", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		images, err := svc.AddImages(ctx, product.ID, owner.ID, upload(2))
		require.NoError(t, err)
		require.Len(t, images, 2)
		assert.Equal(t, 0, images[0].SortOrder)
		assert.Equal(t, 1, images[1].SortOrder)

		fresh, err := svc.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, images[0].URL, fresh.CoverImageURL)
	})

	t.Run("removing the cover promotes the next image", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		images, err := svc.AddImages(ctx, product.ID, owner.ID, upload(3))
		require.NoError(t, err)

		_, err = svc.RemoveImage(ctx, product.ID, images[0].ID, owner.ID)
		require.NoError(t, err)

		fresh, err := svc.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		require.Len(t, fresh.Images, 2)
		assert.Equal(t, 0, fresh.Images[0].SortOrder)
		assert.Equal(t, 1, fresh.Images[1].SortOrder)
		assert.Equal(t, images[1].URL, fresh.CoverImageURL)
	})

	t.Run("removing the last image clears the cover", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		images, err := svc.AddImages(ctx, product.ID, owner.ID, upload(1))
		require.NoError(t, err)

		_, err = svc.RemoveImage(ctx, product.ID, images[0].ID, owner.ID)
		require.NoError(t, err)

		fresh, err := svc.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Empty(t, fresh.Images)
		assert.Empty(t, fresh.CoverImageURL)
	})

	t.Run("reorder applies the requested order", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		images, err := svc.AddImages(ctx, product.ID, owner.ID, upload(3))
		require.NoError(t, err)

		reversed := []uuid.UUID{images[2].ID, images[1].ID, images[0].ID}
		require.NoError(t, svc.ReorderImages(ctx, product.ID, owner.ID, reversed))

		assert.Equal(t, reversed, imageOrder(t, svc, product.ID))

		fresh, err := svc.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, images[2].URL, fresh.CoverImageURL)
	})

	t.Run("reorder rejects a partial id list", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		images, err := svc.AddImages(ctx, product.ID, owner.ID, upload(2))
		require.NoError(t, err)

		err = svc.ReorderImages(ctx, product.ID, owner.ID, []uuid.UUID{images[0].ID})
		assert.ErrorIs(t, err, ErrIncompleteReorder)
	})

	t.Run("only the owner may manage images", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		stranger := createTestUser(t, db, "stranger@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewProductService(db, NewListingService(db, nil, time.Minute))

		_, err := svc.AddImages(ctx, product.ID, stranger.ID, upload(1))
		assert.ErrorIs(t, err, ErrNotProductOwner)
	})
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	product := createTestProduct(t, db, owner.ID)
	interests := NewInterestService(db, nil, nil)
	svc := NewProductService(db, NewListingService(db, nil, time.Minute))

	_, err := interests.Join(ctx, joinReq(product.ID, "Alice", "+15551230001", "", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, product.ID, owner.ID, false))

	_, err = svc.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	// Interests soft-delete with the product.
	var count int64
	require.NoError(t, db.Model(&models.BuyerInterest{}).
		Where("product_id = ?", product.ID).
		Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
