// internal/services/listing_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacevox/spacevox-backend/internal/models"
)

func TestCreateListing(t *testing.T) {
	ctx := context.Background()

	t.Run("creates with a fresh share key", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewListingService(db, nil, time.Minute)

		listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{
			Title:       "Garage sale",
			Description: "Everything must go",
		})
		require.NoError(t, err)
		assert.Equal(t, models.ListingStatusActive, listing.Status)
		assert.NotEmpty(t, listing.ShareKey)
		assert.Equal(t, owner.ID, listing.OwnerID)
	})

	t.Run("two listings never share a key", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewListingService(db, nil, time.Minute)

		a, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "First sale"})
		require.NoError(t, err)
		b, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Second sale"})
		require.NoError(t, err)
		assert.NotEqual(t, a.ShareKey, b.ShareKey)
	})

	t.Run("rejects a too-short title", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewListingService(db, nil, time.Minute)

		_, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "ab"})
		assert.Error(t, err)
	})
}

func TestUpdateListing(t *testing.T) {
	ctx := context.Background()

	t.Run("owner can archive", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewListingService(db, nil, time.Minute)

		listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
		require.NoError(t, err)

		updated, err := svc.UpdateListing(ctx, listing.ID, owner.ID, false, &UpdateListingRequest{
			Status: models.ListingStatusArchived,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ListingStatusArchived, updated.Status)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		stranger := createTestUser(t, db, "stranger@example.com")
		svc := NewListingService(db, nil, time.Minute)

		listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
		require.NoError(t, err)

		_, err = svc.UpdateListing(ctx, listing.ID, stranger.ID, false, &UpdateListingRequest{Title: "Hijacked"})
		assert.ErrorIs(t, err, ErrNotListingOwner)

		// Admin override still works.
		_, err = svc.UpdateListing(ctx, listing.ID, stranger.ID, true, &UpdateListingRequest{Title: "Moderated title"})
		assert.NoError(t, err)
	})
}

func TestRotateShareKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	svc := NewListingService(db, nil, time.Minute)

	listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
	require.NoError(t, err)
	oldKey := listing.ShareKey

	rotated, err := svc.RotateShareKey(ctx, listing.ID, owner.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, rotated.ShareKey)

	// The old key is dead.
	_, err = svc.GetSharedListing(ctx, oldKey)
	assert.ErrorIs(t, err, ErrListingNotFound)

	shared, err := svc.GetSharedListing(ctx, rotated.ShareKey)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, shared.ID)
}

func TestGetSharedListing(t *testing.T) {
	ctx := context.Background()

	t.Run("serves only active products and hides owner contact", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewListingService(db, nil, time.Minute)

		listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
		require.NoError(t, err)

		active := createTestProduct(t, db, owner.ID)
		sold := createTestProduct(t, db, owner.ID)
		require.NoError(t, db.Model(active).Update("listing_id", listing.ID).Error)
		require.NoError(t, db.Model(sold).Updates(map[string]interface{}{
			"listing_id": listing.ID,
			"status":     models.ProductStatusSold,
		}).Error)

		shared, err := svc.GetSharedListing(ctx, listing.ShareKey)
		require.NoError(t, err)
		assert.Equal(t, owner.DisplayName, shared.OwnerName)
		require.Len(t, shared.Products, 1)
		assert.Equal(t, active.ID, shared.Products[0].ID)
	})

	t.Run("archived listings are not shared", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		svc := NewListingService(db, nil, time.Minute)

		listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
		require.NoError(t, err)
		_, err = svc.UpdateListing(ctx, listing.ID, owner.ID, false, &UpdateListingRequest{
			Status: models.ListingStatusArchived,
		})
		require.NoError(t, err)

		_, err = svc.GetSharedListing(ctx, listing.ShareKey)
		assert.ErrorIs(t, err, ErrListingNotFound)
	})

	t.Run("unknown key", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewListingService(db, nil, time.Minute)

		_, err := svc.GetSharedListing(ctx, "no-such-key")
		assert.ErrorIs(t, err, ErrListingNotFound)
	})
}

func TestDeleteListing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	svc := NewListingService(db, nil, time.Minute)

	listing, err := svc.CreateListing(ctx, owner.ID, &CreateListingRequest{Title: "Garage sale"})
	require.NoError(t, err)
	product := createTestProduct(t, db, owner.ID)
	require.NoError(t, db.Model(product).Update("listing_id", listing.ID).Error)

	require.NoError(t, svc.DeleteListing(ctx, listing.ID, owner.ID, false))

	_, err = svc.GetListing(ctx, listing.ID)
	assert.ErrorIs(t, err, ErrListingNotFound)

	// The product survives, detached from the listing.
	var detached models.Product
	require.NoError(t, db.First(&detached, "id = ?", product.ID).Error)
	assert.Nil(t, detached.ListingID)
}
