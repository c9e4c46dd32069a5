// internal/services/sweeper_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacevox/spacevox-backend/internal/models"
)

func TestSweeper(t *testing.T) {
	t.Run("sweeps immediately on start", func(t *testing.T) {
		db := newTestDB(t)
		owner := createTestUser(t, db, "owner@example.com")
		product := createTestProduct(t, db, owner.ID)
		svc := NewInterestService(db, nil, nil)

		interest := &models.BuyerInterest{
			ProductID:  product.ID,
			BuyerName:  "Alice",
			Phone:      "+15551230001",
			PickupTime: time.Now().Add(-time.Hour),
			Status:     models.InterestStatusActive,
			Position:   intPtr(0),
		}
		require.NoError(t, db.Create(interest).Error)

		sweeper := NewSweeper(svc, time.Hour)
		sweeper.Start()
		defer sweeper.Stop()

		assert.Eventually(t, func() bool {
			var swept models.BuyerInterest
			if err := db.First(&swept, "id = ?", interest.ID).Error; err != nil {
				return false
			}
			return swept.Status == models.InterestStatusMissed
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("stop returns once the loop has drained", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewInterestService(db, nil, nil)

		sweeper := NewSweeper(svc, 10*time.Millisecond)
		sweeper.Start()
		time.Sleep(50 * time.Millisecond)

		stopped := make(chan struct{})
		go func() {
			sweeper.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return")
		}
	})
}

func intPtr(v int) *int { return &v }
