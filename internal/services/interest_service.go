// internal/services/interest_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrProductNotActive      = errors.New("product is not accepting pickup requests")
	ErrDuplicateContact      = errors.New("an active pickup request with this phone or email already exists for this product")
	ErrInterestNotFound      = errors.New("pickup request not found")
	ErrNotProductOwner       = errors.New("only the product owner may manage its pickup queue")
	ErrInvalidInterestStatus = errors.New("invalid pickup request status")
)

// InterestService owns the per-product pickup queue: joining, the ordering
// contract, owner-driven status changes, and the missed-pickup sweep.
//
// Every mutation that can touch queue positions runs inside a transaction
// holding the product row lock, so concurrent joins and sweeps for the same
// product are serialized. Positions among active interests stay dense and
// zero-based after every committed mutation.
type InterestService struct {
	db       *gorm.DB
	notifier *NotificationService
	events   QueueEvents
}

// QueueEvents receives queue changes for real-time delivery. The websocket
// hub implements it; a nil implementation is valid.
type QueueEvents interface {
	QueueChanged(ownerID uuid.UUID, productID uuid.UUID, event string, interest *models.BuyerInterest)
}

type JoinQueueRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	// BuyerUserID is set by the handler when the caller is signed in, never
	// taken from the request body.
	BuyerUserID     *uuid.UUID `json:"-"`
	BuyerName       string     `json:"buyer_name" validate:"required,min=1,max=100"`
	Phone           string     `json:"phone,omitempty" validate:"required_without=Email,omitempty,e164"`
	Email           string     `json:"email,omitempty" validate:"required_without=Phone,omitempty,email"`
	SMSOptIn        bool       `json:"sms_opt_in,omitempty"`
	PickupTime      time.Time  `json:"pickup_time" validate:"required"`
	OfferPriceCents *int64     `json:"offer_price_cents,omitempty" validate:"omitempty,min=0"`
}

type UpdateInterestRequest struct {
	Status          models.InterestStatus `json:"status,omitempty"`
	BuyerName       string                `json:"buyer_name,omitempty" validate:"omitempty,min=1,max=100"`
	PickupTime      *time.Time            `json:"pickup_time,omitempty"`
	OfferPriceCents *int64                `json:"offer_price_cents,omitempty" validate:"omitempty,min=0"`
	SMSOptIn        *bool                 `json:"sms_opt_in,omitempty"`
}

func NewInterestService(db *gorm.DB, notifier *NotificationService, events QueueEvents) *InterestService {
	return &InterestService{
		db:       db,
		notifier: notifier,
		events:   events,
	}
}

// lockProduct loads the product row FOR UPDATE inside tx. Holding the row
// lock until commit is what serializes concurrent joins and sweeps for the
// same product.
func (s *InterestService) lockProduct(tx *gorm.DB, productID uuid.UUID, product *models.Product) error {
	q := tx
	// SQLite (used by the test suite) has no row locks; its single-writer
	// transactions give the same serialization.
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	if err := q.First(product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// Join appends a buyer to the tail of a product's pickup queue.
func (s *InterestService) Join(ctx context.Context, req *JoinQueueRequest) (*models.BuyerInterest, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var interest *models.BuyerInterest
	var product models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockProduct(tx, req.ProductID, &product); err != nil {
			return err
		}

		if product.Status != models.ProductStatusActive {
			return ErrProductNotActive
		}

		// Duplicate-contact guard: a buyer identified by phone or email may
		// hold at most one active slot per product.
		dup := tx.Model(&models.BuyerInterest{}).
			Where("product_id = ? AND status = ?", req.ProductID, models.InterestStatusActive)
		switch {
		case req.Phone != "" && req.Email != "":
			dup = dup.Where("phone = ? OR email = ?", req.Phone, req.Email)
		case req.Phone != "":
			dup = dup.Where("phone = ?", req.Phone)
		default:
			dup = dup.Where("email = ?", req.Email)
		}

		var dupCount int64
		if err := dup.Count(&dupCount).Error; err != nil {
			return fmt.Errorf("failed to check existing requests: %w", err)
		}
		if dupCount > 0 {
			return ErrDuplicateContact
		}

		// Tail position: max active position + 1, or 0 for an empty queue.
		var next int
		if err := tx.Model(&models.BuyerInterest{}).
			Where("product_id = ? AND status = ?", req.ProductID, models.InterestStatusActive).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return fmt.Errorf("failed to compute queue position: %w", err)
		}

		interest = &models.BuyerInterest{
			ProductID:       req.ProductID,
			BuyerUserID:     req.BuyerUserID,
			BuyerName:       req.BuyerName,
			Phone:           req.Phone,
			Email:           req.Email,
			SMSOptIn:        req.SMSOptIn,
			PickupTime:      req.PickupTime,
			OfferPriceCents: req.OfferPriceCents,
			Status:          models.InterestStatusActive,
			Position:        &next,
		}

		if err := tx.Create(interest).Error; err != nil {
			return fmt.Errorf("failed to create pickup request: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go s.notifier.SendQueueJoinedNotification(&product, interest)
	}
	s.publish(product.OwnerID, product.ID, "interest_joined", interest)

	return interest, nil
}

// ListForProduct returns the product's pickup requests in queue order:
// active entries first ascending by position, then completed, then the rest;
// creation time breaks ties so the order is total. Buyer contact details are
// included, so only the product owner (or an admin) may read the queue.
func (s *InterestService) ListForProduct(ctx context.Context, productID, actorID uuid.UUID, isAdmin bool) ([]models.BuyerInterest, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !isAdmin && product.OwnerID != actorID {
		return nil, ErrNotProductOwner
	}

	var interests []models.BuyerInterest
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("CASE status WHEN 'active' THEN 0 WHEN 'completed' THEN 1 ELSE 2 END").
		Order("position ASC NULLS LAST").
		Order("created_at ASC").
		Find(&interests).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pickup requests: %w", err)
	}

	return interests, nil
}

// ListAll is the admin view across products, same ordering per product.
func (s *InterestService) ListAll(ctx context.Context, params utils.PaginationParams) ([]models.BuyerInterest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.BuyerInterest{}).Preload("Product")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pickup requests: %w", err)
	}

	var interests []models.BuyerInterest
	if err := utils.ApplyPagination(query, params).
		Order("created_at DESC").
		Find(&interests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch pickup requests: %w", err)
	}

	return interests, total, nil
}

func (s *InterestService) GetInterest(ctx context.Context, id uuid.UUID) (*models.BuyerInterest, error) {
	var interest models.BuyerInterest
	if err := s.db.WithContext(ctx).Preload("Product").First(&interest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInterestNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &interest, nil
}

// Update applies a partial update on behalf of the product owner or an
// admin. A status change away from active clears the entry's position and
// renumbers the survivors inside the same product-locked transaction, so the
// dense-position invariant holds without waiting for the next sweep.
func (s *InterestService) Update(ctx context.Context, id uuid.UUID, actorID uuid.UUID, isAdmin bool, req *UpdateInterestRequest) (*models.BuyerInterest, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.Status != "" {
		switch req.Status {
		case models.InterestStatusActive, models.InterestStatusMissed,
			models.InterestStatusCompleted, models.InterestStatusDenied:
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidInterestStatus, req.Status)
		}
	}

	var interest models.BuyerInterest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&interest, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInterestNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		var product models.Product
		if err := s.lockProduct(tx, interest.ProductID, &product); err != nil {
			return err
		}

		if !isAdmin && product.OwnerID != actorID {
			return ErrNotProductOwner
		}

		// Re-read under the lock; a concurrent sweep may have moved it.
		if err := tx.First(&interest, "id = ?", id).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		updates := make(map[string]interface{})
		if req.BuyerName != "" {
			updates["buyer_name"] = req.BuyerName
		}
		if req.PickupTime != nil {
			updates["pickup_time"] = *req.PickupTime
		}
		if req.OfferPriceCents != nil {
			updates["offer_price_cents"] = *req.OfferPriceCents
		}
		if req.SMSOptIn != nil {
			updates["sms_opt_in"] = *req.SMSOptIn
		}

		leavingQueue := req.Status != "" &&
			req.Status != models.InterestStatusActive &&
			interest.Status == models.InterestStatusActive

		if req.Status != "" {
			updates["status"] = req.Status
			if leavingQueue {
				updates["position"] = nil
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&interest).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update pickup request: %w", err)
			}
		}

		if leavingQueue {
			if err := renumberActive(tx, interest.ProductID); err != nil {
				return err
			}
		}

		return tx.First(&interest, "id = ?", id).Error
	})

	if err != nil {
		return nil, err
	}

	if s.notifier != nil && req.Status == models.InterestStatusCompleted {
		go s.notifier.SendPickupApprovedNotification(&interest)
	}
	s.publish(actorID, interest.ProductID, "interest_updated", &interest)

	return &interest, nil
}

// Approve marks the entry completed; Deny removes it from the queue.
func (s *InterestService) Approve(ctx context.Context, id uuid.UUID, actorID uuid.UUID, isAdmin bool) (*models.BuyerInterest, error) {
	return s.Update(ctx, id, actorID, isAdmin, &UpdateInterestRequest{Status: models.InterestStatusCompleted})
}

func (s *InterestService) Deny(ctx context.Context, id uuid.UUID, actorID uuid.UUID, isAdmin bool) (*models.BuyerInterest, error) {
	return s.Update(ctx, id, actorID, isAdmin, &UpdateInterestRequest{Status: models.InterestStatusDenied})
}

// SweepMissed demotes overdue active interests to missed and closes the
// position gaps they leave, one transaction per affected product. A failure
// rolls back only that product's sweep; the rest proceed.
func (s *InterestService) SweepMissed(ctx context.Context) error {
	now := time.Now()

	var productIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.BuyerInterest{}).
		Where("status = ? AND pickup_time < ?", models.InterestStatusActive, now).
		Distinct().
		Pluck("product_id", &productIDs).Error; err != nil {
		return fmt.Errorf("failed to find overdue products: %w", err)
	}

	var firstErr error
	for _, productID := range productIDs {
		if err := s.sweepProduct(ctx, productID, now); err != nil {
			logrus.WithError(err).WithField("product_id", productID).Error("Failed to sweep product queue")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (s *InterestService) sweepProduct(ctx context.Context, productID uuid.UUID, now time.Time) error {
	var missed []models.BuyerInterest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := s.lockProduct(tx, productID, &product); err != nil {
			return err
		}

		if err := tx.Where("product_id = ? AND status = ? AND pickup_time < ?",
			productID, models.InterestStatusActive, now).
			Find(&missed).Error; err != nil {
			return fmt.Errorf("failed to fetch overdue requests: %w", err)
		}
		if len(missed) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(missed))
		for _, m := range missed {
			ids = append(ids, m.ID)
		}

		if err := tx.Model(&models.BuyerInterest{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":   models.InterestStatusMissed,
				"position": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark requests missed: %w", err)
		}

		return renumberActive(tx, productID)
	})

	if err != nil {
		return err
	}

	if len(missed) > 0 {
		logrus.WithFields(logrus.Fields{
			"product_id": productID,
			"missed":     len(missed),
		}).Info("Swept overdue pickup requests")
	}

	return nil
}

// renumberActive reassigns positions 0..N-1 to the product's active
// interests in their current position order. Rows are visited ascending, so
// each one moves down (or stays put) and never collides with a position that
// has not been vacated yet under the partial unique index.
func renumberActive(tx *gorm.DB, productID uuid.UUID) error {
	var active []models.BuyerInterest
	if err := tx.Where("product_id = ? AND status = ?", productID, models.InterestStatusActive).
		Order("position ASC").
		Find(&active).Error; err != nil {
		return fmt.Errorf("failed to fetch remaining queue: %w", err)
	}

	for i := range active {
		if active[i].Position != nil && *active[i].Position == i {
			continue
		}
		if err := tx.Model(&models.BuyerInterest{}).
			Where("id = ?", active[i].ID).
			Update("position", i).Error; err != nil {
			return fmt.Errorf("failed to renumber queue: %w", err)
		}
	}

	return nil
}

func (s *InterestService) publish(ownerID, productID uuid.UUID, event string, interest *models.BuyerInterest) {
	if s.events != nil {
		s.events.QueueChanged(ownerID, productID, event, interest)
	}
}
