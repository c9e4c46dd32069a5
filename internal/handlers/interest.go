// internal/handlers/interest.go
package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

type InterestHandler struct {
	interestService *services.InterestService
}

func NewInterestHandler(interestService *services.InterestService) *InterestHandler {
	return &InterestHandler{
		interestService: interestService,
	}
}

// POST /v1/buyer-interests
//
// Anonymous buyers may join; signed-in buyers get the entry attached to
// their account.
func (h *InterestHandler) Join(c *gin.Context) {
	var req services.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if userID, err := currentUserID(c); err == nil {
		req.BuyerUserID = &userID
	}

	interest, err := h.interestService.Join(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"interest": interest,
	})
}

// GET /v1/products/:id/buyer-interests
//
// The owner's queue view. Sweeps overdue entries first so the response
// never shows a stale active entry whose pickup window has passed.
func (h *InterestHandler) ListForProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	if err := h.interestService.SweepMissed(c.Request.Context()); err != nil {
		logrus.WithError(err).Warn("Pre-list sweep failed")
	}

	interests, err := h.interestService.ListForProduct(c.Request.Context(), productID, userID, isAdmin(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"interests": interests,
	})
}

// GET /v1/buyer-interests (admin)
func (h *InterestHandler) ListAll(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	if err := h.interestService.SweepMissed(c.Request.Context()); err != nil {
		logrus.WithError(err).Warn("Pre-list sweep failed")
	}

	interests, total, err := h.interestService.ListAll(c.Request.Context(), params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(interests, total, params))
}

// GET /v1/buyer-interests/:id
func (h *InterestHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid interest ID", nil)
		return
	}

	interest, err := h.interestService.GetInterest(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"interest": interest,
	})
}

// PATCH /v1/buyer-interests/:id
func (h *InterestHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid interest ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.UpdateInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	interest, err := h.interestService.Update(c.Request.Context(), id, userID, isAdmin(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"interest": interest,
	})
}

// POST /v1/buyer-interests/:id/approve
func (h *InterestHandler) Approve(c *gin.Context) {
	h.transition(c, h.interestService.Approve)
}

// POST /v1/buyer-interests/:id/deny
func (h *InterestHandler) Deny(c *gin.Context) {
	h.transition(c, h.interestService.Deny)
}

func (h *InterestHandler) transition(c *gin.Context, fn func(ctx context.Context, id, actorID uuid.UUID, isAdmin bool) (*models.BuyerInterest, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid interest ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	interest, err := fn(c.Request.Context(), id, userID, isAdmin(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"interest": interest,
	})
}

func (h *InterestHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrInterestNotFound):
		utils.NotFoundResponse(c, "Pickup request")
	case errors.Is(err, services.ErrDuplicateContact):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrProductNotActive), errors.Is(err, services.ErrInvalidInterestStatus):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrNotProductOwner):
		utils.ForbiddenResponse(c, err.Error())
	default:
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		logrus.WithError(err).Error("Unhandled pickup request error")
		utils.InternalErrorResponse(c, "Something went wrong")
	}
}
