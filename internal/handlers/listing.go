// internal/handlers/listing.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

type ListingHandler struct {
	listingService *services.ListingService
}

func NewListingHandler(listingService *services.ListingService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
	}
}

// POST /v1/listings
func (h *ListingHandler) Create(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"listing": listing,
	})
}

// GET /v1/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing": listing,
	})
}

// GET /v1/listings (own listings)
func (h *ListingHandler) ListMine(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	listings, total, err := h.listingService.GetOwnerListings(c.Request.Context(), userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(listings, total, params))
}

// PATCH /v1/listings/:id
func (h *ListingHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), id, userID, isAdmin(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing": listing,
	})
}

// DELETE /v1/listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	if err := h.listingService.DeleteListing(c.Request.Context(), id, userID, isAdmin(c)); err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Listing deleted",
	})
}

// POST /v1/listings/:id/rotate-key
func (h *ListingHandler) RotateShareKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	listing, err := h.listingService.RotateShareKey(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing": listing,
	})
}

// GET /v1/listings/shared/:shareKey (public)
func (h *ListingHandler) GetShared(c *gin.Context) {
	shareKey := c.Param("shareKey")
	if shareKey == "" {
		utils.BadRequestResponse(c, "Missing share key", nil)
		return
	}

	shared, err := h.listingService.GetSharedListing(c.Request.Context(), shareKey)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing": shared,
	})
}

func (h *ListingHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrListingNotFound):
		utils.NotFoundResponse(c, "Listing")
	case errors.Is(err, services.ErrNotListingOwner):
		utils.ForbiddenResponse(c, err.Error())
	default:
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		logrus.WithError(err).Error("Unhandled listing error")
		utils.InternalErrorResponse(c, "Something went wrong")
	}
}
