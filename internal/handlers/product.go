// internal/handlers/product.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
	storageService *services.StorageService
}

func NewProductHandler(productService *services.ProductService, storageService *services.StorageService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		storageService: storageService,
	}
}

// POST /v1/products
func (h *ProductHandler) Create(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"product": product,
	})
}

// GET /v1/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product": product,
	})
}

// GET /v1/products
func (h *ProductHandler) Search(c *gin.Context) {
	params := services.ProductSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if listingIDStr := c.Query("listing_id"); listingIDStr != "" {
		listingID, err := uuid.Parse(listingIDStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid listing ID", nil)
			return
		}
		params.ListingID = &listingID
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ProductStatus(statusStr)
		params.Status = &status
	}

	products, total, err := h.productService.SearchProducts(c.Request.Context(), params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params.PaginationParams))
}

// GET /v1/products/mine
func (h *ProductHandler) ListMine(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	products, total, err := h.productService.GetOwnerProducts(c.Request.Context(), userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params))
}

// PATCH /v1/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), id, userID, isAdmin(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product": product,
	})
}

// DELETE /v1/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id, userID, isAdmin(c)); err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Product deleted",
	})
}

// POST /v1/products/:id/images
//
// Multipart upload; accepts one or more files under the "images" field.
func (h *ProductHandler) UploadImages(c *gin.Context) {
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

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid multipart form", err.Error())
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		utils.BadRequestResponse(c, "No images provided", nil)
		return
	}

	options := h.storageService.GetDefaultUploadOptions("product_images")

	var uploads []services.UploadResult
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			utils.BadRequestResponse(c, "Failed to read uploaded file", err.Error())
			return
		}

		if err := h.storageService.ValidateImage(file); err != nil {
			file.Close()
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}

		result, err := h.storageService.UploadFile(file, header, options)
		file.Close()
		if err != nil {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}

		uploads = append(uploads, *result)
	}

	images, err := h.productService.AddImages(c.Request.Context(), productID, userID, uploads)
	if err != nil {
		// Uploaded objects are now orphans; best effort cleanup.
		for _, upload := range uploads {
			if delErr := h.storageService.DeleteFile(upload.Key); delErr != nil {
				logrus.WithError(delErr).WithField("key", upload.Key).Warn("Failed to clean up orphaned upload")
			}
		}
		h.respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"images": images,
	})
}

// DELETE /v1/products/:id/images/:imageID
func (h *ProductHandler) DeleteImage(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	imageID, err := uuid.Parse(c.Param("imageID"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid image ID", nil)
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	removed, err := h.productService.RemoveImage(c.Request.Context(), productID, imageID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if removed.StorageKey != "" {
		if err := h.storageService.DeleteFile(removed.StorageKey); err != nil {
			logrus.WithError(err).WithField("key", removed.StorageKey).Warn("Failed to delete image object")
		}
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Image deleted",
	})
}

// PUT /v1/products/:id/images/order
func (h *ProductHandler) ReorderImages(c *gin.Context) {
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

	var req struct {
		ImageIDs []uuid.UUID `json:"image_ids" validate:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if err := h.productService.ReorderImages(c.Request.Context(), productID, userID, req.ImageIDs); err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product": product,
	})
}

func (h *ProductHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		utils.NotFoundResponse(c, "Product")
	case errors.Is(err, services.ErrImageNotFound):
		utils.NotFoundResponse(c, "Image")
	case errors.Is(err, services.ErrListingNotFound):
		utils.NotFoundResponse(c, "Listing")
	case errors.Is(err, services.ErrNotProductOwner), errors.Is(err, services.ErrNotListingOwner):
		utils.ForbiddenResponse(c, err.Error())
	case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrIncompleteReorder):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		logrus.WithError(err).Error("Unhandled product error")
		utils.InternalErrorResponse(c, "Something went wrong")
	}
}
