// internal/handlers/user.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

type UserHandler struct {
	userService    *services.UserService
	storageService *services.StorageService
}

func NewUserHandler(userService *services.UserService, storageService *services.StorageService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		storageService: storageService,
	}
}

// GET /v1/users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	user, stats, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user":  user,
		"stats": stats,
	})
}

// PATCH /v1/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user": user,
	})
}

// POST /v1/users/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Password updated",
	})
}

// POST /v1/users/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		utils.BadRequestResponse(c, "No avatar file provided", nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer file.Close()

	if err := h.storageService.ValidateImage(file); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	result, err := h.storageService.UploadFile(file, header, h.storageService.GetDefaultUploadOptions("avatars"))
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, &services.UpdateProfileRequest{
		AvatarURL: result.URL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user": user,
	})
}

// GET /v1/users/interests
func (h *UserHandler) MyInterests(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	interests, total, err := h.userService.GetMyInterests(c.Request.Context(), userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(interests, total, params))
}

func (h *UserHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		utils.NotFoundResponse(c, "User")
	case errors.Is(err, services.ErrWrongPassword), errors.Is(err, services.ErrNoLocalAccount):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		logrus.WithError(err).Error("Unhandled user error")
		utils.InternalErrorResponse(c, "Something went wrong")
	}
}
