// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/config"
	"github.com/spacevox/spacevox-backend/internal/handlers"
	"github.com/spacevox/spacevox-backend/internal/middleware"
	"github.com/spacevox/spacevox-backend/internal/services"
	"github.com/spacevox/spacevox-backend/internal/utils"
	"github.com/spacevox/spacevox-backend/internal/ws"
)

// Initialize wires services, handlers, and routes. The returned interest
// service is shared with the background sweeper.
func Initialize(db *gorm.DB, redisClient *redis.Client, hub *ws.Hub, cfg *config.Config) (*gin.Engine, *services.InterestService) {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)

	authService := services.NewAuthService(db, cfg, notificationService)
	userService := services.NewUserService(db)
	listingService := services.NewListingService(db, redisClient, time.Duration(cfg.Redis.ListingCacheTTL)*time.Second)
	productService := services.NewProductService(db, listingService)
	interestService := services.NewInterestService(db, notificationService, hub)
	chatService := services.NewChatService(db)
	adminService := services.NewAdminService(db, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, storageService)
	listingHandler := handlers.NewListingHandler(listingService)
	productHandler := handlers.NewProductHandler(productService, storageService)
	interestHandler := handlers.NewInterestHandler(interestService)
	chatHandler := handlers.NewChatHandler(chatService)
	adminHandler := handlers.NewAdminHandler(adminService)
	wsHandler := handlers.NewWSHandler(hub, chatService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	joinRateLimit := middleware.JoinRateLimit(cfg.Queue.JoinRateLimit, time.Duration(cfg.Queue.JoinRateWindow)*time.Second)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/google", authHandler.GoogleLogin)
			auth.GET("/google/callback", authHandler.GoogleCallback)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PATCH("/profile", userHandler.UpdateProfile)
			users.POST("/password", userHandler.ChangePassword)
			users.POST("/avatar", middleware.UploadRateLimit(), userHandler.UploadAvatar)
			users.GET("/interests", userHandler.MyInterests)
		}

		// Listing routes
		listings := v1.Group("/listings")
		{
			// Public share-link resolution
			listings.GET("/shared/:shareKey", listingHandler.GetShared)

			protected := listings.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", listingHandler.Create)
				protected.GET("", listingHandler.ListMine)
				protected.GET("/:id", listingHandler.Get)
				protected.PATCH("/:id", listingHandler.Update)
				protected.DELETE("/:id", listingHandler.Delete)
				protected.POST("/:id/rotate-key", listingHandler.RotateShareKey)
			}
		}

		// Product routes
		products := v1.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(), productHandler.Search)
			products.GET("/:id", middleware.OptionalAuth(), productHandler.Get)

			// The owner's queue view
			products.GET("/:id/buyer-interests", middleware.AuthRequired(), interestHandler.ListForProduct)

			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("/mine", productHandler.ListMine)
				protected.POST("", productHandler.Create)
				protected.PATCH("/:id", productHandler.Update)
				protected.DELETE("/:id", productHandler.Delete)
				protected.POST("/:id/images", middleware.UploadRateLimit(), productHandler.UploadImages)
				protected.DELETE("/:id/images/:imageID", productHandler.DeleteImage)
				protected.PUT("/:id/images/order", productHandler.ReorderImages)
			}
		}

		// Buyer interest routes
		interests := v1.Group("/buyer-interests")
		{
			// Anonymous buyers join via shared links; OptionalAuth attaches
			// the account when a token is present.
			interests.POST("", joinRateLimit, middleware.OptionalAuth(), interestHandler.Join)

			interests.GET("", middleware.AuthRequired(), middleware.AdminRequired(), interestHandler.ListAll)

			protected := interests.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("/:id", interestHandler.Get)
				protected.PATCH("/:id", interestHandler.Update)
				protected.POST("/:id/approve", interestHandler.Approve)
				protected.POST("/:id/deny", interestHandler.Deny)
			}
		}

		// Chat routes
		chats := v1.Group("/chats")
		chats.Use(middleware.AuthRequired())
		{
			chats.POST("", chatHandler.OpenRoom)
			chats.GET("", chatHandler.ListRooms)
			chats.GET("/unread-count", chatHandler.UnreadCount)
			chats.GET("/:id/messages", chatHandler.GetMessages)
			chats.POST("/:id/messages", chatHandler.SendMessage)
		}

		// WebSocket endpoint
		v1.GET("/ws", middleware.AuthRequired(), wsHandler.Serve)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/stats", adminHandler.GetDashboardStats)
			admin.GET("/users", adminHandler.GetUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.PATCH("/users/:id/status", adminHandler.UpdateUserStatus)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r, interestService
}
