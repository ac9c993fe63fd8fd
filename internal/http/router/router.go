package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"socialspace/internal/config"
	"socialspace/internal/http/handlers"
	"socialspace/internal/http/middleware"
	"socialspace/internal/service"
)

// SetupRouter собирает все маршруты сервиса.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	postHandler *handlers.PostHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	// Эндпоинты аутентификации под общим ограничителем частоты:
	// здесь живут и вход, и все шаги с кодами подтверждения.
	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register/email", authHandler.BeginRegistration)
		authGroup.POST("/register/verify-otp", authHandler.VerifyRegistrationCode)
		authGroup.POST("/register/resend-otp", authHandler.ResendRegistrationCode)
		authGroup.POST("/register/set-password", authHandler.CompleteRegistration)

		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)

		authGroup.POST("/forgot-password", authHandler.BeginPasswordReset)
		authGroup.POST("/forgot-password/resend", authHandler.ResendResetCode)
		authGroup.POST("/verify-reset-otp", authHandler.VerifyResetCode)
		authGroup.POST("/reset-password", authHandler.CompletePasswordReset)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/users/search", profileHandler.SearchUsers)
	api.GET("/users/:id", middleware.UUIDValidator("id"), profileHandler.GetUser)
	api.GET("/users/:id/followers", middleware.UUIDValidator("id"), postHandler.Followers)
	api.GET("/users/:id/following", middleware.UUIDValidator("id"), postHandler.Following)
	api.GET("/posts/:id/comments", middleware.UUIDValidator("id"), postHandler.Comments)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.GetMe)
		protected.PUT("/profile", profileHandler.UpdateMe)

		protected.GET("/feed", postHandler.Feed)
		protected.GET("/posts/search", postHandler.Search)
		protected.POST("/posts", postHandler.Create)
		protected.GET("/posts/:id", middleware.UUIDValidator("id"), postHandler.Get)
		protected.PUT("/posts/:id", middleware.UUIDValidator("id"), postHandler.Update)
		protected.DELETE("/posts/:id", middleware.UUIDValidator("id"), postHandler.Delete)
		protected.POST("/posts/:id/like", middleware.UUIDValidator("id"), postHandler.ToggleLike)
		protected.POST("/posts/:id/comments", middleware.UUIDValidator("id"), postHandler.AddComment)
		protected.POST("/posts/:id/bookmark", middleware.UUIDValidator("id"), postHandler.AddBookmark)
		protected.DELETE("/posts/:id/bookmark", middleware.UUIDValidator("id"), postHandler.RemoveBookmark)
		protected.GET("/bookmarks", postHandler.Bookmarks)

		protected.GET("/users/:id/posts", middleware.UUIDValidator("id"), postHandler.UserPosts)
		protected.POST("/users/:id/follow", middleware.UUIDValidator("id"), postHandler.Follow)
		protected.DELETE("/users/:id/follow", middleware.UUIDValidator("id"), postHandler.Unfollow)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.DELETE("/notifications", notificationHandler.DeleteAll)

		protected.POST("/media", mediaHandler.Upload)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), mediaHandler.Delete)
	}

	return r
}
