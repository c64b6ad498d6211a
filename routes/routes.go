package routes

import (
	"net/http"
	"strings"
	"time"

	"storyreel/handlers"
	"storyreel/middleware"
	"storyreel/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenVerifier is satisfied by auth.Service.
type TokenVerifier interface {
	Verify(token string) (primitive.ObjectID, error)
}

type Deps struct {
	Handler        *handlers.Handler
	Verifier       TokenVerifier
	Limiter        *middleware.IPRateLimiter
	Metrics        middleware.HTTPRecorder
	MetricsHandler http.Handler
	WebSocket      *websocket.Manager
	AllowedOrigins []string
}

func SetupRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger(d.Metrics))

	router.Use(cors.New(corsConfig(d.AllowedOrigins)))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	}
	router.GET("/health", health)
	router.GET("/api/health", health)

	if d.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}
	if d.WebSocket != nil {
		router.GET("/ws", gin.WrapF(websocket.Handler(d.WebSocket, d.Verifier, d.AllowedOrigins)))
	}

	h := d.Handler
	required := middleware.JWTAuthMiddleware(d.Verifier)
	optional := middleware.OptionalAuthMiddleware(d.Verifier)

	api := router.Group("/api")
	if d.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(d.Limiter))
	}

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/whoami", required, h.WhoAmI)

	storiesGroup := api.Group("/stories")
	storiesGroup.GET("", optional, h.GetStories)
	storiesGroup.GET("/filter", optional, h.GetStories)
	storiesGroup.POST("", required, h.CreateStories)
	storiesGroup.PUT("/:id", required, h.UpdateStory)
	storiesGroup.DELETE("/:id", required, h.DeleteStory)
	storiesGroup.POST("/:id/share", h.ShareStory)

	storiesGroup.GET("/liked", required, h.GetLikedStories)
	storiesGroup.POST("/:id/like", required, h.LikeStory(true))
	storiesGroup.DELETE("/:id/like", required, h.LikeStory(false))
	storiesGroup.POST("/:id/like/toggle", required, h.ToggleLike)

	storiesGroup.GET("/bookmark", required, h.GetBookmarks)
	storiesGroup.POST("/bookmark", required, h.AddBookmark)
	storiesGroup.DELETE("/bookmark/:id", required, h.RemoveBookmark)
	storiesGroup.POST("/:id/bookmark/toggle", required, h.ToggleBookmark)

	api.POST("/media", required, h.UploadMedia)

	api.GET("/push/public-key", h.GetVapidPublicKey)
	api.POST("/push/subscribe", required, h.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Endpoint not found",
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
