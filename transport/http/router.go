package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/farmgate/observability"
	"github.com/layer-3/farmgate/service"
)

// SetupRouter sets up the Gin router. metrics may be nil, which disables
// the /metrics endpoint.
func SetupRouter(authService *service.AuthService, metrics *observability.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	// Create handlers
	handlers := NewAuthHandlers(authService)

	router.GET("/health", Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/verify", handlers.Verify)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
