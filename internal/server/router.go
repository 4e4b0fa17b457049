package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hamlaty/contest-backend/internal/handlers"
	"github.com/hamlaty/contest-backend/internal/middleware"
)

type RouterConfig struct {
	WebhookHandler      *handlers.WebhookHandler
	SignatureMiddleware *middleware.SignatureMiddleware
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if len(cfg.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "X-Hub-Signature-256"},
			AllowCredentials: false,
		}))
	}

	router.GET("/healthcheck", handlers.HealthCheck)

	// The GET handshake carries its own verify token; the POST side never
	// reaches a handler without a valid body signature.
	router.GET("/webhook", cfg.WebhookHandler.Verify)
	router.POST("/webhook", cfg.SignatureMiddleware.RequireSignature(), cfg.WebhookHandler.Receive)

	return router
}
