package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/auth"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/config"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi/handlers"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg config.Config, h *handlers.Handler, verifier *auth.Verifier) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// ClientIP feeds the rate limiter, so X-Forwarded-For only counts from known proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("[HTTP] bad TRUSTED_PROXIES %v, trusting none: %v", cfg.TrustedProxies, err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Tracing("chatbot-api"))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(verifier))

	// usage tracking
	api.POST("/messages/track", h.TrackMessage)
	api.GET("/messages/stats", h.MessageStats)

	// chat proxy
	api.GET("/models", h.ListModels)
	api.POST("/chat", h.SendChat)

	admin := api.Group("/admin")
	admin.Use(h.RequireAdmin())
	admin.GET("/users", h.ListUsers)
	admin.GET("/stats", h.Stats)
	admin.POST("/users/:userId/promote", h.PromoteUser)
	admin.POST("/users/:userId/demote", h.DemoteUser)
	admin.POST("/users/:userId/reset-counts", h.ResetUserCounts)
	admin.DELETE("/users/:userId", h.DeleteUser)
	admin.POST("/reset-all-counts", h.ResetAllCounts)

	return r
}
