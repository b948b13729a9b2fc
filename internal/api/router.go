package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"shift-booking-backend/config"
	"shift-booking-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	r.GET("/healthz", handler.Healthz)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/book-shifts", handler.BookShifts)
		api.POST("/test-book", handler.TestBook)
		api.GET("/requests/:id", handler.GetRequestStatus)

		api.PUT("/requests/:id/subscriptions", handler.PutRequestSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
