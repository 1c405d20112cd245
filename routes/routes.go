package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"clinicsched/handlers"
	"clinicsched/utils"
)

// RegisterSchedulingRoutes registers all endpoints for the scheduling engine.
func RegisterSchedulingRoutes(r *gin.Engine, h *handlers.SchedulingHandler) {
	api := r.Group("/api/scheduling")
	{
		api.POST("/session", h.StartSessionHandler)
		api.GET("/session/:sessionID", h.GetSessionHandler)
		api.PATCH("/session/:sessionID/field", h.ApplyEditHandler)
		api.POST("/session/:sessionID/submit", h.SubmitHandler)
		api.POST("/session/:sessionID/waitlist", h.WaitlistHandler)
		api.DELETE("/session/:sessionID", h.CancelSessionHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": utils.GetHealthStatus()})
	})
}

// CORSMiddleware allows the browser SPA to reach the API.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
