package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, h *Handlers, limiter *RateLimiter) {
	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/cache/stats", h.CacheStats)
		api.DELETE("/cache", h.ClearCache)
		api.DELETE("/cache/*fingerprint", h.InvalidateCache)
		api.GET("/logs", h.RecentLogs)
		api.GET("/courts", h.Courts)
		api.GET("/cause-lists/stats", h.CauseListStats)

		// Extraction endpoints reach the portals and are rate limited per client.
		extract := api.Group("")
		if limiter != nil {
			extract.Use(limiter.Middleware())
		}
		extract.POST("/cases/search", h.SearchCase)
		extract.POST("/cases/refresh", h.RefreshCase)
		extract.GET("/cause-lists", h.CauseList)
		extract.GET("/cause-lists/check", h.CheckCase)
		extract.GET("/judgments/download", h.DownloadJudgment)
	}
}
