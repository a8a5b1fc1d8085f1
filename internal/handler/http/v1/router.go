package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/shenikar/cityvoice/internal/models"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	requireAuth := AuthMiddleware(h.authService, h.logger)
	canModerate := RequireRole(h.logger, models.Role.CanModerate)

	issues := api.Group("/issues")
	{
		issues.GET("", h.listIssues)
		issues.POST("", requireAuth, h.rateLimit(), h.createIssue)
		// Статические пути регистрируются до /:id
		issues.GET("/hotspots", h.getHotspots)
		issues.GET("/stats", h.getStats)
		if h.stream != nil {
			issues.GET("/stream", h.streamIssues)
		}
		issues.GET("/:id", h.getIssue)
		issues.PUT("/:id", requireAuth, canModerate, h.updateIssueStatus)
		issues.PATCH("/:id", requireAuth, canModerate, h.updateIssueStatus)
		issues.POST("/:id/vote", requireAuth, h.toggleVote)
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/me", requireAuth, h.me)
	}

	api.GET("/system/health", h.healthCheck)
	api.GET("/system/config", h.clientConfig)
}
