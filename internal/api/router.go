package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires the middleware, health and metrics endpoints, and the API routes
func SetupRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(Recovery(logger), RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "pacelab is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/categories", h.Categories)
		api.GET("/classifications", h.LabelCounts)
		api.POST("/classifications", h.Classify)
		api.POST("/variations", h.ComputeVariations)

		users := api.Group("/users/:id")
		{
			users.GET("/skill-level", h.SkillLevel)
			users.GET("/safe-paces", h.SafePaces)
			users.POST("/pace-check", h.PaceCheck)
			users.POST("/prescriptions/sanitize", h.SanitizePrescriptions)
		}

		plans := api.Group("/plans/:id")
		{
			plans.POST("/recalibrate", h.RecalibratePlan)
		}
	}

	return r
}
