// Package api exposes the HTTP surface: health, subscriber preferences,
// stored briefings, and the interactive run trigger.
package api

import (
	"github.com/gin-gonic/gin"
)

// NewServer builds the gin engine with all routes configured.
func NewServer(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.GetHealth)

	users := r.Group("/users/:id")
	{
		users.GET("/preferences", h.GetPreferences)
		users.PUT("/preferences", h.PutPreferences)
		users.GET("/summaries", h.GetSummaries)
		users.POST("/runs", h.RunBriefing)
	}

	return r
}
