package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MapboxToken hands the public map-tile token to the client. Public by
// design; no auth.
func (h *Handler) MapboxToken(c *gin.Context) {
	if h.Cfg.MapboxPublicToken == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "map token not configured",
			"details": "set MAPBOX_PUBLIC_TOKEN in the environment",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": h.Cfg.MapboxPublicToken})
}
