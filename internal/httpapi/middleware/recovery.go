package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recovery converts an unhandled panic into the generation-endpoint
// error envelope: typed empty collections, never a bare error string.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithFields(logrus.Fields{
					"panic": r,
					"path":  c.FullPath(),
				}).Error("request panicked")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":       "internal error",
					"charts":      []any{},
					"insights":    []any{},
					"diagnostics": gin.H{"error": "internal error"},
				})
			}
		}()
		c.Next()
	}
}
