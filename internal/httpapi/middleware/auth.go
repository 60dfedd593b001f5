package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/identity"
)

const UserIDKey = "user_id"

// Auth resolves the caller through the given strategy and aborts with
// 401 before any handler runs. No resolved identity means no paid
// completion call is ever made downstream.
func Auth(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := resolver.Resolve(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// UserID returns the identity set by Auth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	uid, ok := v.(string)
	return uid, ok && uid != ""
}
