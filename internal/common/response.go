package common

import "github.com/gin-gonic/gin"

// Error writes the plain error envelope shared by every endpoint.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// GenerationError writes the hard-failure envelope for generation
// endpoints: even a 500 carries well-typed empty collections so the
// client never null-checks beyond "is this array empty".
func GenerationError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"error":       msg,
		"charts":      []any{},
		"insights":    []any{},
		"diagnostics": gin.H{"error": msg},
	})
}
