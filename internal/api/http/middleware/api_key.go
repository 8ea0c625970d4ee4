package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKey gates the operator trigger surface. Identity management proper
// lives outside this service; the batch triggers only need a shared key.
func APIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			// no key configured: open (development)
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" || key != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
