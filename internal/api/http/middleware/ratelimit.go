package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit throttles the admin trigger routes. Reconciliation and
// recomputation are idempotent but heavy; a retrigger storm should queue
// behind 429s rather than pile full-population passes onto the database.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "rate limit exceeded, retry later",
			})
			return
		}
		c.Next()
	}
}
