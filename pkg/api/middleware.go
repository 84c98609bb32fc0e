package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/stevross-git/orchestrator/internal/config"
)

// authMiddleware checks the X-API-Key header against the configured set
// of accepted keys using constant-time comparison. spec.md §1/§7
// deliberately scopes auth to this opaque-key check, not JWT or RBAC.
func authMiddleware(cfg config.SecurityConfig) gin.HandlerFunc {
	if len(cfg.APIKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		for _, want := range cfg.APIKeys {
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
	}
}

// rateLimitMiddleware enforces a token-bucket limit per client IP via
// golang.org/x/time/rate, protecting the task-submission endpoint and the
// rest of the control surface from a single noisy client.
func rateLimitMiddleware(cfg config.SecurityConfig) gin.HandlerFunc {
	limiters := newLimiterSet(rate.Limit(cfg.RPS), cfg.Burst)
	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
