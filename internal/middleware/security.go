package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityConfig controls the response headers added to every API reply.
type SecurityConfig struct {
	// HSTSMaxAge in seconds; zero omits Strict-Transport-Security.
	HSTSMaxAge int
	// NoStore marks responses uncacheable. Schedules and ledger totals are
	// per clinic and must not be kept by shared caches.
	NoStore bool
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSMaxAge: 31536000,
		NoStore:    true,
	}
}

// SecurityHeaders sets the headers that apply to a JSON API. Responses are
// never rendered as documents, so the policy forbids every content source.
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if hsts != "" {
			h.Set("Strict-Transport-Security", hsts)
		}
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if config.NoStore {
			h.Set("Cache-Control", "no-store")
		}
		c.Next()
	}
}
