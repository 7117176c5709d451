package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type CORSConfig struct {
	// AllowOrigins lists exact origins; "*" allows any.
	AllowOrigins []string
	MaxAge       int
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		MaxAge:       86400,
	}
}

var (
	corsMethods = strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}, ", ")
	corsHeaders = strings.Join([]string{
		"Authorization",
		"Content-Type",
		"Accept",
		HeaderXRequestID,
	}, ", ")
	corsExpose = strings.Join([]string{HeaderXRequestID, "X-API-Version"}, ", ")
)

// CORS answers browser clients. Authentication uses bearer tokens, never
// cookies, so credentials are not allowed and a wildcard origin is sent as
// "*". Requests from origins outside the list get no CORS headers.
func CORS(config CORSConfig) gin.HandlerFunc {
	anyOrigin := false
	allowed := make(map[string]bool, len(config.AllowOrigins))
	for _, o := range config.AllowOrigins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = true
	}
	maxAge := strconv.Itoa(config.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")

		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}
		c.Header("Access-Control-Expose-Headers", corsExpose)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Header("Access-Control-Allow-Methods", corsMethods)
			c.Header("Access-Control-Allow-Headers", corsHeaders)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
