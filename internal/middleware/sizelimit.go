package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
)

type SizeLimitConfig struct {
	MaxBodyBytes   int64
	MaxHeaderBytes int
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodyBytes:   1 << 20,
		MaxHeaderBytes: 1 << 14,
	}
}

// SizeLimit rejects requests whose declared body or headers are too large
// with 413. Bodies without a Content-Length are capped while they are read.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultSizeLimitConfig().MaxBodyBytes
	}
	if config.MaxHeaderBytes <= 0 {
		config.MaxHeaderBytes = DefaultSizeLimitConfig().MaxHeaderBytes
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodyBytes {
			tooLarge(c, fmt.Sprintf("request body exceeds %d bytes", config.MaxBodyBytes))
			return
		}

		headerBytes := 0
		for name, values := range c.Request.Header {
			headerBytes += len(name)
			for _, value := range values {
				headerBytes += len(value)
			}
		}
		if headerBytes > config.MaxHeaderBytes {
			tooLarge(c, fmt.Sprintf("request headers exceed %d bytes", config.MaxHeaderBytes))
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodyBytes)
		}
		c.Next()
	}
}

func tooLarge(c *gin.Context, message string) {
	c.Header("Connection", "close")
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, handler.NewErrorResponse(message))
}
