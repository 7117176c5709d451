package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/handler"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = handler.ContextRequestID

	maxRequestIDLength = 64
)

// RequestID tags the request with the caller's X-Request-ID when it is
// usable, or a fresh UUID. The id is echoed back and attached to the
// zerolog logger carried by the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if !validRequestID(rid) {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)

		reqLog := log.With().Str("request_id", rid).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))
		c.Next()
	}
}

// validRequestID accepts short printable ASCII ids so callers cannot inject
// control characters into logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
