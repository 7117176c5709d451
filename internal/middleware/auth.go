package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/pkg/auth"
)

const ContextUserID = "user_id"

type AuthMiddleware struct {
	jwtService auth.JWTService
}

func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="clinic-api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse(message))
}

// Authenticate verifies the bearer token and stores the caller's clinic in
// the context. Subuser tokens resolve to their owner's clinic.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			unauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			log.Debug().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("token rejected")
			unauthorized(c, "invalid token")
			return
		}

		clinicID, err := claims.ClinicID()
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(handler.ContextClinicID, clinicID)
		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}
