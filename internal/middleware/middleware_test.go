package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", "clinic-api")
	engine := gin.New()
	engine.Use(NewAuthMiddleware(jwtService).Authenticate())
	engine.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, handler.ClinicID(c).String())
	})

	t.Run("missing header", func(t *testing.T) {
		w := perform(engine, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

		var body handler.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "error", body.Status)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Basic abc")
		assert.Equal(t, http.StatusUnauthorized, perform(engine, req).Code)
	})

	t.Run("foreign signature", func(t *testing.T) {
		token, err := auth.NewJWTService("other-secret", "clinic-api").GenerateAccessToken(uuid.New(), nil, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, perform(engine, req).Code)
	})

	t.Run("subuser acts for owner clinic", func(t *testing.T) {
		owner := uuid.New()
		token, err := jwtService.GenerateAccessToken(uuid.New(), &owner, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := perform(engine, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, owner.String(), w.Body.String())
	})
}

func TestRateLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2}).RateLimit())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return perform(engine, req).Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1"))
	// Buckets are per client.
	assert.Equal(t, http.StatusOK, request("10.0.0.2"))
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := perform(engine, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRequestID_KeepsCallerHeader(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := perform(engine, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
}

func TestErrorHandler_RendersAttachedError(t *testing.T) {
	engine := gin.New()
	engine.Use(ErrorHandler())
	engine.GET("/", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})

	w := perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestRequestID_ReplacesUnusableHeader(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "bad id\twith spaces")
	w := perform(engine, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestSizeLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(SizeLimit(SizeLimitConfig{MaxBodyBytes: 16, MaxHeaderBytes: 256}))
	engine.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	decode := func(w *httptest.ResponseRecorder) handler.Response {
		var body handler.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	t.Run("body within limit", func(t *testing.T) {
		w := perform(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		w := perform(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 17))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		body := decode(w)
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, "request body exceeds 16 bytes", body.Message)
	})

	t.Run("headers too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Padding", strings.Repeat("p", 300))
		w := perform(engine, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		body := decode(w)
		assert.Equal(t, "error", body.Status)
		assert.Contains(t, body.Message, "headers exceed 256 bytes")
	})
}

func TestSecurityHeaders(t *testing.T) {
	engine := gin.New()
	engine.Use(SecurityHeaders(DefaultSecurityConfig()))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))

	engine = gin.New()
	engine.Use(SecurityHeaders(SecurityConfig{}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = perform(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestCORS(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(CORSConfig{AllowOrigins: []string{"https://app.clinic.example"}, MaxAge: 600}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(method, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", nil)
		req.Header.Set("Origin", origin)
		if method == http.MethodOptions {
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		}
		return perform(engine, req)
	}

	w := request(http.MethodGet, "https://app.clinic.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.clinic.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	w = request(http.MethodOptions, "https://app.clinic.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = request(http.MethodGet, "https://evil.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = request(http.MethodOptions, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
