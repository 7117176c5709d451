package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	metrics   *prometheus.Handler
	health    Handler
	protected []Handler
	config    RouterConfig
}

type RouterConfig struct {
	Mode             string
	Timeout          time.Duration
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	Security         middleware.SecurityConfig
	SizeLimit        middleware.SizeLimitConfig
}

// NewRouter builds the engine. Health endpoints are public; every handler
// in protected sits behind bearer authentication.
func NewRouter(
	auth *middleware.AuthMiddleware,
	metrics *prometheus.Handler,
	health Handler,
	protected []Handler,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.Timeout <= 0 {
		config.Timeout = middleware.DefaultTimeoutConfig().Duration
	}

	engine := gin.New()

	r := &Router{
		engine:    engine,
		auth:      auth,
		metrics:   metrics,
		health:    health,
		protected: protected,
		config:    config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metrics.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(config.SizeLimit),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.health.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.protected {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
