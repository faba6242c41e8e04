package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	requestvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// RateLimit of zero disables rate limiting.
	RateLimit   rate.Limit
	RateBurst   int
	CORSConfig  middleware.CORSConfig
	MetricsPath string
}

type Router struct {
	engine   *gin.Engine
	config   RouterConfig
	handlers []Handler
	metrics  *prometheus.Handler
}

// NewRouter builds the engine with the shared middleware chain. metrics
// may be nil to disable the HTTP metrics and the scrape endpoint.
func NewRouter(config RouterConfig, log *logger.Logger, metrics *prometheus.Handler, handlers ...Handler) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := requestvalidator.Register(v); err != nil {
			return nil, fmt.Errorf("failed to register validators: %w", err)
		}
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}
	engine.Use(middleware.Timeout(config.RequestTimeout))

	r := &Router{
		engine:   engine,
		config:   config,
		handlers: handlers,
		metrics:  metrics,
	}
	r.setup()
	return r, nil
}

func (r *Router) setup() {
	if r.metrics != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, r.metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
