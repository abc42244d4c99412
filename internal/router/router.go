package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/filevault-api/internal/handler"
	"github.com/jwalitptl/filevault-api/internal/middleware"
	"github.com/jwalitptl/filevault-api/internal/service/idempotency"
)

// Handler registers its routes on a router group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit      rate.Limit
	RateBurst      int
	IdempotencyTTL time.Duration
}

type Router struct {
	engine         *gin.Engine
	config         Config
	idempotencySvc *idempotency.Service
	h              *handler.Handler
	handlers       []Handler
}

func NewRouter(
	config Config,
	idempotencySvc *idempotency.Service,
	h *handler.Handler,
	handlers ...Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:         gin.New(),
		config:         config,
		idempotencySvc: idempotencySvc,
		h:              h,
		handlers:       handlers,
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Setup wires the middleware chain and registers all routes. The
// idempotency middleware sits inside the chain so every mutating
// endpoint behind /api/v1 gets consult-before, store-after behavior.
func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())

	if r.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		r.engine.Use(limiter.RateLimit())
	}

	r.engine.GET("/metrics", r.h.MetricsHandler)

	api := r.engine.Group("/api/v1")
	api.Use(middleware.Idempotency(r.idempotencySvc, r.config.IdempotencyTTL))

	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}
