package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	deliveryHandler "github.com/jwalitptl/notifier/internal/handler/delivery"
	"github.com/jwalitptl/notifier/internal/handler/health"
	jobsHandler "github.com/jwalitptl/notifier/internal/handler/jobs"
	"github.com/jwalitptl/notifier/internal/handler/prometheus"
	"github.com/jwalitptl/notifier/internal/middleware"
	"github.com/jwalitptl/notifier/pkg/logger"
)

type RouterConfig struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine     *gin.Engine
	logger     *logger.Logger
	auth       *middleware.AuthMiddleware
	health     *health.Handler
	metrics    *prometheus.Handler
	deliveries *deliveryHandler.Handler
	jobs       *jobsHandler.Handler
	config     RouterConfig
}

// NewRouter builds the ops API. With a nil auth middleware only the health and
// metrics endpoints are mounted.
func NewRouter(
	log *logger.Logger,
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	deliveriesH *deliveryHandler.Handler,
	jobsH *jobsHandler.Handler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		metricsH.Middleware(),
		middleware.ErrorHandler(log),
	)

	return &Router{
		engine:     engine,
		logger:     log,
		auth:       auth,
		health:     healthH,
		metrics:    metricsH,
		deliveries: deliveriesH,
		jobs:       jobsH,
		config:     config,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")
	r.health.RegisterRoutes(api)

	if r.auth == nil {
		r.logger.Warn("no JWT secret configured, operator endpoints disabled")
		return
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.RateLimit,
		Burst: r.config.RateBurst,
	})

	protected := api.Group("")
	protected.Use(limiter.RateLimit(), r.auth.Authenticate())

	operate := protected.Group("")
	operate.Use(r.auth.RequireOperator())

	r.deliveries.RegisterRoutes(protected, operate)
	r.jobs.RegisterRoutes(operate)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
