package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/usershub/internal/config"
	"github.com/geocoder89/usershub/internal/http/handlers"
	"github.com/geocoder89/usershub/internal/http/middlewares"
	"github.com/geocoder89/usershub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const ServiceName = "usershub-api"

type RouterDeps struct {
	Log    *slog.Logger
	Config config.Config
	Users  handlers.UsersStore
	// Ping backs /readyz; nil means always ready.
	Ping         func(ctx context.Context) error
	ShuttingDown func() bool
	// Prom and Gatherer are optional; /metrics is mounted only with both.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// ClientIP is the socket peer; forwarded headers are not trusted.
	_ = r.SetTrustedProxies(nil)

	// middleware
	r.Use(middlewares.Recovery(log))
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.Middleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.ErrorTranslator(log))

	// Every route is limited, unmatched ones included. Health checks and scrapes
	// are exempt so a busy client cannot fail them.
	if cfg.RateLimit > 0 {
		limiter := middlewares.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
		r.Use(limiter.Middleware(middlewares.KeyByIP, "/health", "/readyz", "/metrics"))
	}

	r.NoRoute(middlewares.NoRoute())

	// ops
	health := handlers.NewHealthHandler(deps.Ping, deps.ShuttingDown)
	r.GET("/health", health.Health)
	r.GET("/readyz", health.Readyz)
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)
	if deps.Prom != nil && deps.Gatherer != nil {
		r.GET("/metrics", observability.MetricsHandler(deps.Gatherer))
	}

	// API; a zero limit disables the corresponding guard
	api := r.Group("/api/v1")
	if cfg.MaxBodyBytes > 0 {
		api.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	}
	api.Use(middlewares.RequireContentType())

	users := handlers.NewUsersHandler(deps.Users)

	api.POST("/users", users.CreateUser)
	api.GET("/users", users.ListUsers)
	api.GET("/users/:id", users.GetUserByID)
	api.PUT("/users/:id", users.UpdateUser)
	api.DELETE("/users/:id", users.DeleteUser)

	return r
}
