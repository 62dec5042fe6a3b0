package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName is attached to request spans.
	ServiceName string
	// TrustedProxies lists the CIDRs whose X-Forwarded-For is honored when
	// resolving the client IP. Empty trusts no proxy.
	TrustedProxies   []string
	Orchestrator     orchestratorService
	BootstrapTimeout time.Duration
	Logger           *slog.Logger
}

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
	cors   *cors.Cors
}

// NewRouter constructs a Router with the base middleware chain and the
// operational routes registered. The chain order is:
//  1. Recovery, panic to 500
//  2. Tracing, a span per request
//  3. RequestLogger, one structured line per request
//
// The GraphQL endpoint is added later with MountGraphQL.
func NewRouter(cfg RouterConfig) (*Router, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "lireddit"
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("setting trusted proxies: %w", err)
	}

	engine.Use(Recovery(logger))
	engine.Use(Tracing(serviceName))
	engine.Use(RequestLogger(logger))

	h := &Handler{orchestrator: cfg.Orchestrator, bootstrapTimeout: cfg.BootstrapTimeout}

	v1 := engine.Group("/api/v1")
	v1.POST("/bootstrap", h.Bootstrap)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{engine: engine}, nil
}

// EnableCORS allows credentialed cross-origin requests from origin only.
// Preflights get back whatever request headers they asked for.
func (r *Router) EnableCORS(origin string) {
	r.cors = cors.New(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

// MountGraphQL serves h at /graphql for GET and POST. The extra middleware
// runs for the GraphQL routes only, in order.
func (r *Router) MountGraphQL(h http.Handler, middleware ...gin.HandlerFunc) {
	group := r.engine.Group("/graphql", middleware...)
	group.POST("", gin.WrapH(h))
	group.GET("", gin.WrapH(h))
}

// Handler returns the router as an http.Handler, with CORS applied in front
// of the engine when enabled.
func (r *Router) Handler() http.Handler {
	if r.cors != nil {
		return r.cors.Handler(r.engine)
	}
	return r.engine
}
