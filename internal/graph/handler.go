package graph

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/redis/go-redis/v9"

	"lireddit/server/internal/loader"
	"lireddit/server/internal/metrics"
	"lireddit/server/internal/session"
)

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	Schema *graphql.Schema
	Redis  redis.UniversalClient
	// NewLoaders is called once per request.
	NewLoaders func() *loader.Loaders
	// Playground serves GraphQL Playground to browsers on GET.
	Playground bool
	Logger     *slog.Logger
}

// NewHandler serves the schema. The session is taken from the request
// context (see session.WithSession), so session middleware must run first.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(&handler.Config{
		Schema:     cfg.Schema,
		Pretty:     false,
		GraphiQL:   false,
		Playground: cfg.Playground,
		ResultCallbackFn: func(ctx context.Context, params *graphql.Params, result *graphql.Result, _ []byte) {
			op := metrics.OperationName(params.OperationName)
			status := "ok"
			if result.HasErrors() {
				status = "error"
				logger.DebugContext(ctx, "graphql errors", "operation", op, "errors", result.Errors)
			}
			metrics.GraphQLOperations.WithLabelValues(op, status).Inc()
			if rc := FromContext(ctx); rc != nil {
				metrics.GraphQLDuration.WithLabelValues(op).Observe(time.Since(rc.start).Seconds())
			}
		},
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := &RequestContext{
			Request: r,
			Writer:  w,
			Session: session.FromContext(r.Context()),
			Redis:   cfg.Redis,
			start:   time.Now(),
		}
		if cfg.NewLoaders != nil {
			rc.Loaders = cfg.NewLoaders()
		}
		h.ContextHandler(WithRequestContext(r.Context(), rc), w, r)
	})
}
