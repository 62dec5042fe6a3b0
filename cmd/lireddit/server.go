package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"lireddit/server/internal/api"
	"lireddit/server/internal/graph"
	"lireddit/server/internal/loader"
	"lireddit/server/internal/orchestrator"
	"lireddit/server/internal/session"
	"lireddit/server/internal/store"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the lireddit GraphQL server",
	Long: `Start the lireddit server on the configured port (default :4000).

Startup runs migrations, connects Redis, provisions NATS streams when a
broker is configured, and mounts the GraphQL endpoint at /graphql. The
server shuts down cleanly on SIGTERM or SIGINT.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.Close()

	logger := slog.Default()
	result := orchestrator.NewBootstrapResult()

	// 1. Database. A failed connection is only logged; migrations decide
	// whether startup can continue.
	if err := app.pg.Connect(ctx); err != nil {
		logger.Error("database connection failed", "err", err)
	}
	migrateErr := app.pg.Migrate(ctx)
	result.Set(orchestrator.PhaseFromError(orchestrator.PhasePostgres, migrateErr))
	if migrateErr != nil {
		return migrateErr
	}

	// 2. HTTP application with reverse-proxy trust.
	router, err := api.NewRouter(api.RouterConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		TrustedProxies:   cfg.Server.TrustedProxies,
		Orchestrator:     app.orchestrator,
		BootstrapTimeout: cfg.Bootstrap.Timeout,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	// 3. Cache server.
	redisErr := app.redis.Connect(ctx)
	result.Set(orchestrator.PhaseFromError(orchestrator.PhaseRedis, redisErr))
	if redisErr != nil {
		return redisErr
	}

	if app.nats != nil {
		natsErr := app.nats.ProvisionStreams(ctx)
		if natsErr != nil {
			logger.Warn("provisioning NATS streams failed, continuing without them", "err", natsErr)
		}
		result.Set(orchestrator.OptionalPhaseFromError(orchestrator.PhaseNATS, natsErr))
	} else {
		result.Set(orchestrator.PhaseResult{Name: orchestrator.PhaseNATS, Status: orchestrator.StatusSkipped})
	}

	// 4. CORS and sessions.
	router.EnableCORS(cfg.CORS.Origin)

	sessions := session.NewRedisStore(app.redis.Client(), session.Options{
		KeyPrefix: cfg.Session.KeyPrefix,
		MaxAge:    cfg.Session.MaxAge,
		Secure:    cfg.IsProduction(),
		SameSite:  http.SameSiteLaxMode,
	}, []byte(cfg.Session.Secret))

	graphqlMiddleware := []gin.HandlerFunc{}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter, err := api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.MaxClients)
		if err != nil {
			return err
		}
		graphqlMiddleware = append(graphqlMiddleware, api.RateLimit(limiter))
	}
	graphqlMiddleware = append(graphqlMiddleware, api.Session(sessions, cfg.Session.CookieName, logger))

	// 5. Schema from the post and user resolvers.
	db := store.New(app.pg.Pool())

	var events graph.Publisher
	if app.nats != nil {
		events = app.nats
	}

	schema, err := graph.NewSchema(
		graph.NewPostResolver(db, events, logger),
		graph.NewUserResolver(db, app.mailer(logger), cfg.CORS.Origin, logger),
	)
	if err != nil {
		return fmt.Errorf("building schema: %w", err)
	}

	// 6. GraphQL endpoint. Each request gets fresh loaders.
	router.MountGraphQL(graph.NewHandler(graph.HandlerConfig{
		Schema: &schema,
		Redis:  app.redis.Client(),
		NewLoaders: func() *loader.Loaders {
			return loader.New(db, db)
		},
		Playground: cfg.Server.Playground,
		Logger:     logger,
	}), graphqlMiddleware...)

	result.Finish()
	app.orchestrator.Record(result)

	// 7. Listen.
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", cfg.Server.Port, err)
	}

	srv := &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", ln.Addr().String(), "graphql", "/graphql")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
