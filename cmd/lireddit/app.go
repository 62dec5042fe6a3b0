package main

import (
	"context"
	"log/slog"
	"time"

	"lireddit/server/internal/clients"
	"lireddit/server/internal/config"
	"lireddit/server/internal/mail"
	"lireddit/server/internal/orchestrator"
	"lireddit/server/internal/telemetry"
)

// AppContext holds the application dependencies shared across subcommands.
// It is built once in PersistentPreRunE. nats is nil when no broker URL is
// configured.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	pg           *clients.PostgresClient
	redis        *clients.RedisClient
	nats         *clients.NATSClient
	orchestrator *orchestrator.Orchestrator
}

// buildAppContext constructs the dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Creates the infrastructure clients, one circuit breaker each
//  3. Creates the orchestrator
//
// Nothing is dialled here; connections are opened by the subcommands.
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	app := &AppContext{cfg: cfg}

	// A missing collector must never block startup.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(ctx, cfg.Telemetry)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	app.pg = clients.NewPostgresClient(cfg.Database, clients.NewCircuitBreaker("postgres"))

	redisClient, err := clients.NewRedisClient(cfg.Redis, clients.NewCircuitBreaker("redis"))
	if err != nil {
		return nil, err
	}
	app.redis = redisClient

	// An interface holding a nil *NATSClient is not nil, so the orchestrator
	// only sees the client when one exists.
	var streams orchestrator.StreamProvisioner
	if cfg.NATS.URL != "" {
		app.nats = clients.NewNATSClient(cfg.NATS, clients.NewCircuitBreaker("nats"))
		streams = app.nats
	}

	app.orchestrator = orchestrator.New(app.pg, app.redis, streams)

	return app, nil
}

// mailer returns an SMTP mailer when a host is configured, otherwise one
// that only logs.
func (a *AppContext) mailer(logger *slog.Logger) mail.Mailer {
	m := a.cfg.Mail
	if m.SMTPHost == "" {
		return mail.NewLogMailer(logger)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     m.SMTPHost,
		Port:     m.SMTPPort,
		Username: m.Username,
		Password: m.Password,
		From:     m.From,
	}, logger)
}

// Close releases every client and flushes telemetry.
func (a *AppContext) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	if err := a.redis.Close(); err != nil {
		slog.Warn("closing redis", "err", err)
	}
	a.pg.Close()

	if a.otelProvider != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(shutCtx); err != nil {
			slog.Warn("OTEL shutdown error", "err", err)
		}
	}
}
