package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"lireddit/server/internal/config"
	"lireddit/server/internal/migrations"
	"lireddit/server/internal/orchestrator"
)

const postgresProbeName = "postgres"

// dbPinger abstracts the pgxpool.Pool methods used in Probe so that tests
// can inject a fake without standing up a real database.
type dbPinger interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresClient owns the application's pgx pool.
type PostgresClient struct {
	cfg     config.DatabaseConfig
	cb      *gobreaker.CircuitBreaker
	pool    *pgxpool.Pool
	db      dbPinger
	migrate func(ctx context.Context) error
}

// NewPostgresClient creates a client. The pool is opened by Connect.
func NewPostgresClient(cfg config.DatabaseConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{cfg: cfg, cb: cb}
}

// Connect opens the pool and pings the server. The pool is kept even when
// the ping fails, so a caller may log the error and let later queries retry.
func (c *PostgresClient) Connect(ctx context.Context) error {
	if c.pool == nil {
		poolCfg, err := pgxpool.ParseConfig(c.cfg.URL)
		if err != nil {
			return fmt.Errorf("parsing database url: %w", err)
		}
		if c.cfg.MaxConns > 0 {
			poolCfg.MaxConns = c.cfg.MaxConns
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("opening postgres pool: %w", err)
		}
		c.pool = pool
		c.db = pool
		c.migrate = func(ctx context.Context) error {
			return migrations.UpPool(ctx, pool)
		}
	}

	if err := c.db.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	return nil
}

// Pool returns the pool opened by Connect, or nil.
func (c *PostgresClient) Pool() *pgxpool.Pool {
	return c.pool
}

// Migrate applies pending migrations.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if c.migrate == nil {
		return errors.New("postgres not connected")
	}
	if err := c.migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Probe pings the server and verifies the migration version table exists.
// Persistent failures trip the circuit breaker after three consecutive
// errors.
func (c *PostgresClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		if c.db == nil {
			return nil, errors.New("postgres not connected")
		}
		if err := c.db.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}

		var exists int
		row := c.db.QueryRow(ctx,
			"SELECT 1 FROM information_schema.tables WHERE table_schema='public' AND table_name=$1",
			migrations.VersionTable,
		)
		if err := row.Scan(&exists); err != nil {
			return nil, fmt.Errorf("%s table not found: %w", migrations.VersionTable, err)
		}
		return nil, nil
	})

	return probeResult(postgresProbeName, start, err)
}

// Close releases the pool.
func (c *PostgresClient) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// probeResult builds the ProbeResult for a breaker-wrapped check.
func probeResult(name string, start time.Time, err error) orchestrator.ProbeResult {
	latency := time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return orchestrator.ProbeResult{
			Name:      name,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}
	return orchestrator.ProbeResult{
		Name:      name,
		OK:        true,
		LatencyMs: latency,
	}
}
