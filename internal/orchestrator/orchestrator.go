// Package orchestrator runs the one-shot infrastructure bootstrap (schema
// migrations, cache connectivity, event stream provisioning) and the deep
// health probes, and tracks readiness.
package orchestrator

import "context"

// Phase and probe names.
const (
	PhasePostgres = "postgres"
	PhaseRedis    = "redis"
	PhaseNATS     = "nats"
)

// Migrator is satisfied by *clients.PostgresClient.
type Migrator interface {
	Migrate(ctx context.Context) error
	Probe(ctx context.Context) ProbeResult
}

// RedisProber is satisfied by *clients.RedisClient.
type RedisProber interface {
	Probe(ctx context.Context) ProbeResult
}

// StreamProvisioner is satisfied by *clients.NATSClient.
type StreamProvisioner interface {
	ProvisionStreams(ctx context.Context) error
	Probe(ctx context.Context) ProbeResult
}
