package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"lireddit/server/internal/telemetry"
)

// ErrBootstrapInProgress is returned when RunBootstrap is called while a
// bootstrap is already running.
var ErrBootstrapInProgress = errors.New("bootstrap already in progress")

// Orchestrator runs bootstrap phases and health probes.
type Orchestrator struct {
	pg    Migrator
	redis RedisProber
	nats  StreamProvisioner

	bootstrapInProgress atomic.Bool
	lastResult          *BootstrapResult
	resultMu            sync.RWMutex
}

// New constructs an Orchestrator. nats may be nil when no broker is
// configured; its phase is then reported as skipped and it is left out of
// deep health.
func New(pg Migrator, redis RedisProber, nats StreamProvisioner) *Orchestrator {
	return &Orchestrator{
		pg:    pg,
		redis: redis,
		nats:  nats,
	}
}

// RunBootstrap runs all phases concurrently. A phase failure is recorded in
// the result but does not cancel the other phases; a NATS failure is only
// degraded and keeps the service ready. Returns
// ErrBootstrapInProgress if a bootstrap is already running.
func (o *Orchestrator) RunBootstrap(ctx context.Context) (*BootstrapResult, error) {
	if !o.bootstrapInProgress.CompareAndSwap(false, true) {
		return nil, ErrBootstrapInProgress
	}
	defer o.bootstrapInProgress.Store(false)

	result := NewBootstrapResult()

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "lireddit.bootstrap")
	defer span.End()

	slog.InfoContext(ctx, "bootstrap started")

	// A plain errgroup (no derived context) keeps one failing phase from
	// cancelling its siblings.
	var g errgroup.Group

	g.Go(func() error {
		phase := PhaseFromError(PhasePostgres, o.pg.Migrate(ctx))
		logPhase(ctx, phase)
		result.Set(phase)
		return nil
	})

	g.Go(func() error {
		phase := probeToPhase(PhaseRedis, o.redis.Probe(ctx))
		logPhase(ctx, phase)
		result.Set(phase)
		return nil
	})

	g.Go(func() error {
		phase := PhaseResult{Name: PhaseNATS, Status: StatusSkipped}
		if o.nats != nil {
			phase = OptionalPhaseFromError(PhaseNATS, o.nats.ProvisionStreams(ctx))
		}
		logPhase(ctx, phase)
		result.Set(phase)
		return nil
	})

	_ = g.Wait()
	result.Finish()

	span.SetAttributes(attribute.String("bootstrap.status", result.Status))
	if result.Status == StatusError {
		span.SetStatus(codes.Error, "one or more bootstrap phases failed")
		slog.WarnContext(ctx, "bootstrap completed with errors", "status", result.Status)
	} else {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "bootstrap completed", "status", result.Status)
	}

	o.Record(result)
	return result, nil
}

// Record stores the result of a bootstrap performed outside RunBootstrap, as
// the server does when it initializes dependencies in a fixed order.
func (o *Orchestrator) Record(result *BootstrapResult) {
	o.resultMu.Lock()
	o.lastResult = result
	o.resultMu.Unlock()
}

// RunDeepHealth probes every configured dependency concurrently.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	probes := map[string]func(context.Context) ProbeResult{
		PhasePostgres: o.pg.Probe,
		PhaseRedis:    o.redis.Probe,
	}
	if o.nats != nil {
		probes[PhaseNATS] = o.nats.Probe
	}

	results := make(map[string]ProbeResult, len(probes))
	var mu sync.Mutex
	var g errgroup.Group

	for name, probe := range probes {
		g.Go(func() error {
			r := probe(ctx)
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// IsBootstrapInProgress returns true while a bootstrap run is active.
func (o *Orchestrator) IsBootstrapInProgress() bool {
	return o.bootstrapInProgress.Load()
}

// IsReady returns true if the last bootstrap completed with StatusOK.
func (o *Orchestrator) IsReady() bool {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult != nil && o.lastResult.Status == StatusOK
}

// logPhase emits a trace-correlated log for a bootstrap phase result.
// Errors log at WARN so they are visible without being fatal.
func logPhase(ctx context.Context, p PhaseResult) {
	switch p.Status {
	case StatusOK:
		slog.InfoContext(ctx, "bootstrap phase ok", "phase", p.Name)
	case StatusSkipped:
		slog.InfoContext(ctx, "bootstrap phase skipped", "phase", p.Name)
	default:
		slog.WarnContext(ctx, "bootstrap phase failed", "phase", p.Name, "error", p.Error)
	}
}

// probeToPhase converts a ProbeResult to a PhaseResult.
func probeToPhase(name string, p ProbeResult) PhaseResult {
	if p.OK {
		return PhaseResult{Name: name, Status: StatusOK}
	}
	return PhaseResult{Name: name, Status: StatusError, Error: p.Error}
}

// PhaseFromError returns an ok phase for a nil error and a failed one
// otherwise.
func PhaseFromError(name string, err error) PhaseResult {
	if err == nil {
		return PhaseResult{Name: name, Status: StatusOK}
	}
	return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
}

// OptionalPhaseFromError is PhaseFromError for a dependency the service can
// run without: a failure is reported as degraded and leaves readiness intact.
func OptionalPhaseFromError(name string, err error) PhaseResult {
	phase := PhaseFromError(name, err)
	if err != nil {
		phase.Status = StatusDegraded
	}
	return phase
}
