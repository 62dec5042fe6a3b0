package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"lireddit/server/internal/orchestrator"
)

// orchestratorService is what the operational routes need from the
// orchestrator; the GraphQL route never touches it.
type orchestratorService interface {
	RunBootstrap(ctx context.Context) (*orchestrator.BootstrapResult, error)
	RunDeepHealth(ctx context.Context) map[string]orchestrator.ProbeResult
	IsReady() bool
	IsBootstrapInProgress() bool
}

// Handler serves the operational routes that sit beside /graphql.
type Handler struct {
	orchestrator     orchestratorService
	bootstrapTimeout time.Duration
}

// Bootstrap re-runs migrations, the Redis check and NATS provisioning in the
// background, for operators recovering a server that started with a backing
// service down. Responds 202, or 409 while a run is still going.
func (h *Handler) Bootstrap(c *gin.Context) {
	if h.orchestrator.IsBootstrapInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}
	// Detached from the request: the caller gets its 202 long before the run ends.
	go func() {
		ctx := context.Background()
		if h.bootstrapTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.bootstrapTimeout)
			defer cancel()
		}
		//nolint:errcheck
		h.orchestrator.RunBootstrap(ctx) //nolint:contextcheck
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Health is the liveness check. It touches no backing service.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "mode": "shallow"})
}

// DeepHealth pings Postgres, Redis and (when configured) NATS. Any failing
// dependency turns the response into a 503 naming it under "failing".
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.orchestrator.RunDeepHealth(c.Request.Context())
	failing := failingDependencies(probes)

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "unhealthy",
			"failing":      failing,
			"dependencies": probes,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "dependencies": probes})
}

// failingDependencies returns the names of failed probes in sorted order.
func failingDependencies(probes map[string]orchestrator.ProbeResult) []string {
	var failing []string
	for name, p := range probes {
		if !p.OK {
			failing = append(failing, name)
		}
	}
	slices.Sort(failing)
	return failing
}

// Ready turns 200 once the schema is migrated and Redis answered; a degraded
// NATS does not hold it back.
func (h *Handler) Ready(c *gin.Context) {
	code := http.StatusServiceUnavailable
	if h.orchestrator.IsReady() {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{"ready": code == http.StatusOK})
}
