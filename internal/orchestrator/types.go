package orchestrator

import "sync"

// Status values used across BootstrapResult and PhaseResult. A degraded
// phase failed but the service can run without it.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
	StatusDegraded   = "degraded"
)

// BootstrapResult is the aggregate result of a bootstrap run. Phases may be
// written concurrently; hold the embedded mutex while writing or marshalling.
type BootstrapResult struct {
	sync.Mutex
	Status string                 `json:"status"`
	Phases map[string]PhaseResult `json:"phases"`
}

// NewBootstrapResult returns an in-progress result with no phases.
func NewBootstrapResult() *BootstrapResult {
	return &BootstrapResult{
		Status: StatusInProgress,
		Phases: make(map[string]PhaseResult),
	}
}

// Set records a phase.
func (r *BootstrapResult) Set(p PhaseResult) {
	r.Lock()
	defer r.Unlock()
	r.Phases[p.Name] = p
}

// Finish derives the overall status: error if any phase failed, ok otherwise.
// Degraded and skipped phases do not fail the run.
func (r *BootstrapResult) Finish() {
	r.Lock()
	defer r.Unlock()
	r.Status = StatusOK
	for _, phase := range r.Phases {
		if phase.Status == StatusError {
			r.Status = StatusError
			return
		}
	}
}

// PhaseResult represents the outcome of a single bootstrap phase.
type PhaseResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ProbeResult is returned by RunDeepHealth for each dependency.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}
