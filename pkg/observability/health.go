package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type dependency struct {
	name     string
	pinger   Pinger
	required bool
}

// HealthChecker pings registered dependencies. A failing required
// dependency makes the status unhealthy, an optional one only degraded.
type HealthChecker struct {
	deps []dependency
	now  func() time.Time
}

// NewHealthChecker creates a checker with no dependencies
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{now: time.Now}
}

// Register adds a dependency. Later registrations of the same name replace
// earlier ones.
func (h *HealthChecker) Register(name string, pinger Pinger, required bool) {
	for i, d := range h.deps {
		if d.name == name {
			h.deps[i] = dependency{name: name, pinger: pinger, required: required}
			return
		}
	}
	h.deps = append(h.deps, dependency{name: name, pinger: pinger, required: required})
}

// Names returns the registered dependency names, sorted
func (h *HealthChecker) Names() []string {
	names := make([]string, 0, len(h.deps))
	for _, d := range h.deps {
		names = append(names, d.name)
	}
	sort.Strings(names)
	return names
}

// Check pings every dependency
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    h.now(),
		Dependencies: make(map[string]DependencyStatus, len(h.deps)),
	}

	for _, d := range h.deps {
		depStatus := h.ping(ctx, d.pinger)
		status.Dependencies[d.name] = depStatus

		if depStatus.Status != StatusUnhealthy {
			continue
		}
		if d.required {
			status.Status = StatusUnhealthy
		} else if status.Status != StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) ping(ctx context.Context, pinger Pinger) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
	}

	err := pinger.Ping(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}

	return status
}

// Readiness serves the health status as JSON, with 503 when unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(status)
}
