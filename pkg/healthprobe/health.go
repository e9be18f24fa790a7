package healthprobe

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides liveness and readiness checks. Readiness also
// fails when the last recorded cycle is older than the staleness bound.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu           sync.RWMutex
	lastCycle    time.Time
	lastErr      string
	maxStaleness time.Duration
	now          func() time.Time
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		now:       time.Now,
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetMaxStaleness bounds the age of the last cycle. Zero disables the check.
func (h *HealthChecker) SetMaxStaleness(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxStaleness = d
}

// RecordCycle notes a finished cycle and its error, if any.
func (h *HealthChecker) RecordCycle(at time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = at
	h.lastErr = ""
	if err != nil {
		h.lastErr = err.Error()
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime,omitempty"`
	Message   string `json:"message,omitempty"`
	LastCycle string `json:"lastCycle,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

func (h *HealthChecker) response(status string) HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := HealthResponse{
		Status:    status,
		Uptime:    time.Since(h.startTime).String(),
		LastError: h.lastErr,
	}
	if !h.lastCycle.IsZero() {
		resp.LastCycle = h.lastCycle.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *HealthChecker) stale() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.maxStaleness <= 0 || h.lastCycle.IsZero() {
		return false
	}
	return h.now().Sub(h.lastCycle) > h.maxStaleness
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.response("healthy"))
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready, 503 Service Unavailable if not.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		switch {
		case !h.ready.Load():
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "application is starting",
			})
		case h.stale():
			resp := h.response("stale")
			resp.Message = "last cycle is older than the staleness bound"
			writeJSON(w, http.StatusServiceUnavailable, resp)
		default:
			writeJSON(w, http.StatusOK, h.response("ready"))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
