package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

var startTime = time.Now()

// CheckFunc checks a dependency such as the result store or cache.
type CheckFunc func(ctx context.Context) error

type HealthChecker struct {
	mu          sync.RWMutex
	checks      map[string]CheckFunc
	lastRequest time.Time
	requests    int64
	timeout     time.Duration
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	LastRequest time.Time         `json:"last_request,omitempty"`
	Requests    int64             `json:"requests"`
	Uptime      string            `json:"uptime"`
	Errors      map[string]string `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]CheckFunc),
		timeout: 2 * time.Second,
	}
}

// Register adds a named dependency check.
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RecordRequest marks that a request was served.
func (h *HealthChecker) RecordRequest() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRequest = time.Now()
	h.requests++
}

// Check runs every registered check and returns the aggregate status.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	status := HealthStatus{
		Status:      "healthy",
		Timestamp:   time.Now(),
		LastRequest: h.lastRequest,
		Requests:    h.requests,
		Uptime:      time.Since(startTime).String(),
	}
	h.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := checks[name](checkCtx)
		cancel()
		if err != nil {
			if status.Errors == nil {
				status.Errors = make(map[string]string)
			}
			status.Errors[name] = err.Error()
			status.Status = "unhealthy"
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
