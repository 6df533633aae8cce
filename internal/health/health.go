package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Response represents the full health check response
type Response struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	fn       CheckFunc
	optional bool
}

// Checker runs registered dependency checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	version string
	timeout time.Duration
}

// NewChecker creates a health checker. timeout bounds each individual check.
func NewChecker(version string, timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]check),
		version: version,
		timeout: timeout,
	}
}

// Register adds a required dependency. Its failure makes the service unhealthy.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn}
}

// RegisterOptional adds a dependency whose failure only degrades the service.
func (c *Checker) RegisterOptional(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, optional: true}
}

// DatabaseCheck probes Postgres connectivity with a round-trip query.
func DatabaseCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var one int
		return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	}
}

// RedisCheck probes Redis connectivity.
func RedisCheck(client *redis.Client) CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Check performs a basic liveness check.
func (c *Checker) Check(_ context.Context) *Response {
	return &Response{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck runs every registered check in parallel and aggregates the result.
func (c *Checker) DeepCheck(ctx context.Context) *Response {
	response := &Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ch := range c.checks {
		checks[name] = ch
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, ch := range checks {
		wg.Add(1)
		go func(name string, ch check) {
			defer wg.Done()
			result := c.run(ctx, ch)
			mu.Lock()
			response.Components[name] = result
			mu.Unlock()
		}(name, ch)
	}
	wg.Wait()

	for _, comp := range response.Components {
		switch comp.Status {
		case StatusUnhealthy:
			response.Status = StatusUnhealthy
		case StatusDegraded:
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
		}
	}

	return response
}

func (c *Checker) run(ctx context.Context, ch check) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := ch.fn(ctx); err != nil {
		status := StatusUnhealthy
		if ch.optional {
			status = StatusDegraded
		}
		return ComponentHealth{
			Status:   status,
			Message:  err.Error(),
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// Liveness reports whether the process is alive.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.Check(r.Context()), http.StatusOK)
}

// Readiness reports whether the service can take traffic. A degraded
// service still accepts traffic.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	response := h.checker.DeepCheck(r.Context())

	status := http.StatusOK
	if response.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeResponse(w, response, status)
}

// Health serves the combined endpoint; ?deep=true runs dependency checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") == "true" {
		h.Readiness(w, r)
		return
	}
	h.Liveness(w, r)
}

func writeResponse(w http.ResponseWriter, response *Response, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
