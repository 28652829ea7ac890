package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Component check statuses.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
)

// Overall readiness statuses.
const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
)

// CheckFunc reports nil when a component is usable.
type CheckFunc func(ctx context.Context) error

// RoastingFunc reports whether a roast could currently be admitted.
type RoastingFunc func(ctx context.Context) (bool, error)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// LivenessStatus is the /health payload.
type LivenessStatus struct {
	Status          string `json:"status"`
	RoastingEnabled bool   `json:"roasting_enabled"`
}

// ReadinessStatus is the /ready payload.
type ReadinessStatus struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs component checks for the readiness probe.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	roasting RoastingFunc

	checkTimeout time.Duration
	logger       *slog.Logger
}

// New creates a checker. A zero timeout means 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
		logger:       slog.Default().With("component", "health.checker"),
	}
}

// RegisterCheck adds or replaces the check for a component.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetRoastingProbe sets the function behind the roasting_enabled flag.
func (c *Checker) SetRoastingProbe(fn RoastingFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roasting = fn
}

// ListChecks returns the registered component names, sorted.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is up, together with whether
// roasting is currently possible. A failing roasting probe reads as
// disabled.
func (c *Checker) CheckLiveness(ctx context.Context) LivenessStatus {
	c.mu.RLock()
	probe := c.roasting
	c.mu.RUnlock()

	status := LivenessStatus{Status: StatusOK}
	if probe == nil {
		return status
	}

	enabled, err := probe(ctx)
	if err != nil {
		c.logger.Warn("roasting probe failed", "error", err)
		return status
	}
	status.RoastingEnabled = enabled
	return status
}

// CheckReadiness runs every registered check concurrently. Any failing
// check makes the result degraded.
func (c *Checker) CheckReadiness(ctx context.Context) ReadinessStatus {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		resultMu sync.Mutex
		wg       sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for name, result := range results {
		if result.Status != StatusOK {
			status = StatusDegraded
			c.logger.Warn("readiness check failed", "check", name, "message", result.Message)
		}
	}

	return ReadinessStatus{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-checkCtx.Done():
		err = errCheckTimeout
	}

	result := CheckResult{
		Status:     StatusOK,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
