package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dependency statuses.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDegraded = "degraded"
)

const (
	healthTimeout = 5 * time.Second
	checkTimeout  = 2 * time.Second
)

// HealthChecker reports whether one dependency can serve requests.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the analysis store.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Dependency is one named health check. An optional dependency that fails
// degrades the service; a required one takes it down and blocks readiness.
type Dependency struct {
	Name     string
	Checker  HealthChecker
	Optional bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status     string `json:"status"`
	Optional   bool   `json:"optional,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

// HealthReport aggregates every check.
type HealthReport struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Failing returns the names of the failed dependencies, sorted.
func (h HealthReport) Failing() []string {
	var out []string
	for name, c := range h.Checks {
		if c.Status != StatusUp {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RunChecks checks every dependency concurrently, each under its own timeout.
func RunChecks(ctx context.Context, deps []Dependency) HealthReport {
	report := HealthReport{
		Status:    StatusUp,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(deps)),
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, d := range deps {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			err := d.Checker.Check(pctx)

			res := CheckResult{Status: StatusUp, Optional: d.Optional, DurationMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status, res.Message = StatusDown, err.Error()
			}
			mu.Lock()
			report.Checks[d.Name] = res
			switch {
			case err == nil:
			case !d.Optional:
				report.Status = StatusDown
			case report.Status == StatusUp:
				report.Status = StatusDegraded
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// HealthHandler reports every check. Only a failed required check turns the
// response into a 503.
func HealthHandler(deps []Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		report := RunChecks(ctx, deps)
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, report)
	}
}

// ReadinessHandler answers whether analyses can be accepted: every required
// dependency must pass. Optional dependencies are not checked.
func ReadinessHandler(deps []Dependency) http.HandlerFunc {
	var required []Dependency
	for _, d := range deps {
		if !d.Optional {
			required = append(required, d)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		report := RunChecks(ctx, required)
		body := map[string]any{"status": "ready", "timestamp": report.Timestamp}
		code := http.StatusOK
		if failing := report.Failing(); len(failing) > 0 {
			body["status"], body["failing"] = "not_ready", failing
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, body)
	}
}

// LivenessHandler only proves the process serves HTTP.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
