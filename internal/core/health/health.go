// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Check is one dependency probe; a nil Ping is skipped.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

type readiness struct {
	Status     string            `json:"status"`
	Checks     map[string]string `json:"checks"`
	Partitions []int32           `json:"partitions,omitempty"`
}

// Readiness runs every check under timeout. rr may be nil when the
// invalidation consumer is disabled.
func Readiness(timeout time.Duration, checks []Check, rr ReadinessReporter) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := readiness{Status: "ready", Checks: make(map[string]string, len(checks)+1)}
		for _, c := range checks {
			if c.Ping == nil {
				continue
			}
			if err := c.Ping(ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[c.Name] = err.Error()
				continue
			}
			out.Checks[c.Name] = "ok"
		}
		if rr != nil {
			ready, parts := rr.Readiness()
			if ready {
				out.Checks["kafka"] = "ok"
				out.Partitions = parts
			} else {
				out.Status = "not_ready"
				out.Checks["kafka"] = "no partitions assigned"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
