package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// Check is one readiness dependency, such as a Redis or Postgres ping.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthReport is the body served by HealthHandler.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler runs every check concurrently, each bounded by timeout, and
// answers 200 with status "ready" or 503 with status "not_ready". Without
// checks it is a liveness probe answering "alive".
func HealthHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			writeHealth(w, http.StatusOK, HealthReport{Status: "alive"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report := HealthReport{Status: "ready", Checks: make(map[string]string, len(checks))}
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, c := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result := "ok"
				if err := c.Fn(ctx); err != nil {
					result = "error"
					log.ErrorContext(ctx, "readiness check failed",
						logger.Component("health"), slog.String("check", c.Name), logger.Error(err))
				}
				mu.Lock()
				report.Checks[c.Name] = result
				mu.Unlock()
			}()
		}
		wg.Wait()

		status := http.StatusOK
		for _, result := range report.Checks {
			if result != "ok" {
				report.Status = "not_ready"
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeHealth(w, status, report)
	}
}

func writeHealth(w http.ResponseWriter, status int, report HealthReport) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
