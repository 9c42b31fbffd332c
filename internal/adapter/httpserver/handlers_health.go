package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/blastdesk/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.runHealthChecks(c, startupProbeTimeout)
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.runHealthChecks(c, readinessProbeTimeout)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// runHealthChecks probes every dependency concurrently and reports each result.
func (s *Server) runHealthChecks(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(s.healthChecks))
		healthy = true
	)
	for _, hc := range s.healthChecks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := hc.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[hc.Name] = err.Error()
				healthy = false
				return
			}
			results[hc.Name] = "ok"
		}()
	}
	wg.Wait()

	if !healthy {
		return writeJSON(c, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Checks: results})
	}
	return writeJSON(c, http.StatusOK, healthResponse{Status: "ready", Checks: results})
}

func (s *Server) handleVersion(c echo.Context) error {
	return writeJSON(c, http.StatusOK, version.Get())
}
