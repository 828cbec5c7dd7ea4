package crm_api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthProbeTimeout = 2 * time.Second

// HealthCheck probes one dependency. A failing optional dependency degrades
// the service; a failing critical one makes it unavailable.
type HealthCheck struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		results := make(map[string]string, len(checks))

		for _, check := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
			err := check.Probe(ctx)
			cancel()

			if err == nil {
				results[check.Name] = "up"
				continue
			}
			results[check.Name] = "down"
			if check.Critical {
				status, code = "unavailable", http.StatusServiceUnavailable
			} else if code == http.StatusOK {
				status = "degraded"
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"checks":    results,
			"timestamp": time.Now().UTC(),
		})
	}
}
