package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// health reports the status of every registered dependency.
// GET /health
func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := healthStatusHealthy
	checks := make(map[string]string, len(r.deps.Health))
	for name, check := range r.deps.Health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = healthStatusUnhealthy
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != healthStatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": "curator",
		"version": r.deps.Version,
		"checks":  checks,
	})
}
