package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/runkit/observability"
)

// Health reports service health aggregated from checkers. A down component
// answers 503; degraded still answers 200.
func Health(serviceName, version string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := observability.Check(c.Request.Context(), serviceName, version, checkers...)
		status := http.StatusOK
		if h.Status == observability.HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}
