package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/cobuy/internal/metrics"
)

// PrometheusMiddleware records HTTP request duration and count per route
// pattern, and counts server errors.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		code := strconv.Itoa(status)
		path := c.FullPath() // pattern, not the raw path, to bound cardinality
		if path == "" {
			path = "unmatched"
		}

		metrics.RequestDuration.WithLabelValues(c.Request.Method, path, code).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, code).Inc()

		if status >= 500 {
			metrics.ErrorsTotal.WithLabelValues("http_5xx").Inc()
		}
	}
}
