package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/busca-ativa-api/internal/service"
)

// Metrics records request counts and latency per route template. Unmatched
// paths share one label so random URLs cannot grow the series count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
