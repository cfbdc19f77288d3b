package middleware

import (
	"strconv"
	"time"

	"facegate/internal/observability"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestMetrics protokolliert jede Anfrage und misst ihre Dauer
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   status,
			"duration": duration.String(),
			"ip":       c.ClientIP(),
		}).Debug("request")

		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(status),
		).Observe(duration.Seconds())
	}
}
