package config

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

func PerformanceLogger(slowThreshold time.Duration) gin.HandlerFunc {
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		log.Printf("[PERF] %s %s | Status: %d | Time: %v",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency)

		// Reconciliation runs are expected to be slow; everything else is flagged.
		if latency > slowThreshold && c.FullPath() != "/api/reconcile" {
			log.Printf("[PERF] SLOW REQUEST: %s %s took %v",
				c.Request.Method, c.Request.URL.Path, latency)
		}
	}
}
