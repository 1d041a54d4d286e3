package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GinLogrusLogger logs one line per request through logrus. Health probes are
// logged at debug level.
func GinLogrusLogger(principal string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.WithFields(log.Fields{
			"principal": principal,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).Round(time.Microsecond),
			"client":    c.ClientIP(),
		})
		msg := c.Request.Method + " " + path
		switch {
		case len(c.Errors) > 0:
			entry.Warnf("%s: %s", msg, c.Errors.String())
		case c.Writer.Status() >= 500:
			entry.Error(msg)
		case path == "/healthz":
			entry.Debug(msg)
		default:
			entry.Info(msg)
		}
	}
}
