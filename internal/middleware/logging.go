package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger writes one structured entry per request. Server errors log at error
// level, client errors at warn.
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency":     time.Since(start),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		}
		if query != "" {
			fields["query"] = query
		}
		if caller, ok := CallerFromContext(c); ok {
			fields["terminal"] = caller.Terminal
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP Request")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}

func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"panic":     recovered,
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"client_ip": c.ClientIP(),
		}).Error("Panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_SERVER_ERROR",
				"message": "Internal server error",
			},
		})
	})
}
