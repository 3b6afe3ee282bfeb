package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/pkg/models"
)

const callerKey = "caller"

// Authenticator resolves a bearer credential to a caller.
type Authenticator interface {
	Authenticate(credential string) (models.Caller, error)
}

func Auth(auth Authenticator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "MISSING_AUTHORIZATION",
					"message": "Authorization header is required",
				},
			})
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_AUTHORIZATION_FORMAT",
					"message": "Authorization header must be in format 'Bearer <token>'",
				},
			})
			return
		}

		caller, err := auth.Authenticate(tokenParts[1])
		if err != nil {
			logger.WithError(err).WithField("client_ip", c.ClientIP()).Warn("Rejected credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFromContext returns the caller set by Auth.
func CallerFromContext(c *gin.Context) (models.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return models.Caller{}, false
	}
	caller, ok := v.(models.Caller)
	return caller, ok
}
