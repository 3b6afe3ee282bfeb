package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/temcen/crosssale/internal/config"
)

func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: cfg.AllowedMethods,
		AllowHeaders: cfg.AllowedHeaders,
	}

	// Wildcard origins cannot be combined with credentials.
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			return cors.New(corsConfig)
		}
	}
	corsConfig.AllowCredentials = true

	return cors.New(corsConfig)
}
