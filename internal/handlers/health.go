package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/services"
)

type HealthHandler struct {
	logger        *logrus.Logger
	healthService *services.HealthService
}

func NewHealthHandler(logger *logrus.Logger, healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		logger:        logger,
		healthService: healthService,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := h.healthService.CheckHealth(c.Request.Context())

	var httpStatus int
	switch status.Status {
	case "healthy", "degraded":
		httpStatus = http.StatusOK
	case "unhealthy":
		httpStatus = http.StatusServiceUnavailable
	default:
		httpStatus = http.StatusInternalServerError
	}

	c.JSON(httpStatus, status)
}
