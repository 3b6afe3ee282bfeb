package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/services"
	"github.com/temcen/crosssale/internal/validation"
	"github.com/temcen/crosssale/pkg/models"
)

type CrossSaleHandler struct {
	service services.CrossSaleServiceInterface
	schemas *validation.SchemaValidator
	logger  *logrus.Logger
}

func NewCrossSaleHandler(service services.CrossSaleServiceInterface, schemas *validation.SchemaValidator, logger *logrus.Logger) *CrossSaleHandler {
	return &CrossSaleHandler{
		service: service,
		schemas: schemas,
		logger:  logger,
	}
}

type recommendationsParams struct {
	Sex          string `form:"sex" binding:"omitempty,oneof=Male Female"`
	Client       string `form:"client" binding:"omitempty,uuid"`
	Number       int    `form:"number" binding:"required,min=1,max=100"`
	ProductType  string `form:"proposed_product_type" binding:"required,oneof=all services products"`
	CurrentItems string `form:"current_items"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Recalculate handles GET sales/crosssale/recalculate.
func (h *CrossSaleHandler) Recalculate(c *gin.Context) {
	result, err := h.service.Recalculate(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "RECALCULATION_FAILED", "Failed to recalculate recommendations")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Recommendations handles GET sales/crosssale/recommendations.
func (h *CrossSaleHandler) Recommendations(c *gin.Context) {
	var params recommendationsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	if (params.Sex == "") == (params.Client == "") {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "exactly one of sex and client is required")
		return
	}

	query := models.RecommendationQuery{
		Sex:         models.ClientSex(params.Sex),
		Number:      params.Number,
		ProductType: models.ProductType(params.ProductType),
	}
	if params.Client != "" {
		query.ClientID = uuid.MustParse(params.Client)
	}

	items, err := parseItems(params.CurrentItems)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CURRENT_ITEMS", "current_items must be comma-separated product identifiers")
		return
	}
	query.CurrentItems = items

	records, err := h.service.Recommendations(c.Request.Context(), query)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"sex":    params.Sex,
			"client": params.Client,
		}).Error("Failed to load recommendations")
		respondError(c, http.StatusInternalServerError, "RECOMMENDATIONS_FAILED", "Failed to load recommendations")
		return
	}
	if records == nil {
		records = []models.RecommendationRecord{}
	}

	c.JSON(http.StatusOK, records)
}

// ReportSuccess handles POST sales/crosssale/report_success.
func (h *CrossSaleHandler) ReportSuccess(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Failed to read request body")
		return
	}

	if result := h.schemas.ValidateReport(body); !result.Valid {
		c.JSON(http.StatusBadRequest, result.ToAPIError())
		return
	}

	var entries []models.ReportEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body format")
		return
	}
	if err := binding.Validator.ValidateStruct(entries); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REPORT", err.Error())
		return
	}

	if err := h.service.RecordReport(c.Request.Context(), entries); err != nil {
		h.logger.WithError(err).WithField("entries", len(entries)).Error("Failed to store report")
		respondError(c, http.StatusInternalServerError, "REPORT_FAILED", "Failed to store report")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stored": len(entries)})
}

func parseItems(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return []uuid.UUID{}, nil
	}

	parts := strings.Split(raw, ",")
	items := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, nil
}
