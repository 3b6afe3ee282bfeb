package services

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/internal/database"
	"github.com/temcen/crosssale/internal/messaging"
)

type Services struct {
	Auth      *AuthService
	Health    *HealthService
	CrossSale *CrossSaleService
	ReportBus *messaging.ReportBus
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) *Services {
	authService := NewAuthService(cfg.Auth, logger)
	healthService := NewHealthService(logger, PostgresCheck(db.PG), RedisCheck(db.Redis))

	cache := NewRecommendationCache(db.Redis, cfg.Redis.RecommendTTL, cfg.Redis.GenerationKey, logger)

	// Publishing is optional; a nil interface keeps the service from trying.
	var publisher ReportPublisher
	var reportBus *messaging.ReportBus
	if cfg.Kafka.Enabled {
		reportBus = messaging.NewReportBus(cfg, logger)
		publisher = reportBus
	}

	crossSale := NewCrossSaleService(db.PG, cache, publisher, cfg.Recalculation, logger)

	return &Services{
		Auth:      authService,
		Health:    healthService,
		CrossSale: crossSale,
		ReportBus: reportBus,
	}
}
