package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/services"
	"github.com/temcen/crosssale/internal/validation"
)

type Handlers struct {
	Health    *HealthHandler
	CrossSale *CrossSaleHandler
}

func New(logger *logrus.Logger, services *services.Services, schemas *validation.SchemaValidator) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(logger, services.Health),
		CrossSale: NewCrossSaleHandler(services.CrossSale, schemas, logger),
	}
}
