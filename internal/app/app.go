package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/internal/crosssale"
	"github.com/temcen/crosssale/internal/database"
	"github.com/temcen/crosssale/internal/handlers"
	"github.com/temcen/crosssale/internal/metrics"
	"github.com/temcen/crosssale/internal/middleware"
	"github.com/temcen/crosssale/internal/services"
	"github.com/temcen/crosssale/internal/validation"
)

// APIPrefix matches the path of the client's default base URL.
const APIPrefix = "/v1"

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	stopBackground context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: NewLogger(cfg.Logging),
	}

	metrics.Init()

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	schemas, err := validation.NewSchemaValidator()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	app.services = services.New(cfg, app.logger, db)
	app.handlers = handlers.New(app.logger, app.services, schemas)
	app.router = NewRouter(cfg, app.logger, app.services.Auth, app.handlers)

	ctx, cancel := context.WithCancel(context.Background())
	app.stopBackground = cancel
	app.startBackground(ctx)

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

func (a *App) startBackground(ctx context.Context) {
	go services.CollectPoolMetrics(ctx, a.db.PG, 30*time.Second)

	threshold := a.config.Recalculation.EventThreshold
	if a.services.ReportBus == nil || threshold < 1 {
		return
	}

	go func() {
		handler := a.services.CrossSale.RecalculateEvery(ctx, threshold)
		if err := a.services.ReportBus.ConsumeReports(ctx, handler); err != nil && ctx.Err() == nil {
			a.logger.WithError(err).Error("Report consumer stopped")
		}
	}()
	a.logger.WithField("threshold", threshold).Info("Recalculating from report events")
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.stopBackground != nil {
		a.stopBackground()
	}

	if a.services.ReportBus != nil {
		if err := a.services.ReportBus.Close(); err != nil {
			a.logger.WithError(err).Warn("Error closing report bus")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func NewRouter(cfg *config.Config, logger *logrus.Logger, auth middleware.Authenticator, h *handlers.Handlers) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Security.CORS))
	router.Use(middleware.Metrics())

	router.GET("/health", h.Health.Check)
	if cfg.Monitoring.Enabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group(APIPrefix)
	api.Use(middleware.Auth(auth, logger))
	{
		api.GET("/"+crosssale.PathRecalculate, h.CrossSale.Recalculate)
		api.GET("/"+crosssale.PathRecommendations, h.CrossSale.Recommendations)
		api.POST("/"+crosssale.PathReportSuccess, h.CrossSale.ReportSuccess)
	}

	return router
}
