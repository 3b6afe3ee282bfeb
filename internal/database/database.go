package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
)

type Database struct {
	PG     *pgxpool.Pool
	Redis  *redis.Client
	logger *logrus.Logger
}

func New(cfg *config.Config, logger *logrus.Logger) (*Database, error) {
	db := &Database{
		logger: logger,
	}

	if err := db.initPostgreSQL(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	if err := db.initRedis(cfg); err != nil {
		db.PG.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	return db, nil
}

func (db *Database) initPostgreSQL(cfg *config.Config) error {
	config, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	config.MaxConns = int32(cfg.Database.MaxConnections)
	config.MaxConnIdleTime = cfg.Database.MaxIdleTime
	config.MaxConnLifetime = cfg.Database.MaxLifetime
	config.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	db.PG = pool
	db.logger.Info("PostgreSQL connection established")
	return nil
}

func (db *Database) initRedis(cfg *config.Config) error {
	db.Redis = redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	db.logger.Info("Redis connection established")
	return nil
}

func (db *Database) Close() error {
	var errors []error

	if db.PG != nil {
		db.PG.Close()
		db.logger.Info("PostgreSQL connection closed")
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close Redis: %w", err))
		} else {
			db.logger.Info("Redis connection closed")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing database connections: %v", errors)
	}

	return nil
}
