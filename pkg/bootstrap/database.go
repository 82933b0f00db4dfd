package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"mercado/internal/config"
	"mercado/internal/logger"
	"mercado/pkg/health"
	"mercado/pkg/migrations"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// InitRedis returns nil when no Redis host is configured.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     dc.Config.Database.Redis.Addr(),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

// InitPostgreSQL opens the pool and, when database.run_migrations is set,
// applies the embedded schema migrations.
func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", dc.Config.Database.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := migrations.UpPostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.Logger.Info("PostgreSQL migrations applied")
	}

	dc.Logger.Info("PostgreSQL connected successfully")
	return db, nil
}

// RegisterHealth adds a checker for every non-nil client.
func (dc *DatabaseConnector) RegisterHealth(registry *health.CheckerRegistry, rdb *redis.Client, postgres *sql.DB) {
	if postgres != nil {
		registry.Register(health.NewPostgreSQLChecker(postgres))
	}
	if rdb != nil {
		registry.Register(health.NewRedisChecker(rdb))
	}
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, rdb *redis.Client, postgres *sql.DB) []error {
	var errs []error

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if postgres != nil {
		if err := postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	return errs
}
