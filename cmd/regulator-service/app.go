package main

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/internal/reports"
	"mercado/pkg/bootstrap"
	"mercado/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log, constants.ServiceRegulator),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTracing(); err != nil {
		return err
	}

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	a.dbConnector.RegisterHealth(a.Health, nil, db)

	metrics.RegisterDatabaseMetrics()

	router := a.NewRouter(true)
	service := reports.NewService(reports.NewRepository(db), a.Logger)
	reports.NewRegulatorHandler(service, a.Logger).RegisterRoutes(router)
	a.InitServer(router)

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Serve(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(ctx, nil, a.db)
	})
}
