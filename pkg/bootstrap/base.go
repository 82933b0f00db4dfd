package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/pkg/health"
	"mercado/pkg/logging"
	"mercado/pkg/metrics"
	"mercado/pkg/middleware"
	"mercado/pkg/ratelimit"
	"mercado/pkg/tracing"
)

// Base carries what every service binary shares: config, logger, health
// registry, tracer and the HTTP server.
type Base struct {
	Config  *config.Config
	Logger  logger.Logger
	Service string
	Health  *health.CheckerRegistry

	tracerProvider *tracing.TracerProvider
	limiter        *ratelimit.Limiter
	server         *http.Server
}

func NewBase(cfg *config.Config, log logger.Logger, service string) *Base {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(service)
	}
	return &Base{
		Config:  cfg,
		Logger:  log,
		Service: service,
		Health:  health.NewCheckerRegistry(),
	}
}

func (b *Base) InitTracing() error {
	tp, err := tracing.Init(b.Config.Tracing, b.Service)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	b.tracerProvider = tp
	return nil
}

// NewRouter builds the gin engine with the shared middleware chain and the
// operational endpoints: /health, /metrics and, when withSwagger is set,
// /swagger/*any.
func (b *Base) NewRouter(withSwagger bool) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if b.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(b.Service))
	}

	router.Use(middleware.RecoveryMiddleware(b.Logger))
	router.Use(middleware.LoggerMiddleware(b.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if b.Config.RateLimit.Enabled {
		metrics.RegisterHTTPMetrics()
		b.limiter = ratelimit.New(b.Config.RateLimit)
		router.Use(b.limiter.Middleware())
		b.Logger.Infow("Rate limiting enabled", "rps", b.Config.RateLimit.RPS, "burst", b.Config.RateLimit.Burst)
	}

	router.GET("/health", b.Health.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if withSwagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return router
}

func (b *Base) InitServer(handler http.Handler) {
	b.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", b.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  b.Config.Server.ReadTimeout,
		WriteTimeout: b.Config.Server.WriteTimeout,
	}
}

// Serve blocks until the server fails or is shut down. It also runs the
// rate limiter's eviction loop when one is configured.
func (b *Base) Serve(ctx context.Context) error {
	if b.server == nil {
		return errors.New("server is not initialized")
	}
	if b.limiter != nil {
		go b.limiter.Run(ctx)
	}

	b.Logger.InfowCtx(ctx, "HTTP server starting", "port", b.Config.Server.Port)
	if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	shutdownCtx := logging.WithServiceName(ctx, b.Service)
	b.Logger.InfowCtx(shutdownCtx, "Shutting down application...")

	var errs []error

	if b.server != nil {
		httpCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := b.server.Shutdown(httpCtx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
		}
	}

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if b.tracerProvider != nil {
		tpCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := b.tracerProvider.Shutdown(tpCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.InfowCtx(shutdownCtx, "Application exited successfully")
	return nil
}
