package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "mercado/cmd/gateway/docs"
	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/pkg/logging"
)

var (
	configFile string
)

// @title           Mercado Notification Gateway
// @version         1.0
// @description     Relays offers and new inconsistency reports to WebSocket clients

// @host      localhost:8080
// @BasePath  /api

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Real-time notification gateway",
		Long:  "Gateway accepts notifications over HTTP or Kafka and broadcasts them to WebSocket clients",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			cfg, err := config.Load(configFile, constants.ServiceGateway)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Gateway")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}
