// Command matchd serves the payment matching HTTP API: run history, the
// match review queue, aggregate stats, and on-demand batch runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paymentops/payment-match-backend/internal/api"
	"github.com/paymentops/payment-match-backend/internal/application/batch"
	"github.com/paymentops/payment-match-backend/internal/domain/confidence"
	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/config"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/logging"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		port       = flag.Int("port", 0, "HTTP port (overrides config)")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(configPath(*configFile))
	if *port != 0 {
		cfg.API.Port = *port
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	engine := matching.NewEngine(store, store,
		confidence.NewScorer(cfg.Matching.Weights), cfg.Matching.Thresholds, logger)

	var orders *matching.OrderMatcher
	if cfg.Matching.OrderFallback {
		orders = matching.NewOrderMatcher(store, cfg.Matching.Thresholds, logger)
	}
	processor := batch.NewProcessor(store, engine, orders,
		logging.NewLoggerWithSystem(cfg.Observability.Logging, "batch"))

	serverCfg := api.Config{
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
	if len(serverCfg.AllowedOrigins) == 0 {
		serverCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	server := api.NewServer(serverCfg, store, processor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return "config.yaml"
}
