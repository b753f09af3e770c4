// Command batch-match runs one batch of payment matching: it loads
// unapplied payments, matches each against customers and clients, and
// applies the accepted matches.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

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
		limit      = flag.Int("limit", 0, "Maximum payments to process (0 = config default)")
		dryRun     = flag.Bool("dry-run", false, "Evaluate matches without applying payments")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := loadConfig(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "batch")

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

	processor := batch.NewProcessor(store, engine, orders, logger)

	batchLimit := *limit
	if batchLimit == 0 {
		batchLimit = cfg.Matching.BatchLimit
	}

	summary, err := processor.Run(context.Background(), batch.Options{
		Limit:  batchLimit,
		DryRun: *dryRun,
	})
	if err != nil {
		logger.Error("Batch run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printSummary(summary)
}

func loadConfig(path string) *config.Config {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", path, err)
			os.Exit(1)
		}
		return cfg
	}
	return config.LoadOrEnv()
}

func printSummary(s *batch.Summary) {
	fmt.Printf("\nRun %s", s.RunID)
	if s.DryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println()
	fmt.Printf("  Payments found:    %d\n", s.PaymentsFound)
	fmt.Printf("  Customer matches:  %d\n", s.CustomerMatches)
	fmt.Printf("  Client matches:    %d\n", s.ClientMatches)
	if s.OrderMatches > 0 {
		fmt.Printf("  Order matches:     %d\n", s.OrderMatches)
	}
	fmt.Printf("  No matches:        %d\n", s.NoMatches)
	fmt.Printf("  Applied:           %d\n", s.Applied)
	fmt.Printf("  Errors:            %d\n", s.Errors)
	fmt.Printf("  High confidence:   %d\n", s.HighConfidence)
	fmt.Printf("  Medium confidence: %d\n", s.MediumConfidence)
}
