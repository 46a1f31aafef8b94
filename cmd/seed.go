package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/daosail/compass/internal/app"
	"github.com/daosail/compass/internal/config"
	"github.com/daosail/compass/internal/knowledge"
)

// runSeed indexes the built-in knowledge corpus and exits. Safe to run
// repeatedly: documents are upserted by stable id.
func runSeed() error {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	seeder := knowledge.NewSeeder(a.Knowledge, logger)
	n, err := seeder.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}

	fmt.Printf("Indexed %d documents\n", n)
	return nil
}
