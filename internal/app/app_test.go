package app

import (
	"context"
	"testing"

	"github.com/daosail/compass/internal/config"
	"github.com/daosail/compass/internal/log"
)

func TestCloseOnEmptyApp(t *testing.T) {
	// Close must be safe on a partially initialized App: Setup defers
	// Close on every failure path.
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() = %v, want nil", err)
	}
}

func TestSetupFailsWithoutDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("attempts a TCP connection")
	}

	cfg := &config.Config{
		Provider:         config.ProviderGemini,
		ModelName:        "gemini-2.5-flash",
		EmbedderModel:    config.DefaultGeminiEmbedderModel,
		PostgresHost:     "127.0.0.1",
		PostgresPort:     1, // nothing listens here
		PostgresUser:     "compass",
		PostgresPassword: "compass_dev_password",
		PostgresDBName:   "compass",
		PostgresSSLMode:  "disable",
		PoolMaxConns:     2,
		PoolMinConns:     0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := Setup(ctx, cfg, log.NewNop()); err == nil {
		t.Fatal("Setup() succeeded with an unreachable database")
	}
}
