// Package cmd contains the compass command line entry points.
//
// Following the pattern used by kubectl, hugo, and other standard Go
// CLI tools, all application logic is contained in the cmd package,
// leaving main.go as a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/daosail/compass/internal/log"
)

// Version information (injected at build time via ldflags).
// These variables are set by the build system and should not be modified directly.
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the compass service.
// It handles flag parsing and command routing.
func Execute() error {
	// Handle special flags before full initialization
	// This allows --version and --help to work even if config is invalid
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "seed":
			return runSeed()
		case "serve":
			return runServe()
		}
		return fmt.Errorf("unknown command %q, run 'compass help'", os.Args[1])
	}

	// Serving is the default behavior.
	return runServe()
}

// initLogger initializes the structured logger with appropriate log level.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	// JSON output in production keeps log aggregation happy.
	if os.Getenv("COMPASS_ENV") == "prod" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("compass v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("compass - sailing school conversation service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  compass                  Start the HTTP API server (default)")
	fmt.Println("  compass serve [addr]     Start the HTTP API server on addr")
	fmt.Println("  compass seed             Index the built-in knowledge corpus")
	fmt.Println("  compass version          Show version information")
	fmt.Println("  compass help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY           Required for the gemini provider")
	fmt.Println("  DATABASE_URL             PostgreSQL connection URL")
	fmt.Println("  COMPASS_ENV              \"dev\" (default) or \"prod\"")
	fmt.Println("  DEBUG                    Enable debug logging")
}
