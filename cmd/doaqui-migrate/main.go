// Package main is the entry point for the Doaqui database migration tool.
// It applies the schema for whichever database driver the server is
// configured to use.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/config"
	"github.com/doaqui/doaqui/internal/repository/postgres"
	"github.com/doaqui/doaqui/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("Doaqui Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := migrateUp(); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// migrateUp applies all pending migrations for the configured driver.
func migrateUp() error {
	cfg, err := config.LoadDatabase(os.Getenv("DOAQUI_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if cfg.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)
	}

	db, err := postgres.NewDB(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx)
}

func printUsage() {
	fmt.Println(`Doaqui Migration Tool

Usage:
  doaqui-migrate <command>

Commands:
  up          Apply all pending migrations
  version     Print version information
  help        Show this help message

Environment Variables:
  DOAQUI_CONFIG             Path to the config file (optional)
  DOAQUI_DATABASE_DRIVER    postgres or sqlite
  DOAQUI_DATABASE_*         Connection settings, same as the server

Examples:
  doaqui-migrate up
  DOAQUI_DATABASE_DRIVER=postgres doaqui-migrate up`)
}
