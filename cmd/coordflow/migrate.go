package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/internal/migration"
)

// runMigrate handles the migrate command and its subcommands.
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "up":
		runMigrateStep(subargs, "migrate up", (*migration.CLI).RunUp)
	case "down":
		runMigrateStep(subargs, "migrate down", (*migration.CLI).RunDown)
	case "status":
		runMigrateStep(subargs, "migrate status", (*migration.CLI).RunStatus)
	case "version":
		runMigrateStep(subargs, "migrate version", (*migration.CLI).RunVersion)
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}
}

func printMigrateUsage() {
	fmt.Println(`Archive Database Migration Commands

Usage:
  coordflow migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current migration version
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  coordflow migrate up
  coordflow migrate up --config /etc/coordflow/config.yaml
  coordflow migrate status --db-type sqlite --db-url "file:archive.db?mode=rwc"`)
}

// createMigrator builds a migrator from flags, falling back to the archive
// section of the config file.
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *dbType != "" && *dbURL != "" {
		return migration.NewFromURL(*dbType, *dbURL)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if *dbType != "" {
		cfg.Archive.Driver = *dbType
	}
	return migration.NewFromArchiveConfig(cfg.Archive)
}

// runMigrateStep runs a single CLI action against a freshly built migrator.
func runMigrateStep(args []string, name string, action func(*migration.CLI, context.Context) error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	migrator, err := createMigrator(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := action(migration.NewCLI(migrator), context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		os.Exit(1)
	}
}
