package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/sherlock-center/internal/config"
	"github.com/jonesrussell/sherlock-center/internal/database"
	"github.com/jonesrussell/sherlock-center/internal/logger"
)

// Exit codes for the migrate command.
const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <up|down|version>")
		return exitFailure
	}
	command := os.Args[1]

	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return exitFailure
	}
	defer func() { _ = db.Close() }()

	switch command {
	case "up":
		if err := database.RunMigrations(db, log); err != nil {
			fmt.Fprintf(os.Stderr, "Migration up failed: %v\n", err)
			return exitFailure
		}
	case "down":
		if err := database.MigrateDown(db, 1, log); err != nil {
			fmt.Fprintf(os.Stderr, "Migration down failed: %v\n", err)
			return exitFailure
		}
	case "version":
		version, dirty, err := database.MigrationVersion(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read migration version: %v\n", err)
			return exitFailure
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q (must be up, down, or version)\n", command)
		return exitFailure
	}

	return exitSuccess
}
