// Package main provides the database migration CLI for the sparkify warehouse.
//
// The schema is embedded in the binary; the tool supports up, down, status,
// version and drop.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sahmedcse/data-engineering/migrations"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "migrator"
)

var errUnknownCommand = errors.New("unknown command")

// migrationRunner is the subset of migrations.Runner the commands use.
type migrationRunner interface {
	Up() error
	Down() error
	Status() (*migrations.Status, error)
	Drop() error
}

func main() {
	var (
		showHelp    = flag.Bool("help", false, "show help information")
		showVersion = flag.Bool("version", false, "show version information")
		assumeYes   = flag.Bool("yes", false, "do not ask for confirmation before drop")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	if *showHelp || flag.NArg() < 1 {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	logger.Info("Starting migrator",
		slog.String("version", version),
		slog.String("config", cfg.String()),
	)

	runner, err := migrations.NewRunner(context.Background(), cfg.DatabaseURL,
		migrations.WithMigrationTable(cfg.MigrationTable),
		migrations.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Failed to create migration runner", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = executeCommand(flag.Arg(0), runner, *assumeYes, os.Stdin, os.Stdout)

	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("Failed to close migration runner", slog.String("error", closeErr.Error()))
	}

	if err != nil {
		logger.Error("Migration failed", slog.String("command", flag.Arg(0)), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// executeCommand runs a migration command. Drop asks for confirmation on in
// unless assumeYes is set.
func executeCommand(command string, runner migrationRunner, assumeYes bool, in io.Reader, out io.Writer) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		status, err := runner.Status()
		if err != nil {
			return err
		}

		printStatus(out, status)

		return nil
	case "version":
		status, err := runner.Status()
		if err != nil {
			return err
		}

		dirty := ""
		if status.Dirty {
			dirty = " (dirty)"
		}

		_, _ = fmt.Fprintf(out, "%03d%s\n", status.Version, dirty)

		return nil
	case "drop":
		if !assumeYes && !confirm(in, out, "WARNING: This will drop all tables. Are you sure? (y/N): ") {
			_, _ = fmt.Fprintln(out, "Operation cancelled.")

			return nil
		}

		return runner.Drop()
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprint(out, prompt)

	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}

func printStatus(out io.Writer, status *migrations.Status) {
	state := "clean"
	if status.Dirty {
		state = "dirty (needs manual intervention)"
	}

	_, _ = fmt.Fprintf(out, "Database schema:  v%03d (%s)\n", status.Version, state)
	_, _ = fmt.Fprintf(out, "Migrator schema:  v%03d\n", status.Latest)

	switch {
	case status.Version > status.Latest:
		_, _ = fmt.Fprintln(out, "Status:           database schema is newer than this migrator")
	case status.Pending() > 0:
		_, _ = fmt.Fprintf(out, "Status:           %d migration(s) pending\n", status.Pending())
	default:
		_, _ = fmt.Fprintln(out, "Status:           up to date")
	}
}

func printUsage(out io.Writer) {
	_, _ = fmt.Fprintf(out, `%s v%s - Database Migration Tool for the sparkify warehouse

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Roll back the last migration
    status  Show migration status
    version Show current migration version
    drop    Drop all tables (asks for confirmation)

OPTIONS:
    -help     Show this help message
    -version  Show version information
    -yes      Skip the drop confirmation

ENVIRONMENT VARIABLES (a .env file in the working directory is loaded first):
    DATABASE_URL     PostgreSQL connection string
                     (default: local sparkifydb as student)
    MIGRATION_TABLE  Name of migration tracking table (default: schema_migrations)
    LOG_LEVEL        debug, info, warn or error (default: info)
`, name, version, name)
}
