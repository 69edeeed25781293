// Package main is the schema migration tool for the catalog database.
//
// Migrations are embedded in the binary; pass -path to run them from a
// directory instead (required by create).
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/tcglibrary/catalog/internal/config"
	"github.com/tcglibrary/catalog/internal/logger"
	"github.com/tcglibrary/catalog/migrations"
)

// Version is set at build time
var Version = "dev"

const (
	defaultTimeout  = 5 * time.Minute
	migrationsTable = "schema_migrations"
)

// options holds the parsed command line
type options struct {
	databaseURL string
	path        string
	timeout     time.Duration
	dryRun      bool
}

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.DefaultConfig())
	cfg := config.Load()

	var opts options
	flag.StringVar(&opts.databaseURL, "database", cfg.Database.URL(), "Database URL (defaults to DB_* variables)")
	flag.StringVar(&opts.path, "path", os.Getenv("MIGRATIONS_PATH"), "Read migrations from this directory instead of the embedded set")
	flag.DurationVar(&opts.timeout, "timeout", defaultTimeout, "Connect and lock timeout")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Show what would be done without executing")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("migrate version %s\n", Version)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(opts, args[0], args[1:], log); err != nil {
		log.Error("Migration command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up [N]       Apply all or N pending migrations")
	fmt.Fprintln(out, "  down N       Roll back N migrations")
	fmt.Fprintln(out, "  goto V       Migrate to version V")
	fmt.Fprintln(out, "  force V      Record version V without running anything")
	fmt.Fprintln(out, "  version      Print the applied version")
	fmt.Fprintln(out, "  create NAME  Write an empty migration pair into -path")
	fmt.Fprintln(out, "\nOptions:")
	flag.PrintDefaults()
}

func run(opts options, cmd string, args []string, log *slog.Logger) error {
	if cmd == "create" {
		if len(args) < 1 {
			return errors.New("create requires a migration name")
		}
		return createMigration(opts, args[0], log)
	}

	if opts.dryRun {
		log.Info("Dry run; nothing executed", "command", cmd, "args", args)
		return nil
	}

	m, err := open(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read version: %w", err)
	}

	switch cmd {
	case "version":
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", "version", from, "dirty", dirty)
		return nil
	case "up":
		n, err := optionalCount(args)
		if err != nil {
			return err
		}
		if n > 0 {
			return report(m.Steps(n), m, from, log)
		}
		return report(m.Up(), m, from, log)
	case "down":
		// Rolling back everything wipes the catalog; insist on a count
		n, err := optionalCount(args)
		if err != nil {
			return err
		}
		if n < 1 {
			return errors.New("down requires a positive number of steps")
		}
		return report(m.Steps(-n), m, from, log)
	case "goto":
		v, err := requiredVersion(cmd, args)
		if err != nil {
			return err
		}
		return report(m.Migrate(uint(v)), m, from, log)
	case "force":
		v, err := requiredVersion(cmd, args)
		if err != nil {
			return err
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		log.Warn("Version forced", "version", v)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func report(err error, m *migrate.Migrate, from uint, log *slog.Logger) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("Schema already up to date", "version", from)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	to, _, _ := m.Version()
	log.Info("Migration completed", "from", from, "to", to)
	return nil
}

func optionalCount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number of steps: %s", args[0])
	}
	return n, nil
}

func requiredVersion(cmd string, args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s requires a version number", cmd)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version: %s", args[0])
	}
	return v, nil
}

// open connects to the database and picks the migration source
func open(opts options) (*migrate.Migrate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	db, err := sql.Open("pgx", opts.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	var m *migrate.Migrate
	if opts.path != "" {
		abs, err := filepath.Abs(opts.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
		}
		m, err = migrate.NewWithDatabaseInstance("file://"+abs, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
	} else {
		var src source.Driver
		src, err = iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
	}

	m.LockTimeout = opts.timeout
	return m, nil
}

// createMigration writes NNNNNN_name.{up,down}.sql numbered after the
// highest existing migration
func createMigration(opts options, name string, log *slog.Logger) error {
	if opts.path == "" {
		return errors.New("create needs -path pointing at the migrations directory")
	}

	next, err := nextMigrationNumber(opts.path)
	if err != nil {
		return fmt.Errorf("failed to determine next migration number: %w", err)
	}

	files := []string{
		filepath.Join(opts.path, fmt.Sprintf("%06d_%s.up.sql", next, name)),
		filepath.Join(opts.path, fmt.Sprintf("%06d_%s.down.sql", next, name)),
	}
	if opts.dryRun {
		log.Info("Dry run; would create migration", "files", files)
		return nil
	}

	if err := os.MkdirAll(opts.path, 0o755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	header := fmt.Sprintf("-- %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	for _, f := range files {
		if err := os.WriteFile(f, []byte(header), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f, err)
		}
	}

	log.Info("Created migration", "files", files)
	return nil
}

func nextMigrationNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, err
	}

	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
