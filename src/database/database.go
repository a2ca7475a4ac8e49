// src/database/database.go
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Open connects to the record store. sqlite takes a file path, pgx a
// postgres URL or keyword DSN.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		db, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping postgres database: %w", err)
		}
		logger.L.Info("Database connection established", "driver", driver)
		return db, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func openSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if strings.Contains(path, "?") {
		dsn = path
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	// Limit open connections to 1 for SQLite to avoid locking issues
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.L.Info("Database connection established with WAL mode and busy_timeout enabled.", "path", path)
	return db, nil
}

// RunMigrations applies the embedded schema for the given driver.
func RunMigrations(db *sql.DB, driver string) error {
	if db == nil {
		return errors.New("database connection is not initialized before running migrations")
	}

	var (
		instance database.Driver
		dir      string
		err      error
	)
	switch driver {
	case DriverSQLite:
		dir = "migrations/sqlite"
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		instance, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("could not create %s migration driver: %w", driver, err)
	}

	source, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("could not open embedded migrations %s: %w", dir, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return fmt.Errorf("migration instance creation failed: %w", err)
	}

	logger.L.Info("Applying database migrations...", "source", dir)
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.L.Info("No new database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.L.Info("Database migrations applied successfully.")
	return nil
}
