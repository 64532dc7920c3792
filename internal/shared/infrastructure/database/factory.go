// Package database abstracts the two supported backends behind one
// connection interface. PostgreSQL serves the hosted deployment,
// SQLite the zero-config local CLI.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config selects and tunes the backend.
type Config struct {
	// Driver picks the backend; empty or "auto" detects it from URL.
	Driver Driver

	// URL is the PostgreSQL connection string.
	URL string

	// SQLitePath locates the SQLite file when Driver is DriverSQLite.
	// Empty means DefaultSQLitePath.
	SQLitePath string

	// MaxConns caps the pgx pool. Ignored by SQLite.
	MaxConns int
}

// connectFunc is the signature both driver subpackages register.
type connectFunc func(ctx context.Context, cfg Config) (Connection, error)

// Driver subpackages register themselves from init so importing one is
// enough to enable it. This keeps pgx out of SQLite-only builds.
var (
	connectPostgres connectFunc
	connectSQLite   connectFunc
)

// RegisterPostgresDriver is called by the postgres subpackage.
func RegisterPostgresDriver(fn connectFunc) { connectPostgres = fn }

// RegisterSQLiteDriver is called by the sqlite subpackage.
func RegisterSQLiteDriver(fn connectFunc) { connectSQLite = fn }

// NewConnection opens a connection for the configured backend.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" || driver == "auto" {
		driver = DetectDriver(cfg.URL)
	}

	switch driver {
	case DriverPostgres:
		if connectPostgres == nil {
			return nil, fmt.Errorf("postgres driver not registered: import the database/postgres package")
		}
		return connectPostgres(ctx, cfg)
	case DriverSQLite:
		if connectSQLite == nil {
			return nil, fmt.Errorf("sqlite driver not registered: import the database/sqlite package")
		}
		return connectSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DefaultSQLitePath is where the local database lives when nothing is
// configured.
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".nagi", "nagi.db")
}

// DefaultLocalConfig is the zero-config local SQLite setup.
func DefaultLocalConfig() Config {
	return Config{
		Driver:     DriverSQLite,
		SQLitePath: DefaultSQLitePath(),
	}
}

// EnsureDirectory creates the parent directory of path if needed.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
