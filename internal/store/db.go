package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrActivityNotFound is returned when an activity doesn't exist
var ErrActivityNotFound = errors.New("activity not found")

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// ErrPlanNotFound is returned when a training plan doesn't exist
var ErrPlanNotFound = errors.New("plan not found")

// DB wraps the SQLite connection used for activity history, derived labels and plans.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path, creating it if necessary.
// An empty path uses ~/.pacelab/data.db.
func Open(path string) (*DB, error) {
	if path == "" {
		p, err := defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("getting db path: %w", err)
		}
		path = p
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return setup(sqlDB)
}

// OpenMemory opens a private in-memory database with migrations applied.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// every pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)
	return setup(sqlDB)
}

func setup(sqlDB *sql.DB) (*DB, error) {
	// Enable foreign keys
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{sqlDB}, nil
}

// defaultDBPath returns the path to the SQLite database file
func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".pacelab", "data.db"), nil
}
