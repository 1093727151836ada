package shared

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Registered database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// NewDatabase opens a connection to a SQLite database at the specified path using the default cgo driver.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	return OpenDatabase(DriverCGO, path)
}

// OpenDatabase opens a SQLite database with the given driver and enables foreign key enforcement on every connection.
//
// In-memory databases are limited to a single connection: each new connection would otherwise see its own empty database.
func OpenDatabase(driver, path string) (*sql.DB, error) {
	dsn, err := databaseDSN(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// databaseDSN appends the driver-specific pragmas for foreign keys and lock waiting.
func databaseDSN(driver, path string) (string, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	switch driver {
	case DriverCGO:
		return path + sep + "_foreign_keys=on&_busy_timeout=5000", nil
	case DriverPure:
		return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, driver)
	}
}
