package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Database represents the database connection and operations
type Database struct {
	conn             *sql.DB
	migrationManager *MigrationManager
	now              func() time.Time
}

// NewDatabase opens the database, applies pending migrations and returns it
func NewDatabase(driverName, dataSourceName string) (*Database, error) {
	if driverName == "sqlite3" {
		dataSourceName = sqliteDSN(dataSourceName)
	}

	conn, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &Database{
		conn:             conn,
		migrationManager: NewMigrationManager(conn, migrationsFS, "migrations"),
		now:              func() time.Time { return time.Now().UTC() },
	}

	if err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// sqliteDSN turns on foreign keys and a busy timeout unless the caller set options
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// SetClock overrides the time source used for created_at/last_updated stamps
func (db *Database) SetClock(now func() time.Time) {
	db.now = func() time.Time { return now().UTC() }
}

// Now returns the current store time
func (db *Database) Now() time.Time {
	return db.now()
}

// RunMigrations runs all pending database migrations
func (db *Database) RunMigrations() error {
	log.Println("Running database migrations...")
	return db.migrationManager.Migrate()
}

// GetMigrationStatus returns the current migration status
func (db *Database) GetMigrationStatus() ([]Migration, error) {
	return db.migrationManager.GetMigrationStatus()
}

// Ping checks database connectivity
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// BeginTransaction starts a new database transaction
func (db *Database) BeginTransaction() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Query executes a query that returns rows
func (db *Database) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (db *Database) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Exec executes a query without returning any rows
func (db *Database) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
