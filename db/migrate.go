package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
	Applied     bool
}

// MigrationManager handles database migrations
type MigrationManager struct {
	db     *sql.DB
	source fs.FS
	dir    string
}

// NewMigrationManager creates a new migration manager reading NNN_description.sql
// files from dir inside source
func NewMigrationManager(db *sql.DB, source fs.FS, dir string) *MigrationManager {
	return &MigrationManager{
		db:     db,
		source: source,
		dir:    dir,
	}
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist
func (m *MigrationManager) EnsureMigrationTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns the set of applied migration versions
func (m *MigrationManager) GetAppliedMigrations() (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := m.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// LoadMigrations loads all migration files sorted by version
func (m *MigrationManager) LoadMigrations() ([]Migration, error) {
	files, err := fs.Glob(m.source, path.Join(m.dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	sort.Strings(files)

	var migrations []Migration
	for _, file := range files {
		content, err := fs.ReadFile(m.source, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		// 001_initial_schema.sql -> 001
		filename := path.Base(file)
		parts := strings.Split(filename, "_")
		if len(parts) < 2 {
			log.Printf("Warning: migration file %s doesn't follow naming convention (XXX_description.sql)", filename)
			continue
		}

		migrations = append(migrations, Migration{
			Version:     parts[0],
			Description: strings.TrimSuffix(strings.Join(parts[1:], "_"), ".sql"),
			SQL:         string(content),
		})
	}

	return migrations, nil
}

// ApplyMigration applies a single migration inside a transaction
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO schema_migrations (version, description, applied_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`,
		migration.Version, migration.Description)
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", migration.Version, err)
	}

	log.Printf("Applied migration %s: %s", migration.Version, migration.Description)
	return nil
}

// Migrate runs all pending migrations
func (m *MigrationManager) Migrate() error {
	if err := m.EnsureMigrationTable(); err != nil {
		return err
	}

	appliedMigrations, err := m.GetAppliedMigrations()
	if err != nil {
		return err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return err
	}

	pendingCount := 0
	for _, migration := range migrations {
		if appliedMigrations[migration.Version] {
			continue
		}
		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
		pendingCount++
	}

	if pendingCount == 0 {
		log.Println("No pending migrations to apply")
	} else {
		log.Printf("Applied %d migrations successfully", pendingCount)
	}

	return nil
}

// GetMigrationStatus returns every known migration with its applied flag
func (m *MigrationManager) GetMigrationStatus() ([]Migration, error) {
	if err := m.EnsureMigrationTable(); err != nil {
		return nil, err
	}

	appliedMigrations, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	for i := range migrations {
		migrations[i].Applied = appliedMigrations[migrations[i].Version]
	}

	return migrations, nil
}
