package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warnerco/schematica/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/schematica.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.schematica.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "schematica.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (catalog + knowledge graph)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS schematics (
		  id              TEXT PRIMARY KEY,
		  model           TEXT NOT NULL,
		  name            TEXT NOT NULL,
		  component       TEXT NOT NULL,
		  version         TEXT NOT NULL,
		  summary         TEXT NOT NULL,
		  url             TEXT,
		  category        TEXT NOT NULL,
		  status          TEXT NOT NULL,
		  tags_json       TEXT,
		  specs_json      TEXT,
		  last_verified   TEXT,
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL,
		  deleted_at      INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_schematics_category
		ON schematics(category)
		WHERE deleted_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_schematics_model
		ON schematics(model)
		WHERE deleted_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_schematics_status
		ON schematics(status)
		WHERE deleted_at IS NULL;

		CREATE TABLE IF NOT EXISTS entities (
		  id            TEXT PRIMARY KEY,
		  entity_type   TEXT NOT NULL,
		  name          TEXT NOT NULL,
		  metadata_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);

		CREATE TABLE IF NOT EXISTS triplets (
		  id            INTEGER PRIMARY KEY AUTOINCREMENT,
		  subject       TEXT NOT NULL,
		  predicate     TEXT NOT NULL,
		  object        TEXT NOT NULL,
		  metadata_json TEXT,
		  created_at    INTEGER NOT NULL,
		  UNIQUE(subject, predicate, object)
		);

		CREATE INDEX IF NOT EXISTS idx_triplets_subject ON triplets(subject);
		CREATE INDEX IF NOT EXISTS idx_triplets_object ON triplets(object);
		CREATE INDEX IF NOT EXISTS idx_triplets_predicate ON triplets(predicate);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
