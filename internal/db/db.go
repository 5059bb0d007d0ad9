package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/larder/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/larder.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.larder.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, "larder.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
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

	// Migration 0 -> 1: Initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS foods (
		  food_key             TEXT PRIMARY KEY,
		  name                 TEXT NOT NULL,
		  base_quantity_grams  REAL NOT NULL DEFAULT 100,
		  calories             REAL NOT NULL,
		  protein              REAL NOT NULL,
		  carbs                REAL NOT NULL,
		  fats                 REAL NOT NULL,
		  sugar                REAL NOT NULL,
		  fiber                REAL NOT NULL,
		  average_piece_weight REAL,
		  category             TEXT NOT NULL,
		  source               TEXT NOT NULL,
		  created_at           INTEGER NOT NULL,
		  updated_at           INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ledgers (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  user_id    TEXT NOT NULL,
		  date       TEXT NOT NULL,
		  calories   REAL NOT NULL DEFAULT 0,
		  protein    REAL NOT NULL DEFAULT 0,
		  carbs      REAL NOT NULL DEFAULT 0,
		  fats       REAL NOT NULL DEFAULT 0,
		  sugar      REAL NOT NULL DEFAULT 0,
		  fiber      REAL NOT NULL DEFAULT 0,
		  expires_at INTEGER NOT NULL,
		  created_at INTEGER NOT NULL,
		  updated_at INTEGER NOT NULL,
		  UNIQUE (user_id, date)
		);

		CREATE INDEX IF NOT EXISTS idx_ledgers_expires_at
		ON ledgers(expires_at);

		CREATE TABLE IF NOT EXISTS ledger_entries (
		  id                TEXT PRIMARY KEY,
		  ledger_id         INTEGER NOT NULL REFERENCES ledgers(id) ON DELETE CASCADE,
		  meal_type         TEXT NOT NULL,
		  position          INTEGER NOT NULL,
		  food_name         TEXT NOT NULL,
		  quantity_in_grams REAL NOT NULL,
		  calories          REAL NOT NULL,
		  protein           REAL NOT NULL,
		  carbs             REAL NOT NULL,
		  fats              REAL NOT NULL,
		  sugar             REAL NOT NULL,
		  fiber             REAL NOT NULL,
		  is_estimated      INTEGER NOT NULL DEFAULT 0,
		  created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ledger_entries_slot
		ON ledger_entries(ledger_id, meal_type, position);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

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
