package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tg-gemini/internal/models"
)

type DB struct {
	*sql.DB
}

// NewDB opens the sqlite database at dbPath, creating the directory if
// needed. Connectivity problems surface as ErrStoreUnavailable so that
// startup fails fast.
func NewDB(dbPath string) (*DB, error) {
	err := os.MkdirAll(filepath.Dir(dbPath), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", models.ErrStoreUnavailable, err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: failed to ping database: %v", models.ErrStoreUnavailable, err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	slog.Info("Running database migrations")

	migrations := []string{
		createUsersTable,
		createDialogsTable,
		createDialogsIndex,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	chat_id INTEGER NOT NULL,
	username TEXT,
	first_name TEXT NOT NULL,
	last_name TEXT,
	first_seen INTEGER NOT NULL,
	last_interaction INTEGER NOT NULL,
	current_dialog_id TEXT,
	current_chat_mode TEXT NOT NULL,
	current_model TEXT NOT NULL,
	n_used_tokens TEXT NOT NULL DEFAULT '{}', -- JSON, model name -> counters
	n_generated_images INTEGER DEFAULT 0,
	n_transcribed_seconds REAL DEFAULT 0
);`

const createDialogsTable = `
CREATE TABLE IF NOT EXISTS dialogs (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	chat_mode TEXT NOT NULL,
	model TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	messages TEXT NOT NULL DEFAULT '[]', -- JSON, ordered turn pairs
	FOREIGN KEY (user_id) REFERENCES users(id)
);`

const createDialogsIndex = `
CREATE INDEX IF NOT EXISTS idx_dialogs_user_start ON dialogs(user_id, start_time DESC);`
