package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is where the commit record cache lives unless configured otherwise.
const DefaultPath = "./data/certchain.db"

// Database manages SQLite operations
type Database struct {
	path string
	db   *sql.DB
}

// New creates a new database instance backed by the SQLite file at path
func New(path string) *Database {
	if path == "" {
		path = DefaultPath
	}
	return &Database{path: path}
}

// NewWithDB wraps an already opened connection. Initialize will only create the tables.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Initialize creates tables and initializes the database
func (d *Database) Initialize() error {
	if d.db == nil {
		if dir := filepath.Dir(d.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		db, err := sql.Open("sqlite3", d.path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		d.db = db
	}

	// Create tables
	if err := d.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("Database initialized", "path", d.path)
	return nil
}

// createTables creates all necessary tables
func (d *Database) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS certificates (
			tx_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			strategy TEXT NOT NULL,
			submitter TEXT NOT NULL,
			network_id TEXT NOT NULL,
			contract TEXT NOT NULL,
			block_number INTEGER DEFAULT 0,
			recipient_name TEXT NOT NULL,
			title TEXT,
			issue_date TEXT NOT NULL,
			image_cid TEXT,
			image_png BLOB,
			committed_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_fingerprint ON certificates (fingerprint)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
