package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist, and
// rejects databases written with a different schema version.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createChunksTable(db); err != nil {
		return fmt.Errorf("creating chunks table: %w", err)
	}

	if err := createProvenanceTable(db); err != nil {
		return fmt.Errorf("creating provenance table: %w", err)
	}

	if err := createRewritesTable(db); err != nil {
		return fmt.Errorf("creating rewrites table: %w", err)
	}

	if err := createResultsTable(db); err != nil {
		return fmt.Errorf("creating results table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	case err != nil:
		return err
	case version != SchemaVersion:
		return fmt.Errorf("database has schema version %d, want %d", version, SchemaVersion)
	}
	return nil
}

func createChunksTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY NOT NULL,
			size INTEGER NOT NULL
		)
	`)
	return err
}

func createProvenanceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provenance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL REFERENCES chunks(id),
			type TEXT NOT NULL,
			path TEXT NOT NULL,
			UNIQUE(chunk_id, type, path)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_provenance_chunk_id ON provenance(chunk_id)
	`)
	return err
}

func createRewritesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rewrites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL REFERENCES chunks(id),
			rule_id TEXT NOT NULL,
			offset_start INTEGER NOT NULL,
			offset_end INTEGER NOT NULL,
			start_line INTEGER NOT NULL,
			start_column INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			end_column INTEGER NOT NULL,
			original TEXT NOT NULL,
			replacement TEXT NOT NULL,
			UNIQUE(chunk_id, rule_id, offset_start)
		)
	`)
	return err
}

func createResultsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			chunk_id TEXT NOT NULL,
			result_key TEXT NOT NULL,
			changed INTEGER NOT NULL,
			code TEXT NOT NULL,
			map BLOB,
			PRIMARY KEY (chunk_id, result_key)
		)
	`)
	return err
}
