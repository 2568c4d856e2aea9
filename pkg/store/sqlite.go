//go:build !wasm

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/praetorian-inc/importshim/pkg/types"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for in-memory database (useful for testing).
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: writers from the worker pool queue up instead of
	// failing with SQLITE_BUSY, and ":memory:" stays a single database
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// AddChunk stores a chunk record and its provenance.
func (s *SQLiteStore) AddChunk(id types.ChunkID, size int64, prov types.Provenance) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO chunks (id, size) VALUES (?, ?)", id.Hex(), size); err != nil {
		return fmt.Errorf("inserting chunk: %w", err)
	}
	if prov != nil {
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO provenance (chunk_id, type, path) VALUES (?, ?, ?)",
			id.Hex(), prov.Kind(), prov.Path(),
		)
		if err != nil {
			return fmt.Errorf("inserting provenance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk: %w", err)
	}
	return nil
}

// AddRewrite stores one applied replacement.
func (s *SQLiteStore) AddRewrite(r *types.Rewrite) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO rewrites (chunk_id, rule_id, offset_start, offset_end,
			start_line, start_column, end_line, end_column, original, replacement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ChunkID.Hex(),
		r.RuleID,
		r.Location.Offset.Start,
		r.Location.Offset.End,
		r.Location.Source.Start.Line,
		r.Location.Source.Start.Column,
		r.Location.Source.End.Line,
		r.Location.Source.End.Column,
		r.Original,
		r.Replacement,
	)
	if err != nil {
		return fmt.Errorf("inserting rewrite: %w", err)
	}
	return nil
}

const selectRewrites = `
	SELECT chunk_id, rule_id, offset_start, offset_end,
		start_line, start_column, end_line, end_column, original, replacement
	FROM rewrites
`

// GetRewrites retrieves the rewrites applied to a chunk.
func (s *SQLiteStore) GetRewrites(chunkID types.ChunkID) ([]*types.Rewrite, error) {
	rows, err := s.db.Query(selectRewrites+" WHERE chunk_id = ? ORDER BY offset_start", chunkID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying rewrites: %w", err)
	}
	return scanRewrites(rows)
}

// GetAllRewrites retrieves all rewrites (for JSON export).
func (s *SQLiteStore) GetAllRewrites() ([]*types.Rewrite, error) {
	rows, err := s.db.Query(selectRewrites + " ORDER BY chunk_id, offset_start")
	if err != nil {
		return nil, fmt.Errorf("querying rewrites: %w", err)
	}
	return scanRewrites(rows)
}

func scanRewrites(rows *sql.Rows) ([]*types.Rewrite, error) {
	defer rows.Close()

	rewrites := []*types.Rewrite{}
	for rows.Next() {
		var r types.Rewrite
		err := rows.Scan(
			&r.ChunkID,
			&r.RuleID,
			&r.Location.Offset.Start,
			&r.Location.Offset.End,
			&r.Location.Source.Start.Line,
			&r.Location.Source.Start.Column,
			&r.Location.Source.End.Line,
			&r.Location.Source.End.Column,
			&r.Original,
			&r.Replacement,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning rewrite: %w", err)
		}
		rewrites = append(rewrites, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rewrites: %w", err)
	}
	return rewrites, nil
}

// GetChunks retrieves all chunk records with their paths.
func (s *SQLiteStore) GetChunks() ([]*ChunkRecord, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.size, p.path
		FROM chunks c
		LEFT JOIN provenance p ON p.chunk_id = c.id
		ORDER BY c.id, p.path
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*ChunkRecord{}
	var last *ChunkRecord
	for rows.Next() {
		var rec ChunkRecord
		var path sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Size, &path); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if last == nil || last.ID != rec.ID {
			rec.Paths = []string{}
			last = &rec
			chunks = append(chunks, last)
		}
		if path.Valid {
			last.Paths = append(last.Paths, path.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// PutResult caches a transform result, replacing any earlier one.
func (s *SQLiteStore) PutResult(r *CachedResult) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO results (chunk_id, result_key, changed, code, map)
		VALUES (?, ?, ?, ?, ?)
	`,
		r.ChunkID.Hex(),
		r.Key,
		r.Changed,
		r.Code,
		r.Map,
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

// GetResult returns the cached result or ErrNotFound.
func (s *SQLiteStore) GetResult(chunkID types.ChunkID, key string) (*CachedResult, error) {
	r := CachedResult{ChunkID: chunkID, Key: key}
	err := s.db.QueryRow(`
		SELECT changed, code, map FROM results
		WHERE chunk_id = ? AND result_key = ?
	`, chunkID.Hex(), key).Scan(&r.Changed, &r.Code, &r.Map)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}
	return &r, nil
}

// ChunkExists checks if a chunk has already been processed.
func (s *SQLiteStore) ChunkExists(id types.ChunkID) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE id = ?", id.Hex()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking chunk existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
