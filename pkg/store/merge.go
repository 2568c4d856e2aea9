//go:build !wasm

package store

import (
	"database/sql"
	"fmt"
	"os"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	ChunksMerged     int
	ProvenanceMerged int
	RewritesMerged   int
	ResultsMerged    int
	SourcesProcessed int
}

// Merge combines multiple result databases into one, for builds that
// process chunk directories on separate machines.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := openDB(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer destDB.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(destDB, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.ChunksMerged += sourceStats.ChunksMerged
		stats.ProvenanceMerged += sourceStats.ProvenanceMerged
		stats.RewritesMerged += sourceStats.RewritesMerged
		stats.ResultsMerged += sourceStats.ResultsMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// tableCopy copies the listed columns of one table.
type tableCopy struct {
	table   string
	columns string
	count   func(*MergeStats, int)
}

var mergeTables = []tableCopy{
	{"chunks", "id, size", func(s *MergeStats, n int) { s.ChunksMerged = n }},
	{"provenance", "chunk_id, type, path", func(s *MergeStats, n int) { s.ProvenanceMerged = n }},
	{"rewrites", "chunk_id, rule_id, offset_start, offset_end, start_line, start_column, end_line, end_column, original, replacement", func(s *MergeStats, n int) { s.RewritesMerged = n }},
	{"results", "chunk_id, result_key, changed, code, map", func(s *MergeStats, n int) { s.ResultsMerged = n }},
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, fmt.Errorf("reading source database: %w", err)
	}
	// openDB also rejects sources with a different schema version
	sourceDB, err := openDB(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	stats := &MergeStats{}

	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tc := range mergeTables {
		n, err := copyTable(tx, sourceDB, tc)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", tc.table, err)
		}
		tc.count(stats, n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return stats, nil
}

func copyTable(tx *sql.Tx, sourceDB *sql.DB, tc tableCopy) (int, error) {
	rows, err := sourceDB.Query(fmt.Sprintf("SELECT %s FROM %s", tc.columns, tc.table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	placeholders := "?"
	for i := 1; i < len(cols); i++ {
		placeholders += ", ?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", tc.table, tc.columns, placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
