package store

import (
	"errors"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// ErrNotFound is returned by lookups that find no record.
var ErrNotFound = errors.New("not found")

// Store persists processed chunks, the rewrites applied to them, and
// cached transform results for incremental runs.
type Store interface {
	// AddChunk stores a chunk record with where it came from.
	AddChunk(id types.ChunkID, size int64, prov types.Provenance) error

	// AddRewrite stores one applied replacement.
	AddRewrite(r *types.Rewrite) error

	// GetRewrites retrieves the rewrites applied to a chunk.
	GetRewrites(chunkID types.ChunkID) ([]*types.Rewrite, error)

	// GetAllRewrites retrieves all rewrites (for JSON export).
	GetAllRewrites() ([]*types.Rewrite, error)

	// GetChunks retrieves all chunk records (for reporting).
	GetChunks() ([]*ChunkRecord, error)

	// PutResult caches a transform result.
	PutResult(r *CachedResult) error

	// GetResult returns the cached result for a chunk under a result key,
	// or ErrNotFound.
	GetResult(chunkID types.ChunkID, key string) (*CachedResult, error)

	// ChunkExists checks if a chunk has already been processed.
	ChunkExists(id types.ChunkID) (bool, error)

	// Close closes the database connection.
	Close() error
}

// ChunkRecord describes a processed chunk.
type ChunkRecord struct {
	ID   types.ChunkID `json:"id"`
	Size int64         `json:"size"`
	// Paths lists every location the chunk content was seen at.
	Paths []string `json:"paths"`
}

// CachedResult is a stored transform outcome. Key identifies the rule and
// transform options it was produced with. Code and Map are empty when
// Changed is false.
type CachedResult struct {
	ChunkID types.ChunkID `json:"chunk_id"`
	Key     string        `json:"result_key"`
	Changed bool          `json:"changed"`
	Code    string        `json:"code,omitempty"`
	Map     []byte        `json:"map,omitempty"`
}

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for in-memory database (useful for testing).
	Path string
}
