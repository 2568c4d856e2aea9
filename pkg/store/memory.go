package store

import (
	"bytes"
	"sort"
	"sync"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// chunkRecord stores chunk metadata.
type chunkRecord struct {
	id    types.ChunkID
	size  int64
	paths []string
}

type resultKey struct {
	chunk types.ChunkID
	key   string
}

type rewriteKey struct {
	chunk  types.ChunkID
	ruleID string
	start  int
}

// MemoryStore implements Store using in-memory data structures.
// It is used for ":memory:" paths and by the hook server.
type MemoryStore struct {
	mu           sync.RWMutex
	chunks       map[types.ChunkID]*chunkRecord
	rewrites     []*types.Rewrite
	seenRewrites map[rewriteKey]bool
	results      map[resultKey]*CachedResult
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		chunks:       make(map[types.ChunkID]*chunkRecord),
		rewrites:     make([]*types.Rewrite, 0),
		seenRewrites: make(map[rewriteKey]bool),
		results:      make(map[resultKey]*CachedResult),
	}
}

// AddChunk stores a chunk record and its provenance.
func (m *MemoryStore) AddChunk(id types.ChunkID, size int64, prov types.Provenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.chunks[id]
	if !exists {
		rec = &chunkRecord{id: id, size: size}
		m.chunks[id] = rec
	}
	if prov == nil {
		return nil
	}
	for _, p := range rec.paths {
		if p == prov.Path() {
			return nil
		}
	}
	rec.paths = append(rec.paths, prov.Path())
	return nil
}

// AddRewrite stores one applied replacement. Repeats are ignored.
func (m *MemoryStore) AddRewrite(r *types.Rewrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rewriteKey{chunk: r.ChunkID, ruleID: r.RuleID, start: r.Location.Offset.Start}
	if m.seenRewrites[key] {
		return nil
	}
	m.seenRewrites[key] = true
	m.rewrites = append(m.rewrites, r)
	return nil
}

// GetRewrites retrieves the rewrites applied to a chunk, by offset.
func (m *MemoryStore) GetRewrites(chunkID types.ChunkID) ([]*types.Rewrite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Rewrite{}
	for _, r := range m.rewrites {
		if r.ChunkID == chunkID {
			result = append(result, r)
		}
	}
	sortRewrites(result)
	return result, nil
}

// GetAllRewrites retrieves all rewrites ordered by chunk and offset.
func (m *MemoryStore) GetAllRewrites() ([]*types.Rewrite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid external modifications
	result := make([]*types.Rewrite, len(m.rewrites))
	copy(result, m.rewrites)
	sortRewrites(result)
	return result, nil
}

func sortRewrites(rs []*types.Rewrite) {
	sort.SliceStable(rs, func(i, j int) bool {
		if c := bytes.Compare(rs[i].ChunkID[:], rs[j].ChunkID[:]); c != 0 {
			return c < 0
		}
		return rs[i].Location.Offset.Start < rs[j].Location.Offset.Start
	})
}

// GetChunks retrieves all chunk records ordered by ID.
func (m *MemoryStore) GetChunks() ([]*ChunkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ChunkRecord, 0, len(m.chunks))
	for _, rec := range m.chunks {
		paths := append([]string{}, rec.paths...)
		sort.Strings(paths)
		result = append(result, &ChunkRecord{ID: rec.id, Size: rec.size, Paths: paths})
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) < 0
	})
	return result, nil
}

// PutResult caches a transform result, replacing any earlier one.
func (m *MemoryStore) PutResult(r *CachedResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *r
	m.results[resultKey{chunk: r.ChunkID, key: r.Key}] = &stored
	return nil
}

// GetResult returns the cached result or ErrNotFound.
func (m *MemoryStore) GetResult(chunkID types.ChunkID, key string) (*CachedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.results[resultKey{chunk: chunkID, key: key}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

// ChunkExists checks if a chunk has already been processed.
func (m *MemoryStore) ChunkExists(id types.ChunkID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.chunks[id]
	return exists, nil
}

// Close closes the database connection.
// For in-memory store, this is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
