package pipeline

import (
	"fmt"

	"github.com/praetorian-inc/importshim/pkg/overlay"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// Chunk is one generated code artifact to transform.
type Chunk struct {
	// Path names the chunk: its file path, or the bundler's file name.
	Path    string
	Content []byte
	// Map is the chunk's upstream source map, if any.
	Map []byte
	// Provenance defaults to a FileProvenance for Path.
	Provenance types.Provenance
}

func (c Chunk) provenance() types.Provenance {
	if c.Provenance != nil {
		return c.Provenance
	}
	return types.FileProvenance{FilePath: c.Path}
}

// ChunkResult is the outcome for one chunk. Code and Map are empty when
// the chunk was left unchanged.
type ChunkResult struct {
	Path     string           `json:"path"`
	ID       types.ChunkID    `json:"id"`
	Changed  bool             `json:"changed"`
	Cached   bool             `json:"cached"`
	Code     string           `json:"-"`
	Map      []byte           `json:"-"`
	Rewrites []*types.Rewrite `json:"rewrites,omitempty"`
}

// BatchResult holds per-chunk results in input order plus totals.
type BatchResult struct {
	Results   []*ChunkResult `json:"results"`
	Rewritten int            `json:"rewritten"`
	Unchanged int            `json:"unchanged"`
	Cached    int            `json:"cached"`
	Rewrites  int            `json:"rewrites"`
}

// DefectError reports an overlay invariant violation while processing a
// chunk. It is a bug, never a property of the input, and aborts the run.
type DefectError struct {
	Path string
	Err  *overlay.InvariantError
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("defect while rewriting %s: %v", e.Path, e.Err)
}

func (e *DefectError) Unwrap() error {
	return e.Err
}
