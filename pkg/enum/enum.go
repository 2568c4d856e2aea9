package enum

import (
	"context"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// ChunkFile is a generated code file found on disk.
type ChunkFile struct {
	Path    string
	Content []byte
	ID      types.ChunkID
	// MapPath and Map are set when a sibling source map exists.
	MapPath string
	Map     []byte
}

// Provenance returns where the chunk was read from.
func (f *ChunkFile) Provenance() types.Provenance {
	return types.FileProvenance{FilePath: f.Path}
}

// Enumerator discovers chunk files to rewrite.
type Enumerator interface {
	// Enumerate yields chunk files from the source.
	// The callback may be invoked concurrently.
	Enumerate(ctx context.Context, callback func(f *ChunkFile) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration: a directory or one file.
	Root string

	// Extensions selects chunk files by suffix (e.g. ".js").
	Extensions []string

	// MapSuffix is appended to a chunk path to find its source map.
	MapSuffix string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Readers bounds parallel file reads (0 = number of CPUs).
	Readers int
}
