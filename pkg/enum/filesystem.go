package enum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/praetorian-inc/importshim/pkg/types"
	"golang.org/x/sync/errgroup"
)

// FilesystemEnumerator enumerates chunk files from a filesystem directory.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// fileEntry holds metadata collected during the walk phase.
type fileEntry struct {
	path string
}

// Enumerate walks the filesystem and yields chunk files.
// Phase 1: Walk directory tree and collect eligible file paths (fast, sequential).
// Phase 2: Read files and invoke callback in parallel.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback func(f *ChunkFile) error) error {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return fmt.Errorf("reading root %s: %w", e.config.Root, err)
	}

	var files []fileEntry
	if info.IsDir() {
		files, err = e.walk(ctx)
		if err != nil {
			return err
		}
	} else {
		// a root named explicitly is processed whatever its name
		files = []fileEntry{{path: e.config.Root}}
	}

	// Phase 2: Read and process files in parallel
	numReaders := e.config.Readers
	if numReaders < 1 {
		numReaders = runtime.NumCPU()
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	pathsCh := make(chan fileEntry, numReaders*2)

	// Feed paths to readers
	g.Go(func() error {
		defer close(pathsCh)
		for _, f := range files {
			select {
			case pathsCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Parallel readers
	for i := 0; i < numReaders; i++ {
		g.Go(func() error {
			for f := range pathsCh {
				if err := e.processFile(ctx, f.path, callback); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// If the caller's context was cancelled but all goroutines finished
	// before noticing, propagate the cancellation.
	if origCtx.Err() != nil {
		return origCtx.Err()
	}
	return nil
}

// walk collects eligible chunk files below the root directory.
func (e *FilesystemEnumerator) walk(ctx context.Context) ([]fileEntry, error) {
	// Load .gitignore patterns if present
	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(e.config.Root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, _ = gitignore.CompileIgnoreFile(gitignorePath)
	}

	var files []fileEntry
	err := filepath.Walk(e.config.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if path != e.config.Root && !e.config.IncludeHidden && isHidden(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 && !e.config.FollowSymlinks {
			return nil
		}

		if !e.config.IncludeHidden && isHidden(info.Name()) {
			return nil
		}

		if !e.hasChunkExtension(path) {
			return nil
		}

		if e.config.MaxFileSize > 0 && info.Size() > e.config.MaxFileSize {
			return nil
		}

		if ignore != nil {
			relPath, err := filepath.Rel(e.config.Root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				return nil
			}
		}

		files = append(files, fileEntry{path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (e *FilesystemEnumerator) hasChunkExtension(path string) bool {
	if len(e.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range e.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// processFile reads a single chunk file and its map, then invokes the
// callback.
func (e *FilesystemEnumerator) processFile(ctx context.Context, path string, callback func(f *ChunkFile) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if isBinary(content) {
		return nil
	}

	f := &ChunkFile{
		Path:    path,
		Content: content,
		ID:      types.ComputeChunkID(content),
	}

	if e.config.MapSuffix != "" {
		mapPath := path + e.config.MapSuffix
		data, err := os.ReadFile(mapPath)
		switch {
		case err == nil:
			f.MapPath = mapPath
			f.Map = data
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to read source map %s: %w", mapPath, err)
		}
	}

	return callback(f)
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// isBinary detects if content is binary by checking first 8KB for null bytes.
func isBinary(content []byte) bool {
	checkSize := len(content)
	if checkSize > 8192 {
		checkSize = 8192
	}
	return bytes.IndexByte(content[:checkSize], 0) != -1
}
