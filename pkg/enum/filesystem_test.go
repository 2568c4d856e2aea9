package enum

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/praetorian-inc/importshim/pkg/types"
)

var chunkExtensions = []string{".js", ".mjs", ".cjs"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
}

// collect enumerates and returns chunk files sorted by path.
func collect(t *testing.T, config Config) []*ChunkFile {
	t.Helper()
	var mu sync.Mutex
	var found []*ChunkFile
	err := NewFilesystemEnumerator(config).Enumerate(context.Background(), func(f *ChunkFile) error {
		mu.Lock()
		defer mu.Unlock()
		found = append(found, f)
		return nil
	})
	if err != nil {
		t.Fatalf("enumerate failed: %v", err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found
}

func baseNames(files []*ChunkFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f.Path)
	}
	return names
}

func TestFilesystemEnumerator(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "app.js"), "import('./a.js')")
	writeFile(t, filepath.Join(tmpDir, "worker.mjs"), "export {}")
	writeFile(t, filepath.Join(tmpDir, "assets", "chunk.cjs"), "module.exports = 1")
	writeFile(t, filepath.Join(tmpDir, "index.html"), "<html></html>")
	writeFile(t, filepath.Join(tmpDir, "app.js.map"), `{"version":3}`)

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions})

	if len(files) != 3 {
		t.Fatalf("expected 3 chunk files, got %d: %v", len(files), baseNames(files))
	}
	for _, f := range files {
		if f.ID != types.ComputeChunkID(f.Content) {
			t.Errorf("chunk ID mismatch for %s", f.Path)
		}
		if prov := f.Provenance(); prov.Kind() != "file" || prov.Path() != f.Path {
			t.Errorf("unexpected provenance %#v", prov)
		}
	}
}

func TestFilesystemEnumerator_SiblingMap(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "app.js"), "import('./a.js')")
	writeFile(t, filepath.Join(tmpDir, "app.js.map"), `{"version":3}`)
	writeFile(t, filepath.Join(tmpDir, "other.js"), "x")

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions, MapSuffix: ".map"})
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	app, other := files[0], files[1]
	if app.MapPath != filepath.Join(tmpDir, "app.js.map") {
		t.Errorf("unexpected map path %q", app.MapPath)
	}
	if string(app.Map) != `{"version":3}` {
		t.Errorf("unexpected map content %q", app.Map)
	}
	if other.MapPath != "" || other.Map != nil {
		t.Errorf("expected no map for other.js, got %q", other.MapPath)
	}
}

func TestFilesystemEnumerator_NoMapSuffix(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "app.js"), "x")
	writeFile(t, filepath.Join(tmpDir, "app.js.map"), `{"version":3}`)

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions})
	if len(files) != 1 || files[0].Map != nil {
		t.Errorf("expected the map to be ignored without a suffix")
	}
}

func TestFilesystemEnumerator_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bundle.txt")
	writeFile(t, path, "import('x')")

	files := collect(t, Config{Root: path, Extensions: chunkExtensions})
	if len(files) != 1 {
		t.Fatalf("expected the explicit root file, got %d files", len(files))
	}
	if files[0].Path != path {
		t.Errorf("expected %s, got %s", path, files[0].Path)
	}
}

func TestFilesystemEnumerator_MissingRoot(t *testing.T) {
	err := NewFilesystemEnumerator(Config{Root: filepath.Join(t.TempDir(), "missing")}).
		Enumerate(context.Background(), func(f *ChunkFile) error { return nil })
	if err == nil {
		t.Fatal("expected an error for a missing root")
	}
}

func TestFilesystemEnumerator_HiddenFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "visible.js"), "visible")
	writeFile(t, filepath.Join(tmpDir, ".hidden.js"), "hidden")
	writeFile(t, filepath.Join(tmpDir, ".cache", "cached.js"), "cached")

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions})
	if len(files) != 1 || filepath.Base(files[0].Path) != "visible.js" {
		t.Errorf("expected only visible.js, got %v", baseNames(files))
	}

	files = collect(t, Config{Root: tmpDir, Extensions: chunkExtensions, IncludeHidden: true})
	if len(files) != 3 {
		t.Errorf("expected 3 files with hidden included, got %v", baseNames(files))
	}
}

func TestFilesystemEnumerator_MaxFileSize(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "small.js"), "small")
	writeFile(t, filepath.Join(tmpDir, "large.js"), "this content is larger than the limit")

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions, MaxFileSize: 10})
	if len(files) != 1 || filepath.Base(files[0].Path) != "small.js" {
		t.Errorf("expected only small.js, got %v", baseNames(files))
	}
}

func TestFilesystemEnumerator_BinaryFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "text.js"), "text")
	writeFile(t, filepath.Join(tmpDir, "binary.js"), "bin\x00ary")

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions})
	if len(files) != 1 || filepath.Base(files[0].Path) != "text.js" {
		t.Errorf("expected only text.js, got %v", baseNames(files))
	}
}

func TestFilesystemEnumerator_Gitignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ".gitignore"), "ignored.js\n*.min.js\n")
	writeFile(t, filepath.Join(tmpDir, "included.js"), "included")
	writeFile(t, filepath.Join(tmpDir, "ignored.js"), "ignored")
	writeFile(t, filepath.Join(tmpDir, "vendor", "lib.min.js"), "vendored")

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions})
	if len(files) != 1 || filepath.Base(files[0].Path) != "included.js" {
		t.Errorf("expected only included.js, got %v", baseNames(files))
	}
}

func TestFilesystemEnumerator_CurrentDirectory(t *testing.T) {
	// a "." root must not be treated as a hidden directory
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "app.js"), "import('x')")
	t.Chdir(tmpDir)

	files := collect(t, Config{Root: ".", Extensions: chunkExtensions})
	if len(files) != 1 || filepath.Base(files[0].Path) != "app.js" {
		t.Errorf("expected app.js when enumerating '.', got %v", baseNames(files))
	}
}

func TestFilesystemEnumerator_HiddenRoot(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), ".output")
	writeFile(t, filepath.Join(tmpDir, "app.js"), "x")

	files := collect(t, Config{Root: tmpDir, Extensions: chunkExtensions})
	if len(files) != 1 {
		t.Errorf("expected the hidden root itself to be walked, got %v", baseNames(files))
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{"current dir", ".", false},
		{"parent dir", "..", false},
		{"hidden file", ".hidden", true},
		{"hidden directory", ".git", true},
		{"normal file", "file.js", false},
		{"normal directory", "dist", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHidden(tt.filename); got != tt.want {
				t.Errorf("isHidden(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestHasChunkExtension(t *testing.T) {
	e := NewFilesystemEnumerator(Config{Extensions: chunkExtensions})
	for path, want := range map[string]bool{
		"a.js":     true,
		"a.MJS":    true,
		"a.cjs":    true,
		"a.js.map": false,
		"a.ts":     false,
		"js":       false,
	} {
		if got := e.hasChunkExtension(path); got != want {
			t.Errorf("hasChunkExtension(%q) = %v, want %v", path, got, want)
		}
	}

	if !NewFilesystemEnumerator(Config{}).hasChunkExtension("any.txt") {
		t.Error("no extensions should accept every file")
	}
}

func TestFilesystemEnumerator_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(tmpDir, string(rune('a'+i))+".js"), "content")
	}

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var count int
	err := NewFilesystemEnumerator(Config{Root: tmpDir, Readers: 1}).Enumerate(ctx, func(f *ChunkFile) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count == 3 {
			cancel()
		}
		return nil
	})

	if err != context.Canceled {
		t.Errorf("expected context.Canceled error, got %v", err)
	}
}
