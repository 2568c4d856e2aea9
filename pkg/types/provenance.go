package types

// Provenance tracks where a chunk came from.
type Provenance interface {
	Kind() string
	// Path returns displayable path (if applicable)
	Path() string
}

// FileProvenance for chunk files read from disk.
type FileProvenance struct {
	FilePath string
}

// Kind returns "file".
func (f FileProvenance) Kind() string {
	return "file"
}

// Path returns the file path.
func (f FileProvenance) Path() string {
	return f.FilePath
}

// HookProvenance for chunks handed over by a bundler hook.
type HookProvenance struct {
	FileName string
}

// Kind returns "hook".
func (h HookProvenance) Kind() string {
	return "hook"
}

// Path returns the chunk file name reported by the bundler.
func (h HookProvenance) Path() string {
	return h.FileName
}
