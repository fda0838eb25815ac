package model

import "path/filepath"

// FileResolver turns paths from build descriptions into absolute paths.
type FileResolver interface {
	// Resolve returns path unchanged if it is absolute, otherwise relative to
	// the base directory.
	Resolve(path string) string
	// BaseDir returns the absolute base directory.
	BaseDir() string
}

// NewFileResolver returns a resolver rooted at baseDir. A relative baseDir is
// made absolute against the working directory.
func NewFileResolver(baseDir string) FileResolver {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		abs = filepath.Clean(baseDir)
	}
	return &baseDirResolver{base: abs}
}

type baseDirResolver struct {
	base string
}

func (r *baseDirResolver) Resolve(path string) string {
	if path == "" {
		return r.base
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.base, path)
}

func (r *baseDirResolver) BaseDir() string {
	return r.base
}
