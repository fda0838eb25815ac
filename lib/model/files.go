package model

import (
	"slices"
	"sync"
)

// FileCollection is anything that can list files.
type FileCollection interface {
	// Files returns the resolved paths of the collection.
	Files() []string
}

// ConfigurableFileCollection is a FileCollection built from paths added with
// From. Paths are stored as given and resolved on Files.
type ConfigurableFileCollection struct {
	resolver FileResolver
	mu       sync.RWMutex
	paths    []string
}

// From adds paths to the collection and returns it.
func (c *ConfigurableFileCollection) From(paths ...string) *ConfigurableFileCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, paths...)
	return c
}

// Paths returns the unresolved paths.
func (c *ConfigurableFileCollection) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.paths)
}

func (c *ConfigurableFileCollection) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]string, 0, len(c.paths))
	for _, p := range c.paths {
		files = append(files, c.resolver.Resolve(p))
	}
	return files
}

// StaticFiles is a fixed list of already resolved files.
type StaticFiles []string

func (s StaticFiles) Files() []string {
	return slices.Clone(s)
}
