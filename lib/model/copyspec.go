package model

import "path/filepath"

// CopySpec describes which files a copy task copies and where to.
type CopySpec interface {
	// Sources returns the resolved source paths, including those of children.
	Sources() []string
	// Destination returns the resolved target directory, "" if none is set.
	Destination() string
}

// --------------------------------------------------------------------------
// DefaultCopySpec
// --------------------------------------------------------------------------

// DefaultCopySpec is the copy spec produced by build descriptions. Child specs
// copy into a sub directory of their parent.
//
// The exported fields are the persisted state. The resolver is a construction
// service, so instances must come from an ObjectFactory.
type DefaultCopySpec struct {
	FromPaths []string
	IntoPath  string
	Includes  []string
	Excludes  []string
	Children  []CopySpec

	resolver FileResolver
}

// From adds source paths.
func (s *DefaultCopySpec) From(paths ...string) *DefaultCopySpec {
	s.FromPaths = append(s.FromPaths, paths...)
	return s
}

// Into sets the target directory.
func (s *DefaultCopySpec) Into(path string) *DefaultCopySpec {
	s.IntoPath = path
	return s
}

// Include adds include patterns.
func (s *DefaultCopySpec) Include(patterns ...string) *DefaultCopySpec {
	s.Includes = append(s.Includes, patterns...)
	return s
}

// Exclude adds exclude patterns.
func (s *DefaultCopySpec) Exclude(patterns ...string) *DefaultCopySpec {
	s.Excludes = append(s.Excludes, patterns...)
	return s
}

// With adds a child spec.
func (s *DefaultCopySpec) With(child CopySpec) *DefaultCopySpec {
	s.Children = append(s.Children, child)
	return s
}

func (s *DefaultCopySpec) Sources() []string {
	var out []string
	for _, p := range s.FromPaths {
		out = append(out, s.resolve(p))
	}
	for _, c := range s.Children {
		out = append(out, c.Sources()...)
	}
	return out
}

func (s *DefaultCopySpec) Destination() string {
	if s.IntoPath == "" {
		return ""
	}
	return s.resolve(s.IntoPath)
}

// Matches reports whether name passes the include and exclude patterns.
// Without includes every name is included.
func (s *DefaultCopySpec) Matches(name string) bool {
	included := len(s.Includes) == 0
	for _, p := range s.Includes {
		if ok, _ := filepath.Match(p, name); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range s.Excludes {
		if ok, _ := filepath.Match(p, name); ok {
			return false
		}
	}
	return true
}

func (s *DefaultCopySpec) resolve(path string) string {
	if s.resolver == nil {
		return filepath.Clean(path)
	}
	return s.resolver.Resolve(path)
}

// --------------------------------------------------------------------------
// DestinationRootCopySpec
// --------------------------------------------------------------------------

// DestinationRootCopySpec roots a delegate spec at a destination directory.
// Instances must come from ObjectFactory.NewDestinationRootCopySpec.
type DestinationRootCopySpec struct {
	delegate       CopySpec
	destinationDir *DirectoryProperty
}

// Delegate returns the wrapped spec.
func (s *DestinationRootCopySpec) Delegate() CopySpec {
	return s.delegate
}

// SetDelegate replaces the wrapped spec.
func (s *DestinationRootCopySpec) SetDelegate(delegate CopySpec) {
	s.delegate = delegate
}

// DestinationDir returns the destination directory property.
func (s *DestinationRootCopySpec) DestinationDir() *DirectoryProperty {
	return s.destinationDir
}

// UseDestinationDir makes d the destination directory property, so d can be
// shared with other owners. A nil d is ignored.
func (s *DestinationRootCopySpec) UseDestinationDir(d *DirectoryProperty) {
	if d != nil {
		s.destinationDir = d
	}
}

func (s *DestinationRootCopySpec) Sources() []string {
	if s.delegate == nil {
		return nil
	}
	return s.delegate.Sources()
}

// Destination returns the destination directory, joined with the delegate's
// relative target if it has one.
func (s *DestinationRootCopySpec) Destination() string {
	root, ok := s.destinationDir.Path()
	if !ok {
		if s.delegate == nil {
			return ""
		}
		return s.delegate.Destination()
	}
	if d, ok := s.delegate.(*DefaultCopySpec); ok && d.IntoPath != "" && !filepath.IsAbs(d.IntoPath) {
		return filepath.Join(root, d.IntoPath)
	}
	return root
}
