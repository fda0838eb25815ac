package model

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ObjectFactory creates model instances wired to their construction services.
// Build descriptions and the cache decoder both go through it.
type ObjectFactory interface {
	// Resolver returns the file resolver given to created instances.
	Resolver() FileResolver
	NewProject(name, dir string) *Project
	// NewTask creates a task owned by project (nil for a detached task). The
	// task is not added to the project.
	NewTask(project *Project, name string) *Task
	NewProperty() *Property
	NewDirectoryProperty() *DirectoryProperty
	NewMapProperty() *MapProperty
	NewFileCollection() *ConfigurableFileCollection
	NewCopySpec() *DefaultCopySpec
	NewDestinationRootCopySpec(delegate CopySpec) *DestinationRootCopySpec
	// Instantiated returns the number of instances created so far.
	Instantiated() int64
}

// DefaultObjectFactory is the ObjectFactory used outside of tests.
// It is safe for concurrent use.
type DefaultObjectFactory struct {
	resolver FileResolver
	count    atomic.Int64
}

// NewObjectFactory returns a factory creating instances that resolve against
// resolver.
func NewObjectFactory(resolver FileResolver) *DefaultObjectFactory {
	return &DefaultObjectFactory{resolver: resolver}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see model.ObjectFactory)
// --------------------------------------------------------------------------

func (f *DefaultObjectFactory) Resolver() FileResolver {
	return f.resolver
}

func (f *DefaultObjectFactory) NewProject(name, dir string) *Project {
	f.count.Add(1)
	return &Project{
		Name:       name,
		Dir:        f.resolver.Resolve(dir),
		Extensions: f.NewMapProperty(),
	}
}

func (f *DefaultObjectFactory) NewTask(project *Project, name string) *Task {
	f.count.Add(1)
	return &Task{
		ID:         uuid.New(),
		Name:       name,
		Outputs:    f.NewDirectoryProperty(),
		Options:    DefaultCompileOptions(),
		Properties: f.NewMapProperty(),
		project:    project,
	}
}

func (f *DefaultObjectFactory) NewProperty() *Property {
	f.count.Add(1)
	return &Property{}
}

func (f *DefaultObjectFactory) NewDirectoryProperty() *DirectoryProperty {
	f.count.Add(1)
	return &DirectoryProperty{resolver: f.resolver}
}

func (f *DefaultObjectFactory) NewMapProperty() *MapProperty {
	f.count.Add(1)
	return &MapProperty{}
}

func (f *DefaultObjectFactory) NewFileCollection() *ConfigurableFileCollection {
	f.count.Add(1)
	return &ConfigurableFileCollection{resolver: f.resolver}
}

func (f *DefaultObjectFactory) NewCopySpec() *DefaultCopySpec {
	f.count.Add(1)
	return &DefaultCopySpec{resolver: f.resolver}
}

func (f *DefaultObjectFactory) NewDestinationRootCopySpec(delegate CopySpec) *DestinationRootCopySpec {
	f.count.Add(1)
	return &DestinationRootCopySpec{
		delegate:       delegate,
		destinationDir: f.NewDirectoryProperty(),
	}
}

func (f *DefaultObjectFactory) Instantiated() int64 {
	return f.count.Load()
}
