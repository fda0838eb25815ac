package modelcodec

import (
	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/ValentinKolb/confcache/lib/graph/codecs"
	"github.com/ValentinKolb/confcache/lib/model"
	"github.com/google/uuid"
)

// Frozen tags of the model codecs.
const (
	TagProject                 graph.Tag = 100
	TagTask                    graph.Tag = 101
	TagProperty                graph.Tag = 102
	TagDirectoryProperty       graph.Tag = 103
	TagMapProperty             graph.Tag = 104
	TagDefaultCopySpec         graph.Tag = 105
	TagDestinationRootCopySpec graph.Tag = 106
	TagCompileOptions          graph.Tag = 107
	TagFileCollection          graph.Tag = 108
	TagProvider                graph.Tag = 109
	TagFiles                   graph.Tag = 110
)

// Register installs the model codecs. Exact registrations win over the Provider
// and FileCollection capabilities, so a *Property is written as a property and
// not as a provider.
func Register(b *graph.Builder) {
	graph.RegisterType[*model.Project](b, TagProject, Project)
	graph.RegisterType[*model.Task](b, TagTask, Task)
	graph.RegisterType[*model.Property](b, TagProperty, Property)
	graph.RegisterType[*model.DirectoryProperty](b, TagDirectoryProperty, DirectoryProperty)
	graph.RegisterType[*model.MapProperty](b, TagMapProperty, MapProperty)
	graph.RegisterType[*model.DefaultCopySpec](b, TagDefaultCopySpec, DefaultCopySpec)
	graph.RegisterType[*model.DestinationRootCopySpec](b, TagDestinationRootCopySpec, DestinationRootCopySpec)
	graph.RegisterType[model.CompileOptions](b, TagCompileOptions, CompileOptions)
	graph.RegisterType[*model.ConfigurableFileCollection](b, TagFileCollection, FileCollection)
	graph.RegisterInterface[model.Provider](b, TagProvider, Provider)
	graph.RegisterInterface[model.FileCollection](b, TagFiles, Files)
}

// NewRegistry returns a registry with the built-in and the model codecs.
func NewRegistry() (*graph.Registry, error) {
	b := graph.NewBuilder()
	codecs.RegisterDefaults(b)
	Register(b)
	return b.Build()
}

// Services returns the construction services the model codecs need on decode.
func Services(factory model.ObjectFactory) graph.Services {
	s := graph.Services{}
	graph.AddService[model.ObjectFactory](s, factory)
	return s
}

// --------------------------------------------------------------------------
// Project and Task
// --------------------------------------------------------------------------

// Project writes name and directory first, so the decoder can construct the
// project through the factory before reading the tasks that point back to it.
var Project = graph.CodecOf(
	func(w *graph.WriteContext, p *model.Project) error {
		w.WriteString(p.Name)
		w.WriteString(p.Dir)
		if err := w.Write(p.Extensions); err != nil {
			return err
		}
		tasks := p.Tasks()
		w.WriteSize(len(tasks))
		for _, t := range tasks {
			if err := w.Write(t); err != nil {
				return err
			}
		}
		return nil
	},
	func(r *graph.ReadContext) (*model.Project, error) {
		factory, err := graph.Service[model.ObjectFactory](r)
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		dir, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		p := factory.NewProject(name, dir)
		r.Provide(p)

		if p.Extensions, err = graph.ReadAs[*model.MapProperty](r); err != nil {
			return nil, err
		}
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			t, err := graph.ReadNonNullAs[*model.Task](r)
			if err != nil {
				return nil, err
			}
			if t == nil {
				continue
			}
			if err := p.AddTask(t); err != nil {
				return nil, graph.Failf("%v", err)
			}
		}
		return p, nil
	})

// Task constructs a detached task from its name and provides it before reading
// the owning project, so a task can be the root of a stream.
var Task = graph.CodecOf(
	func(w *graph.WriteContext, t *model.Task) error {
		w.WriteString(t.Name)
		if err := w.Write(t.Project()); err != nil {
			return err
		}
		if err := w.Write(t.ID); err != nil {
			return err
		}
		w.WriteString(t.Group)
		w.WriteString(t.Description)
		w.WriteSize(len(t.DependsOn))
		for _, d := range t.DependsOn {
			if err := w.Write(d); err != nil {
				return err
			}
		}
		for _, v := range []any{t.Inputs, t.Outputs, t.CopySpec, t.Options, t.Properties} {
			if err := w.Write(v); err != nil {
				return err
			}
		}
		return nil
	},
	func(r *graph.ReadContext) (*model.Task, error) {
		factory, err := graph.Service[model.ObjectFactory](r)
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		t := factory.NewTask(nil, name)
		r.Provide(t)

		project, err := graph.ReadAs[*model.Project](r)
		if err != nil {
			return nil, err
		}
		if project != nil {
			t.Attach(project)
		}
		if t.ID, err = graph.ReadNonNullAs[uuid.UUID](r); err != nil {
			return nil, err
		}
		if t.Group, err = r.ReadString(); err != nil {
			return nil, err
		}
		if t.Description, err = r.ReadString(); err != nil {
			return nil, err
		}
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		t.DependsOn = make([]*model.Task, 0, n)
		for i := 0; i < n; i++ {
			d, err := graph.ReadNonNullAs[*model.Task](r)
			if err != nil {
				return nil, err
			}
			if d != nil {
				t.DependsOn = append(t.DependsOn, d)
			}
		}
		if t.Inputs, err = graph.ReadAs[model.FileCollection](r); err != nil {
			return nil, err
		}
		if t.Outputs, err = graph.ReadAs[*model.DirectoryProperty](r); err != nil {
			return nil, err
		}
		if t.CopySpec, err = graph.ReadAs[model.CopySpec](r); err != nil {
			return nil, err
		}
		if t.Options, err = graph.ReadNonNullAs[model.CompileOptions](r); err != nil {
			return nil, err
		}
		if t.Properties, err = graph.ReadAs[*model.MapProperty](r); err != nil {
			return nil, err
		}
		return t, nil
	})

// --------------------------------------------------------------------------
// Properties
// --------------------------------------------------------------------------

const (
	propertyEmpty uint64 = iota
	propertyValue
	propertyProvider
)

var Property = graph.CodecOf(
	func(w *graph.WriteContext, p *model.Property) error {
		if src := p.Source(); src != nil {
			w.WriteUint(propertyProvider)
			return w.Write(src)
		}
		if v := p.Value(); v != nil {
			w.WriteUint(propertyValue)
			return w.Write(v)
		}
		w.WriteUint(propertyEmpty)
		return nil
	},
	func(r *graph.ReadContext) (*model.Property, error) {
		factory, err := graph.Service[model.ObjectFactory](r)
		if err != nil {
			return nil, err
		}
		p := factory.NewProperty()
		r.Provide(p)

		kind, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		switch kind {
		case propertyEmpty:
		case propertyValue:
			v, err := r.Read()
			if err != nil {
				return nil, err
			}
			p.Set(v)
		case propertyProvider:
			src, err := graph.ReadAs[model.Provider](r)
			if err != nil {
				return nil, err
			}
			if src != nil {
				p.SetProvider(src)
			}
		default:
			return nil, graph.Failf("invalid property kind %d", kind)
		}
		return p, nil
	})

var DirectoryProperty = graph.CodecOf(
	func(w *graph.WriteContext, d *model.DirectoryProperty) error {
		path, ok := d.Path()
		w.WriteBool(ok)
		if ok {
			w.WriteString(path)
		}
		return nil
	},
	func(r *graph.ReadContext) (*model.DirectoryProperty, error) {
		factory, err := graph.Service[model.ObjectFactory](r)
		if err != nil {
			return nil, err
		}
		d := factory.NewDirectoryProperty()
		ok, err := r.ReadBool()
		if err != nil || !ok {
			return d, err
		}
		path, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		d.Set(path)
		return d, nil
	})

// MapProperty keeps the key order. Provider entries are written through the
// Provider capability, that is as their current value.
var MapProperty = graph.CodecOf(
	func(w *graph.WriteContext, m *model.MapProperty) error {
		keys := m.Keys()
		w.WriteSize(len(keys))
		for _, k := range keys {
			v, _ := m.Raw(k)
			w.WriteString(k)
			if err := w.Write(v); err != nil {
				return err
			}
		}
		return nil
	},
	func(r *graph.ReadContext) (*model.MapProperty, error) {
		factory, err := graph.Service[model.ObjectFactory](r)
		if err != nil {
			return nil, err
		}
		m := factory.NewMapProperty()
		r.Provide(m)

		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			k, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			v, err := r.Read()
			if err != nil {
				return nil, err
			}
			m.Put(k, v)
		}
		return m, nil
	})

// Provider writes whether the provider has a value and the value itself. It
// decodes as a fixed or a missing provider.
var Provider = graph.CodecOf(
	func(w *graph.WriteContext, p model.Provider) error {
		if !p.Present() {
			w.WriteBool(false)
			return nil
		}
		v, err := p.Get()
		if err != nil {
			return graph.Failf("provider value: %v", err)
		}
		w.WriteBool(true)
		return w.Write(v)
	},
	func(r *graph.ReadContext) (model.Provider, error) {
		present, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if !present {
			return model.Missing(), nil
		}
		v, err := r.Read()
		if err != nil {
			return nil, err
		}
		return model.Fixed(v), nil
	})

// --------------------------------------------------------------------------
// Files and copy specs
// --------------------------------------------------------------------------

// FileCollection keeps the unresolved paths of a configurable collection.
var FileCollection = graph.CodecOf(
	func(w *graph.WriteContext, c *model.ConfigurableFileCollection) error {
		writePaths(w, c.Paths())
		return nil
	},
	func(r *graph.ReadContext) (*model.ConfigurableFileCollection, error) {
		return readFiles(r)
	})

// Files writes any other FileCollection as its resolved files. It decodes as a
// configurable collection.
var Files = graph.CodecOf(
	func(w *graph.WriteContext, c model.FileCollection) error {
		writePaths(w, c.Files())
		return nil
	},
	func(r *graph.ReadContext) (model.FileCollection, error) {
		c, err := readFiles(r)
		if err != nil {
			return nil, err
		}
		return c, nil
	})

// DefaultCopySpec is a bean constructed through the factory, which supplies
// the file resolver.
var DefaultCopySpec = codecs.BeanOf(func(r *graph.ReadContext) (*model.DefaultCopySpec, error) {
	factory, err := graph.Service[model.ObjectFactory](r)
	if err != nil {
		return nil, err
	}
	return factory.NewCopySpec(), nil
})

// DestinationRootCopySpec writes the destination directory, then the delegate.
// The instance is constructed and provided before either is read, so the
// delegate may lead back to it. The decoded directory property is adopted, not
// copied, to keep it shared.
var DestinationRootCopySpec = graph.CodecOf(
	func(w *graph.WriteContext, s *model.DestinationRootCopySpec) error {
		if err := w.Write(s.DestinationDir()); err != nil {
			return err
		}
		return w.Write(s.Delegate())
	},
	func(r *graph.ReadContext) (*model.DestinationRootCopySpec, error) {
		factory, err := graph.Service[model.ObjectFactory](r)
		if err != nil {
			return nil, err
		}
		spec := factory.NewDestinationRootCopySpec(nil)
		r.Provide(spec)

		destDir, err := graph.ReadNonNullAs[*model.DirectoryProperty](r)
		if err != nil {
			return nil, err
		}
		spec.UseDestinationDir(destDir)

		delegate, err := graph.ReadAs[model.CopySpec](r)
		if err != nil {
			return nil, err
		}
		spec.SetDelegate(delegate)
		return spec, nil
	})

var CompileOptions = codecs.CBOR[model.CompileOptions]()

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func writePaths(w *graph.WriteContext, paths []string) {
	w.WriteSize(len(paths))
	for _, p := range paths {
		w.WriteString(p)
	}
}

func readFiles(r *graph.ReadContext) (*model.ConfigurableFileCollection, error) {
	factory, err := graph.Service[model.ObjectFactory](r)
	if err != nil {
		return nil, err
	}
	n, err := r.ReadSize()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return factory.NewFileCollection().From(paths...), nil
}
