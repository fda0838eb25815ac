package model

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// BuildFile is the YAML build description:
//
//	project: app
//	dir: .
//	extensions:
//	  version: "1.0"
//	tasks:
//	  - name: compile
//	    inputs: [src/main.scala]
//	    outputs: build/classes
//	    options: {encoding: UTF-8, optimize: true}
//	  - name: dist
//	    dependsOn: [compile]
//	    properties:
//	      release: ${version}
//	    copy:
//	      from: [build/classes]
//	      into: lib
//	      include: ["*.class"]
//	      destination: build/dist
//
// A property value of the form ${name} follows the project extension name.
type BuildFile struct {
	Project    string      `yaml:"project"`
	Dir        string      `yaml:"dir"`
	Extensions yaml.Node   `yaml:"extensions"`
	Tasks      []TaskEntry `yaml:"tasks"`
}

// TaskEntry is one task of a BuildFile.
type TaskEntry struct {
	Name        string          `yaml:"name"`
	Group       string          `yaml:"group"`
	Description string          `yaml:"description"`
	DependsOn   []string        `yaml:"dependsOn"`
	Inputs      []string        `yaml:"inputs"`
	Outputs     string          `yaml:"outputs"`
	Options     *CompileOptions `yaml:"options"`
	Properties  yaml.Node       `yaml:"properties"`
	Copy        *CopyEntry      `yaml:"copy"`
}

// CopyEntry is the copy spec of a TaskEntry. With a destination the spec is
// rooted there.
type CopyEntry struct {
	From        []string    `yaml:"from"`
	Into        string      `yaml:"into"`
	Include     []string    `yaml:"include"`
	Exclude     []string    `yaml:"exclude"`
	Destination string      `yaml:"destination"`
	Children    []CopyEntry `yaml:"children"`
}

// ParseBuildFile reads a YAML build description and creates the project with
// factory.
func ParseBuildFile(r io.Reader, factory ObjectFactory) (*Project, error) {
	var file BuildFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("invalid build file: %w", err)
	}
	return file.Build(factory)
}

// Build creates the project described by the file.
func (f *BuildFile) Build(factory ObjectFactory) (*Project, error) {
	if f.Project == "" {
		return nil, errors.New("invalid build file: no project name")
	}
	p := factory.NewProject(f.Project, f.Dir)
	if err := putNode(p.Extensions, &f.Extensions, nil); err != nil {
		return nil, fmt.Errorf("invalid build file: extensions: %w", err)
	}

	for _, e := range f.Tasks {
		t, err := e.build(factory, p)
		if err != nil {
			return nil, fmt.Errorf("invalid build file: task %q: %w", e.Name, err)
		}
		if err := p.AddTask(t); err != nil {
			return nil, fmt.Errorf("invalid build file: %w", err)
		}
	}

	for _, e := range f.Tasks {
		t, _ := p.Task(e.Name)
		for _, dep := range e.DependsOn {
			d, ok := p.Task(dep)
			if !ok {
				return nil, fmt.Errorf("invalid build file: task %q depends on unknown task %q", e.Name, dep)
			}
			t.DependsOn = append(t.DependsOn, d)
		}
	}
	if _, err := p.Ordered(); err != nil {
		return nil, fmt.Errorf("invalid build file: %w", err)
	}
	return p, nil
}

// --------------------------------------------------------------------------
// Summary
// --------------------------------------------------------------------------

// Summary is the YAML view of a project written by Describe.
type Summary struct {
	Project    string         `yaml:"project"`
	Dir        string         `yaml:"dir"`
	Extensions map[string]any `yaml:"extensions,omitempty"`
	Tasks      []TaskSummary  `yaml:"tasks"`
}

// TaskSummary is the YAML view of a task.
type TaskSummary struct {
	Path        string         `yaml:"path"`
	ID          string         `yaml:"id"`
	Group       string         `yaml:"group,omitempty"`
	Description string         `yaml:"description,omitempty"`
	DependsOn   []string       `yaml:"dependsOn,omitempty"`
	Inputs      []string       `yaml:"inputs,omitempty"`
	Outputs     string         `yaml:"outputs,omitempty"`
	Sources     []string       `yaml:"sources,omitempty"`
	Destination string         `yaml:"destination,omitempty"`
	Options     CompileOptions `yaml:"options"`
	Properties  map[string]any `yaml:"properties,omitempty"`
}

// Describe renders the resolved state of a project as YAML.
func Describe(p *Project) ([]byte, error) {
	if p == nil {
		return nil, errors.New("project is nil")
	}
	ext, err := p.Extensions.Entries()
	if err != nil {
		return nil, fmt.Errorf("extensions: %w", err)
	}
	s := Summary{Project: p.Name, Dir: p.Dir, Extensions: ext}

	for _, t := range p.Tasks() {
		ts := TaskSummary{
			Path:        t.Path(),
			ID:          t.ID.String(),
			Group:       t.Group,
			Description: t.Description,
			Options:     t.Options,
		}
		for _, d := range t.DependsOn {
			ts.DependsOn = append(ts.DependsOn, d.Path())
		}
		if t.Inputs != nil {
			ts.Inputs = t.Inputs.Files()
		}
		if t.Outputs != nil {
			ts.Outputs, _ = t.Outputs.Path()
		}
		if t.CopySpec != nil {
			ts.Sources = t.CopySpec.Sources()
			ts.Destination = t.CopySpec.Destination()
		}
		if t.Properties != nil {
			if ts.Properties, err = t.Properties.Entries(); err != nil {
				return nil, fmt.Errorf("%s: properties: %w", t, err)
			}
		}
		s.Tasks = append(s.Tasks, ts)
	}
	return yaml.Marshal(&s)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (e *TaskEntry) build(factory ObjectFactory, p *Project) (*Task, error) {
	if e.Name == "" {
		return nil, errors.New("no name")
	}
	t := factory.NewTask(p, e.Name)
	t.Group = e.Group
	t.Description = e.Description
	if e.Options != nil {
		t.Options = *e.Options
	}
	if len(e.Inputs) > 0 {
		t.Inputs = factory.NewFileCollection().From(e.Inputs...)
	}
	t.Outputs.Set(e.Outputs)
	if err := putNode(t.Properties, &e.Properties, p.Extensions); err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	if e.Copy != nil {
		t.CopySpec = e.Copy.build(factory)
	}
	return t, nil
}

func (c *CopyEntry) build(factory ObjectFactory) CopySpec {
	spec := factory.NewCopySpec().
		From(c.From...).
		Into(c.Into).
		Include(c.Include...).
		Exclude(c.Exclude...)
	for i := range c.Children {
		spec.With(c.Children[i].build(factory))
	}
	if c.Destination == "" {
		return spec
	}
	root := factory.NewDestinationRootCopySpec(spec)
	root.DestinationDir().Set(c.Destination)
	return root
}

// putNode puts the entries of a YAML mapping in document order. String values
// of the form ${name} become providers of the entry name of refs.
func putNode(m *MapProperty, node *yaml.Node, refs *MapProperty) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v any
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if s, ok := v.(string); ok && refs != nil && strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			v = refs.Getting(s[2 : len(s)-1])
		}
		m.Put(key, v)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
