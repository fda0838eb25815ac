package model

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Task
// --------------------------------------------------------------------------

// Task is a unit of work of a project. The fields are set up by the build
// description and are not modified once the task graph is complete.
type Task struct {
	ID          uuid.UUID
	Name        string
	Group       string
	Description string
	DependsOn   []*Task
	Inputs      FileCollection
	Outputs     *DirectoryProperty
	CopySpec    CopySpec
	Options     CompileOptions
	Properties  *MapProperty

	project *Project
}

// Project returns the owning project, nil for a detached task.
func (t *Task) Project() *Project {
	return t.project
}

// Attach sets the owning project of a detached task without registering it.
// It has no effect on a task that already has a project.
func (t *Task) Attach(p *Project) {
	if t.project == nil {
		t.project = p
	}
}

// Path returns the task path, ":<project>:<task>".
func (t *Task) Path() string {
	if t.project == nil {
		return ":" + t.Name
	}
	return ":" + t.project.Name + ":" + t.Name
}

func (t *Task) String() string {
	return "task '" + t.Path() + "'"
}

// --------------------------------------------------------------------------
// Project
// --------------------------------------------------------------------------

// Project is the root of a task graph.
// The task list is safe for concurrent use.
type Project struct {
	Name       string
	Dir        string
	Extensions *MapProperty

	mu    sync.RWMutex
	tasks []*Task
}

// Tasks returns the tasks in registration order.
func (p *Project) Tasks() []*Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.tasks)
}

// Task returns the task called name.
func (p *Project) Task(name string) (*Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.tasks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// AddTask registers t with the project. It fails if t belongs to another
// project or the name is taken.
func (p *Project) AddTask(t *Task) error {
	if t.project != nil && t.project != p {
		return fmt.Errorf("%s belongs to project %q", t, t.project.Name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.tasks {
		if existing.Name == t.Name {
			return fmt.Errorf("project %q already has a task %q", p.Name, t.Name)
		}
	}
	t.project = p
	p.tasks = append(p.tasks, t)
	return nil
}

// Ordered returns the tasks so that every task comes after its dependencies.
// It fails on a dependency cycle.
func (p *Project) Ordered() ([]*Task, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := map[*Task]int{}
	var out []*Task

	var visit func(t *Task) error
	visit = func(t *Task) error {
		switch state[t] {
		case visiting:
			return fmt.Errorf("dependency cycle at %s", t)
		case visited:
			return nil
		}
		state[t] = visiting
		for _, d := range t.DependsOn {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[t] = visited
		out = append(out, t)
		return nil
	}

	for _, t := range p.Tasks() {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return out, nil
}
