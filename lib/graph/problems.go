package graph

import (
	"fmt"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Problems
// --------------------------------------------------------------------------

// Problem is a non-fatal diagnostic raised during a pass, e.g. an unsupported
// value that was replaced according to the UnsupportedPolicy.
type Problem struct {
	Code    ErrCode
	Type    string
	Offset  int64
	Path    []string
	Message string
}

func (p Problem) String() string {
	var sb strings.Builder
	sb.WriteString(p.Code.String())
	if p.Type != "" {
		sb.WriteString(" ")
		sb.WriteString(p.Type)
	}
	if p.Offset >= 0 {
		sb.WriteString(fmt.Sprintf(" @%d", p.Offset))
	}
	if len(p.Path) > 0 {
		sb.WriteString(" at ")
		sb.WriteString(strings.Join(p.Path, " > "))
	}
	if p.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(p.Message)
	}
	return sb.String()
}

// ProblemSink receives the problems of a pass. Whether a pass with problems is
// still usable is decided by the owner of the sink, not by the engine.
type ProblemSink interface {
	Report(p Problem)
}

// ProblemFunc adapts a function to ProblemSink.
type ProblemFunc func(p Problem)

func (f ProblemFunc) Report(p Problem) {
	f(p)
}

// ProblemList collects problems.
//
// Thread-safety: safe for concurrent use, so one list can be shared by passes
// running in parallel.
type ProblemList struct {
	mu    sync.Mutex
	items []Problem
}

func (l *ProblemList) Report(p Problem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, p)
}

// Problems returns a copy of the collected problems.
func (l *ProblemList) Problems() []Problem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Problem(nil), l.items...)
}

func (l *ProblemList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// LogProblems writes every problem to the package logger as a warning.
var LogProblems ProblemSink = ProblemFunc(func(p Problem) {
	Logger.Warningf("problem: %s", p)
})
