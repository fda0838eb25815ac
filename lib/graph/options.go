package graph

import (
	"fmt"
	"reflect"
	"strings"
)

// DefaultMaxDepth is the nesting limit used when Options.MaxDepth is zero.
const DefaultMaxDepth = 10_000

// --------------------------------------------------------------------------
// Unsupported type policy
// --------------------------------------------------------------------------

// UnsupportedPolicy decides what an encode pass does with a value for which no
// codec can be resolved.
type UnsupportedPolicy uint8

const (
	// UnsupportedPlaceholder writes a placeholder frame carrying the type name.
	// It decodes to *Unsupported and reports a problem on both sides.
	UnsupportedPlaceholder UnsupportedPolicy = iota
	// UnsupportedNull writes the null frame and reports a problem.
	UnsupportedNull
	// UnsupportedFail aborts the pass with an UnsupportedType error.
	UnsupportedFail
)

func (p UnsupportedPolicy) String() string {
	switch p {
	case UnsupportedPlaceholder:
		return "placeholder"
	case UnsupportedNull:
		return "null"
	case UnsupportedFail:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseUnsupportedPolicy parses the String form of a policy.
func ParseUnsupportedPolicy(s string) (UnsupportedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "placeholder", "":
		return UnsupportedPlaceholder, nil
	case "null":
		return UnsupportedNull, nil
	case "fail":
		return UnsupportedFail, nil
	default:
		return 0, fmt.Errorf("invalid unsupported policy %q: must be one of placeholder, null, fail", s)
	}
}

// Unsupported is what a placeholder frame decodes to.
type Unsupported struct {
	TypeName string
}

func (u *Unsupported) String() string {
	return "<unsupported " + u.TypeName + ">"
}

// --------------------------------------------------------------------------
// Construction services
// --------------------------------------------------------------------------

// Services holds the construction services codecs may look up during decode,
// keyed by the type they were registered under.
type Services map[reflect.Type]any

// AddService registers v as the service of type T.
func AddService[T any](s Services, v T) {
	s[reflect.TypeFor[T]()] = v
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configure encoders and decoders. A nil *Options means DefaultOptions.
type Options struct {
	// Unsupported is applied when no codec can be resolved during encode.
	Unsupported UnsupportedPolicy
	// Problems receives non-fatal diagnostics. Nil discards them (they are still
	// counted in Stats).
	Problems ProblemSink
	// MaxDepth bounds frame nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	// Services are the construction services available through Service.
	Services Services
	// Trace, if set, is called for every frame a decoder reads.
	Trace func(FrameInfo)
}

// DefaultOptions returns the default options: placeholder policy, problems
// written to the log.
func DefaultOptions() *Options {
	return &Options{
		Unsupported: UnsupportedPlaceholder,
		Problems:    LogProblems,
		MaxDepth:    DefaultMaxDepth,
	}
}

func (o *Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func orDefault(o *Options) *Options {
	if o == nil {
		return DefaultOptions()
	}
	return o
}
