package graph

import (
	"errors"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Error codes
// --------------------------------------------------------------------------

// ErrCode classifies engine failures.
type ErrCode uint8

const (
	CodeUnknown ErrCode = iota
	// CodeUnsupportedType: no codec resolvable for a concrete type. Recoverable
	// depending on the UnsupportedPolicy.
	CodeUnsupportedType
	// CodeMissingValue: a non-null slot decoded the null frame.
	CodeMissingValue
	// CodeFormatVersionMismatch: the stream header was written by an
	// incompatible engine. The whole stream is rejected.
	CodeFormatVersionMismatch
	// CodeUnexpectedEndOfStream: the stream is truncated.
	CodeUnexpectedEndOfStream
	// CodeCodecFailure: a codec or the framing of one of its frames failed.
	CodeCodecFailure
	// CodeIO: the underlying source or sink failed.
	CodeIO
)

func (c ErrCode) String() string {
	switch c {
	case CodeUnsupportedType:
		return "UnsupportedType"
	case CodeMissingValue:
		return "MissingValue"
	case CodeFormatVersionMismatch:
		return "FormatVersionMismatch"
	case CodeUnexpectedEndOfStream:
		return "UnexpectedEndOfStream"
	case CodeCodecFailure:
		return "CodecFailure"
	case CodeIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its code.
var (
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrMissingValue          = errors.New("missing value")
	ErrFormatVersionMismatch = errors.New("format version mismatch")
	ErrUnexpectedEndOfStream = errors.New("unexpected end of stream")
	ErrCodecFailure          = errors.New("codec failure")
	ErrIO                    = errors.New("stream i/o failure")
)

func (c ErrCode) sentinel() error {
	switch c {
	case CodeUnsupportedType:
		return ErrUnsupportedType
	case CodeMissingValue:
		return ErrMissingValue
	case CodeFormatVersionMismatch:
		return ErrFormatVersionMismatch
	case CodeUnexpectedEndOfStream:
		return ErrUnexpectedEndOfStream
	case CodeCodecFailure:
		return ErrCodecFailure
	case CodeIO:
		return ErrIO
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Error
// --------------------------------------------------------------------------

// Error carries enough context to identify which nested value failed: the
// concrete type, its ordinal (-1 if it has none), the byte offset in the stream
// (-1 if unknown) and the chain of enclosing types from the root.
type Error struct {
	Code    ErrCode
	Type    string
	Ordinal int64
	Offset  int64
	Path    []string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	if e.Type != "" {
		sb.WriteString(" (type ")
		sb.WriteString(e.Type)
		if e.Ordinal >= 0 {
			sb.WriteString(fmt.Sprintf(", ordinal %d", e.Ordinal))
		}
		if e.Offset >= 0 {
			sb.WriteString(fmt.Sprintf(", offset %d", e.Offset))
		}
		sb.WriteString(")")
	} else if e.Offset >= 0 {
		sb.WriteString(fmt.Sprintf(" (offset %d)", e.Offset))
	}
	if len(e.Path) > 0 {
		sb.WriteString(" at ")
		sb.WriteString(strings.Join(e.Path, " > "))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error code.
func (e *Error) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && target == s
}

// Fatal reports whether the error must abort the pass regardless of policy.
func (e *Error) Fatal() bool {
	return e.Code != CodeUnsupportedType
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) ErrCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeUnknown
}

// Failf builds a CodecFailure for codecs that detect a violated precondition.
// The engine fills in type, ordinal and offset when the error leaves the codec.
func Failf(format string, args ...any) error {
	return &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: -1, Err: fmt.Errorf(format, args...)}
}
