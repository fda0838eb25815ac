package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// --------------------------------------------------------------------------
// Write Context
// --------------------------------------------------------------------------

// WriteContext is the engine-facing API codecs use to emit nested values and
// primitives during one encode pass. It owns the staged output and the write
// side of the reference table.
//
// Thread-safety: a WriteContext belongs to one pass and must not be shared.
type WriteContext struct {
	ctx   context.Context
	reg   *Registry
	opts  *Options
	out   stagingWriter
	refs  *writeRefs
	path  []string
	stats Stats
}

func newWriteContext(ctx context.Context, reg *Registry, opts *Options) *WriteContext {
	return &WriteContext{
		ctx:  ctx,
		reg:  reg,
		opts: opts,
		refs: newWriteRefs(),
	}
}

// Context returns the context of the pass.
func (w *WriteContext) Context() context.Context {
	return w.ctx
}

// Registry returns the registry the pass dispatches through.
func (w *WriteContext) Registry() *Registry {
	return w.reg
}

// Write emits value as a nested frame: the null frame for nil and typed nil,
// a back-reference for an instance already written in this pass, otherwise a
// first-occurrence frame whose payload is produced by the resolved codec.
func (w *WriteContext) Write(value any) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	if isNil(value) {
		w.out.writeUint8(uint8(FrameNull))
		w.stats.Frames++
		w.stats.Nulls++
		return nil
	}

	id, hasIdentity := identityOf(value)
	if hasIdentity {
		if ord, ok := w.refs.lookup(id); ok {
			w.out.writeUint8(uint8(FrameRef))
			w.out.writeUvarint(uint64(ord))
			w.stats.Frames++
			w.stats.BackReferences++
			return nil
		}
	}

	// the codec is resolved before an ordinal is assigned, so an unsupported
	// value leaves no trace in the reference table
	t := reflect.TypeOf(value)
	tag, codec, err := w.reg.CodecFor(t)
	if err != nil {
		return w.unsupported(t, err)
	}

	name := typeName(t)
	start := w.out.offset()
	if len(w.path) >= w.opts.maxDepth() {
		return w.contextualize(Failf("nesting exceeds %d frames", w.opts.maxDepth()), name, -1, start)
	}

	ord := int64(-1)
	if hasIdentity {
		ord = w.refs.assign(id)
		w.out.writeUint8(uint8(FrameObject))
		w.out.writeUvarint(uint64(tag))
		w.out.writeUvarint(uint64(ord))
		w.stats.Objects++
	} else {
		w.out.writeUint8(uint8(FrameValue))
		w.out.writeUvarint(uint64(tag))
	}
	w.stats.Frames++

	pos := w.out.beginLength()
	w.path = append(w.path, name)
	err = codec.Encode(w, value)
	if err == nil {
		err = w.out.endLength(pos)
	}
	if err != nil {
		err = w.contextualize(err, name, ord, start)
	}
	w.path = w.path[:len(w.path)-1]
	return err
}

// --------------------------------------------------------------------------
// Primitive family (no tag dispatch, no identity)
// --------------------------------------------------------------------------

func (w *WriteContext) WriteBool(v bool) {
	if v {
		w.out.writeUint8(1)
	} else {
		w.out.writeUint8(0)
	}
}

// WriteInt writes a zig-zag varint.
func (w *WriteContext) WriteInt(v int64) {
	w.out.writeVarint(v)
}

// WriteUint writes a uvarint.
func (w *WriteContext) WriteUint(v uint64) {
	w.out.writeUvarint(v)
}

// WriteFloat writes the IEEE-754 bits big-endian.
func (w *WriteContext) WriteFloat(v float64) {
	w.out.writeFloat(v)
}

func (w *WriteContext) WriteString(v string) {
	w.out.writeString(v)
}

func (w *WriteContext) WriteBytes(v []byte) {
	w.out.writeBytes(v)
}

// WriteSize writes a non-negative count, typically the length of a collection
// that follows.
func (w *WriteContext) WriteSize(n int) {
	w.out.writeUvarint(uint64(n))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// unsupported applies the UnsupportedPolicy. Nothing has been written for the
// value when it is called.
func (w *WriteContext) unsupported(t reflect.Type, cause error) error {
	var ge *Error
	if !errors.As(cause, &ge) {
		ge = &Error{Code: CodeUnsupportedType, Type: typeName(t), Err: cause}
	}
	ge.Ordinal = -1
	ge.Offset = w.out.offset()
	ge.Path = w.pathWith(typeName(t))

	switch w.opts.Unsupported {
	case UnsupportedFail:
		return ge
	case UnsupportedNull:
		w.report(ge, "replaced by null")
		w.out.writeUint8(uint8(FrameNull))
		w.stats.Frames++
		w.stats.Nulls++
		return nil
	default:
		w.report(ge, "replaced by placeholder")
		w.out.writeUint8(uint8(FrameUnsupported))
		w.out.writeString(ge.Type)
		w.stats.Frames++
		return nil
	}
}

func (w *WriteContext) report(ge *Error, action string) {
	w.stats.Problems++
	problemsReported.Inc()
	if w.opts.Problems == nil {
		return
	}
	w.opts.Problems.Report(Problem{
		Code:    ge.Code,
		Type:    ge.Type,
		Offset:  ge.Offset,
		Path:    ge.Path,
		Message: fmt.Sprintf("%s, %s", action, errMessage(ge)),
	})
}

// contextualize attaches type, ordinal, offset and path of the frame that
// failed. Errors already carrying the context of a deeper frame are returned
// unchanged.
func (w *WriteContext) contextualize(err error, name string, ord, offset int64) error {
	return attachContext(err, name, ord, offset, w.pathWith(""))
}

func (w *WriteContext) pathWith(name string) []string {
	p := make([]string, 0, len(w.path)+1)
	p = append(p, w.path...)
	if name != "" {
		p = append(p, name)
	}
	return p
}

// attachContext is shared by both contexts.
func attachContext(err error, name string, ord, offset int64, path []string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ge *Error
	if errors.As(err, &ge) {
		if ge.Type != "" {
			return err
		}
		ge.Type = name
		ge.Ordinal = ord
		if ge.Offset < 0 {
			ge.Offset = offset
		}
		ge.Path = path
		return err
	}
	return &Error{Code: CodeCodecFailure, Type: name, Ordinal: ord, Offset: offset, Path: path, Err: err}
}

func errMessage(ge *Error) string {
	if ge.Err != nil {
		return ge.Err.Error()
	}
	return ge.Code.String()
}
