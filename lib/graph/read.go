package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// --------------------------------------------------------------------------
// Read Context
// --------------------------------------------------------------------------

// ReadContext mirrors WriteContext for one decode pass. It owns the input, the
// read side of the reference table and gives codecs access to the construction
// services.
//
// Decoding is re-entrant: a codec's Decode may call Read, which may decode
// further first-occurrence frames before returning.
//
// Thread-safety: a ReadContext belongs to one pass and must not be shared.
type ReadContext struct {
	ctx    context.Context
	reg    *Registry
	opts   *Options
	in     *boundedReader
	refs   *readRefs
	frames []openFrame
	stats  Stats
}

// openFrame is a first-occurrence frame whose codec is still running.
type openFrame struct {
	name string
	ord  int64
}

func newReadContext(ctx context.Context, reg *Registry, opts *Options, in *boundedReader) *ReadContext {
	return &ReadContext{
		ctx:  ctx,
		reg:  reg,
		opts: opts,
		in:   in,
		refs: newReadRefs(),
	}
}

// Context returns the context of the pass.
func (r *ReadContext) Context() context.Context {
	return r.ctx
}

// Registry returns the registry the pass dispatches through.
func (r *ReadContext) Registry() *Registry {
	return r.reg
}

// Read decodes the next frame. It returns nil for the null frame.
func (r *ReadContext) Read() (any, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	start := r.in.offset()
	b, err := r.in.readUint8()
	if err != nil {
		return nil, r.contextualize(err, "", -1, start)
	}
	kind := FrameKind(b)

	switch kind {
	case FrameNull:
		r.stats.Frames++
		r.stats.Nulls++
		r.trace(FrameInfo{Kind: kind, Offset: start, Ordinal: -1})
		return nil, nil

	case FrameRef:
		ord, err := r.in.readUvarint()
		if err != nil {
			return nil, r.contextualize(err, "", -1, start)
		}
		return r.resolveRef(int64(ord), start)

	case FrameObject, FrameValue:
		return r.readFrame(kind, start)

	case FrameUnsupported:
		name, err := r.in.readString()
		if err != nil {
			return nil, r.contextualize(err, "", -1, start)
		}
		r.stats.Frames++
		r.report(Problem{
			Code:    CodeUnsupportedType,
			Type:    name,
			Offset:  start,
			Path:    r.path(name),
			Message: "placeholder decoded, the value was not cached",
		})
		r.trace(FrameInfo{Kind: kind, Offset: start, Ordinal: -1, Type: name})
		return &Unsupported{TypeName: name}, nil

	default:
		return nil, r.contextualize(Failf("unknown frame kind %d", b), "", -1, start)
	}
}

// ReadNonNull is Read for slots that were declared non-null: the null frame is
// a MissingValue failure.
func (r *ReadContext) ReadNonNull() (any, error) {
	start := r.in.offset()
	v, err := r.Read()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &Error{
			Code:    CodeMissingValue,
			Type:    r.enclosing(),
			Ordinal: r.enclosingOrdinal(),
			Offset:  start,
			Path:    r.path(""),
			Err:     errors.New("non-null slot decoded the null frame"),
		}
	}
	return v, nil
}

// Provide publishes the instance under construction for the innermost
// first-occurrence frame, so back-references inside its own subgraph resolve
// to it. Codecs of types that can be part of a cycle call it right after
// constructing the instance and before reading its components. It has no
// effect inside value frames.
func (r *ReadContext) Provide(v any) {
	if len(r.frames) == 0 {
		return
	}
	top := r.frames[len(r.frames)-1]
	if top.ord < 0 {
		return
	}
	r.refs.provide(top.ord, v)
}

// --------------------------------------------------------------------------
// Primitive family
// --------------------------------------------------------------------------

func (r *ReadContext) ReadBool() (bool, error) {
	start := r.in.offset()
	b, err := r.in.readUint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: start, Err: fmt.Errorf("invalid bool byte %#x", b)}
	}
}

func (r *ReadContext) ReadInt() (int64, error) {
	return r.in.readVarint()
}

func (r *ReadContext) ReadUint() (uint64, error) {
	return r.in.readUvarint()
}

func (r *ReadContext) ReadFloat() (float64, error) {
	return r.in.readFloat()
}

func (r *ReadContext) ReadString() (string, error) {
	return r.in.readString()
}

func (r *ReadContext) ReadBytes() ([]byte, error) {
	return r.in.readBytes()
}

// ReadSize reads a count written by WriteSize. Counts larger than the bytes
// left in the frame are rejected, since every element needs at least one byte.
func (r *ReadContext) ReadSize() (int, error) {
	start := r.in.offset()
	n, err := r.in.readUvarint()
	if err != nil {
		return 0, err
	}
	if rem := r.in.remaining(); rem >= 0 && n > uint64(rem) {
		return 0, &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: start,
			Err: fmt.Errorf("size %d exceeds the %d bytes left in the frame", n, rem)}
	}
	return int(n), nil
}

// MaxEmptySize bounds counts read by ReadEmptySize.
const MaxEmptySize = 1 << 16

// ReadEmptySize reads a count of elements that encode to no bytes, such as
// zero-size structs. Such counts cannot be checked against the frame, so
// counts above MaxEmptySize are rejected instead.
func (r *ReadContext) ReadEmptySize() (int, error) {
	start := r.in.offset()
	n, err := r.in.readUvarint()
	if err != nil {
		return 0, err
	}
	if n > MaxEmptySize {
		return 0, &Error{Code: CodeCodecFailure, Ordinal: -1, Offset: start,
			Err: fmt.Errorf("size %d of empty elements exceeds the limit of %d", n, MaxEmptySize)}
	}
	return int(n), nil
}

// --------------------------------------------------------------------------
// Typed helpers
// --------------------------------------------------------------------------

// ReadAs reads a nullable value of type T. A null frame yields the zero T, a
// placeholder frame yields the zero T as well (its problem has been reported).
func ReadAs[T any](r *ReadContext) (T, error) {
	v, err := r.Read()
	if err != nil || v == nil {
		var zero T
		return zero, err
	}
	return convert[T](v)
}

// ReadNonNullAs is ReadAs for non-null slots.
func ReadNonNullAs[T any](r *ReadContext) (T, error) {
	v, err := r.ReadNonNull()
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](v)
}

func convert[T any](v any) (T, error) {
	t, ok := v.(T)
	if ok {
		return t, nil
	}
	var zero T
	if _, placeholder := v.(*Unsupported); placeholder {
		return zero, nil
	}
	return zero, Failf("decoded %s where %s was expected", TypeName(v), typeName(reflect.TypeFor[T]()))
}

// Service returns the construction service of type T from Options.Services.
func Service[T any](r *ReadContext) (T, error) {
	var zero T
	s, ok := r.opts.Services[reflect.TypeFor[T]()]
	if !ok {
		return zero, Failf("no construction service %s configured", typeName(reflect.TypeFor[T]()))
	}
	v, ok := s.(T)
	if !ok {
		return zero, Failf("construction service %s has type %s", typeName(reflect.TypeFor[T]()), TypeName(s))
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (r *ReadContext) readFrame(kind FrameKind, start int64) (any, error) {
	rawTag, err := r.in.readUvarint()
	if err != nil {
		return nil, r.contextualize(err, "", -1, start)
	}
	tag := Tag(rawTag)
	codec, ok := r.reg.CodecForTag(tag)
	if !ok {
		return nil, r.contextualize(Failf("no codec registered for %s", tag), "", -1, start)
	}
	t, _ := r.reg.TypeForTag(tag)
	name := typeName(t)

	ord := int64(-1)
	if kind == FrameObject {
		raw, err := r.in.readUvarint()
		if err != nil {
			return nil, r.contextualize(err, name, -1, start)
		}
		if int64(raw) != r.refs.next() {
			return nil, r.contextualize(Failf("ordinal %d out of sequence, expected %d", raw, r.refs.next()), name, int64(raw), start)
		}
		ord = r.refs.reserve(name)
		r.stats.Objects++
	}

	n, err := r.in.readUint32()
	if err != nil {
		return nil, r.contextualize(err, name, ord, start)
	}
	if len(r.frames) >= r.opts.maxDepth() {
		return nil, r.contextualize(Failf("nesting exceeds %d frames", r.opts.maxDepth()), name, ord, start)
	}
	if err := r.in.pushLimit(n); err != nil {
		return nil, r.contextualize(err, name, ord, start)
	}
	r.stats.Frames++
	r.trace(FrameInfo{Kind: kind, Tag: tag, Type: name, Ordinal: ord, Offset: start, Length: n, Depth: len(r.frames)})

	r.frames = append(r.frames, openFrame{name: name, ord: ord})
	v, err := codec.Decode(r)
	if err == nil {
		err = r.in.popLimit()
	}
	if err == nil {
		err = r.checkResult(v, ord)
	}
	if err != nil {
		err = r.contextualize(err, name, ord, start)
	}
	r.frames = r.frames[:len(r.frames)-1]
	if err != nil {
		return nil, err
	}

	if ord >= 0 {
		r.refs.complete(ord, v)
	}
	return v, nil
}

// checkResult verifies the instance a codec returned for frame ord.
func (r *ReadContext) checkResult(v any, ord int64) error {
	if isNil(v) {
		return Failf("codec returned nil")
	}
	if ord < 0 {
		return nil
	}
	s, _ := r.refs.get(ord)
	if s.state != slotProvided {
		return nil
	}
	provided, _ := identityOf(s.value)
	returned, _ := identityOf(v)
	if provided != returned {
		return Failf("codec provided %s but returned %s", TypeName(s.value), TypeName(v))
	}
	return nil
}

func (r *ReadContext) resolveRef(ord int64, start int64) (any, error) {
	s, ok := r.refs.get(ord)
	if !ok {
		return nil, r.contextualize(Failf("back-reference to unknown ordinal %d", ord), "", ord, start)
	}
	if s.state == slotReserved {
		return nil, &Error{
			Code:    CodeCodecFailure,
			Type:    s.typ,
			Ordinal: ord,
			Offset:  start,
			Path:    r.path(""),
			Err:     errors.New("back-reference to an instance that is still being decoded and was not provided"),
		}
	}
	r.stats.Frames++
	r.stats.BackReferences++
	r.trace(FrameInfo{Kind: FrameRef, Type: s.typ, Ordinal: ord, Offset: start, Depth: len(r.frames)})
	return s.value, nil
}

func (r *ReadContext) contextualize(err error, name string, ord, offset int64) error {
	if name == "" {
		name = r.enclosing()
		if ord < 0 {
			ord = r.enclosingOrdinal()
		}
	}
	return attachContext(err, name, ord, offset, r.path(""))
}

// enclosing returns the type of the innermost open frame.
func (r *ReadContext) enclosing() string {
	if len(r.frames) == 0 {
		return ""
	}
	return r.frames[len(r.frames)-1].name
}

func (r *ReadContext) enclosingOrdinal() int64 {
	if len(r.frames) == 0 {
		return -1
	}
	return r.frames[len(r.frames)-1].ord
}

func (r *ReadContext) path(name string) []string {
	p := make([]string, 0, len(r.frames)+1)
	for _, f := range r.frames {
		p = append(p, f.name)
	}
	if name != "" {
		p = append(p, name)
	}
	return p
}

func (r *ReadContext) report(p Problem) {
	r.stats.Problems++
	problemsReported.Inc()
	if r.opts.Problems != nil {
		r.opts.Problems.Report(p)
	}
}

func (r *ReadContext) trace(fi FrameInfo) {
	if r.opts.Trace != nil {
		r.opts.Trace(fi)
	}
}
