package graph

import "reflect"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Codec is a bidirectional transformer for one type or type family.
//
// A codec must obey three rules:
//   - Decode(Encode(v)) is observationally equivalent to v.
//   - Encode never mutates v.
//   - Decode mirrors Encode: every Write* call in Encode has a matching Read*
//     call, in the same order, in Decode.
//
// Nested values are written with WriteContext.Write and read back with
// ReadContext.Read or ReadContext.ReadNonNull. A codec that builds an instance
// which may be referenced from inside its own subgraph (a cycle) constructs it
// first, hands it to ReadContext.Provide and only then reads the components.
type Codec interface {
	// Encode writes value to w. value is never nil.
	Encode(w *WriteContext, value any) error
	// Decode reads one value from r.
	Decode(r *ReadContext) (any, error)
}

// --------------------------------------------------------------------------
// Typed adapter
// --------------------------------------------------------------------------

// CodecOf adapts a pair of typed functions to the Codec interface. Values of
// any other type than T passed to Encode yield a CodecFailure.
func CodecOf[T any](encode func(w *WriteContext, value T) error, decode func(r *ReadContext) (T, error)) Codec {
	return &typedCodec[T]{encode: encode, decode: decode}
}

type typedCodec[T any] struct {
	encode func(w *WriteContext, value T) error
	decode func(r *ReadContext) (T, error)
}

func (c *typedCodec[T]) Encode(w *WriteContext, value any) error {
	v, ok := value.(T)
	if !ok {
		return Failf("codec for %s cannot encode %s", typeName(reflect.TypeFor[T]()), TypeName(value))
	}
	return c.encode(w, v)
}

func (c *typedCodec[T]) Decode(r *ReadContext) (any, error) {
	return c.decode(r)
}
