// Package graph provides an extensible codec engine that persists arbitrary,
// mutually referencing object graphs into a compact binary stream and
// reconstructs live, identity-preserving graphs from it.
//
// The package focuses on:
//   - Polymorphic dispatch through a registry instead of a central type switch
//   - Identity preservation for shared and cyclic references
//   - Re-entrant decoding that re-invokes construction logic
//   - All-or-nothing passes: a failed encode publishes nothing, a failed decode
//     returns nothing
//
// Key Components:
//
//   - Registry: Maps concrete types and capability interfaces to a stable Tag
//     and a Codec. It is built once with a Builder and is read-only afterwards,
//     so one Registry is shared by all concurrent passes. Resolution tries the
//     exact type first and then the capability interfaces in registration order.
//
//   - Codec: A bidirectional transformer for one type or type family. Codecs
//     emit nested values with WriteContext.Write and primitives with the
//     WriteBool/WriteInt/... family; decode mirrors every call in the same order.
//
//   - WriteContext / ReadContext: Per-pass state. Each owns its half of the
//     reference table, so independent sub-graphs can be encoded and decoded in
//     parallel by separate passes.
//
//   - Encoder / Decoder: Top-level entry points. An Encoder stages the whole
//     stream in memory and publishes it with a single write. A Decoder checks
//     the header before reading any frame.
//
// Stream layout:
//
//	header := magic version fingerprint
//	frame  := Null | Ref(ordinal) | Object(tag, ordinal, payload) |
//	          Value(tag, payload) | Unsupported(type name)
//
// Every payload is length-prefixed. Decoding checks that a codec consumes its
// payload exactly, which catches codecs whose Encode and Decode do not mirror.
//
// Error handling:
//
//	Failures are returned as *Error carrying an ErrCode, the concrete type, the
//	ordinal, the byte offset and the path of enclosing types. The codes match the
//	sentinels ErrUnsupportedType, ErrMissingValue, ErrFormatVersionMismatch,
//	ErrUnexpectedEndOfStream and ErrCodecFailure through errors.Is.
//	UnsupportedType is recoverable: Options.Unsupported decides whether the pass
//	fails, writes null or writes a placeholder, and the last two report a
//	Problem to Options.Problems instead of failing.
//
// Usage:
//
//	b := graph.NewBuilder()
//	codecs.RegisterDefaults(b)
//	graph.RegisterType[*Node](b, graph.FirstUserTag, codecs.Bean[Node]())
//	reg, err := b.Build()
//
//	data, _, err := graph.NewEncoder(reg, nil).EncodeBytes(ctx, root)
//	root2, _, err := graph.NewDecoder(reg, nil).DecodeBytes(ctx, data)
package graph
