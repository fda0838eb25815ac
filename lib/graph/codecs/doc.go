// Package codecs provides the built-in codecs of the graph engine: scalars,
// common containers, a reflective codec for plain structs and a CBOR codec for
// data values.
//
// Tags 1 to 17 are frozen (see the Tag constants) and installed with
// RegisterDefaults. Struct types are added by the caller:
//
//	b := graph.NewBuilder()
//	codecs.RegisterDefaults(b)
//	graph.RegisterType[*Config](b, graph.FirstUserTag, codecs.Bean[Config]())
//	graph.RegisterType[Limits](b, graph.FirstUserTag+1, codecs.CBOR[Limits]())
package codecs
