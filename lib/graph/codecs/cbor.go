package codecs

import (
	"reflect"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2), so equal
// values always produce identical payloads.
var encMode cbor.EncMode

// decMode decodes any-typed targets into map[string]any.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codecs: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codecs: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBOR returns a codec that writes a T as one CBOR payload. It suits plain
// data values (options, settings) that neither share identity with other
// values nor need construction services. Nested pointers inside T are copied,
// not tracked.
func CBOR[T any]() graph.Codec {
	return graph.CodecOf(
		func(w *graph.WriteContext, v T) error {
			data, err := encMode.Marshal(v)
			if err != nil {
				return graph.Failf("cbor encode: %v", err)
			}
			w.WriteBytes(data)
			return nil
		},
		func(r *graph.ReadContext) (T, error) {
			var v T
			data, err := r.ReadBytes()
			if err != nil {
				return v, err
			}
			if err := decMode.Unmarshal(data, &v); err != nil {
				return v, graph.Failf("cbor decode: %v", err)
			}
			return v, nil
		})
}
