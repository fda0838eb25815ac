package codecs

import (
	"math"
	"sort"
	"time"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/google/uuid"
)

// Frozen tags of the built-in codecs. A tag must never be reused for another
// type; retiring one changes the registry fingerprint.
const (
	TagBool      graph.Tag = 1
	TagInt       graph.Tag = 2
	TagInt32     graph.Tag = 3
	TagInt64     graph.Tag = 4
	TagUint8     graph.Tag = 5
	TagUint32    graph.Tag = 6
	TagUint64    graph.Tag = 7
	TagFloat64   graph.Tag = 8
	TagString    graph.Tag = 9
	TagBytes     graph.Tag = 10
	TagList      graph.Tag = 11
	TagMap       graph.Tag = 12
	TagStrings   graph.Tag = 13
	TagStringMap graph.Tag = 14
	TagDuration  graph.Tag = 15
	TagTime      graph.Tag = 16
	TagUUID      graph.Tag = 17
)

// RegisterDefaults installs the built-in codecs for scalars and the common
// container types.
func RegisterDefaults(b *graph.Builder) {
	graph.RegisterType[bool](b, TagBool, Bool)
	graph.RegisterType[int](b, TagInt, Int)
	graph.RegisterType[int32](b, TagInt32, Int32)
	graph.RegisterType[int64](b, TagInt64, Int64)
	graph.RegisterType[uint8](b, TagUint8, Uint8)
	graph.RegisterType[uint32](b, TagUint32, Uint32)
	graph.RegisterType[uint64](b, TagUint64, Uint64)
	graph.RegisterType[float64](b, TagFloat64, Float64)
	graph.RegisterType[string](b, TagString, String)
	graph.RegisterType[[]byte](b, TagBytes, Bytes)
	graph.RegisterType[[]any](b, TagList, List)
	graph.RegisterType[map[string]any](b, TagMap, Map)
	graph.RegisterType[[]string](b, TagStrings, Strings)
	graph.RegisterType[map[string]string](b, TagStringMap, StringMap)
	graph.RegisterType[time.Duration](b, TagDuration, Duration)
	graph.RegisterType[time.Time](b, TagTime, Time)
	graph.RegisterType[uuid.UUID](b, TagUUID, UUID)
}

// --------------------------------------------------------------------------
// Scalars
// --------------------------------------------------------------------------

var Bool = graph.CodecOf(
	func(w *graph.WriteContext, v bool) error {
		w.WriteBool(v)
		return nil
	},
	func(r *graph.ReadContext) (bool, error) {
		return r.ReadBool()
	})

var Int = graph.CodecOf(
	func(w *graph.WriteContext, v int) error {
		w.WriteInt(int64(v))
		return nil
	},
	func(r *graph.ReadContext) (int, error) {
		v, err := r.ReadInt()
		if err != nil {
			return 0, err
		}
		if v < math.MinInt || v > math.MaxInt {
			return 0, graph.Failf("%d overflows int", v)
		}
		return int(v), nil
	})

var Int32 = graph.CodecOf(
	func(w *graph.WriteContext, v int32) error {
		w.WriteInt(int64(v))
		return nil
	},
	func(r *graph.ReadContext) (int32, error) {
		v, err := r.ReadInt()
		if err != nil {
			return 0, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, graph.Failf("%d overflows int32", v)
		}
		return int32(v), nil
	})

var Int64 = graph.CodecOf(
	func(w *graph.WriteContext, v int64) error {
		w.WriteInt(v)
		return nil
	},
	func(r *graph.ReadContext) (int64, error) {
		return r.ReadInt()
	})

var Uint8 = graph.CodecOf(
	func(w *graph.WriteContext, v uint8) error {
		w.WriteUint(uint64(v))
		return nil
	},
	func(r *graph.ReadContext) (uint8, error) {
		v, err := r.ReadUint()
		if err != nil {
			return 0, err
		}
		if v > math.MaxUint8 {
			return 0, graph.Failf("%d overflows uint8", v)
		}
		return uint8(v), nil
	})

var Uint32 = graph.CodecOf(
	func(w *graph.WriteContext, v uint32) error {
		w.WriteUint(uint64(v))
		return nil
	},
	func(r *graph.ReadContext) (uint32, error) {
		v, err := r.ReadUint()
		if err != nil {
			return 0, err
		}
		if v > math.MaxUint32 {
			return 0, graph.Failf("%d overflows uint32", v)
		}
		return uint32(v), nil
	})

var Uint64 = graph.CodecOf(
	func(w *graph.WriteContext, v uint64) error {
		w.WriteUint(v)
		return nil
	},
	func(r *graph.ReadContext) (uint64, error) {
		return r.ReadUint()
	})

var Float64 = graph.CodecOf(
	func(w *graph.WriteContext, v float64) error {
		w.WriteFloat(v)
		return nil
	},
	func(r *graph.ReadContext) (float64, error) {
		return r.ReadFloat()
	})

var String = graph.CodecOf(
	func(w *graph.WriteContext, v string) error {
		w.WriteString(v)
		return nil
	},
	func(r *graph.ReadContext) (string, error) {
		return r.ReadString()
	})

var Bytes = graph.CodecOf(
	func(w *graph.WriteContext, v []byte) error {
		w.WriteBytes(v)
		return nil
	},
	func(r *graph.ReadContext) ([]byte, error) {
		return r.ReadBytes()
	})

var Duration = graph.CodecOf(
	func(w *graph.WriteContext, v time.Duration) error {
		w.WriteInt(int64(v))
		return nil
	},
	func(r *graph.ReadContext) (time.Duration, error) {
		v, err := r.ReadInt()
		return time.Duration(v), err
	})

// Time drops the monotonic clock reading and keeps the zone offset.
var Time = graph.CodecOf(
	func(w *graph.WriteContext, v time.Time) error {
		data, err := v.MarshalBinary()
		if err != nil {
			return err
		}
		w.WriteBytes(data)
		return nil
	},
	func(r *graph.ReadContext) (time.Time, error) {
		var t time.Time
		data, err := r.ReadBytes()
		if err != nil {
			return t, err
		}
		if err := t.UnmarshalBinary(data); err != nil {
			return t, graph.Failf("invalid time: %v", err)
		}
		return t, nil
	})

var UUID = graph.CodecOf(
	func(w *graph.WriteContext, v uuid.UUID) error {
		w.WriteBytes(v[:])
		return nil
	},
	func(r *graph.ReadContext) (uuid.UUID, error) {
		data, err := r.ReadBytes()
		if err != nil {
			return uuid.Nil, err
		}
		id, err := uuid.FromBytes(data)
		if err != nil {
			return uuid.Nil, graph.Failf("invalid uuid: %v", err)
		}
		return id, nil
	})

// --------------------------------------------------------------------------
// Containers
// --------------------------------------------------------------------------

// List writes every element through Write, so shared elements and cycles
// through the list are preserved.
var List = graph.CodecOf(
	func(w *graph.WriteContext, v []any) error {
		w.WriteSize(len(v))
		for _, e := range v {
			if err := w.Write(e); err != nil {
				return err
			}
		}
		return nil
	},
	func(r *graph.ReadContext) ([]any, error) {
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		r.Provide(out)
		for i := range out {
			if out[i], err = r.Read(); err != nil {
				return nil, err
			}
		}
		return out, nil
	})

// Map writes entries in key order, values through Write.
var Map = graph.CodecOf(
	func(w *graph.WriteContext, v map[string]any) error {
		keys := sortedKeys(v)
		w.WriteSize(len(keys))
		for _, k := range keys {
			w.WriteString(k)
			if err := w.Write(v[k]); err != nil {
				return err
			}
		}
		return nil
	},
	func(r *graph.ReadContext) (map[string]any, error) {
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		r.Provide(out)
		for i := 0; i < n; i++ {
			k, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			if out[k], err = r.Read(); err != nil {
				return nil, err
			}
		}
		return out, nil
	})

var Strings = graph.CodecOf(
	func(w *graph.WriteContext, v []string) error {
		w.WriteSize(len(v))
		for _, s := range v {
			w.WriteString(s)
		}
		return nil
	},
	func(r *graph.ReadContext) ([]string, error) {
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		out := make([]string, n)
		for i := range out {
			if out[i], err = r.ReadString(); err != nil {
				return nil, err
			}
		}
		return out, nil
	})

var StringMap = graph.CodecOf(
	func(w *graph.WriteContext, v map[string]string) error {
		keys := sortedKeys(v)
		w.WriteSize(len(keys))
		for _, k := range keys {
			w.WriteString(k)
			w.WriteString(v[k])
		}
		return nil
	},
	func(r *graph.ReadContext) (map[string]string, error) {
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, n)
		for i := 0; i < n; i++ {
			k, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			if out[k], err = r.ReadString(); err != nil {
				return nil, err
			}
		}
		return out, nil
	})

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
