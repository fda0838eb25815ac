package codecs_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/ValentinKolb/confcache/lib/graph/codecs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string
	Zip  int
}

type person struct {
	Name    string
	Age     int
	Score   float64
	Active  bool
	Tags    []string
	Counts  map[string]int
	Home    address
	Friend  *person
	Extra   any
	Raw     []byte
	Born    time.Time
	Nums    []int32
	Grid    [2]uint16
	Ratio   complex128
	Secret  string `graph:"-"`
	private int
}

type opaque struct {
	x int
}

type withOpaque struct {
	O *opaque
	N int
}

type marker struct{}

type markers struct {
	Marks []struct{}
	Named []marker
	Set   map[marker]struct{}
	Empty [0]int
	N     int
}

type limits struct {
	MaxWorkers int               `cbor:"max_workers"`
	Labels     map[string]string `cbor:"labels"`
}

func newRegistry(t *testing.T, extra func(b *graph.Builder)) *graph.Registry {
	t.Helper()
	b := graph.NewBuilder()
	codecs.RegisterDefaults(b)
	graph.RegisterType[*person](b, graph.FirstUserTag, codecs.Bean[person]())
	graph.RegisterType[*withOpaque](b, graph.FirstUserTag+1, codecs.Bean[withOpaque]())
	graph.RegisterType[limits](b, graph.FirstUserTag+2, codecs.CBOR[limits]())
	if extra != nil {
		extra(b)
	}
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func roundTrip(t *testing.T, reg *graph.Registry, root any) any {
	t.Helper()
	opts := &graph.Options{}
	data, _, err := graph.NewEncoder(reg, opts).EncodeBytes(context.Background(), root)
	require.NoError(t, err)
	out, _, err := graph.NewDecoder(reg, opts).DecodeBytes(context.Background(), data)
	require.NoError(t, err)
	return out
}

func TestBuiltinsRoundTrip(t *testing.T) {
	reg := newRegistry(t, nil)
	id := uuid.New()

	values := []any{
		true,
		-5,
		int32(-70000),
		int64(1) << 60,
		uint8(255),
		uint32(1) << 31,
		uint64(1) << 63,
		3.5,
		"text",
		[]byte{1, 2, 3},
		[]any{1, "two", nil},
		map[string]any{"a": 1, "b": []any{"x"}},
		[]string{"x", "y"},
		map[string]string{"k": "v"},
		90 * time.Second,
		id,
	}
	for _, v := range values {
		t.Run(reflect.TypeOf(v).String(), func(t *testing.T) {
			assert.Equal(t, v, roundTrip(t, reg, v))
		})
	}

	t.Run("Time", func(t *testing.T) {
		now := time.Now()
		out, ok := roundTrip(t, reg, now).(time.Time)
		require.True(t, ok)
		assert.True(t, now.Equal(out))
	})
}

func TestFrozenTags(t *testing.T) {
	reg := newRegistry(t, nil)
	expected := map[reflect.Type]graph.Tag{
		reflect.TypeFor[bool]():              codecs.TagBool,
		reflect.TypeFor[int]():               codecs.TagInt,
		reflect.TypeFor[int32]():             codecs.TagInt32,
		reflect.TypeFor[int64]():             codecs.TagInt64,
		reflect.TypeFor[uint8]():             codecs.TagUint8,
		reflect.TypeFor[uint32]():            codecs.TagUint32,
		reflect.TypeFor[uint64]():            codecs.TagUint64,
		reflect.TypeFor[float64]():           codecs.TagFloat64,
		reflect.TypeFor[string]():            codecs.TagString,
		reflect.TypeFor[[]byte]():            codecs.TagBytes,
		reflect.TypeFor[[]any]():             codecs.TagList,
		reflect.TypeFor[map[string]any]():    codecs.TagMap,
		reflect.TypeFor[[]string]():          codecs.TagStrings,
		reflect.TypeFor[map[string]string](): codecs.TagStringMap,
		reflect.TypeFor[time.Duration]():     codecs.TagDuration,
		reflect.TypeFor[time.Time]():         codecs.TagTime,
		reflect.TypeFor[uuid.UUID]():         codecs.TagUUID,
	}

	seen := map[graph.Tag]bool{}
	for typ, tag := range expected {
		got, err := reg.TagFor(typ)
		require.NoError(t, err, typ.String())
		assert.Equal(t, tag, got, typ.String())
		assert.False(t, seen[tag], "tag %d used twice", tag)
		seen[tag] = true
		assert.True(t, tag >= graph.FirstBuiltinTag && tag <= graph.LastBuiltinTag)
	}
}

func TestMapEncodingIsDeterministic(t *testing.T) {
	reg := newRegistry(t, nil)
	m := map[string]any{}
	for _, k := range []string{"q", "w", "e", "r", "t", "y", "u", "i", "o", "p"} {
		m[k] = k
	}
	enc := graph.NewEncoder(reg, &graph.Options{})
	first, _, err := enc.EncodeBytes(context.Background(), m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, _, err := enc.EncodeBytes(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSharedListElements(t *testing.T) {
	reg := newRegistry(t, nil)
	shared := map[string]any{"k": "v"}
	out := roundTrip(t, reg, []any{shared, shared}).([]any)

	a := out[0].(map[string]any)
	b := out[1].(map[string]any)
	a["added"] = true
	assert.Equal(t, true, b["added"], "both entries must be the same map")
}

func TestBean(t *testing.T) {
	reg := newRegistry(t, nil)

	born := time.Date(1990, 5, 17, 8, 30, 0, 0, time.UTC)
	p := &person{
		Name:    "ada",
		Age:     36,
		Score:   9.5,
		Active:  true,
		Tags:    []string{"math", "engines"},
		Counts:  map[string]int{"b": 2, "a": 1},
		Home:    address{City: "London", Zip: 1815},
		Extra:   map[string]any{"k": 1},
		Raw:     []byte("raw"),
		Born:    born,
		Grid:    [2]uint16{4, 2},
		Ratio:   complex(1, -1),
		Secret:  "not cached",
		private: 7,
	}
	friend := &person{Name: "charles", Friend: p}
	p.Friend = friend

	out, ok := roundTrip(t, reg, p).(*person)
	require.True(t, ok)

	assert.Equal(t, "ada", out.Name)
	assert.Equal(t, 36, out.Age)
	assert.Equal(t, 9.5, out.Score)
	assert.True(t, out.Active)
	assert.Equal(t, []string{"math", "engines"}, out.Tags)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, out.Counts)
	assert.Equal(t, address{City: "London", Zip: 1815}, out.Home)
	assert.Equal(t, map[string]any{"k": 1}, out.Extra)
	assert.Equal(t, []byte("raw"), out.Raw)
	assert.True(t, born.Equal(out.Born))
	assert.Nil(t, out.Nums)
	assert.Equal(t, [2]uint16{4, 2}, out.Grid)
	assert.Equal(t, complex(1, -1), out.Ratio)

	assert.Empty(t, out.Secret)
	assert.Zero(t, out.private)

	require.NotNil(t, out.Friend)
	assert.Equal(t, "charles", out.Friend.Name)
	assert.Same(t, out, out.Friend.Friend)
}

func TestBeanUnsupportedField(t *testing.T) {
	reg := newRegistry(t, nil)
	problems := &graph.ProblemList{}
	opts := &graph.Options{Problems: problems}

	data, _, err := graph.NewEncoder(reg, opts).EncodeBytes(context.Background(), &withOpaque{O: &opaque{x: 1}, N: 3})
	require.NoError(t, err)
	out, _, err := graph.NewDecoder(reg, opts).DecodeBytes(context.Background(), data)
	require.NoError(t, err)

	w := out.(*withOpaque)
	assert.Nil(t, w.O)
	assert.Equal(t, 3, w.N)
	assert.Equal(t, 2, problems.Len())

	_, _, err = graph.NewEncoder(reg, &graph.Options{Unsupported: graph.UnsupportedFail}).
		EncodeBytes(context.Background(), &withOpaque{O: &opaque{x: 1}})
	require.ErrorIs(t, err, graph.ErrUnsupportedType)
}

func TestBeanZeroSizeElements(t *testing.T) {
	reg := newRegistry(t, func(b *graph.Builder) {
		graph.RegisterType[*markers](b, graph.FirstUserTag+11, codecs.Bean[markers]())
	})

	in := &markers{
		Marks: make([]struct{}, 3),
		Named: make([]marker, 2),
		Set:   map[marker]struct{}{{}: {}},
		N:     7,
	}
	out := roundTrip(t, reg, in).(*markers)
	assert.Len(t, out.Marks, 3)
	assert.Len(t, out.Named, 2)
	assert.Len(t, out.Set, 1)
	assert.Equal(t, 7, out.N)

	_, _, err := graph.NewEncoder(reg, &graph.Options{}).
		EncodeBytes(context.Background(), &markers{Marks: make([]struct{}, graph.MaxEmptySize+1)})
	require.ErrorIs(t, err, graph.ErrCodecFailure)
}

func TestBeanOfConstructor(t *testing.T) {
	constructed := 0
	reg := newRegistry(t, func(b *graph.Builder) {
		graph.RegisterType[*address](b, graph.FirstUserTag+10, codecs.BeanOf(func(r *graph.ReadContext) (*address, error) {
			constructed++
			return &address{City: "overwritten"}, nil
		}))
	})

	out := roundTrip(t, reg, &address{City: "Paris", Zip: 75}).(*address)
	assert.Equal(t, 1, constructed)
	assert.Equal(t, &address{City: "Paris", Zip: 75}, out)
}

func TestBeanRejectsNonStruct(t *testing.T) {
	assert.Panics(t, func() {
		codecs.Bean[int]()
	})
}

func TestCBOR(t *testing.T) {
	reg := newRegistry(t, nil)
	in := limits{MaxWorkers: 8, Labels: map[string]string{"zone": "eu", "arch": "arm64"}}
	assert.Equal(t, in, roundTrip(t, reg, in))

	enc := graph.NewEncoder(reg, &graph.Options{})
	a, _, err := enc.EncodeBytes(context.Background(), in)
	require.NoError(t, err)
	b, _, err := enc.EncodeBytes(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
