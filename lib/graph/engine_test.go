package graph_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRoundTripValues(t *testing.T) {
	reg := newRegistry(t, nil)

	t.Run("Primitives", func(t *testing.T) {
		in := prims{B: true, I: -42, U: 1 << 40, F: 3.25, S: "héllo", Bs: []byte{0, 1, 2}, N: 7}
		assert.Equal(t, in, roundTrip(t, reg, quiet(), in))
	})

	t.Run("Scalars", func(t *testing.T) {
		assert.Equal(t, 12345, roundTrip(t, reg, quiet(), 12345))
		assert.Equal(t, "", roundTrip(t, reg, quiet(), ""))
	})

	t.Run("List", func(t *testing.T) {
		in := []any{1, "two", nil, []any{3}}
		assert.Equal(t, in, roundTrip(t, reg, quiet(), in))
	})

	t.Run("NilRoot", func(t *testing.T) {
		assert.Nil(t, roundTrip(t, reg, quiet(), nil))
	})

	t.Run("TypedNilRoot", func(t *testing.T) {
		assert.Nil(t, roundTrip(t, reg, quiet(), (*holder)(nil)))
	})
}

func TestSharedAndCyclicReferences(t *testing.T) {
	reg := newRegistry(t, nil)

	// root = {a: X, b: X}, X.self = root
	x := &member{Name: "X"}
	root := &holder{A: x, B: x}
	x.Self = root

	data, encStats, err := graph.NewEncoder(reg, quiet()).EncodeBytes(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, encStats.Objects)
	assert.Equal(t, 2, encStats.BackReferences)

	out, decStats, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, encStats.Frames, decStats.Frames)
	assert.Equal(t, int64(len(data)), decStats.Bytes)

	decoded, ok := out.(*holder)
	require.True(t, ok)
	assert.NotSame(t, root, decoded)
	assert.Same(t, decoded.A, decoded.B)
	assert.Same(t, decoded, decoded.A.Self)
	assert.Equal(t, "X", decoded.A.Name)
}

func TestSharedSlice(t *testing.T) {
	reg := newRegistry(t, nil)
	shared := []any{1, 2}
	out := roundTrip(t, reg, quiet(), []any{shared, shared})

	list := out.([]any)
	a, b := list[0].([]any), list[1].([]any)
	require.Len(t, a, 2)
	assert.Same(t, &a[0], &b[0])
}

func TestCycleThroughList(t *testing.T) {
	reg := newRegistry(t, nil)
	list := make([]any, 2)
	list[0] = "head"
	list[1] = list

	out := roundTrip(t, reg, quiet(), list).([]any)
	inner := out[1].([]any)
	assert.Same(t, &out[0], &inner[0])
}

func TestOrdinalsFollowFirstVisitOrder(t *testing.T) {
	reg := newRegistry(t, nil)
	x := &member{Name: "X"}
	root := &holder{A: x, B: x}
	x.Self = root

	var frames []graph.FrameInfo
	_, err := graph.Inspect(context.Background(), reg, quiet(), bytes.NewReader(encode(t, reg, quiet(), root)), func(fi graph.FrameInfo) {
		frames = append(frames, fi)
	})
	require.NoError(t, err)

	require.Len(t, frames, 4)
	assert.Equal(t, graph.FrameObject, frames[0].Kind)
	assert.Equal(t, int64(0), frames[0].Ordinal)
	assert.Equal(t, graph.TypeName(root), frames[0].Type)
	assert.Equal(t, graph.FrameObject, frames[1].Kind)
	assert.Equal(t, int64(1), frames[1].Ordinal)
	assert.Equal(t, 1, frames[1].Depth)
	assert.Equal(t, graph.FrameRef, frames[2].Kind)
	assert.Equal(t, int64(0), frames[2].Ordinal)
	assert.Equal(t, graph.FrameRef, frames[3].Kind)
	assert.Equal(t, int64(1), frames[3].Ordinal)
}

func TestNullHandling(t *testing.T) {
	t.Run("Nullable", func(t *testing.T) {
		reg := newRegistry(t, nil)
		out := roundTrip(t, reg, quiet(), &holder{A: &member{Name: "a"}})
		h := out.(*holder)
		assert.Equal(t, "a", h.A.Name)
		assert.Nil(t, h.B)
	})

	t.Run("NonNull", func(t *testing.T) {
		// same tag table, the decoder declares the slots non-null
		b := graph.NewBuilder()
		graph.RegisterType[string](b, 201, stringCodec)
		graph.RegisterType[*holder](b, 203, holderCodec)
		graph.RegisterType[*member](b, 204, memberCodec)
		writeReg, err := b.Build()
		require.NoError(t, err)

		b = graph.NewBuilder()
		graph.RegisterType[string](b, 201, stringCodec)
		graph.RegisterType[*holder](b, 203, strictHolderCodec)
		graph.RegisterType[*member](b, 204, memberCodec)
		readReg, err := b.Build()
		require.NoError(t, err)
		require.Equal(t, writeReg.Fingerprint(), readReg.Fingerprint())

		data := encode(t, writeReg, quiet(), &holder{A: &member{Name: "a"}})
		out, _, err := graph.NewDecoder(readReg, quiet()).DecodeBytes(context.Background(), data)
		require.ErrorIs(t, err, graph.ErrMissingValue)
		assert.Nil(t, out)

		ge := asGraphError(t, err)
		assert.Equal(t, graph.CodeMissingValue, ge.Code)
		assert.Equal(t, graph.TypeName(&holder{}), ge.Type)
		assert.Equal(t, int64(0), ge.Ordinal)
		assert.Greater(t, ge.Offset, int64(0))
	})
}

func TestUnsupportedType(t *testing.T) {
	reg := newRegistry(t, nil)
	shared := &member{Name: "shared"}
	root := []any{shared, &opaque{x: 1}, "after", shared}

	t.Run("Fail", func(t *testing.T) {
		var sink bytes.Buffer
		_, err := graph.NewEncoder(reg, &graph.Options{Unsupported: graph.UnsupportedFail}).Encode(context.Background(), &sink, root)
		require.ErrorIs(t, err, graph.ErrUnsupportedType)
		assert.Zero(t, sink.Len())

		ge := asGraphError(t, err)
		assert.Equal(t, graph.TypeName(&opaque{}), ge.Type)
		assert.Equal(t, []string{graph.TypeName(root), graph.TypeName(&opaque{})}, ge.Path)
		assert.False(t, ge.Fatal())
	})

	t.Run("Null", func(t *testing.T) {
		problems := &graph.ProblemList{}
		opts := &graph.Options{Unsupported: graph.UnsupportedNull, Problems: problems}
		out := roundTrip(t, reg, opts, root).([]any)

		require.Len(t, out, 4)
		assert.Nil(t, out[1])
		assert.Equal(t, "after", out[2])
		assert.Same(t, out[0], out[3])
		require.Equal(t, 1, problems.Len())
		assert.Equal(t, graph.CodeUnsupportedType, problems.Problems()[0].Code)
	})

	t.Run("Placeholder", func(t *testing.T) {
		encProblems := &graph.ProblemList{}
		data, stats, err := graph.NewEncoder(reg, &graph.Options{Problems: encProblems}).EncodeBytes(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Problems)
		require.Equal(t, 1, encProblems.Len())
		assert.Equal(t, graph.TypeName(&opaque{}), encProblems.Problems()[0].Type)

		decProblems := &graph.ProblemList{}
		v, stats, err := graph.NewDecoder(reg, &graph.Options{Problems: decProblems}).DecodeBytes(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Problems)
		assert.Equal(t, 1, decProblems.Len())

		out := v.([]any)
		placeholder, ok := out[1].(*graph.Unsupported)
		require.True(t, ok)
		assert.Equal(t, graph.TypeName(&opaque{}), placeholder.TypeName)
		assert.Equal(t, "after", out[2])
		assert.Same(t, out[0], out[3])
	})

	t.Run("PlaceholderInTypedSlot", func(t *testing.T) {
		b := graph.NewBuilder()
		graph.RegisterType[string](b, 201, stringCodec)
		graph.RegisterType[*holder](b, 203, graph.CodecOf(
			func(w *graph.WriteContext, h *holder) error { return w.Write(&opaque{}) },
			func(r *graph.ReadContext) (*holder, error) {
				m, err := graph.ReadAs[*member](r)
				return &holder{A: m}, err
			}))
		reg, err := b.Build()
		require.NoError(t, err)

		out := roundTrip(t, reg, quiet(), &holder{}).(*holder)
		assert.Nil(t, out.A)
	})
}

func TestFormatVersionGating(t *testing.T) {
	reg := newRegistry(t, nil)
	data := encode(t, reg, quiet(), &holder{A: &member{Name: "a"}})

	decodeWith := func(reg *graph.Registry, data []byte) (graph.Stats, error) {
		traced := 0
		opts := &graph.Options{Trace: func(graph.FrameInfo) { traced++ }}
		out, stats, err := graph.NewDecoder(reg, opts).DecodeBytes(context.Background(), data)
		assert.Nil(t, out)
		assert.Zero(t, traced)
		return stats, err
	}

	t.Run("Version", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[8] ^= 0xff // high byte of the version, right after the magic
		stats, err := decodeWith(reg, corrupt)
		require.ErrorIs(t, err, graph.ErrFormatVersionMismatch)
		assert.Zero(t, stats.Frames)
	})

	t.Run("Fingerprint", func(t *testing.T) {
		other := newRegistry(t, func(b *graph.Builder) {
			graph.RegisterType[*opaque](b, 250, graph.CodecOf(
				func(w *graph.WriteContext, o *opaque) error { return nil },
				func(r *graph.ReadContext) (*opaque, error) { return &opaque{}, nil }))
		})
		require.NotEqual(t, reg.Fingerprint(), other.Fingerprint())
		stats, err := decodeWith(other, data)
		require.ErrorIs(t, err, graph.ErrFormatVersionMismatch)
		assert.Zero(t, stats.Frames)
	})

	t.Run("Magic", func(t *testing.T) {
		_, err := decodeWith(reg, []byte("definitely not a graph stream at all, sorry"))
		require.ErrorIs(t, err, graph.ErrFormatVersionMismatch)
	})

	t.Run("Header", func(t *testing.T) {
		h, err := graph.ReadHeader(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, graph.FormatVersion, h.Version)
		assert.Equal(t, reg.Fingerprint(), h.Fingerprint)
	})
}

func TestTruncatedStream(t *testing.T) {
	reg := newRegistry(t, nil)
	x := &member{Name: "X"}
	root := []any{&holder{A: x, B: x}, prims{S: "abc", Bs: []byte{1}}, 7}
	data := encode(t, reg, quiet(), root)

	for n := 0; n < len(data); n++ {
		out, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data[:n])
		require.ErrorIs(t, err, graph.ErrUnexpectedEndOfStream, "prefix of %d bytes", n)
		require.Nil(t, out)
	}
}

func TestTrailingBytes(t *testing.T) {
	reg := newRegistry(t, nil)
	data := append(encode(t, reg, quiet(), 1), 0)
	_, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
	require.ErrorIs(t, err, graph.ErrCodecFailure)
}

func TestCodecFailures(t *testing.T) {
	reg := newRegistry(t, nil)

	t.Run("EncodeError", func(t *testing.T) {
		var sink bytes.Buffer
		root := []any{"first", &brittle{x: 1}}
		_, err := graph.NewEncoder(reg, quiet()).Encode(context.Background(), &sink, root)
		require.ErrorIs(t, err, graph.ErrCodecFailure)
		assert.Zero(t, sink.Len())

		ge := asGraphError(t, err)
		assert.Equal(t, graph.TypeName(&brittle{}), ge.Type)
		assert.Equal(t, int64(1), ge.Ordinal)
		assert.Equal(t, []string{graph.TypeName(root), graph.TypeName(&brittle{})}, ge.Path)
		assert.Contains(t, err.Error(), "boom")
		assert.True(t, ge.Fatal())
	})

	t.Run("UnreadPayload", func(t *testing.T) {
		data := encode(t, reg, quiet(), []any{&sloppy{x: 1}})
		_, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
		require.ErrorIs(t, err, graph.ErrCodecFailure)
		ge := asGraphError(t, err)
		assert.Equal(t, graph.TypeName(&sloppy{}), ge.Type)
		assert.Equal(t, int64(1), ge.Ordinal)
	})

	t.Run("ReadPastPayload", func(t *testing.T) {
		data := encode(t, reg, quiet(), []any{&greedy{x: 1}, "sibling"})
		_, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
		require.ErrorIs(t, err, graph.ErrCodecFailure)
		assert.Equal(t, graph.TypeName(&greedy{}), asGraphError(t, err).Type)
	})

	t.Run("BackReferenceBeforeProvide", func(t *testing.T) {
		l := &loop{id: 1}
		l.next = l
		data := encode(t, reg, quiet(), l)
		_, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
		require.ErrorIs(t, err, graph.ErrCodecFailure)
		ge := asGraphError(t, err)
		assert.Equal(t, int64(0), ge.Ordinal)
		assert.Equal(t, graph.TypeName(l), ge.Type)
	})

	t.Run("ProvidedAnotherInstance", func(t *testing.T) {
		data := encode(t, reg, quiet(), &twofaced{x: 1})
		_, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
		require.ErrorIs(t, err, graph.ErrCodecFailure)
	})

	t.Run("WrongType", func(t *testing.T) {
		c := graph.CodecOf(
			func(w *graph.WriteContext, v string) error { return nil },
			func(r *graph.ReadContext) (string, error) { return "", nil })
		err := c.Encode(nil, 42)
		assert.Equal(t, graph.CodeCodecFailure, graph.CodeOf(err))
	})
}

func TestMaxDepth(t *testing.T) {
	reg := newRegistry(t, nil)
	var head *loop
	for i := 0; i < 50; i++ {
		head = &loop{id: i, next: head}
	}

	_, _, err := graph.NewEncoder(reg, &graph.Options{MaxDepth: 10}).EncodeBytes(context.Background(), head)
	require.ErrorIs(t, err, graph.ErrCodecFailure)

	data := encode(t, reg, quiet(), head)
	_, _, err = graph.NewDecoder(reg, &graph.Options{MaxDepth: 10}).DecodeBytes(context.Background(), data)
	require.ErrorIs(t, err, graph.ErrCodecFailure)

	out := roundTrip(t, reg, quiet(), head).(*loop)
	assert.Equal(t, 49, out.id)
}

func TestCancellation(t *testing.T) {
	reg := newRegistry(t, nil)

	t.Run("BeforeEncode", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var sink bytes.Buffer
		_, err := graph.NewEncoder(reg, quiet()).Encode(ctx, &sink, &holder{})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, sink.Len())
	})

	t.Run("DuringEncode", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		b := graph.NewBuilder()
		graph.RegisterType[int](b, 200, intCodec)
		graph.RegisterType[[]any](b, 202, graph.CodecOf(
			func(w *graph.WriteContext, v []any) error {
				for i, e := range v {
					if i == 1 {
						cancel()
					}
					if err := w.Write(e); err != nil {
						return err
					}
				}
				return nil
			},
			func(r *graph.ReadContext) ([]any, error) { return nil, nil }))
		reg, err := b.Build()
		require.NoError(t, err)

		var sink bytes.Buffer
		_, err = graph.NewEncoder(reg, quiet()).Encode(ctx, &sink, []any{1, 2, 3})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, sink.Len())
	})

	t.Run("BeforeDecode", func(t *testing.T) {
		data := encode(t, reg, quiet(), &holder{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(ctx, data)
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, out)
	})
}

func TestConstructionServices(t *testing.T) {
	reg := newRegistry(t, nil)
	data := encode(t, reg, quiet(), &greeting{text: "world"})

	services := graph.Services{}
	graph.AddService(services, &greeter{prefix: "hello "})
	out, _, err := graph.NewDecoder(reg, &graph.Options{Services: services}).DecodeBytes(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out.(*greeting).text)

	_, _, err = graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
	require.ErrorIs(t, err, graph.ErrCodecFailure)
}

func TestConcurrentPasses(t *testing.T) {
	reg := newRegistry(t, nil)
	enc := graph.NewEncoder(reg, quiet())
	dec := graph.NewDecoder(reg, quiet())

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			x := &member{Name: fmt.Sprintf("member-%d", i)}
			root := &holder{A: x, B: x}
			x.Self = root

			var buf bytes.Buffer
			if _, err := enc.Encode(context.Background(), &buf, root); err != nil {
				return err
			}
			out, _, err := dec.Decode(context.Background(), &buf)
			if err != nil {
				return err
			}
			h := out.(*holder)
			if h.A != h.B || h.A.Self != h || h.A.Name != x.Name {
				return fmt.Errorf("pass %d: graph not preserved", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

type emptyRun struct{ N int }

func TestEmptySizeIsBoundedSeparately(t *testing.T) {
	reg := newRegistry(t, func(b *graph.Builder) {
		graph.RegisterType[emptyRun](b, 251, graph.CodecOf(
			func(w *graph.WriteContext, e emptyRun) error {
				w.WriteSize(e.N)
				return nil
			},
			func(r *graph.ReadContext) (e emptyRun, err error) {
				e.N, err = r.ReadEmptySize()
				return
			}))
	})

	// the count exceeds the bytes left in the frame
	assert.Equal(t, emptyRun{N: 3}, roundTrip(t, reg, quiet(), emptyRun{N: 3}))

	data := encode(t, reg, quiet(), emptyRun{N: graph.MaxEmptySize + 1})
	_, _, err := graph.NewDecoder(reg, quiet()).DecodeBytes(context.Background(), data)
	require.ErrorIs(t, err, graph.ErrCodecFailure)
	assert.Contains(t, err.Error(), "empty elements")
}
