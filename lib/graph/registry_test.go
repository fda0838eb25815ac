package graph_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionOrder(t *testing.T) {
	build := func(register func(b *graph.Builder)) *graph.Registry {
		b := graph.NewBuilder()
		register(b)
		reg, err := b.Build()
		require.NoError(t, err)
		return reg
	}
	newLabelled := func(s string) named { return &labelled{L: s} }
	bothType := reflect.TypeFor[*both]()

	t.Run("InterfacesInRegistrationOrder", func(t *testing.T) {
		reg := build(func(b *graph.Builder) {
			graph.RegisterInterface[named](b, 220, labelCodec(newLabelled))
			graph.RegisterInterface[describer](b, 221, labelCodec(newLabelled))
		})
		tag, err := reg.TagFor(bothType)
		require.NoError(t, err)
		assert.Equal(t, graph.Tag(220), tag)

		reg = build(func(b *graph.Builder) {
			graph.RegisterInterface[describer](b, 221, labelCodec(newLabelled))
			graph.RegisterInterface[named](b, 220, labelCodec(newLabelled))
		})
		tag, err = reg.TagFor(bothType)
		require.NoError(t, err)
		assert.Equal(t, graph.Tag(221), tag)
	})

	t.Run("ExactTypeFirst", func(t *testing.T) {
		reg := build(func(b *graph.Builder) {
			graph.RegisterInterface[named](b, 220, labelCodec(newLabelled))
			graph.RegisterType[*both](b, 222, labelCodec(newLabelled))
		})
		tag, err := reg.TagFor(bothType)
		require.NoError(t, err)
		assert.Equal(t, graph.Tag(222), tag)

		// resolution is memoized, ask twice
		tag, err = reg.TagFor(reflect.TypeFor[*labelled]())
		require.NoError(t, err)
		assert.Equal(t, graph.Tag(220), tag)
		tag, err = reg.TagFor(reflect.TypeFor[*labelled]())
		require.NoError(t, err)
		assert.Equal(t, graph.Tag(220), tag)
	})

	t.Run("Unsupported", func(t *testing.T) {
		reg := build(func(b *graph.Builder) {})
		_, _, err := reg.CodecFor(reflect.TypeFor[*opaque]())
		require.ErrorIs(t, err, graph.ErrUnsupportedType)
		assert.Equal(t, graph.TypeName(&opaque{}), asGraphError(t, err).Type)

		// asking again yields the same answer from the memo
		_, _, err = reg.CodecFor(reflect.TypeFor[*opaque]())
		require.ErrorIs(t, err, graph.ErrUnsupportedType)
	})

	t.Run("CapabilityRoundTrip", func(t *testing.T) {
		reg := build(func(b *graph.Builder) {
			graph.RegisterInterface[named](b, 220, labelCodec(newLabelled))
		})
		out := roundTrip(t, reg, quiet(), &both{V: "via capability"})
		l, ok := out.(*labelled)
		require.True(t, ok)
		assert.Equal(t, "via capability", l.L)
	})

	t.Run("Lookups", func(t *testing.T) {
		reg := build(func(b *graph.Builder) {
			graph.RegisterInterface[named](b, 220, labelCodec(newLabelled))
			graph.RegisterType[string](b, 201, stringCodec)
		})
		assert.Equal(t, 2, reg.Len())
		assert.True(t, reg.Has(reflect.TypeFor[string]()))
		assert.False(t, reg.Has(reflect.TypeFor[*labelled]()))

		c, ok := reg.CodecForTag(201)
		require.True(t, ok)
		assert.Same(t, stringCodec, c)
		_, ok = reg.CodecForTag(999)
		assert.False(t, ok)

		typ, ok := reg.TypeForTag(220)
		require.True(t, ok)
		assert.Equal(t, reflect.TypeFor[named](), typ)
	})
}

func TestBuilderValidation(t *testing.T) {
	tests := []struct {
		name     string
		register func(b *graph.Builder)
	}{
		{"DuplicateTag", func(b *graph.Builder) {
			graph.RegisterType[string](b, 201, stringCodec)
			graph.RegisterType[int](b, 201, intCodec)
		}},
		{"DuplicateType", func(b *graph.Builder) {
			graph.RegisterType[string](b, 201, stringCodec)
			graph.RegisterType[string](b, 202, stringCodec)
		}},
		{"ReservedTag", func(b *graph.Builder) {
			graph.RegisterType[string](b, graph.TagNone, stringCodec)
		}},
		{"NilCodec", func(b *graph.Builder) {
			graph.RegisterType[string](b, 201, nil)
		}},
		{"NilType", func(b *graph.Builder) {
			b.Register(201, nil, stringCodec)
		}},
		{"NotAnInterface", func(b *graph.Builder) {
			graph.RegisterInterface[*labelled](b, 201, stringCodec)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graph.NewBuilder()
			tt.register(b)
			reg, err := b.Build()
			require.Error(t, err)
			assert.Nil(t, reg)
		})
	}

	t.Run("AllErrorsReported", func(t *testing.T) {
		b := graph.NewBuilder()
		graph.RegisterType[string](b, graph.TagNone, stringCodec)
		graph.RegisterType[int](b, 200, nil)
		_, err := b.Build()
		require.Error(t, err)
		var joined interface{ Unwrap() []error }
		require.True(t, errors.As(err, &joined))
		assert.Len(t, joined.Unwrap(), 2)
	})
}

func TestFingerprint(t *testing.T) {
	build := func(register func(b *graph.Builder)) [32]byte {
		b := graph.NewBuilder()
		register(b)
		reg, err := b.Build()
		require.NoError(t, err)
		return reg.Fingerprint()
	}

	a := build(func(b *graph.Builder) {
		graph.RegisterType[string](b, 201, stringCodec)
		graph.RegisterType[int](b, 200, intCodec)
	})
	sameTableOtherOrder := build(func(b *graph.Builder) {
		graph.RegisterType[int](b, 200, intCodec)
		graph.RegisterType[string](b, 201, stringCodec)
	})
	swappedTags := build(func(b *graph.Builder) {
		graph.RegisterType[int](b, 201, intCodec)
		graph.RegisterType[string](b, 200, stringCodec)
	})

	assert.Equal(t, a, sameTableOtherOrder)
	assert.NotEqual(t, a, swappedTags)
}
