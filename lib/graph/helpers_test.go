package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test types
// --------------------------------------------------------------------------

type holder struct {
	A, B *member
}

type member struct {
	Name string
	Self *holder
}

type prims struct {
	B  bool
	I  int64
	U  uint64
	F  float64
	S  string
	Bs []byte
	N  int
}

// loop does not provide itself before decoding its successor.
type loop struct {
	next *loop
	id   int
}

// opaque has no codec.
type opaque struct {
	x int
}

// brittle fails to encode.
type brittle struct {
	x int
}

// sloppy writes more than it reads, greedy reads more than it writes.
type sloppy struct{ x int }
type greedy struct{ x int }

// twofaced returns another instance than the one it provided.
type twofaced struct{ x int }

type greeter struct {
	prefix string
}

type greeting struct {
	text string
}

type named interface {
	Label() string
}

type describer interface {
	Describe() string
}

type labelled struct {
	L string
}

func (l *labelled) Label() string {
	return l.L
}

type both struct {
	V string
}

func (b *both) Label() string    { return b.V }
func (b *both) Describe() string { return b.V }

// --------------------------------------------------------------------------
// Test codecs
// --------------------------------------------------------------------------

var intCodec = graph.CodecOf(
	func(w *graph.WriteContext, v int) error {
		w.WriteInt(int64(v))
		return nil
	},
	func(r *graph.ReadContext) (int, error) {
		v, err := r.ReadInt()
		return int(v), err
	})

var stringCodec = graph.CodecOf(
	func(w *graph.WriteContext, v string) error {
		w.WriteString(v)
		return nil
	},
	func(r *graph.ReadContext) (string, error) {
		return r.ReadString()
	})

var listCodec = graph.CodecOf(
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

var holderCodec = graph.CodecOf(
	func(w *graph.WriteContext, h *holder) error {
		if err := w.Write(h.A); err != nil {
			return err
		}
		return w.Write(h.B)
	},
	func(r *graph.ReadContext) (*holder, error) {
		h := &holder{}
		r.Provide(h)
		var err error
		if h.A, err = graph.ReadAs[*member](r); err != nil {
			return nil, err
		}
		if h.B, err = graph.ReadAs[*member](r); err != nil {
			return nil, err
		}
		return h, nil
	})

var memberCodec = graph.CodecOf(
	func(w *graph.WriteContext, m *member) error {
		w.WriteString(m.Name)
		return w.Write(m.Self)
	},
	func(r *graph.ReadContext) (*member, error) {
		m := &member{}
		r.Provide(m)
		var err error
		if m.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if m.Self, err = graph.ReadAs[*holder](r); err != nil {
			return nil, err
		}
		return m, nil
	})

// strictHolderCodec declares both slots non-null.
var strictHolderCodec = graph.CodecOf(
	func(w *graph.WriteContext, h *holder) error {
		if err := w.Write(h.A); err != nil {
			return err
		}
		return w.Write(h.B)
	},
	func(r *graph.ReadContext) (*holder, error) {
		h := &holder{}
		r.Provide(h)
		var err error
		if h.A, err = graph.ReadNonNullAs[*member](r); err != nil {
			return nil, err
		}
		if h.B, err = graph.ReadNonNullAs[*member](r); err != nil {
			return nil, err
		}
		return h, nil
	})

var primsCodec = graph.CodecOf(
	func(w *graph.WriteContext, p prims) error {
		w.WriteBool(p.B)
		w.WriteInt(p.I)
		w.WriteUint(p.U)
		w.WriteFloat(p.F)
		w.WriteString(p.S)
		w.WriteBytes(p.Bs)
		w.WriteSize(p.N)
		return nil
	},
	func(r *graph.ReadContext) (p prims, err error) {
		if p.B, err = r.ReadBool(); err != nil {
			return
		}
		if p.I, err = r.ReadInt(); err != nil {
			return
		}
		if p.U, err = r.ReadUint(); err != nil {
			return
		}
		if p.F, err = r.ReadFloat(); err != nil {
			return
		}
		if p.S, err = r.ReadString(); err != nil {
			return
		}
		if p.Bs, err = r.ReadBytes(); err != nil {
			return
		}
		p.N, err = r.ReadSize()
		return
	})

var loopCodec = graph.CodecOf(
	func(w *graph.WriteContext, l *loop) error {
		w.WriteInt(int64(l.id))
		return w.Write(l.next)
	},
	func(r *graph.ReadContext) (*loop, error) {
		l := &loop{}
		id, err := r.ReadInt()
		if err != nil {
			return nil, err
		}
		l.id = int(id)
		if l.next, err = graph.ReadAs[*loop](r); err != nil {
			return nil, err
		}
		return l, nil
	})

var brittleCodec = graph.CodecOf(
	func(w *graph.WriteContext, b *brittle) error {
		return errors.New("boom")
	},
	func(r *graph.ReadContext) (*brittle, error) {
		return nil, graph.Failf("never written")
	})

var sloppyCodec = graph.CodecOf(
	func(w *graph.WriteContext, s *sloppy) error {
		w.WriteString("one")
		w.WriteString("two")
		return nil
	},
	func(r *graph.ReadContext) (*sloppy, error) {
		_, err := r.ReadString()
		return &sloppy{}, err
	})

var greedyCodec = graph.CodecOf(
	func(w *graph.WriteContext, s *greedy) error {
		w.WriteString("one")
		return nil
	},
	func(r *graph.ReadContext) (*greedy, error) {
		if _, err := r.ReadString(); err != nil {
			return nil, err
		}
		if _, err := r.ReadString(); err != nil {
			return nil, err
		}
		return &greedy{}, nil
	})

var twofacedCodec = graph.CodecOf(
	func(w *graph.WriteContext, s *twofaced) error {
		return nil
	},
	func(r *graph.ReadContext) (*twofaced, error) {
		r.Provide(&twofaced{x: 1})
		return &twofaced{x: 2}, nil
	})

var greetingCodec = graph.CodecOf(
	func(w *graph.WriteContext, g *greeting) error {
		w.WriteString(g.text)
		return nil
	},
	func(r *graph.ReadContext) (*greeting, error) {
		svc, err := graph.Service[*greeter](r)
		if err != nil {
			return nil, err
		}
		text, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return &greeting{text: svc.prefix + text}, nil
	})

func labelCodec(build func(s string) named) graph.Codec {
	return graph.CodecOf(
		func(w *graph.WriteContext, v named) error {
			w.WriteString(v.Label())
			return nil
		},
		func(r *graph.ReadContext) (named, error) {
			s, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			return build(s), nil
		})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newRegistry builds the registry shared by the tests. extra may add bindings.
func newRegistry(t *testing.T, extra func(b *graph.Builder)) *graph.Registry {
	t.Helper()
	b := graph.NewBuilder()
	graph.RegisterType[int](b, 200, intCodec)
	graph.RegisterType[string](b, 201, stringCodec)
	graph.RegisterType[[]any](b, 202, listCodec)
	graph.RegisterType[*holder](b, 203, holderCodec)
	graph.RegisterType[*member](b, 204, memberCodec)
	graph.RegisterType[prims](b, 205, primsCodec)
	graph.RegisterType[*loop](b, 206, loopCodec)
	graph.RegisterType[*brittle](b, 207, brittleCodec)
	graph.RegisterType[*sloppy](b, 208, sloppyCodec)
	graph.RegisterType[*greedy](b, 209, greedyCodec)
	graph.RegisterType[*twofaced](b, 210, twofacedCodec)
	graph.RegisterType[*greeting](b, 211, greetingCodec)
	if extra != nil {
		extra(b)
	}
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

// quiet options: placeholder policy, problems discarded.
func quiet() *graph.Options {
	return &graph.Options{}
}

func encode(t *testing.T, reg *graph.Registry, opts *graph.Options, root any) []byte {
	t.Helper()
	data, _, err := graph.NewEncoder(reg, opts).EncodeBytes(context.Background(), root)
	require.NoError(t, err)
	return data
}

func roundTrip(t *testing.T, reg *graph.Registry, opts *graph.Options, root any) any {
	t.Helper()
	data := encode(t, reg, opts, root)
	out, _, err := graph.NewDecoder(reg, opts).DecodeBytes(context.Background(), data)
	require.NoError(t, err)
	return out
}

func asGraphError(t *testing.T, err error) *graph.Error {
	t.Helper()
	var ge *graph.Error
	require.ErrorAs(t, err, &ge)
	return ge
}
