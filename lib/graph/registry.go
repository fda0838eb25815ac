package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/zeebo/blake3"
)

// --------------------------------------------------------------------------
// Builder
// --------------------------------------------------------------------------

// Builder collects codec registrations. Registration is closed by Build; the
// returned Registry can no longer be changed.
//
// Thread-safety: a Builder is not safe for concurrent use.
type Builder struct {
	byTag  map[Tag]*binding
	byType map[reflect.Type]*binding
	ifaces []*binding
	errs   []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		byTag:  make(map[Tag]*binding),
		byType: make(map[reflect.Type]*binding),
	}
}

// RegisterType binds the concrete type T to codec under tag. Values whose
// dynamic type is exactly T are dispatched to codec.
func RegisterType[T any](b *Builder, tag Tag, codec Codec) {
	b.add(tag, bindExact, reflect.TypeFor[T](), codec)
}

// RegisterInterface binds the capability interface I to codec under tag. Values
// of unregistered concrete types that implement I are dispatched to codec.
// Interfaces are tried in registration order.
func RegisterInterface[I any](b *Builder, tag Tag, codec Codec) {
	t := reflect.TypeFor[I]()
	if t.Kind() != reflect.Interface {
		b.errs = append(b.errs, fmt.Errorf("%s: %s is not an interface type", tag, typeName(t)))
		return
	}
	b.add(tag, bindInterface, t, codec)
}

// Register binds a type given as reflect.Type. Interface types are registered
// as capabilities.
func (b *Builder) Register(tag Tag, t reflect.Type, codec Codec) {
	kind := bindExact
	if t != nil && t.Kind() == reflect.Interface {
		kind = bindInterface
	}
	b.add(tag, kind, t, codec)
}

func (b *Builder) add(tag Tag, kind bindingKind, t reflect.Type, codec Codec) {
	switch {
	case tag == TagNone:
		b.errs = append(b.errs, fmt.Errorf("type %s: tag 0 is reserved", typeName(t)))
		return
	case t == nil:
		b.errs = append(b.errs, fmt.Errorf("%s: nil type", tag))
		return
	case codec == nil:
		b.errs = append(b.errs, fmt.Errorf("%s: nil codec for %s", tag, typeName(t)))
		return
	}
	if prev, ok := b.byTag[tag]; ok {
		b.errs = append(b.errs, fmt.Errorf("%s: already bound to %s, cannot bind %s", tag, typeName(prev.typ), typeName(t)))
		return
	}
	if prev, ok := b.byType[t]; ok {
		b.errs = append(b.errs, fmt.Errorf("type %s: already bound to %s", typeName(t), prev.tag))
		return
	}

	bnd := &binding{tag: tag, kind: kind, typ: t, codec: codec}
	b.byTag[tag] = bnd
	b.byType[t] = bnd
	if kind == bindInterface {
		b.ifaces = append(b.ifaces, bnd)
	}
}

// Build validates the registrations and returns the immutable Registry.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid codec registry: %w", errors.Join(b.errs...))
	}

	r := &Registry{
		byTag:    make(map[Tag]*binding, len(b.byTag)),
		byType:   make(map[reflect.Type]*binding, len(b.byType)),
		ifaces:   append([]*binding(nil), b.ifaces...),
		resolved: xsync.NewMapOf[reflect.Type, resolution](),
	}
	for tag, bnd := range b.byTag {
		r.byTag[tag] = bnd
	}
	for t, bnd := range b.byType {
		if bnd.kind == bindExact {
			r.byType[t] = bnd
		}
	}
	r.fingerprint = fingerprint(r.byTag)

	Logger.Debugf("codec registry built: %d bindings (%d capability interfaces), fingerprint %x",
		len(r.byTag), len(r.ifaces), r.fingerprint[:8])
	return r, nil
}

// --------------------------------------------------------------------------
// Registry (Tag Registry + Codec Selector)
// --------------------------------------------------------------------------

// Registry maps types to tags and codecs. It is immutable after Build and may be
// shared by any number of concurrent encode and decode passes.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	byTag       map[Tag]*binding
	byType      map[reflect.Type]*binding
	ifaces      []*binding
	fingerprint [32]byte

	// resolved memoizes CodecFor, including negative results.
	resolved *xsync.MapOf[reflect.Type, resolution]
}

type resolution struct {
	bnd *binding
}

// TagFor returns the tag that values of type t are written with.
func (r *Registry) TagFor(t reflect.Type) (Tag, error) {
	tag, _, err := r.CodecFor(t)
	return tag, err
}

// CodecFor resolves the most specific codec for the concrete type t: an exact
// registration first, then capability interfaces in registration order.
// Returns an UnsupportedType error if nothing matches.
func (r *Registry) CodecFor(t reflect.Type) (Tag, Codec, error) {
	if t == nil {
		return TagNone, nil, &Error{Code: CodeUnsupportedType, Type: "<nil>", Ordinal: -1, Offset: -1}
	}

	res, _ := r.resolved.LoadOrCompute(t, func() resolution {
		return resolution{bnd: r.resolve(t)}
	})
	if res.bnd == nil {
		return TagNone, nil, &Error{
			Code:    CodeUnsupportedType,
			Type:    typeName(t),
			Ordinal: -1,
			Offset:  -1,
			Err:     fmt.Errorf("no codec registered for %s", typeName(t)),
		}
	}
	return res.bnd.tag, res.bnd.codec, nil
}

func (r *Registry) resolve(t reflect.Type) *binding {
	if bnd, ok := r.byType[t]; ok {
		return bnd
	}
	for _, bnd := range r.ifaces {
		if t.Implements(bnd.typ) {
			return bnd
		}
	}
	return nil
}

// CodecForTag returns the codec registered under tag.
func (r *Registry) CodecForTag(tag Tag) (Codec, bool) {
	bnd, ok := r.byTag[tag]
	if !ok {
		return nil, false
	}
	return bnd.codec, true
}

// Has reports whether values of type t have an exact registration. Capability
// matches are not considered.
func (r *Registry) Has(t reflect.Type) bool {
	_, ok := r.byType[t]
	return ok
}

// TypeForTag returns the type (or capability interface) registered under tag.
func (r *Registry) TypeForTag(tag Tag) (reflect.Type, bool) {
	bnd, ok := r.byTag[tag]
	if !ok {
		return nil, false
	}
	return bnd.typ, true
}

// Len returns the number of registered bindings.
func (r *Registry) Len() int {
	return len(r.byTag)
}

// Fingerprint returns the engine build identifier written into every stream
// header. It changes whenever the tag table or the format version changes.
func (r *Registry) Fingerprint() [32]byte {
	return r.fingerprint
}

// fingerprint hashes the format version and the tag table sorted by tag.
func fingerprint(byTag map[Tag]*binding) [32]byte {
	tags := make([]Tag, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	h := blake3.New()
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(FormatVersion))
	_, _ = h.Write(scratch[:n])
	for _, tag := range tags {
		bnd := byTag[tag]
		n = binary.PutUvarint(scratch[:], uint64(tag))
		_, _ = h.Write(scratch[:n])
		_, _ = h.Write([]byte{byte(bnd.kind)})
		_, _ = h.Write([]byte(typeName(bnd.typ)))
		_, _ = h.Write([]byte{0})
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
