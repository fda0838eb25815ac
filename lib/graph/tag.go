package graph

import (
	"fmt"
	"reflect"
)

// --------------------------------------------------------------------------
// Tags
// --------------------------------------------------------------------------

// Tag is the stable discriminator written in front of every object and value
// frame. Once a tag is assigned to a type it must never change meaning within a
// format version; changing the tag table changes the registry fingerprint and
// invalidates every stream written with the old table.
type Tag uint32

const (
	// TagNone is reserved and never assigned to a codec.
	TagNone Tag = 0

	// FirstBuiltinTag .. LastBuiltinTag are used by the codecs package.
	FirstBuiltinTag Tag = 1
	LastBuiltinTag  Tag = 63

	// FirstModelTag .. LastModelTag are used by the illustrated domain model.
	FirstModelTag Tag = 100
	LastModelTag  Tag = 199

	// FirstUserTag is the first tag available to applications.
	FirstUserTag Tag = 200
)

func (t Tag) String() string {
	return fmt.Sprintf("tag(%d)", uint32(t))
}

// bindingKind tells whether a binding matches a concrete type exactly or a
// capability interface.
type bindingKind uint8

const (
	bindExact bindingKind = iota
	bindInterface
)

func (k bindingKind) String() string {
	switch k {
	case bindExact:
		return "exact"
	case bindInterface:
		return "interface"
	default:
		return "unknown"
	}
}

// binding ties a tag to a codec and to the type (or interface) it serves.
type binding struct {
	tag   Tag
	kind  bindingKind
	typ   reflect.Type
	codec Codec
}

// typeName returns a fully qualified, stable name for a type. reflect.Type.String
// omits the import path, which is not precise enough for fingerprinting.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeName(t.Elem())
	case reflect.Slice:
		if t.Name() == "" {
			return "[]" + typeName(t.Elem())
		}
	case reflect.Map:
		if t.Name() == "" {
			return "map[" + typeName(t.Key()) + "]" + typeName(t.Elem())
		}
	}
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// TypeName returns the qualified type name of a value as it appears in
// diagnostics.
func TypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return typeName(reflect.TypeOf(v))
}
