package codecs

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/puzpuzpuz/xsync/v3"
)

// fieldCache holds the encoded field indices per struct type.
var fieldCache = xsync.NewMapOf[reflect.Type, []int]()

// --------------------------------------------------------------------------
// Bean codec
// --------------------------------------------------------------------------

// Bean returns a reflective codec for *T, T being a struct. Exported fields are
// written in declaration order:
//   - booleans, numbers and strings inline through the primitive family
//   - pointers, interfaces and values of registered types through Write, so
//     identity and null are preserved
//   - other slices, maps, arrays and structs inline, element by element
//
// Fields tagged `graph:"-"` and unexported fields are skipped. Decode allocates
// the instance and provides it before reading any field, so cycles through
// beans resolve. A placeholder decoded into a field that cannot hold it leaves
// the field zero.
func Bean[T any]() graph.Codec {
	return BeanOf(func(*graph.ReadContext) (*T, error) {
		return new(T), nil
	})
}

// BeanOf is Bean with a custom constructor, typically a construction service
// lookup. The fields of the constructed instance are overwritten.
func BeanOf[T any](construct func(r *graph.ReadContext) (*T, error)) graph.Codec {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("codecs: Bean requires a struct type, got %s", t))
	}
	return &beanCodec[T]{typ: t, construct: construct}
}

type beanCodec[T any] struct {
	typ       reflect.Type
	construct func(r *graph.ReadContext) (*T, error)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see graph.Codec)
// --------------------------------------------------------------------------

func (c *beanCodec[T]) Encode(w *graph.WriteContext, value any) error {
	p, ok := value.(*T)
	if !ok {
		return graph.Failf("bean codec for *%s cannot encode %s", c.typ, graph.TypeName(value))
	}
	return writeStruct(w, reflect.ValueOf(p).Elem())
}

func (c *beanCodec[T]) Decode(r *graph.ReadContext) (any, error) {
	p, err := c.construct(r)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, graph.Failf("constructor for *%s returned nil", c.typ)
	}
	r.Provide(p)
	if err := readStruct(r, reflect.ValueOf(p).Elem()); err != nil {
		return nil, err
	}
	return p, nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func writeStruct(w *graph.WriteContext, v reflect.Value) error {
	for _, i := range fieldsOf(v.Type()) {
		if err := writeValue(w, v.Field(i)); err != nil {
			return fieldError(v.Type(), i, err)
		}
	}
	return nil
}

func writeValue(w *graph.WriteContext, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		w.WriteBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.WriteInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.WriteUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		w.WriteFloat(v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		w.WriteFloat(real(c))
		w.WriteFloat(imag(c))
	case reflect.String:
		w.WriteString(v.String())
	case reflect.Pointer, reflect.Interface:
		return w.Write(v.Interface())
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Struct:
		if w.Registry().Has(v.Type()) {
			return w.Write(v.Interface())
		}
		return writeInline(w, v)
	default:
		return graph.Failf("values of kind %s cannot be encoded", v.Kind())
	}
	return nil
}

func writeInline(w *graph.WriteContext, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice:
		w.WriteBool(!v.IsNil())
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			w.WriteBytes(v.Bytes())
			return nil
		}
		if encodesEmpty(w.Registry(), v.Type().Elem()) && v.Len() > graph.MaxEmptySize {
			return graph.Failf("%d empty elements exceed the limit of %d", v.Len(), graph.MaxEmptySize)
		}
		w.WriteSize(v.Len())
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(w, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(w, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		w.WriteBool(!v.IsNil())
		if v.IsNil() {
			return nil
		}
		keys := sortedMapKeys(v)
		if encodesEmpty(w.Registry(), v.Type().Key()) && encodesEmpty(w.Registry(), v.Type().Elem()) && len(keys) > graph.MaxEmptySize {
			return graph.Failf("%d empty entries exceed the limit of %d", len(keys), graph.MaxEmptySize)
		}
		w.WriteSize(len(keys))
		for _, k := range keys {
			if err := writeValue(w, k); err != nil {
				return err
			}
			if err := writeValue(w, v.MapIndex(k)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		return writeStruct(w, v)
	}
	return nil
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

func readStruct(r *graph.ReadContext, v reflect.Value) error {
	for _, i := range fieldsOf(v.Type()) {
		if err := readValue(r, v.Field(i)); err != nil {
			return fieldError(v.Type(), i, err)
		}
	}
	return nil
}

func readValue(r *graph.ReadContext, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		b, err := r.ReadBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := r.ReadInt()
		if err != nil {
			return err
		}
		if v.OverflowInt(i) {
			return graph.Failf("%d overflows %s", i, v.Type())
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := r.ReadUint()
		if err != nil {
			return err
		}
		if v.OverflowUint(u) {
			return graph.Failf("%d overflows %s", u, v.Type())
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := r.ReadFloat()
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Complex64, reflect.Complex128:
		re, err := r.ReadFloat()
		if err != nil {
			return err
		}
		im, err := r.ReadFloat()
		if err != nil {
			return err
		}
		v.SetComplex(complex(re, im))
	case reflect.String:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Pointer, reflect.Interface:
		return readNested(r, v)
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Struct:
		if r.Registry().Has(v.Type()) {
			return readNested(r, v)
		}
		return readInline(r, v)
	default:
		return graph.Failf("values of kind %s cannot be decoded", v.Kind())
	}
	return nil
}

func readInline(r *graph.ReadContext, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice:
		present, err := r.ReadBool()
		if err != nil || !present {
			v.SetZero()
			return err
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := r.ReadBytes()
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		n, err := readSize(r, v.Type().Elem())
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(v.Type(), n, n)
		for i := 0; i < n; i++ {
			if err := readValue(r, s.Index(i)); err != nil {
				return err
			}
		}
		v.Set(s)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := readValue(r, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		present, err := r.ReadBool()
		if err != nil || !present {
			v.SetZero()
			return err
		}
		n, err := readSize(r, v.Type().Key(), v.Type().Elem())
		if err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(v.Type(), n)
		for i := 0; i < n; i++ {
			k := reflect.New(v.Type().Key()).Elem()
			if err := readValue(r, k); err != nil {
				return err
			}
			e := reflect.New(v.Type().Elem()).Elem()
			if err := readValue(r, e); err != nil {
				return err
			}
			m.SetMapIndex(k, e)
		}
		v.Set(m)
	case reflect.Struct:
		return readStruct(r, v)
	}
	return nil
}

// readNested reads a framed value and assigns it to v.
func readNested(r *graph.ReadContext, v reflect.Value) error {
	x, err := r.Read()
	if err != nil {
		return err
	}
	if x == nil {
		v.SetZero()
		return nil
	}
	xv := reflect.ValueOf(x)
	if xv.Type().AssignableTo(v.Type()) {
		v.Set(xv)
		return nil
	}
	if _, placeholder := x.(*graph.Unsupported); placeholder {
		v.SetZero()
		return nil
	}
	return graph.Failf("decoded %s cannot be assigned to %s", graph.TypeName(x), v.Type())
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// fieldsOf returns the indices of the fields a bean encodes.
func fieldsOf(t reflect.Type) []int {
	fields, _ := fieldCache.LoadOrCompute(t, func() []int {
		var idx []int
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("graph") == "-" {
				continue
			}
			idx = append(idx, i)
		}
		return idx
	})
	return fields
}

// encodesEmpty reports whether values of t are written as no bytes at all.
func encodesEmpty(reg *graph.Registry, t reflect.Type) bool {
	if t.Size() != 0 || reg.Has(t) {
		return false
	}
	switch t.Kind() {
	case reflect.Array:
		return t.Len() == 0 || encodesEmpty(reg, t.Elem())
	case reflect.Struct:
		for _, i := range fieldsOf(t) {
			if !encodesEmpty(reg, t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// readSize reads the count of a collection whose elements consist of values of
// the given types. Counts of elements that encode to no bytes are bounded
// separately, since the frame length says nothing about them.
func readSize(r *graph.ReadContext, types ...reflect.Type) (int, error) {
	for _, t := range types {
		if !encodesEmpty(r.Registry(), t) {
			return r.ReadSize()
		}
	}
	return r.ReadEmptySize()
}

// fieldError names the field in a codec failure. Errors that already carry the
// context of a nested frame are left alone.
func fieldError(t reflect.Type, i int, err error) error {
	field := t.Name() + "." + t.Field(i).Name
	var ge *graph.Error
	if errors.As(err, &ge) {
		if ge.Type == "" {
			ge.Err = fmt.Errorf("field %s: %w", field, ge.Err)
		}
		return err
	}
	return fmt.Errorf("field %s: %w", field, err)
}

// sortedMapKeys orders keys of basic kinds so equal maps encode identically.
func sortedMapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	var less func(a, b reflect.Value) bool
	switch v.Type().Key().Kind() {
	case reflect.String:
		less = func(a, b reflect.Value) bool { return a.String() < b.String() }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		less = func(a, b reflect.Value) bool { return a.Int() < b.Int() }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		less = func(a, b reflect.Value) bool { return a.Uint() < b.Uint() }
	case reflect.Float32, reflect.Float64:
		less = func(a, b reflect.Value) bool { return a.Float() < b.Float() }
	case reflect.Bool:
		less = func(a, b reflect.Value) bool { return !a.Bool() && b.Bool() }
	default:
		return keys
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}
