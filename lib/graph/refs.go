package graph

import "reflect"

// --------------------------------------------------------------------------
// Identity
// --------------------------------------------------------------------------

// identity is the reference identity of a value. Slices are keyed by their data
// pointer and length, so two slices sharing a backing array but differing in
// length are different values.
type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// identityOf returns the reference identity of v. Values of kinds without
// reference semantics (numbers, strings, structs and arrays by value, empty
// slices, funcs) have none and are written as value frames.
func identityOf(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}, true
	default:
		return identity{}, false
	}
}

// isNil reports whether v is nil or a typed nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Reference Table (write side)
// --------------------------------------------------------------------------

// writeRefs maps instance identities to the ordinals assigned during one encode
// pass. It grows monotonically and is discarded with the pass.
type writeRefs struct {
	ordinals map[identity]int64
	next     int64
}

func newWriteRefs() *writeRefs {
	return &writeRefs{ordinals: make(map[identity]int64)}
}

func (t *writeRefs) lookup(id identity) (int64, bool) {
	ord, ok := t.ordinals[id]
	return ord, ok
}

// assign gives id the next ordinal. Ordinals follow first-visit order.
func (t *writeRefs) assign(id identity) int64 {
	ord := t.next
	t.ordinals[id] = ord
	t.next++
	return ord
}

func (t *writeRefs) len() int64 {
	return t.next
}

// --------------------------------------------------------------------------
// Reference Table (read side)
// --------------------------------------------------------------------------

type slotState uint8

const (
	// slotReserved: the first-occurrence frame is being decoded and its codec
	// has not provided an instance yet.
	slotReserved slotState = iota
	// slotProvided: the codec published its instance early, back-references
	// resolve to it while the frame is still being decoded.
	slotProvided
	// slotDone: the frame is fully decoded.
	slotDone
)

type slot struct {
	value any
	state slotState
	typ   string
}

// readRefs maps ordinals to materialized instances during one decode pass.
type readRefs struct {
	slots []slot
}

func newReadRefs() *readRefs {
	return &readRefs{}
}

// reserve opens the slot for the next ordinal.
func (t *readRefs) reserve(typ string) int64 {
	t.slots = append(t.slots, slot{state: slotReserved, typ: typ})
	return int64(len(t.slots) - 1)
}

func (t *readRefs) provide(ord int64, v any) {
	s := &t.slots[ord]
	s.value = v
	s.state = slotProvided
}

func (t *readRefs) complete(ord int64, v any) {
	s := &t.slots[ord]
	s.value = v
	s.state = slotDone
}

func (t *readRefs) get(ord int64) (slot, bool) {
	if ord < 0 || ord >= int64(len(t.slots)) {
		return slot{}, false
	}
	return t.slots[ord], true
}

func (t *readRefs) next() int64 {
	return int64(len(t.slots))
}
