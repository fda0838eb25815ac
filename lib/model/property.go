package model

import (
	"fmt"
	"maps"
	"sync"
)

// --------------------------------------------------------------------------
// Property
// --------------------------------------------------------------------------

// Property holds either a fixed value or a provider computing it.
// A Property is safe for concurrent use.
type Property struct {
	mu       sync.RWMutex
	value    any
	provider Provider
}

// Set replaces the content with the fixed value v. A nil v clears the property.
func (p *Property) Set(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value, p.provider = v, nil
}

// SetProvider makes the property follow provider.
func (p *Property) SetProvider(provider Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value, p.provider = nil, provider
}

// Value returns the fixed value, or nil if the property is empty or backed by a
// provider.
func (p *Property) Value() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Source returns the backing provider, or nil if the property holds a fixed value.
func (p *Property) Source() Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.provider
}

func (p *Property) Present() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.provider != nil {
		return p.provider.Present()
	}
	return p.value != nil
}

func (p *Property) Get() (any, error) {
	p.mu.RLock()
	value, provider := p.value, p.provider
	p.mu.RUnlock()

	if provider != nil {
		return provider.Get()
	}
	if value == nil {
		return nil, ErrNoValue
	}
	return value, nil
}

// --------------------------------------------------------------------------
// DirectoryProperty
// --------------------------------------------------------------------------

// DirectoryProperty holds a directory path, resolved against the FileResolver
// it was created with.
type DirectoryProperty struct {
	resolver FileResolver
	mu       sync.RWMutex
	path     string
}

// Set resolves path and stores it. An empty path clears the property.
func (d *DirectoryProperty) Set(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if path == "" {
		d.path = ""
		return
	}
	d.path = d.resolver.Resolve(path)
}

// SetFrom copies the directory of other.
func (d *DirectoryProperty) SetFrom(other *DirectoryProperty) {
	if other == nil {
		d.Set("")
		return
	}
	path, _ := other.Path()
	d.Set(path)
}

// Path returns the resolved directory and whether one is set.
func (d *DirectoryProperty) Path() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path, d.path != ""
}

func (d *DirectoryProperty) Present() bool {
	_, ok := d.Path()
	return ok
}

func (d *DirectoryProperty) Get() (any, error) {
	path, ok := d.Path()
	if !ok {
		return nil, ErrNoValue
	}
	return path, nil
}

func (d *DirectoryProperty) String() string {
	if path, ok := d.Path(); ok {
		return path
	}
	return "<unset>"
}

// --------------------------------------------------------------------------
// MapProperty
// --------------------------------------------------------------------------

// MapProperty is a string-keyed map whose entries are values or providers.
// Keys keep their insertion order. A MapProperty is safe for concurrent use.
type MapProperty struct {
	mu      sync.RWMutex
	keys    []string
	entries map[string]any
}

// Put sets key to v. v may be a Provider, which is evaluated lazily by Entries.
func (m *MapProperty) Put(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, v)
}

// PutAll puts every entry of values, in the order of keys if given, otherwise
// sorted by key.
func (m *MapProperty) PutAll(values map[string]any, keys ...string) {
	if len(keys) == 0 {
		keys = sortedKeys(values)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if v, ok := values[k]; ok {
			m.put(k, v)
		}
	}
}

// Keys returns the keys in insertion order.
func (m *MapProperty) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m *MapProperty) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Raw returns the entry of key as stored, without evaluating providers.
func (m *MapProperty) Raw(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Getting returns a provider of the value of key. It has no value while the key
// is absent.
func (m *MapProperty) Getting(key string) Provider {
	return &entryProvider{m: m, key: key}
}

// Entries evaluates all entries. Entries whose provider has no value are left out.
func (m *MapProperty) Entries() (map[string]any, error) {
	m.mu.RLock()
	keys := append([]string(nil), m.keys...)
	entries := maps.Clone(m.entries)
	m.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v := entries[k]
		provider, ok := v.(Provider)
		if !ok {
			out[k] = v
			continue
		}
		if !provider.Present() {
			continue
		}
		value, err := provider.Get()
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
		out[k] = value
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *MapProperty) put(key string, v any) {
	if m.entries == nil {
		m.entries = make(map[string]any)
	}
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = v
}

type entryProvider struct {
	m   *MapProperty
	key string
}

func (p *entryProvider) Present() bool {
	v, ok := p.m.Raw(p.key)
	if !ok {
		return false
	}
	if provider, ok := v.(Provider); ok {
		return provider.Present()
	}
	return true
}

func (p *entryProvider) Get() (any, error) {
	v, ok := p.m.Raw(p.key)
	if !ok {
		return nil, ErrNoValue
	}
	if provider, ok := v.(Provider); ok {
		return provider.Get()
	}
	return v, nil
}
