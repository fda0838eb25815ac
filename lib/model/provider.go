package model

import (
	"errors"
	"fmt"
)

// ErrNoValue is returned by Get on providers and properties without a value.
var ErrNoValue = errors.New("no value present")

// Provider is a lazily computed value.
type Provider interface {
	// Present reports whether Get would return a value.
	Present() bool
	// Get computes the value. It returns ErrNoValue if there is none.
	Get() (any, error)
}

// --------------------------------------------------------------------------
// Implementations
// --------------------------------------------------------------------------

// FixedProvider always returns the same value.
type FixedProvider struct {
	value any
}

// Fixed returns a provider of v. A nil v yields a missing provider.
func Fixed(v any) Provider {
	if v == nil {
		return Missing()
	}
	return &FixedProvider{value: v}
}

func (p *FixedProvider) Present() bool {
	return true
}

func (p *FixedProvider) Get() (any, error) {
	return p.value, nil
}

func (p *FixedProvider) String() string {
	return fmt.Sprintf("fixed(%v)", p.value)
}

// MissingProvider never has a value.
type MissingProvider struct{}

var missing = &MissingProvider{}

// Missing returns the provider without value.
func Missing() Provider {
	return missing
}

func (p *MissingProvider) Present() bool {
	return false
}

func (p *MissingProvider) Get() (any, error) {
	return nil, ErrNoValue
}

func (p *MissingProvider) String() string {
	return "missing"
}

// MappedProvider applies a transformation to the value of another provider.
type MappedProvider struct {
	source Provider
	fn     func(any) (any, error)
}

// Map returns a provider of fn applied to the value of p. It has no value if p
// has none.
func Map(p Provider, fn func(any) (any, error)) Provider {
	return &MappedProvider{source: p, fn: fn}
}

func (p *MappedProvider) Present() bool {
	return p.source.Present()
}

func (p *MappedProvider) Get() (any, error) {
	v, err := p.source.Get()
	if err != nil {
		return nil, err
	}
	return p.fn(v)
}
