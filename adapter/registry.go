// Package adapter implements the bidirectional type adapter registry
// described in spec §4.2: a flat, exact-match map keyed on the pair
// (in-memory Go type, wire type label) that converts values going into and
// coming out of a driver.
package adapter

import (
	"reflect"

	"github.com/ormkit/ormkit/ormerr"
)

// Wire identifies the database-facing representation an adapter targets.
// It is a label, not a Go type, because many wire types (DATETIME, JSON)
// have no single corresponding driver type.
type Wire string

const (
	WireDateTime  Wire = "DATETIME"
	WireBoolean   Wire = "BOOLEAN"
	WireUUIDText  Wire = "UUID_TEXT"
	WireUUIDBytes Wire = "UUID_BYTES"
	WireJSONText  Wire = "JSON_TEXT"
	WireDecimal   Wire = "DECIMAL_TEXT"
	WireBlob      Wire = "BLOB"
	WireArrayText Wire = "ARRAY_TEXT"
)

// Options carries per-call adapter configuration (e.g. a source timezone)
// without widening the registry key. Adapters that don't need options
// ignore a nil Options.
type Options map[string]any

// Adapter converts one (in-memory type, wire type) pair in both directions.
type Adapter interface {
	// ToDB converts an in-memory value into its wire representation.
	ToDB(value any, opts Options) (any, error)
	// FromDB converts a wire value back into its in-memory representation.
	FromDB(value any, opts Options) (any, error)
}

// Func adapts a pair of plain functions to the Adapter interface.
type Func struct {
	ToDBFunc   func(value any, opts Options) (any, error)
	FromDBFunc func(value any, opts Options) (any, error)
}

func (f Func) ToDB(value any, opts Options) (any, error)   { return f.ToDBFunc(value, opts) }
func (f Func) FromDB(value any, opts Options) (any, error) { return f.FromDBFunc(value, opts) }

type pairKey struct {
	InMemory reflect.Type
	Wire     Wire
}

// Registry is a flat, exact-match (in-memory type, wire type) -> Adapter
// map. Lookup never walks subtypes or interfaces: a registered
// (time.Time, WireDateTime) pair does not match a named type that embeds
// time.Time.
type Registry struct {
	adapters map[pairKey]Adapter
}

// New returns an empty registry. Most callers want DefaultRegistry instead.
func New() *Registry {
	return &Registry{adapters: make(map[pairKey]Adapter)}
}

// Register adds an adapter for (inMemory, wire). It fails with a
// Validation error if the pair is already registered and allowOverride is
// false, matching spec §4.2.
func (r *Registry) Register(inMemory reflect.Type, wire Wire, a Adapter, allowOverride bool) error {
	key := pairKey{InMemory: inMemory, Wire: wire}
	if _, exists := r.adapters[key]; exists && !allowOverride {
		return ormerr.Newf(ormerr.Validation,
			"adapter already registered for (%s, %s); pass allowOverride=true to replace it",
			inMemory, wire)
	}
	r.adapters[key] = a
	return nil
}

// Get returns the adapter registered for the exact (inMemory, wire) pair.
func (r *Registry) Get(inMemory reflect.Type, wire Wire) (Adapter, bool) {
	a, ok := r.adapters[pairKey{InMemory: inMemory, Wire: wire}]
	return a, ok
}

// AdaptToDB converts value for wire using the registered adapter for
// value's concrete type. If no adapter is registered the value passes
// through unchanged, per spec §4.2.
func (r *Registry) AdaptToDB(value any, wire Wire, opts Options) (any, error) {
	if value == nil {
		return nil, nil
	}
	a, ok := r.Get(reflect.TypeOf(value), wire)
	if !ok {
		return value, nil
	}
	out, err := a.ToDB(value, opts)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "adapt to db failed", err)
	}
	return out, nil
}

// AdaptFromDB converts a wire value back into inMemory's representation
// using the registered adapter. If no adapter is registered the value
// passes through unchanged.
func (r *Registry) AdaptFromDB(value any, inMemory reflect.Type, wire Wire, opts Options) (any, error) {
	if value == nil {
		return nil, nil
	}
	a, ok := r.Get(inMemory, wire)
	if !ok {
		return value, nil
	}
	out, err := a.FromDB(value, opts)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "adapt from db failed", err)
	}
	return out, nil
}

// Clone returns a shallow copy of the registry's pair map, so a backend can
// start from DefaultRegistry() and layer its own overrides without
// mutating the shared default.
func (r *Registry) Clone() *Registry {
	out := New()
	for k, v := range r.adapters {
		out.adapters[k] = v
	}
	return out
}
