// Package model defines the contract the core exposes upward to an
// external record/entity layer (spec §4.9). It holds interfaces only —
// package entity supplies a concrete implementation that exercises every
// method here against the query/backend stack.
package model

// TableNamer names the table a model maps to.
type TableNamer interface {
	TableName() string
}

// PrimaryKeyer reports a model's primary key column name and current
// value (nil before the row has been persisted).
type PrimaryKeyer interface {
	PrimaryKey() (column string, value any)
}

// BackendAccessor gives the core a handle to the connection the model
// instance is bound to, so query builders and DML helpers can execute
// against it without a separate parameter on every call.
type BackendAccessor interface {
	// Backend returns an opaque handle; the core type-asserts it to
	// *backend.Backend at the point of use. Declared as `any` here to
	// avoid this package importing backend, which would invert the
	// dependency direction spec §1 describes (entity/model depend on
	// the core, not the reverse).
	Backend() any
}

// Adapter bidirectionally converts one column's in-memory/wire value
// pair. Mirrors adapter.Adapter's shape without importing that package,
// for the same dependency-direction reason as BackendAccessor.
type Adapter interface {
	ToDB(value any) (any, error)
	FromDB(wireValue any) (any, error)
}

// ColumnAdapterProvider exposes the column-name -> adapter map the
// backend consults while materializing rows into model instances.
type ColumnAdapterProvider interface {
	ColumnAdapters() map[string]Adapter
}

// DirtyTracker reports which columns have changed since the instance
// was loaded or last saved, so UPDATE sends only the changed set.
type DirtyTracker interface {
	DirtyColumns() []string
	ClearDirty()
}

// DatabaseFactory constructs a model instance from a raw database row,
// bypassing the type's normal constructor (spec §4.9: "the core never
// calls the entity's regular constructor with raw DB values").
type DatabaseFactory interface {
	CreateFromDatabase(row map[string]any) (any, error)
}

// Record bundles every contract method a fully participating model
// satisfies. Code that needs the complete contract (e.g. entity's
// generic helpers) accepts Record; code that needs only one facet
// accepts the narrower interface above.
type Record interface {
	TableNamer
	PrimaryKeyer
	BackendAccessor
	ColumnAdapterProvider
	DirtyTracker
}
