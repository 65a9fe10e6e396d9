// Package entity is the record layer spec §4.9 describes sitting above
// the core: it gives a plain Go struct a table mapping, a primary key,
// and generated CRUD driven entirely through query/backend, instead of
// requiring each struct to hand-write its own SQL the way the teacher's
// typedb package required a QueryBy{Field}() method per lookup.
//
// A participating struct embeds Base and registers itself once, at
// init time, with Register[T]("table_name"):
//
//	type User struct {
//	    entity.Base
//	    ID    int64  `db:"id" pk:"true"`
//	    Name  string `db:"name"`
//	    Email string `db:"email"`
//	}
//
//	func init() { entity.Register[User]("users") }
//
// Base implements the whole of model.Record (TableName, PrimaryKey,
// Backend, ColumnAdapters, DirtyColumns/ClearDirty) generically, by
// reflecting on the registered meta for whatever concrete type embeds
// it. Every field below is populated by the package's CRUD helpers,
// never by user code.
package entity

import (
	"reflect"
	"sync"

	"github.com/ormkit/ormkit/model"
)

// Base is embedded by every registered struct.
type Base struct {
	mu       sync.Mutex
	self     any
	meta     *meta
	backend  any
	original map[string]any
	current  map[string]any
}

// bind associates Base with the concrete *T pointer that embeds it and
// the backend it was loaded/saved through, so TableName/PrimaryKey can
// reflect on self using meta without either being known at compile time.
func (b *Base) bind(self any, be any, m *meta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
	b.backend = be
	b.meta = m
}

// Backend implements model.BackendAccessor.
func (b *Base) Backend() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend
}

// TableName implements model.TableNamer.
func (b *Base) TableName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.meta == nil {
		return ""
	}
	return b.meta.table
}

// PrimaryKey implements model.PrimaryKeyer.
func (b *Base) PrimaryKey() (string, any) {
	b.mu.Lock()
	self, m := b.self, b.meta
	b.mu.Unlock()
	if m == nil || self == nil {
		return "", nil
	}
	v := reflect.ValueOf(self).Elem()
	return m.pk.column, v.FieldByIndex(m.pk.index).Interface()
}

// ColumnAdapters implements model.ColumnAdapterProvider. Entities adapt
// values at the Go-type level (convert.go) rather than per-column, so
// this is always empty.
func (b *Base) ColumnAdapters() map[string]model.Adapter { return nil }

// snapshot records the column values a row was just loaded or saved
// with, establishing the baseline DirtyColumns compares against.
func (b *Base) snapshot(row map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make(map[string]any, len(row))
	for k, v := range row {
		cp[k] = v
	}
	b.original = cp
	b.current = nil
}

// noteCurrent records the column values serialized from the struct's
// present in-memory state, so DirtyColumns can diff against original.
func (b *Base) noteCurrent(row map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = row
}

// hasBaseline reports whether the entity has a prior snapshot to diff
// against (loaded from the database, or saved at least once). Without
// one, DirtyColumns can't distinguish "nothing changed" from "nothing
// to compare against", so callers must check this first.
func (b *Base) hasBaseline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.original != nil
}

// DirtyColumns implements model.DirtyTracker, returning the columns
// whose current value differs from the last snapshot. Call hasBaseline
// first: with no baseline this returns an empty slice, not "all columns".
func (b *Base) DirtyColumns() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dirty []string
	for col, v := range b.current {
		orig, ok := b.original[col]
		if !ok || !valuesEqual(orig, v) {
			dirty = append(dirty, col)
		}
	}
	return dirty
}

// ClearDirty implements model.DirtyTracker, folding the last-noted
// current values into the baseline (called after a successful Save).
func (b *Base) ClearDirty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return
	}
	b.original = b.current
	b.current = nil
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
