package entity

import (
	"reflect"
	"strings"

	"github.com/ormkit/ormkit/ormerr"
)

// fieldMeta describes one mapped struct field (spec §4.9's column
// mapping), grounded on the teacher's iterateStructFields/db-tag walk
// in insert.go but built once at registration instead of on every call.
type fieldMeta struct {
	index      []int // reflect.Value.FieldByIndex path, handles embedding
	column     string
	insertable bool
	updatable  bool
}

// meta is the compiled mapping for one registered struct type.
type meta struct {
	typ    reflect.Type
	table  string
	pk     fieldMeta
	fields []fieldMeta // excludes pk
}

var registry = struct {
	byType map[reflect.Type]*meta
}{byType: make(map[reflect.Type]*meta)}

// Register compiles T's field mapping from db/pk struct tags and
// associates it with table. T must be a struct (not a pointer) that
// embeds Base, with exactly one field tagged pk:"true". Intended to be
// called once from an init() function, mirroring the teacher's
// RegisterModel[T] (spec §4.9).
func Register[T any](table string) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		panic("entity: Register requires a struct type")
	}

	m := &meta{typ: t, table: table}
	var pkFound bool
	walkFields(t, nil, func(f fieldMeta, isPK bool) {
		if isPK {
			if pkFound {
				panic("entity: " + t.Name() + " has more than one field tagged pk:\"true\"")
			}
			m.pk = f
			pkFound = true
			return
		}
		m.fields = append(m.fields, f)
	})
	if !pkFound {
		panic("entity: " + t.Name() + " has no field tagged pk:\"true\"")
	}

	registry.byType[t] = m
}

// metaFor returns the compiled mapping for T, panicking if T was never
// registered — a programming error the caller should fix at init time,
// not a runtime condition to recover from.
func metaFor(t reflect.Type) *meta {
	m, ok := registry.byType[t]
	if !ok {
		panic("entity: type " + t.Name() + " is not registered; call entity.Register[" + t.Name() + "](table) at init")
	}
	return m
}

// walkFields recursively visits exported, db-tagged fields, descending
// into anonymous embedded structs (including Base itself, which has no
// db tags and so contributes nothing) the way the teacher's
// iterateStructFields does.
func walkFields(t reflect.Type, prefix []int, visit func(fieldMeta, bool)) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			walkFields(f.Type, index, visit)
			continue
		}

		dbTag := f.Tag.Get("db")
		if dbTag == "" || dbTag == "-" {
			continue
		}

		fm := fieldMeta{
			index:      index,
			column:     dbTag,
			insertable: f.Tag.Get("dbInsert") != "false",
			updatable:  f.Tag.Get("dbUpdate") != "false",
		}
		visit(fm, f.Tag.Get("pk") == "true")
	}
}

// rowFromStruct serializes every mapped field (pk included) into a
// column -> value map, for dirty-tracking snapshots and WHERE clauses.
func rowFromStruct(v reflect.Value, m *meta) map[string]any {
	row := make(map[string]any, len(m.fields)+1)
	row[m.pk.column] = v.FieldByIndex(m.pk.index).Interface()
	for _, f := range m.fields {
		row[f.column] = v.FieldByIndex(f.index).Interface()
	}
	return row
}

func baseOf(v reflect.Value) (*Base, error) {
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if f.Anonymous && f.Type == reflect.TypeOf(Base{}) {
			return v.Field(i).Addr().Interface().(*Base), nil
		}
	}
	return nil, ormerr.New(ormerr.Validation, "entity: struct does not embed entity.Base")
}

func normalizeColumn(c string) string { return strings.ToLower(c) }
