package entity

import (
	"reflect"
	"strings"

	"github.com/ormkit/ormkit/ormerr"
)

// factory implements model.DatabaseFactory for one registered type,
// closing over its compiled meta. query.Builder.BindFactory takes one
// of these so AllModels/OneModel can materialize rows without the
// query package ever knowing about concrete entity types (spec §4.9).
type factory struct {
	m *meta
}

func (f *factory) CreateFromDatabase(row map[string]any) (any, error) {
	ptr := reflect.New(f.m.typ)
	if err := populate(ptr.Elem(), f.m, row); err != nil {
		return nil, err
	}

	base, err := baseOf(ptr.Elem())
	if err != nil {
		return nil, err
	}
	base.bind(ptr.Interface(), nil, f.m)
	base.snapshot(normalizeRow(row))

	return ptr.Interface(), nil
}

// populate walks every mapped field and assigns it from row, matching
// column names case-insensitively since drivers disagree on casing
// (PostgreSQL lowercases unquoted identifiers, SQL Server preserves
// them) — the same accommodation the teacher's deserialize made by
// keying directly off whatever the driver returned.
func populate(structVal reflect.Value, m *meta, row map[string]any) error {
	norm := normalizeRow(row)

	assign := func(fm fieldMeta) error {
		v, ok := norm[normalizeColumn(fm.column)]
		if !ok {
			return nil
		}
		field := structVal.FieldByIndex(fm.index)
		if err := assignValue(field, v); err != nil {
			return ormerr.Wrap(ormerr.TypeConversion, "column "+fm.column, err)
		}
		return nil
	}

	if err := assign(m.pk); err != nil {
		return err
	}
	for _, fm := range m.fields {
		if err := assign(fm); err != nil {
			return err
		}
	}
	return nil
}

func normalizeRow(row map[string]any) map[string]any {
	norm := make(map[string]any, len(row))
	for k, v := range row {
		norm[strings.ToLower(k)] = v
	}
	return norm
}
