package entity

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/ormkit/ormkit/backend"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
	"github.com/ormkit/ormkit/query"
)

// typeOf returns T's reflect.Type from a nil-valued generic instantiation.
func typeOf[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

func metaOf[T any]() *meta { return metaFor(typeOf[T]()) }

func newQuery[T any](dial dialect.Dialect) *query.Builder {
	m := metaOf[T]()
	return query.New(dial, m.table).BindFactory(&factory{m: m})
}

func bindAndReturn[T any](raw any, be *backend.Backend) (*T, error) {
	result, ok := raw.(*T)
	if !ok {
		return nil, ormerr.Newf(ormerr.Validation, "entity: factory returned %T, expected %T", raw, result)
	}
	base, err := baseOf(reflect.ValueOf(result).Elem())
	if err != nil {
		return nil, err
	}
	base.bind(result, be, metaOf[T]())
	return result, nil
}

// Find loads the row whose primary key equals pk into a new *T, or
// returns ormerr.ErrRecordNotFound (spec §4.9's generic Load).
func Find[T any](ctx context.Context, be *backend.Backend, pk any) (*T, error) {
	m := metaOf[T]()
	raw, err := newQuery[T](be.Dialect()).WhereEq(m.pk.column, pk).OneModel(ctx, be)
	if err != nil {
		return nil, err
	}
	return bindAndReturn[T](raw, be)
}

// All loads every row of T's table.
func All[T any](ctx context.Context, be *backend.Backend) ([]*T, error) {
	raws, err := newQuery[T](be.Dialect()).AllModels(ctx, be)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		v, err := bindAndReturn[T](raw, be)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Query starts a fluent query.Builder pre-bound to T's table and
// factory, for callers who want WHERE/ORDER BY/etc beyond Find/All.
func Query[T any](be *backend.Backend) *query.Builder {
	return newQuery[T](be.Dialect())
}

// Create inserts m and populates its primary key from the driver's
// RETURNING/OUTPUT clause (or LastInsertId on dialects without one),
// generalizing the teacher's per-driver Insert in insert.go into one
// path driven by backend.Execute's own RETURNING negotiation.
func Create[T any](ctx context.Context, be *backend.Backend, m *T) error {
	md := metaOf[T]()
	v := reflect.ValueOf(m).Elem()

	var columns []string
	var values []any
	pkVal := v.FieldByIndex(md.pk.index)
	if !isZero(pkVal) {
		columns = append(columns, md.pk.column)
		values = append(values, pkVal.Interface())
	}
	for _, f := range md.fields {
		if !f.insertable {
			continue
		}
		fv := v.FieldByIndex(f.index)
		if isZero(fv) {
			continue
		}
		columns = append(columns, f.column)
		values = append(values, fv.Interface())
	}
	if len(columns) == 0 {
		return ormerr.New(ormerr.Validation, "entity: Create requires at least one non-zero field")
	}

	dial := be.Dialect()
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = dial.QuoteIdentifier(c)
		placeholders[i] = "?"
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dial.QuoteIdentifier(md.table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	sqlText = dialect.Rebind(dial, sqlText)

	result, err := be.Execute(ctx, backend.ExecuteOptions{
		SQL:              sqlText,
		Params:           values,
		Returning:        true,
		ReturningColumns: []string{md.pk.column},
	})
	if err != nil {
		return err
	}

	if len(result.Rows) > 0 {
		if err := assignValue(pkVal, firstRowValue(result.Rows[0], md.pk.column)); err != nil {
			return err
		}
	} else if result.LastInsertID != 0 {
		if err := assignValue(pkVal, result.LastInsertID); err != nil {
			return err
		}
	}

	base, err := baseOf(v)
	if err != nil {
		return err
	}
	base.bind(m, be, md)
	base.snapshot(rowFromStruct(v, md))
	return nil
}

func firstRowValue(row map[string]any, column string) any {
	if v, ok := row[column]; ok {
		return v
	}
	return row[strings.ToLower(column)]
}

// Update writes every updatable, changed column back to the row
// identified by m's primary key. If m has never been loaded/saved (no
// dirty baseline), every updatable non-zero field is sent, matching
// the teacher's fallback "treat all fields as changed" behavior in
// update.go's getChangedFields.
func Update[T any](ctx context.Context, be *backend.Backend, m *T) error {
	md := metaOf[T]()
	v := reflect.ValueOf(m).Elem()
	pkVal := v.FieldByIndex(md.pk.index)
	if isZero(pkVal) {
		return ormerr.New(ormerr.Validation, "entity: Update requires the primary key to be set")
	}

	base, err := baseOf(v)
	if err != nil {
		return err
	}
	base.bind(m, be, md)
	hadBaseline := base.hasBaseline()
	row := rowFromStruct(v, md)
	base.noteCurrent(row)
	dirty := base.DirtyColumns()

	var columns []string
	var values []any
	for _, f := range md.fields {
		if !f.updatable {
			continue
		}
		fv := v.FieldByIndex(f.index)
		if hadBaseline {
			if !containsColumn(dirty, f.column) {
				continue
			}
		} else if isZero(fv) {
			continue
		}
		columns = append(columns, f.column)
		values = append(values, fv.Interface())
	}
	if len(columns) == 0 {
		return nil
	}

	dial := be.Dialect()
	setClauses := make([]string, len(columns))
	for i, c := range columns {
		setClauses[i] = fmt.Sprintf("%s = ?", dial.QuoteIdentifier(c))
	}
	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		dial.QuoteIdentifier(md.table), strings.Join(setClauses, ", "), dial.QuoteIdentifier(md.pk.column))
	sqlText = dialect.Rebind(dial, sqlText)

	params := append(values, pkVal.Interface())
	if _, err := be.Execute(ctx, backend.ExecuteOptions{SQL: sqlText, Params: params}); err != nil {
		return err
	}

	base.ClearDirty()
	return nil
}

func containsColumn(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// Delete removes the row identified by m's primary key.
func Delete[T any](ctx context.Context, be *backend.Backend, m *T) error {
	md := metaOf[T]()
	v := reflect.ValueOf(m).Elem()
	pkVal := v.FieldByIndex(md.pk.index)
	if isZero(pkVal) {
		return ormerr.New(ormerr.Validation, "entity: Delete requires the primary key to be set")
	}

	dial := be.Dialect()
	sqlText := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", dial.QuoteIdentifier(md.table), dial.QuoteIdentifier(md.pk.column))
	sqlText = dialect.Rebind(dial, sqlText)

	_, err := be.Execute(ctx, backend.ExecuteOptions{SQL: sqlText, Params: []any{pkVal.Interface()}})
	return err
}

// Save dispatches to Create or Update depending on whether m's primary
// key is currently zero (spec §4.9's single save() entry point).
func Save[T any](ctx context.Context, be *backend.Backend, m *T) error {
	md := metaOf[T]()
	v := reflect.ValueOf(m).Elem()
	if isZero(v.FieldByIndex(md.pk.index)) {
		return Create[T](ctx, be, m)
	}
	return Update[T](ctx, be, m)
}
