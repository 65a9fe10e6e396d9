// Package sqlite implements the SQLite dialect, registering the
// mattn/go-sqlite3 driver the teacher repo itself depends on and tests
// against via go-sqlmock.
package sqlite

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// DriverName is the database/sql driver name registered by
// mattn/go-sqlite3.
const DriverName = "sqlite3"

// Dialect is SQLite's rendering strategy. SQLite gained RETURNING in
// 3.35 and window functions/CTEs considerably earlier; this
// implementation targets a modern (>= 3.35) SQLite and does not attempt
// to model older feature windows, matching the teacher's own
// single-version treatment of its sqlite3 driver dependency.
type Dialect struct {
	dialect.ANSI
	version      [3]int
	capabilities capability.Set
}

// New builds a SQLite dialect for the given library version.
func New(version [3]int) *Dialect {
	caps := capability.NewSet().
		WithSetOp(capability.SetOpUnion | capability.SetOpUnionAll | capability.SetOpIntersect | capability.SetOpExcept).
		WithWindow(capability.AllWindowFunctions).
		WithCTE(capability.CTEBasic | capability.CTERecursive | capability.CTEInDML).
		WithJSON(capability.JSONExtract | capability.JSONContains | capability.JSONSet).
		WithReturning(capability.ReturningBasic | capability.ReturningMultiRow).
		WithTransaction(capability.TransactionSavepoints).
		WithBulk(capability.BulkInsert | capability.BulkUpsert).
		WithJoin(capability.JoinInner | capability.JoinLeft | capability.JoinCross | capability.JoinNatural).
		WithConstraint(capability.ConstraintForeignKey | capability.ConstraintUnique | capability.ConstraintCheck)

	return &Dialect{version: version, capabilities: caps}
}

func (d *Dialect) Name() string { return DriverName }

func (d *Dialect) Placeholder(position int) string { return "?" }

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) Capabilities() capability.Set { return d.capabilities }

func (d *Dialect) Returning() dialect.ReturningHandler { return returningHandler{d} }

func (d *Dialect) CTE() dialect.CTEHandler { return cteHandler{d} }

func (d *Dialect) JSONOps() dialect.JSONOperationHandler { return jsonHandler{} }
func (d *Dialect) Explain() dialect.ExplainHandler       { return explainHandler{} }

// WindowFunctions implements dialect.WindowFunctionDialect.
func (d *Dialect) WindowFunctions() capability.Set { return d.capabilities }

// FormatUpsert implements dialect.UpsertDialect via
// INSERT ... ON CONFLICT (...) DO UPDATE SET ...., same grammar as
// PostgreSQL's.
func (d *Dialect) FormatUpsert(conflictTargets []string, updateColumns []string) (string, error) {
	if len(conflictTargets) == 0 {
		return "", ormerr.New(ormerr.Query, "upsert requires at least one conflict target column")
	}
	quoted := make([]string, len(conflictTargets))
	for i, c := range conflictTargets {
		quoted[i] = d.QuoteIdentifier(c)
	}
	sql := "ON CONFLICT (" + strings.Join(quoted, ", ") + ") DO "
	if len(updateColumns) == 0 {
		return sql + "NOTHING", nil
	}
	assignments := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		q := d.QuoteIdentifier(c)
		assignments[i] = fmt.Sprintf("%s = excluded.%s", q, q)
	}
	return sql + "UPDATE SET " + strings.Join(assignments, ", "), nil
}

type returningHandler struct{ d *Dialect }

func (r returningHandler) IsSupported() bool { return true }

func (r returningHandler) Render(columns []string, force bool) (string, error) {
	if len(columns) == 0 {
		return "RETURNING *", nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = r.d.QuoteIdentifier(c)
	}
	return "RETURNING " + strings.Join(quoted, ", "), nil
}

func (r returningHandler) Placement() dialect.ReturningPlacement { return dialect.ReturningTrailing }

type cteHandler struct{ d *Dialect }

func (c cteHandler) SupportsRecursive() bool        { return true }
func (c cteHandler) SupportsMaterializedHint() bool { return false }
func (c cteHandler) SupportsMultiple() bool         { return true }
func (c cteHandler) SupportsInDML() bool            { return true }

func (c cteHandler) Render(ctes []dialect.CTEDefinition, recursive bool) (string, []any, error) {
	if len(ctes) == 0 {
		return "", nil, ormerr.New(ormerr.Query, "WITH requires at least one CTE")
	}
	sql := "WITH "
	if recursive {
		sql += "RECURSIVE "
	}
	var params []any
	for i, cte := range ctes {
		if i > 0 {
			sql += ", "
		}
		sql += c.d.QuoteIdentifier(cte.Name)
		if len(cte.Columns) > 0 {
			quoted := make([]string, len(cte.Columns))
			for j, col := range cte.Columns {
				quoted[j] = c.d.QuoteIdentifier(col)
			}
			sql += "(" + strings.Join(quoted, ", ") + ")"
		}
		sql += " AS (" + cte.QuerySQL + ")"
		params = append(params, cte.QueryParams...)
	}
	return sql, params, nil
}

type jsonHandler struct{}

func (jsonHandler) IsSupported() bool { return true }

func (jsonHandler) Extract(columnSQL, path string) (string, []any, error) {
	return fmt.Sprintf("json_extract(%s, ?)", columnSQL), []any{path}, nil
}

func (jsonHandler) Contains(columnSQL string, valueParam any) (string, []any, error) {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", columnSQL), []any{valueParam}, nil
}

type explainHandler struct{}

func (explainHandler) IsSupported() bool { return true }

func (explainHandler) WrapQuery(querySQL string, opts dialect.ExplainOptions) (string, error) {
	return "EXPLAIN QUERY PLAN " + querySQL, nil
}

func (explainHandler) Parse(raw string, opts dialect.ExplainOptions) (dialect.ExplainResult, error) {
	return dialect.ExplainResult{Raw: raw}, nil
}
