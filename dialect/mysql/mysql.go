// Package mysql implements the MySQL/MariaDB dialect, registering the
// go-sql-driver/mysql driver named in the spec's domain-stack table.
package mysql

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// DriverName is the database/sql driver name registered by
// go-sql-driver/mysql.
const DriverName = "mysql"

// Dialect is MySQL/MariaDB's rendering strategy. MySQL lacks RETURNING
// and true CTE materialization hints; OFFSET always requires LIMIT.
type Dialect struct {
	dialect.ANSI
	version      [3]int
	capabilities capability.Set
}

// New builds a MySQL dialect for the given server version, computing its
// capability set once. version[0] >= 8 unlocks window functions and CTEs,
// which MySQL only gained in the 8.0 line.
func New(version [3]int) *Dialect {
	d := &Dialect{version: version, ANSI: dialect.ANSI{OffsetRequiresLimit: true}}

	caps := capability.NewSet().
		WithTransaction(capability.TransactionSavepoints | capability.TransactionIsolationLevels | capability.TransactionReadOnly).
		WithBulk(capability.BulkInsert | capability.BulkUpsert).
		WithJoin(capability.JoinInner | capability.JoinLeft | capability.JoinRight | capability.JoinCross).
		WithConstraint(capability.ConstraintForeignKey | capability.ConstraintUnique | capability.ConstraintCheck).
		WithJSON(capability.JSONExtract | capability.JSONContains | capability.JSONSet)

	if version[0] >= 8 {
		caps = caps.
			WithWindow(capability.AllWindowFunctions).
			WithCTE(capability.CTEBasic | capability.CTERecursive | capability.CTEInDML).
			WithGrouping(capability.GroupingSets | capability.GroupingCube | capability.GroupingRollup)
	}
	if version[0] > 8 || (version[0] == 8 && version[1] >= 0 && version[2] >= 19) {
		caps = caps.WithSetOp(capability.SetOpUnion | capability.SetOpUnionAll | capability.SetOpIntersect | capability.SetOpExcept)
	} else {
		caps = caps.WithSetOp(capability.SetOpUnion | capability.SetOpUnionAll)
	}

	d.capabilities = caps
	return d
}

func (d *Dialect) Name() string { return DriverName }

func (d *Dialect) Placeholder(position int) string { return "?" }

func (d *Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Dialect) Capabilities() capability.Set { return d.capabilities }

func (d *Dialect) Returning() dialect.ReturningHandler { return dialect.UnsupportedReturning }

func (d *Dialect) CTE() dialect.CTEHandler {
	if !d.capabilities.SupportsCategory(capability.CategoryCTE) {
		return dialect.UnsupportedCTE
	}
	return cteHandler{d}
}

func (d *Dialect) JSONOps() dialect.JSONOperationHandler { return jsonHandler{} }
func (d *Dialect) Explain() dialect.ExplainHandler       { return explainHandler{} }

// WindowFunctions implements dialect.WindowFunctionDialect.
func (d *Dialect) WindowFunctions() capability.Set { return d.capabilities }

// FormatUpsert implements dialect.UpsertDialect via
// INSERT ... ON DUPLICATE KEY UPDATE ....
func (d *Dialect) FormatUpsert(conflictTargets []string, updateColumns []string) (string, error) {
	if len(updateColumns) == 0 {
		return "", ormerr.New(ormerr.Query, "MySQL upsert requires at least one update column")
	}
	assignments := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		q := d.QuoteIdentifier(c)
		assignments[i] = fmt.Sprintf("%s = VALUES(%s)", q, q)
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", "), nil
}

type cteHandler struct{ d *Dialect }

func (c cteHandler) SupportsRecursive() bool        { return c.d.capabilities.SupportsCTE(capability.CTERecursive) }
func (c cteHandler) SupportsMaterializedHint() bool { return false }
func (c cteHandler) SupportsMultiple() bool         { return true }
func (c cteHandler) SupportsInDML() bool            { return c.d.capabilities.SupportsCTE(capability.CTEInDML) }

func (c cteHandler) Render(ctes []dialect.CTEDefinition, recursive bool) (string, []any, error) {
	if len(ctes) == 0 {
		return "", nil, ormerr.New(ormerr.Query, "WITH requires at least one CTE")
	}
	if recursive && !c.SupportsRecursive() {
		return "", nil, ormerr.ErrCTENotSupported
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
	return fmt.Sprintf("JSON_EXTRACT(%s, ?)", columnSQL), []any{path}, nil
}

func (jsonHandler) Contains(columnSQL string, valueParam any) (string, []any, error) {
	return fmt.Sprintf("JSON_CONTAINS(%s, ?)", columnSQL), []any{valueParam}, nil
}

type explainHandler struct{}

func (explainHandler) IsSupported() bool { return true }

func (explainHandler) WrapQuery(querySQL string, opts dialect.ExplainOptions) (string, error) {
	if opts.Format == "json" {
		return "EXPLAIN FORMAT=JSON " + querySQL, nil
	}
	return "EXPLAIN " + querySQL, nil
}

func (explainHandler) Parse(raw string, opts dialect.ExplainOptions) (dialect.ExplainResult, error) {
	result := dialect.ExplainResult{Raw: raw}
	if opts.Format == "json" {
		result.Structured = raw
	}
	return result, nil
}
