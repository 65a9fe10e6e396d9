// Package mssql implements the SQL Server dialect, registering the
// denisenkom/go-mssqldb driver named in the spec's domain-stack table.
package mssql

import (
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// DriverName is the database/sql driver name registered by
// denisenkom/go-mssqldb.
const DriverName = "sqlserver"

// Dialect is SQL Server's rendering strategy. SQL Server uses OUTPUT
// instead of RETURNING, named "@pN" placeholders, bracket identifier
// quoting, and OFFSET ... FETCH NEXT in place of LIMIT/OFFSET.
type Dialect struct {
	dialect.ANSI
	version      [3]int
	capabilities capability.Set
}

// New builds a SQL Server dialect for the given server version.
// version[0] >= 2016 (expressed as the marketing year) unlocks native
// JSON functions and STRING_SPLIT-backed set semantics.
func New(version [3]int) *Dialect {
	caps := capability.NewSet().
		WithWindow(capability.AllWindowFunctions).
		WithCTE(capability.CTEBasic | capability.CTERecursive | capability.CTEInDML).
		WithSetOp(capability.SetOpUnion | capability.SetOpUnionAll | capability.SetOpIntersect | capability.SetOpExcept).
		WithReturning(capability.ReturningBasic | capability.ReturningMultiRow | capability.ReturningComputedExpr).
		WithTransaction(capability.TransactionSavepoints | capability.TransactionIsolationLevels | capability.TransactionReadOnly).
		WithBulk(capability.BulkInsert | capability.BulkUpsert).
		WithJoin(capability.JoinInner | capability.JoinLeft | capability.JoinRight | capability.JoinFull | capability.JoinCross).
		WithConstraint(capability.ConstraintForeignKey | capability.ConstraintUnique | capability.ConstraintCheck).
		WithGrouping(capability.GroupingSets | capability.GroupingCube | capability.GroupingRollup)

	if version[0] >= 2016 {
		caps = caps.WithJSON(capability.JSONExtract | capability.JSONContains)
	}

	return &Dialect{version: version, capabilities: caps}
}

func (d *Dialect) Name() string { return DriverName }

func (d *Dialect) Placeholder(position int) string { return fmt.Sprintf("@p%d", position) }

func (d *Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *Dialect) Capabilities() capability.Set { return d.capabilities }

func (d *Dialect) Returning() dialect.ReturningHandler { return returningHandler{d} }

func (d *Dialect) CTE() dialect.CTEHandler { return cteHandler{d} }

func (d *Dialect) JSONOps() dialect.JSONOperationHandler {
	if !d.capabilities.SupportsCategory(capability.CategoryJSON) {
		return dialect.UnsupportedJSON
	}
	return jsonHandler{}
}

func (d *Dialect) Explain() dialect.ExplainHandler { return explainHandler{} }

// WindowFunctions implements dialect.WindowFunctionDialect.
func (d *Dialect) WindowFunctions() capability.Set { return d.capabilities }

// FormatLimitOffsetClause overrides ANSI: SQL Server renders paging as
// OFFSET ... ROWS [FETCH NEXT ... ROWS ONLY], always requiring an
// ORDER BY upstream and always requiring OFFSET even without a LIMIT.
func (d *Dialect) FormatLimitOffsetClause(limit, offset *int) (string, []any, error) {
	if limit == nil && offset == nil {
		return "", nil, nil
	}
	o := 0
	if offset != nil {
		o = *offset
	}
	sql := "OFFSET ? ROWS"
	params := []any{o}
	if limit != nil {
		sql += " FETCH NEXT ? ROWS ONLY"
		params = append(params, *limit)
	}
	return sql, params, nil
}

// FormatForUpdateClause overrides ANSI: SQL Server expresses locking via
// table hints rather than a trailing FOR UPDATE clause (see
// FormatLockingHint), so a bare FOR UPDATE request here is rejected.
func (d *Dialect) FormatForUpdateClause(opts dialect.ForUpdateOptions) (string, error) {
	if opts.Mode == dialect.ForUpdateNone {
		return "", nil
	}
	return "", ormerr.New(ormerr.Query, "use FormatLockingHint (WITH table hints) on this dialect instead of FOR UPDATE")
}

// FormatLockingHint implements dialect.LockingHintDialect via
// WITH (UPDLOCK, ROWLOCK) style table hints.
func (d *Dialect) FormatLockingHint(opts dialect.ForUpdateOptions) (string, error) {
	if opts.Mode == dialect.ForUpdateNone {
		return "", nil
	}
	hints := []string{"ROWLOCK"}
	switch opts.Mode {
	case dialect.ForUpdateUpdate:
		hints = append(hints, "UPDLOCK")
	case dialect.ForUpdateShare:
		hints = append(hints, "HOLDLOCK")
	default:
		return "", ormerr.New(ormerr.Query, "unsupported locking mode for this dialect")
	}
	if opts.NoWait {
		hints = append(hints, "NOWAIT")
	} else if opts.SkipLocked {
		hints = append(hints, "READPAST")
	}
	return "WITH (" + strings.Join(hints, ", ") + ")", nil
}

type returningHandler struct{ d *Dialect }

func (r returningHandler) IsSupported() bool { return true }

func (r returningHandler) Render(columns []string, force bool) (string, error) {
	if len(columns) == 0 {
		return "OUTPUT INSERTED.*", nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "INSERTED." + r.d.QuoteIdentifier(c)
	}
	return "OUTPUT " + strings.Join(quoted, ", "), nil
}

func (r returningHandler) Placement() dialect.ReturningPlacement { return dialect.ReturningLeading }

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
	return fmt.Sprintf("JSON_VALUE(%s, ?)", columnSQL), []any{path}, nil
}

func (jsonHandler) Contains(columnSQL string, valueParam any) (string, []any, error) {
	return fmt.Sprintf("%s LIKE '%%' + ? + '%%'", columnSQL), []any{valueParam}, nil
}

type explainHandler struct{}

func (explainHandler) IsSupported() bool { return false }

func (explainHandler) WrapQuery(querySQL string, opts dialect.ExplainOptions) (string, error) {
	return "", ormerr.New(ormerr.Query, "this dialect requires SET SHOWPLAN_ALL ON as a separate statement rather than a query-wrapping EXPLAIN")
}

func (explainHandler) Parse(raw string, opts dialect.ExplainOptions) (dialect.ExplainResult, error) {
	return dialect.ExplainResult{Raw: raw}, nil
}
