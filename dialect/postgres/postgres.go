// Package postgres implements the PostgreSQL dialect. It registers the
// lib/pq driver (spec's domain-stack table points at lib/pq, the same
// driver k0kubun/sqldef uses for its postgres-side DDL generation) and
// exposes PostgreSQL's native RETURNING/CTE/JSON support.
package postgres

import (
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// DriverName is the database/sql driver name registered by lib/pq.
const DriverName = "postgres"

// Dialect is PostgreSQL's rendering strategy.
type Dialect struct {
	dialect.ANSI
	version      [3]int
	capabilities capability.Set
}

// New builds a PostgreSQL dialect for the given server version
// (major, minor, patch), computing its capability set once.
func New(version [3]int) *Dialect {
	caps := capability.NewSet().
		WithSetOp(capability.AllSetOps).
		WithWindow(capability.AllWindowFunctions).
		WithCTE(capability.AllCTE).
		WithJSON(capability.JSONExtract | capability.JSONContains | capability.JSONSet | capability.JSONArrayAggregate | capability.JSONObjectAggregate | capability.JSONPathQuery).
		WithReturning(capability.ReturningBasic | capability.ReturningMultiRow | capability.ReturningComputedExpr).
		WithTransaction(capability.TransactionSavepoints | capability.TransactionIsolationLevels | capability.TransactionReadOnly | capability.TransactionDeferredConstraints).
		WithBulk(capability.BulkInsert | capability.BulkUpsert | capability.BulkCopy).
		WithJoin(capability.AllJoins | capability.JoinLateral).
		WithConstraint(capability.ConstraintForeignKey | capability.ConstraintUnique | capability.ConstraintCheck | capability.ConstraintDeferrable).
		WithGrouping(capability.GroupingSets | capability.GroupingCube | capability.GroupingRollup)

	if version[0] >= 15 {
		caps = caps.WithGrouping(capability.GroupingQualify)
	}

	return &Dialect{version: version, capabilities: caps}
}

func (d *Dialect) Name() string { return DriverName }

func (d *Dialect) Placeholder(position int) string { return fmt.Sprintf("$%d", position) }

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + escapeDoubling(name, '"') + `"`
}

func (d *Dialect) Capabilities() capability.Set { return d.capabilities }

func (d *Dialect) Returning() dialect.ReturningHandler { return returningHandler{d} }
func (d *Dialect) CTE() dialect.CTEHandler             { return cteHandler{d} }
func (d *Dialect) JSONOps() dialect.JSONOperationHandler { return jsonHandler{} }
func (d *Dialect) Explain() dialect.ExplainHandler     { return explainHandler{} }

// WindowFunctions implements dialect.WindowFunctionDialect.
func (d *Dialect) WindowFunctions() capability.Set { return d.capabilities }

// SupportsLateral implements dialect.LateralJoinDialect.
func (d *Dialect) SupportsLateral() bool { return true }

// SupportsQualify implements dialect.QualifyDialect: PostgreSQL has no
// native QUALIFY clause (unlike DuckDB/Snowflake), so QUALIFY-bearing
// queries must be rewritten by the caller into a wrapping WHERE.
func (d *Dialect) SupportsQualify() bool { return false }

// FormatUpsert implements dialect.UpsertDialect via
// INSERT ... ON CONFLICT (...) DO UPDATE SET ....
func (d *Dialect) FormatUpsert(conflictTargets []string, updateColumns []string) (string, error) {
	if len(conflictTargets) == 0 {
		return "", ormerr.New(ormerr.Query, "upsert requires at least one conflict target column")
	}
	quoted := make([]string, len(conflictTargets))
	for i, c := range conflictTargets {
		quoted[i] = d.QuoteIdentifier(c)
	}
	sql := "ON CONFLICT (" + joinComma(quoted) + ") DO "
	if len(updateColumns) == 0 {
		return sql + "NOTHING", nil
	}
	assignments := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		q := d.QuoteIdentifier(c)
		assignments[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
	}
	return sql + "UPDATE SET " + joinComma(assignments), nil
}

func escapeDoubling(s string, quote byte) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] == quote {
			out = append(out, quote)
		}
	}
	return string(out)
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
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
	return "RETURNING " + joinComma(quoted), nil
}

func (r returningHandler) Placement() dialect.ReturningPlacement { return dialect.ReturningTrailing }

type cteHandler struct{ d *Dialect }

func (c cteHandler) SupportsRecursive() bool        { return true }
func (c cteHandler) SupportsMaterializedHint() bool { return true }
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
			sql += "(" + joinComma(quoted) + ")"
		}
		sql += " AS "
		if cte.Materialized != nil {
			if *cte.Materialized {
				sql += "MATERIALIZED "
			} else {
				sql += "NOT MATERIALIZED "
			}
		}
		sql += "(" + cte.QuerySQL + ")"
		params = append(params, cte.QueryParams...)
	}
	return sql, params, nil
}

type jsonHandler struct{}

func (jsonHandler) IsSupported() bool { return true }

func (jsonHandler) Extract(columnSQL, path string) (string, []any, error) {
	return fmt.Sprintf("%s #>> ?", columnSQL), []any{path}, nil
}

func (jsonHandler) Contains(columnSQL string, valueParam any) (string, []any, error) {
	return fmt.Sprintf("%s @> ?", columnSQL), []any{valueParam}, nil
}

type explainHandler struct{}

func (explainHandler) IsSupported() bool { return true }

func (explainHandler) WrapQuery(querySQL string, opts dialect.ExplainOptions) (string, error) {
	flags := []string{}
	if opts.Analyze {
		flags = append(flags, "ANALYZE")
	}
	if opts.Verbose {
		flags = append(flags, "VERBOSE")
	}
	if opts.Buffers {
		flags = append(flags, "BUFFERS")
	}
	format := opts.Format
	if format == "" {
		format = "text"
	}
	flags = append(flags, "FORMAT "+format)
	return fmt.Sprintf("EXPLAIN (%s) %s", joinComma(flags), querySQL), nil
}

func (explainHandler) Parse(raw string, opts dialect.ExplainOptions) (dialect.ExplainResult, error) {
	result := dialect.ExplainResult{Raw: raw}
	if opts.Format == "json" {
		// PostgreSQL's FORMAT JSON returns a JSON array; callers that want
		// the structured form decode raw themselves via encoding/json to
		// avoid importing it here solely for a best-effort passthrough.
		result.Structured = raw
	}
	return result, nil
}
