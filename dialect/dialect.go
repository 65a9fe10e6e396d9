// Package dialect renders the SQL fragments that differ between backend
// families: identifier quoting, placeholders, operator formatting, clause
// formatters, and feature handlers (RETURNING, CTE, JSON, EXPLAIN), per
// spec §4.4. Expression-tree nodes in package expr hold a Dialect and
// delegate every backend-specific decision to it.
package dialect

import (
	"strings"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/ormerr"
)

// JoinKind enumerates the join varieties package query can request.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinNatural
)

// ForUpdateMode enumerates FOR UPDATE-family locking strengths.
type ForUpdateMode int

const (
	ForUpdateNone ForUpdateMode = iota
	ForUpdateUpdate
	ForUpdateNoKeyUpdate
	ForUpdateShare
	ForUpdateKeyShare
)

// ForUpdateOptions configures the locking clause rendered by
// FormatForUpdateClause.
type ForUpdateOptions struct {
	Mode    ForUpdateMode
	NoWait  bool
	SkipLocked bool
	Of      []string // table/alias names to lock, empty means all sources
}

// ExplainOptions carries dialect-specific EXPLAIN flags. Unsupported
// options are ignored or rejected per-dialect (spec §4.6).
type ExplainOptions struct {
	Analyze  bool
	Verbose  bool
	Buffers  bool
	Format   string // "text", "json", "xml", "yaml" — dialect-dependent
}

// ExplainResult preserves both EXPLAIN's raw text and, when the dialect
// can produce one, a structured form (spec §9 Open Question 3).
type ExplainResult struct {
	Raw        string
	Structured any
}

// Dialect is the per-backend SQL rendering strategy spec §4.4 describes.
// Implementations are stateless beyond the capability set computed once
// at construction from the server version.
type Dialect interface {
	// Name identifies the dialect family, e.g. "postgres".
	Name() string

	// Placeholder returns the parameter marker for the position-th bound
	// value in a statement (1-indexed). Styles: "?" (mysql/sqlite),
	// "$1"/"$2"/... (postgres), "@p1"/"@p2"/... (mssql).
	Placeholder(position int) string

	// QuoteIdentifier quotes and escapes a column/table name. Callers
	// must validate the identifier before calling this (see backend's
	// column-name safety check); QuoteIdentifier itself only escapes.
	QuoteIdentifier(name string) string

	// Capabilities returns the capability set computed for this dialect
	// instance's server version.
	Capabilities() capability.Set

	// SupportsOffsetWithoutLimit reports whether OFFSET may appear
	// without an accompanying LIMIT.
	SupportsOffsetWithoutLimit() bool

	FormatBinaryOperator(op string, leftSQL, rightSQL string, leftParams, rightParams []any) (string, []any)
	FormatUnaryOperator(op string, operandSQL string, position UnaryPosition, params []any) (string, []any)

	FormatWhereClause(predicateSQL string, params []any) (string, []any)
	FormatGroupByHavingClause(groupBySQL []string, havingSQL string, havingParams []any) (string, []any)
	FormatOrderByClause(clauses []OrderByClause) (string, []any)
	FormatLimitOffsetClause(limit, offset *int) (string, []any, error)
	FormatQualifyClause(predicateSQL string, params []any) (string, []any, error)
	FormatForUpdateClause(opts ForUpdateOptions) (string, error)
	FormatJoinExpression(kind JoinKind, sourceSQL string, onSQL string, onParams []any, usingCols []string) (string, []any, error)

	Returning() ReturningHandler
	CTE() CTEHandler
	JSONOps() JSONOperationHandler
	Explain() ExplainHandler
}

// UnaryPosition says whether a unary operator renders before or after its
// operand ("NOT x" vs "x IS NULL").
type UnaryPosition int

const (
	UnaryPrefix UnaryPosition = iota
	UnarySuffix
)

// OrderByClause is one ORDER BY term: a rendered expression plus direction.
type OrderByClause struct {
	SQL    string
	Params []any
	Desc   bool
}

// ReturningHandler negotiates the RETURNING/OUTPUT clause (spec §4.4).
type ReturningHandler interface {
	IsSupported() bool
	// Render builds the clause for the requested raw (unquoted) column
	// names, quoting them itself via the dialect. force suppresses the
	// ReturningNotSupported error even when
	// IsSupported is false, for backends with known affected-row-count
	// imperfections (spec §9 Open Question 1); the caller is responsible
	// for logging the warning and setting QueryResult.ReturningForced.
	Render(columns []string, force bool) (string, error)
	// Placement says where the rendered clause must be spliced into the
	// statement text. Most dialects trail it; SQL Server's OUTPUT must
	// sit before VALUES/WHERE.
	Placement() ReturningPlacement
}

// ReturningPlacement says where a dialect's RETURNING/OUTPUT clause
// belongs in the rendered statement.
type ReturningPlacement int

const (
	// ReturningTrailing appends the clause at the end of the statement,
	// e.g. Postgres/SQLite's "... RETURNING col".
	ReturningTrailing ReturningPlacement = iota
	// ReturningLeading inserts the clause before VALUES on an INSERT, or
	// before WHERE on an UPDATE/DELETE, as SQL Server's OUTPUT requires.
	ReturningLeading
)

// CTEHandler assembles the WITH [RECURSIVE] prefix (spec §4.4).
type CTEHandler interface {
	SupportsRecursive() bool
	SupportsMaterializedHint() bool
	SupportsMultiple() bool
	SupportsInDML() bool
	// Render builds "WITH [RECURSIVE] name[(cols)] AS [[NOT] MATERIALIZED] (query), ..."
	Render(ctes []CTEDefinition, recursive bool) (string, []any, error)
}

// CTEDefinition is one named CTE entry.
type CTEDefinition struct {
	Name         string
	Columns      []string
	QuerySQL     string
	QueryParams  []any
	Materialized *bool // nil: no hint, true: MATERIALIZED, false: NOT MATERIALIZED
}

// JSONOperationHandler renders dialect-specific JSON operators (spec §4.4).
type JSONOperationHandler interface {
	IsSupported() bool
	Extract(columnSQL string, path string) (string, []any, error)
	Contains(columnSQL string, valueParam any) (string, []any, error)
}

// ExplainHandler renders EXPLAIN per-dialect (spec §4.4, §9 Q3).
type ExplainHandler interface {
	IsSupported() bool
	WrapQuery(querySQL string, opts ExplainOptions) (string, error)
	// Parse converts the raw driver output into an ExplainResult,
	// populating Structured only when the dialect and requested format
	// support it.
	Parse(raw string, opts ExplainOptions) (ExplainResult, error)
}

// Rebind rewrites the "?"-style placeholders emitted by package expr's
// leaf nodes into the dialect's native placeholder style, in left-to-right
// order. Expression nodes render parameter markers as a bare "?" so that
// tree construction never needs to know its position within the final
// statement; Rebind is the single point where that position is resolved,
// mirroring the teacher's own generatePlaceholder(driverName, position)
// but applied once over the assembled SQL rather than per-fragment.
// Quoted string literals are passed through untouched so a literal "?"
// inside a quoted string is never mistaken for a parameter marker.
func Rebind(d Dialect, sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	position := 0
	var quote rune
	for _, r := range sql {
		if quote != 0 {
			b.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
			b.WriteRune(r)
		case '?':
			position++
			b.WriteString(d.Placeholder(position))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RequireProtocol guards access to an optional capability protocol (spec
// §4.4): WindowFunctionDialect, CTEDialect, UpsertDialect, and friends
// below. It fails with a feature-specific ormerr.Kind, chosen by the
// caller, rather than a generic type-assertion panic.
func RequireProtocol[T any](d Dialect, featureLabel string, kind ormerr.Kind) (T, error) {
	var zero T
	typed, ok := d.(T)
	if !ok {
		return zero, ormerr.Newf(kind, "%s does not support %s", d.Name(), featureLabel)
	}
	return typed, nil
}

// Optional capability protocols a concrete Dialect may additionally
// implement. Code that needs one of these calls RequireProtocol.
type (
	WindowFunctionDialect interface {
		WindowFunctions() capability.Set
	}
	UpsertDialect interface {
		FormatUpsert(conflictTargets []string, updateColumns []string) (string, error)
	}
	LateralJoinDialect interface {
		SupportsLateral() bool
	}
	ArrayDialect interface {
		FormatArrayLiteral(elemPlaceholder string, n int) string
	}
	QualifyDialect interface {
		SupportsQualify() bool
	}
	LockingHintDialect interface {
		FormatLockingHint(opts ForUpdateOptions) (string, error)
	}
	MergeDialect interface {
		FormatMerge(targetSQL, sourceSQL, onSQL string) (string, error)
	}
	TemporalTableDialect interface {
		FormatAsOf(expr string) (string, error)
	}
	GraphQueryDialect interface {
		SupportsGraphQueries() bool
	}
)
