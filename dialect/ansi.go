package dialect

import (
	"fmt"
	"strings"

	"github.com/ormkit/ormkit/ormerr"
)

// ANSI implements the clause formatters that are identical across every
// backend family in this repo (WHERE/GROUP BY/ORDER BY/JOIN shape). A
// concrete dialect embeds ANSI and overrides only what its backend does
// differently (identifier quoting, placeholders, LIMIT/OFFSET order,
// FOR UPDATE syntax, feature handlers) — mirroring how the teacher
// centralizes per-driver differences behind a handful of functions
// (quoteIdentifier, generatePlaceholder, buildReturningClause) instead of
// scattering `switch driverName` through call sites.
type ANSI struct {
	// OffsetRequiresLimit mirrors spec §4.4's
	// supports_offset_without_limit(); some dialects (notably MySQL)
	// require a LIMIT to accompany OFFSET.
	OffsetRequiresLimit bool
}

func (a ANSI) SupportsOffsetWithoutLimit() bool { return !a.OffsetRequiresLimit }

func (a ANSI) FormatBinaryOperator(op string, leftSQL, rightSQL string, leftParams, rightParams []any) (string, []any) {
	sql := fmt.Sprintf("(%s %s %s)", leftSQL, op, rightSQL)
	params := make([]any, 0, len(leftParams)+len(rightParams))
	params = append(params, leftParams...)
	params = append(params, rightParams...)
	return sql, params
}

func (a ANSI) FormatUnaryOperator(op string, operandSQL string, position UnaryPosition, params []any) (string, []any) {
	if position == UnaryPrefix {
		return fmt.Sprintf("%s %s", op, operandSQL), params
	}
	return fmt.Sprintf("%s %s", operandSQL, op), params
}

func (a ANSI) FormatWhereClause(predicateSQL string, params []any) (string, []any) {
	if predicateSQL == "" {
		return "", nil
	}
	return "WHERE " + predicateSQL, params
}

func (a ANSI) FormatGroupByHavingClause(groupBySQL []string, havingSQL string, havingParams []any) (string, []any) {
	if len(groupBySQL) == 0 {
		return "", nil
	}
	sql := "GROUP BY " + strings.Join(groupBySQL, ", ")
	var params []any
	if havingSQL != "" {
		sql += " HAVING " + havingSQL
		params = havingParams
	}
	return sql, params
}

func (a ANSI) FormatOrderByClause(clauses []OrderByClause) (string, []any) {
	if len(clauses) == 0 {
		return "", nil
	}
	parts := make([]string, len(clauses))
	var params []any
	for i, c := range clauses {
		dir := "ASC"
		if c.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", c.SQL, dir)
		params = append(params, c.Params...)
	}
	return "ORDER BY " + strings.Join(parts, ", "), params
}

func (a ANSI) FormatLimitOffsetClause(limit, offset *int) (string, []any, error) {
	if limit == nil && offset == nil {
		return "", nil, nil
	}
	if limit == nil && offset != nil && a.OffsetRequiresLimit {
		return "", nil, ormerr.New(ormerr.Query, "OFFSET requires an accompanying LIMIT in this dialect")
	}

	var sql string
	var params []any
	if limit != nil {
		sql = "LIMIT ?"
		params = append(params, *limit)
	}
	if offset != nil {
		if sql != "" {
			sql += " OFFSET ?"
		} else {
			sql = "OFFSET ?"
		}
		params = append(params, *offset)
	}
	return sql, params, nil
}

func (a ANSI) FormatQualifyClause(predicateSQL string, params []any) (string, []any, error) {
	if predicateSQL == "" {
		return "", nil, nil
	}
	return "", nil, ormerr.New(ormerr.Query, "QUALIFY is not supported by this dialect")
}

func (a ANSI) FormatForUpdateClause(opts ForUpdateOptions) (string, error) {
	if opts.Mode == ForUpdateNone {
		return "", nil
	}
	var sql string
	switch opts.Mode {
	case ForUpdateUpdate:
		sql = "FOR UPDATE"
	case ForUpdateShare:
		sql = "FOR SHARE"
	default:
		return "", ormerr.New(ormerr.Query, "unsupported FOR UPDATE mode for this dialect")
	}
	if len(opts.Of) > 0 {
		sql += " OF " + strings.Join(opts.Of, ", ")
	}
	if opts.NoWait {
		sql += " NOWAIT"
	} else if opts.SkipLocked {
		sql += " SKIP LOCKED"
	}
	return sql, nil
}

// FormatJoinExpression assembles one join term. onParams carries every
// parameter the caller already owes this term — the join source's own
// params (e.g. a parameterized subquery) followed by the ON predicate's
// params, if any — so it is always returned verbatim regardless of which
// branch below fires; only the ON-vs-USING choice is conditional.
func (a ANSI) FormatJoinExpression(kind JoinKind, sourceSQL string, onSQL string, onParams []any, usingCols []string) (string, []any, error) {
	if onSQL != "" && len(usingCols) > 0 {
		return "", nil, ormerr.New(ormerr.Query, "JOIN cannot specify both ON and USING")
	}

	keyword, err := joinKeyword(kind)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("%s %s", keyword, sourceSQL)
	switch {
	case onSQL != "":
		sql += " ON " + onSQL
	case len(usingCols) > 0:
		sql += " USING (" + strings.Join(usingCols, ", ") + ")"
	case kind != JoinCross && kind != JoinNatural:
		return "", nil, ormerr.New(ormerr.Query, "JOIN requires an ON condition or USING column list")
	}
	return sql, onParams, nil
}

func joinKeyword(kind JoinKind) (string, error) {
	switch kind {
	case JoinInner:
		return "INNER JOIN", nil
	case JoinLeft:
		return "LEFT JOIN", nil
	case JoinRight:
		return "RIGHT JOIN", nil
	case JoinFull:
		return "FULL JOIN", nil
	case JoinCross:
		return "CROSS JOIN", nil
	case JoinNatural:
		return "NATURAL JOIN", nil
	default:
		return "", ormerr.Newf(ormerr.Query, "unknown join kind %d", kind)
	}
}

// unsupportedReturning is the ReturningHandler shared by dialects (or
// dialect/version windows) with no RETURNING support at all, e.g. MySQL.
type unsupportedReturning struct{}

func (unsupportedReturning) IsSupported() bool { return false }

func (unsupportedReturning) Render(columns []string, force bool) (string, error) {
	if !force {
		return "", ormerr.ErrReturningNotSupported
	}
	return "", nil
}

func (unsupportedReturning) Placement() ReturningPlacement { return ReturningTrailing }

// UnsupportedReturning is exported so dialect implementations can embed it
// directly instead of redefining the same two methods.
var UnsupportedReturning ReturningHandler = unsupportedReturning{}

// unsupportedCTE is the CTEHandler shared by dialects (or version windows)
// with no CTE support.
type unsupportedCTE struct{}

func (unsupportedCTE) SupportsRecursive() bool        { return false }
func (unsupportedCTE) SupportsMaterializedHint() bool { return false }
func (unsupportedCTE) SupportsMultiple() bool         { return false }
func (unsupportedCTE) SupportsInDML() bool            { return false }

func (unsupportedCTE) Render(ctes []CTEDefinition, recursive bool) (string, []any, error) {
	return "", nil, ormerr.ErrCTENotSupported
}

// UnsupportedCTE is exported so dialect implementations can embed it
// directly instead of redefining every method.
var UnsupportedCTE CTEHandler = unsupportedCTE{}

// unsupportedJSON is the JSONOperationHandler shared by dialects with no
// JSON operator support.
type unsupportedJSON struct{}

func (unsupportedJSON) IsSupported() bool { return false }

func (unsupportedJSON) Extract(columnSQL, path string) (string, []any, error) {
	return "", nil, ormerr.ErrJSONOperationNotSupported
}

func (unsupportedJSON) Contains(columnSQL string, valueParam any) (string, []any, error) {
	return "", nil, ormerr.ErrJSONOperationNotSupported
}

// UnsupportedJSON is exported so dialect implementations can embed it
// directly instead of redefining every method.
var UnsupportedJSON JSONOperationHandler = unsupportedJSON{}
