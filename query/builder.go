// Package query implements the fluent query builder from spec §4.6: it
// accumulates clauses onto a Builder and compiles them into a single
// expr.Expression tree, rendered and rebound to (sql, params) by ToSQL.
// It depends only on package expr (and, structurally rather than by
// import, on whatever satisfies Executor) — never on package backend —
// so the dependency graph stays exactly "Query Builder uses Expression
// Tree" per spec §1, with the concrete *backend.Backend satisfying
// Executor purely by having matching method signatures.
package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/ormkit/ormkit"
	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/expr"
	"github.com/ormkit/ormkit/model"
	"github.com/ormkit/ormkit/ormerr"
)

// Executor is the minimal surface a compiled query needs in order to run
// itself. *backend.Backend satisfies it structurally; this package never
// imports backend, mirroring txn.Execer's same dependency-direction fix.
type Executor interface {
	FetchAll(ctx context.Context, sqlText string, params ...any) ([]map[string]any, error)
	FetchOne(ctx context.Context, sqlText string, params ...any) (map[string]any, error)
}

// orderTerm is an unrendered ORDER BY entry; rendering is deferred to
// buildExpression so every clause renders against the same dialect pass.
type orderTerm struct {
	col  expr.Expression
	desc bool
}

// setOperation captures a pending UNION/INTERSECT/EXCEPT combination of
// two builders (spec §4.6 "also returns a new SetOperationQuery").
type setOperation struct {
	operator string
	all      bool
	left     *Builder
	right    *Builder
}

// Builder accumulates the clause state spec §4.6 names and compiles it on
// demand. The zero value is not usable; construct with New or NewFrom.
type Builder struct {
	dial dialect.Dialect

	from  expr.Expression
	joins []expr.JoinClause

	selectList []expr.Expression
	where      expr.Predicate
	groupBy    []expr.Expression
	having     expr.Predicate
	qualify    expr.Predicate
	orderBy    []orderTerm
	limit      *int
	offset     *int
	forUpdate  dialect.ForUpdateOptions

	ctes      []dialect.CTEDefinition
	recursive bool
	setOp     *setOperation

	explain     bool
	explainOpts dialect.ExplainOptions

	columnAdapters map[string]model.Adapter
	factory        model.DatabaseFactory

	buildErr error
}

// New starts a builder selecting from the named table.
func New(dial dialect.Dialect, table string) *Builder {
	return NewFrom(dial, expr.TableRef(table))
}

// NewFrom starts a builder selecting from an arbitrary source (a
// subquery, a CTE reference, an aliased table).
func NewFrom(dial dialect.Dialect, source expr.Expression) *Builder {
	return &Builder{dial: dial, from: source}
}

// BindColumnAdapters attaches the model's column-name -> adapter map
// (spec §4.9's ColumnAdapterProvider), applied to rows returned by All/
// One/Aggregate.
func (b *Builder) BindColumnAdapters(adapters map[string]model.Adapter) *Builder {
	b.columnAdapters = adapters
	return b
}

// BindFactory attaches a model.DatabaseFactory so AllModels/OneModel can
// instantiate model objects instead of returning raw row maps (spec
// §4.6 "instantiate model objects for model-bound queries").
func (b *Builder) BindFactory(factory model.DatabaseFactory) *Builder {
	b.factory = factory
	return b
}

func (b *Builder) fail(kind ormerr.Kind, message string) *Builder {
	if b.buildErr == nil {
		b.buildErr = ormerr.New(kind, message)
	}
	return b
}

// toColExpr normalizes a column reference that may be a plain string
// name or an already-built expr.Expression (spec §4.6 "columns may be
// identifier strings or expression objects").
func toColExpr(col any) (expr.Expression, error) {
	switch v := col.(type) {
	case string:
		return expr.Col(v), nil
	case expr.Expression:
		return v, nil
	default:
		return nil, ormerr.Newf(ormerr.Validation, "unsupported column reference type %T", col)
	}
}

func toValueExpr(v any) (expr.ValueExpression, error) {
	switch t := v.(type) {
	case expr.ValueExpression:
		return t, nil
	case string:
		return expr.Col(t), nil
	default:
		return expr.Lit(v), nil
	}
}

func toSourceExpr(source any) (expr.Expression, error) {
	switch v := source.(type) {
	case string:
		return expr.TableRef(v), nil
	case expr.Expression:
		return v, nil
	default:
		return nil, ormerr.Newf(ormerr.Validation, "unsupported join/from source type %T", source)
	}
}

// Select replaces the select list. Columns may be strings or
// expr.Expression values; an empty call clears back to the implicit
// wildcard.
func (b *Builder) Select(cols ...any) *Builder {
	list, err := b.toColExprs(cols)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	b.selectList = list
	return b
}

// SelectAppend extends the select list instead of replacing it (spec
// §4.6 select(*columns, append=true)).
func (b *Builder) SelectAppend(cols ...any) *Builder {
	list, err := b.toColExprs(cols)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	b.selectList = append(b.selectList, list...)
	return b
}

func (b *Builder) toColExprs(cols []any) ([]expr.Expression, error) {
	out := make([]expr.Expression, 0, len(cols))
	for _, c := range cols {
		e, err := toColExpr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Where ANDs a predicate onto the accumulating WHERE clause. cond may be
// an expr.Predicate or a raw SQL string with positional "?" params (spec
// §4.6: "a string condition is wrapped in a RawSQLPredicate").
func (b *Builder) Where(cond any, params ...any) *Builder {
	pred, err := toPredicate(cond, params)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	if b.where == nil {
		b.where = pred
	} else {
		b.where = expr.And(b.where, pred)
	}
	return b
}

func toPredicate(cond any, params []any) (expr.Predicate, error) {
	switch v := cond.(type) {
	case string:
		return expr.RawPred(v, params...), nil
	case expr.Predicate:
		return v, nil
	default:
		return nil, ormerr.Newf(ormerr.Validation, "unsupported where condition type %T", cond)
	}
}

// WhereEq is a convenience shortcut for Where(column.Eq(value)).
func (b *Builder) WhereEq(col, value any) *Builder  { return b.whereCompare(col, value, expr.Eq) }
func (b *Builder) WhereNeq(col, value any) *Builder { return b.whereCompare(col, value, expr.Neq) }
func (b *Builder) WhereGt(col, value any) *Builder  { return b.whereCompare(col, value, expr.Gt) }
func (b *Builder) WhereGte(col, value any) *Builder { return b.whereCompare(col, value, expr.Gte) }
func (b *Builder) WhereLt(col, value any) *Builder  { return b.whereCompare(col, value, expr.Lt) }
func (b *Builder) WhereLte(col, value any) *Builder { return b.whereCompare(col, value, expr.Lte) }

func (b *Builder) whereCompare(col, value any, op func(l, r expr.ValueExpression) expr.Predicate) *Builder {
	l, err := toValueExpr(col)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	r, err := toValueExpr(value)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	return b.Where(op(l, r))
}

// WhereInList/WhereNotIn/WhereBetween/WhereNotBetween/WhereLike/
// WhereILike/WhereIsNull/WhereIsNotNull are the range-helper shortcuts
// spec §4.6 lists alongside the builder's comparison helpers.
func (b *Builder) WhereInList(col any, values ...any) *Builder {
	l, vs, err := b.prepareSet(col, values)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	return b.Where(expr.In(l, vs...))
}

func (b *Builder) WhereNotIn(col any, values ...any) *Builder {
	l, vs, err := b.prepareSet(col, values)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	return b.Where(expr.NotIn(l, vs...))
}

func (b *Builder) prepareSet(col any, values []any) (expr.ValueExpression, []expr.ValueExpression, error) {
	l, err := toValueExpr(col)
	if err != nil {
		return nil, nil, err
	}
	vs := make([]expr.ValueExpression, len(values))
	for i, v := range values {
		ve, err := toValueExpr(v)
		if err != nil {
			return nil, nil, err
		}
		vs[i] = ve
	}
	return l, vs, nil
}

func (b *Builder) WhereBetween(col, low, high any) *Builder {
	return b.whereRange(col, low, high, expr.Between)
}

func (b *Builder) WhereNotBetween(col, low, high any) *Builder {
	return b.whereRange(col, low, high, expr.NotBetween)
}

func (b *Builder) whereRange(col, low, high any, op func(operand, low, high expr.ValueExpression) expr.Predicate) *Builder {
	c, err := toValueExpr(col)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	l, err := toValueExpr(low)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	h, err := toValueExpr(high)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	return b.Where(op(c, l, h))
}

func (b *Builder) WhereLike(col, pattern any) *Builder  { return b.whereLike(col, pattern, expr.Like) }
func (b *Builder) WhereILike(col, pattern any) *Builder { return b.whereLike(col, pattern, expr.ILike) }

func (b *Builder) whereLike(col, pattern any, op func(operand, pattern expr.ValueExpression) expr.Predicate) *Builder {
	c, err := toValueExpr(col)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	p, err := toValueExpr(pattern)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	return b.Where(op(c, p))
}

func (b *Builder) WhereIsNull(col any) *Builder    { return b.whereNullness(col, expr.IsNull) }
func (b *Builder) WhereIsNotNull(col any) *Builder { return b.whereNullness(col, expr.IsNotNull) }

func (b *Builder) whereNullness(col any, op func(operand expr.ValueExpression) expr.Predicate) *Builder {
	c, err := toValueExpr(col)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	return b.Where(op(c))
}

// groupByAliasSuffix strips a trailing "AS alias" from a raw column
// string (spec §4.6: "Strips AS <alias> and logs a warning — aliases
// are not valid in GROUP BY").
var groupByAliasSuffix = regexp.MustCompile(`(?i)\s+AS\s+[\w"` + "`" + `]+\s*$`)

// GroupBy replaces the GROUP BY column list. String columns carrying a
// trailing alias have it stripped with a logged warning.
func (b *Builder) GroupBy(cols ...any) *Builder {
	list := make([]expr.Expression, 0, len(cols))
	for _, c := range cols {
		if s, ok := c.(string); ok {
			if stripped := groupByAliasSuffix.ReplaceAllString(s, ""); stripped != s {
				ormkit.GetLogger().Warn("stripping alias from GROUP BY column", "original", s, "stripped", stripped)
				s = stripped
			}
			list = append(list, expr.Col(s))
			continue
		}
		e, err := toColExpr(c)
		if err != nil {
			return b.fail(ormerr.Validation, err.Error())
		}
		list = append(list, e)
	}
	b.groupBy = list
	return b
}

// Having ANDs a predicate onto the HAVING clause. Per spec §4.6 this is
// validated at build time: calling Having before GroupBy raises a
// Validation error rather than waiting for render/execute.
func (b *Builder) Having(cond any, params ...any) *Builder {
	if len(b.groupBy) == 0 {
		return b.fail(ormerr.Validation, "HAVING requires a prior GROUP BY")
	}
	pred, err := toPredicate(cond, params)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	if b.having == nil {
		b.having = pred
	} else {
		b.having = expr.And(b.having, pred)
	}
	return b
}

// Qualify ANDs a predicate onto the QUALIFY clause (spec §4.5), used to
// filter on a window function's result without a wrapping subquery.
// Dialects without QUALIFY (everything but Snowflake/DuckDB-style SQL)
// raise a Query error at render time via FormatQualifyClause.
func (b *Builder) Qualify(cond any, params ...any) *Builder {
	pred, err := toPredicate(cond, params)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	if b.qualify == nil {
		b.qualify = pred
	} else {
		b.qualify = expr.And(b.qualify, pred)
	}
	return b
}

// Asc/Desc build ORDER BY terms for OrderBy.
type OrderTerm struct {
	Col  any
	Desc bool
}

func Asc(col any) OrderTerm  { return OrderTerm{Col: col} }
func Desc(col any) OrderTerm { return OrderTerm{Col: col, Desc: true} }

// OrderBy appends ORDER BY terms.
func (b *Builder) OrderBy(terms ...OrderTerm) *Builder {
	for _, t := range terms {
		e, err := toColExpr(t.Col)
		if err != nil {
			return b.fail(ormerr.Validation, err.Error())
		}
		b.orderBy = append(b.orderBy, orderTerm{col: e, desc: t.Desc})
	}
	return b
}

// Limit sets the LIMIT clause.
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset sets the OFFSET clause. Combining OFFSET without a LIMIT on a
// dialect that requires one is a build-time Validation error (spec §4.6
// failure semantics), raised at ToSQL rather than deferred to the
// database round trip.
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// ForUpdate sets the row-locking clause appended after ORDER BY/LIMIT.
func (b *Builder) ForUpdate(opts dialect.ForUpdateOptions) *Builder {
	b.forUpdate = opts
	return b
}

// Explain flips the explain flag; subsequent terminals return the query
// plan rather than rows (spec §4.6).
func (b *Builder) Explain(opts dialect.ExplainOptions) *Builder {
	b.explain = true
	b.explainOpts = opts
	return b
}

// --- Joins --------------------------------------------------------------

// Join appends a join term with an ON predicate.
func (b *Builder) Join(kind dialect.JoinKind, source any, on expr.Predicate) *Builder {
	src, err := toSourceExpr(source)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	b.joins = append(b.joins, expr.JoinClause{Kind: kind, Source: src, On: on})
	return b
}

// JoinUsing appends a join term with a USING column list (mutually
// exclusive with an ON predicate, spec §4.6).
func (b *Builder) JoinUsing(kind dialect.JoinKind, source any, using ...string) *Builder {
	src, err := toSourceExpr(source)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	b.joins = append(b.joins, expr.JoinClause{Kind: kind, Source: src, Using: using})
	return b
}

func (b *Builder) InnerJoin(source any, on expr.Predicate) *Builder {
	return b.Join(dialect.JoinInner, source, on)
}
func (b *Builder) LeftJoin(source any, on expr.Predicate) *Builder {
	return b.Join(dialect.JoinLeft, source, on)
}
func (b *Builder) RightJoin(source any, on expr.Predicate) *Builder {
	return b.Join(dialect.JoinRight, source, on)
}
func (b *Builder) FullJoin(source any, on expr.Predicate) *Builder {
	return b.Join(dialect.JoinFull, source, on)
}
func (b *Builder) CrossJoin(source any) *Builder {
	return b.Join(dialect.JoinCross, source, nil)
}
func (b *Builder) NaturalJoin(source any) *Builder {
	return b.Join(dialect.JoinNatural, source, nil)
}

// --- Compilation ----------------------------------------------------------

// validate enforces spec §4.6's build-time failure semantics: invalid
// builder composition is reported here, before any SQL reaches a driver.
func (b *Builder) validate() error {
	if b.buildErr != nil {
		return b.buildErr
	}
	if b.having != nil && len(b.groupBy) == 0 {
		return ormerr.New(ormerr.Validation, "HAVING requires a prior GROUP BY")
	}
	if b.offset != nil && b.limit == nil && !b.dial.SupportsOffsetWithoutLimit() {
		return ormerr.Newf(ormerr.Validation, "%s requires LIMIT when OFFSET is set", b.dial.Name())
	}
	return nil
}

// buildExpression assembles the accumulated state into a single
// expr.Expression, without touching a driver.
func (b *Builder) buildExpression() (expr.Expression, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.setOp != nil {
		if !b.dial.Capabilities().SupportsSetOp(setOpFlag(b.setOp.operator, b.setOp.all)) {
			return nil, ormerr.Newf(ormerr.SetOperationNotSupported, "%s does not support %s", b.dial.Name(), setOpLabel(b.setOp.operator, b.setOp.all))
		}
		leftExpr, err := b.setOp.left.buildExpression()
		if err != nil {
			return nil, err
		}
		rightExpr, err := b.setOp.right.buildExpression()
		if err != nil {
			return nil, err
		}
		return expr.SetOperationExpression{
			Operator: b.setOp.operator,
			All:      b.setOp.all,
			Left:     leftExpr,
			Right:    rightExpr,
		}, nil
	}

	orderBy := make([]dialect.OrderByClause, 0, len(b.orderBy))
	for _, t := range b.orderBy {
		sql, params, err := t.col.Render(b.dial)
		if err != nil {
			return nil, err
		}
		orderBy = append(orderBy, dialect.OrderByClause{SQL: sql, Params: params, Desc: t.desc})
	}

	query := expr.QueryExpression{
		SelectList: b.selectList,
		From:       b.from,
		Joins:      b.joins,
		Where:      b.where,
		GroupBy:    b.groupBy,
		Having:     b.having,
		Qualify:    b.qualify,
		OrderBy:    orderBy,
		Limit:      b.limit,
		Offset:     b.offset,
		ForUpdate:  b.forUpdate,
	}

	if len(b.ctes) == 0 {
		return query, nil
	}
	return expr.WithQueryExpression{CTEs: b.ctes, Recursive: b.recursive, Inner: query}, nil
}

// ToSQL compiles the builder into (sql, params), rebinding "?"
// placeholders into the dialect's native style. This is the terminal
// spec §4.6 names "to_sql()".
func (b *Builder) ToSQL() (string, []any, error) {
	e, err := b.buildExpression()
	if err != nil {
		return "", nil, err
	}
	sql, params, err := e.Render(b.dial)
	if err != nil {
		return "", nil, err
	}
	return dialect.Rebind(b.dial, sql), params, nil
}

// withLimitForOne clones the builder's clause state with LIMIT forced to
// 1 "for rendering only" (spec §4.6: "does not mutate the builder's
// limit").
func (b *Builder) withLimitForOne() *Builder {
	if b.setOp != nil {
		return b
	}
	clone := *b
	one := 1
	clone.limit = &one
	return &clone
}

func (b *Builder) adaptRow(row map[string]any) (map[string]any, error) {
	if len(b.columnAdapters) == 0 {
		return row, nil
	}
	for col, a := range b.columnAdapters {
		key := strings.ToLower(col)
		v, ok := row[key]
		if !ok {
			continue
		}
		adapted, err := a.FromDB(v)
		if err != nil {
			return nil, ormerr.Wrap(ormerr.TypeConversion, "adapt column "+col, err)
		}
		row[key] = adapted
	}
	return row, nil
}

// All executes the query and returns every row, adapted via the bound
// column-adapter map if one was set (spec §4.6's all() terminal for
// CTE/set-op or otherwise non-model-bound queries).
func (b *Builder) All(ctx context.Context, exec Executor) ([]map[string]any, error) {
	if b.explain {
		return nil, ormerr.New(ormerr.Validation, "call Explain terminal, not All, on an explain-flagged builder")
	}
	sqlText, params, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := exec.FetchAll(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		adapted, err := b.adaptRow(row)
		if err != nil {
			return nil, err
		}
		rows[i] = adapted
	}
	return rows, nil
}

// One executes the query with LIMIT 1 appended for rendering only, per
// spec §4.6, returning ormerr.ErrRecordNotFound when no row matches.
func (b *Builder) One(ctx context.Context, exec Executor) (map[string]any, error) {
	if b.explain {
		return nil, ormerr.New(ormerr.Validation, "call Explain terminal, not One, on an explain-flagged builder")
	}
	sqlText, params, err := b.withLimitForOne().ToSQL()
	if err != nil {
		return nil, err
	}
	row, err := exec.FetchOne(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	return b.adaptRow(row)
}

// AllModels is All, additionally instantiating each row through the
// bound model.DatabaseFactory (spec §4.6: "instantiate model objects for
// model-bound queries"). Returns a Validation error if no factory was
// bound via BindFactory.
func (b *Builder) AllModels(ctx context.Context, exec Executor) ([]any, error) {
	if b.factory == nil {
		return nil, ormerr.New(ormerr.Validation, "AllModels requires a factory bound via BindFactory")
	}
	rows, err := b.All(ctx, exec)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, err := b.factory.CreateFromDatabase(row)
		if err != nil {
			return nil, ormerr.Wrap(ormerr.Query, "instantiate model from row", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// OneModel is One, instantiating the row through the bound factory.
func (b *Builder) OneModel(ctx context.Context, exec Executor) (any, error) {
	if b.factory == nil {
		return nil, ormerr.New(ormerr.Validation, "OneModel requires a factory bound via BindFactory")
	}
	row, err := b.One(ctx, exec)
	if err != nil {
		return nil, err
	}
	return b.factory.CreateFromDatabase(row)
}

// Aggregate is the terminal for GROUP BY / aggregate-column / set-
// operation queries (spec §4.6): always returns a row list, possibly of
// length 1 for scalar shapes.
func (b *Builder) Aggregate(ctx context.Context, exec Executor) ([]map[string]any, error) {
	return b.All(ctx, exec)
}
