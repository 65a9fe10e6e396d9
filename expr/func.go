package expr

import "github.com/ormkit/ormkit/dialect"

// FuncCall renders a single-argument SQL function call, e.g. SUM(amount)
// or MAX(created_at), with an optional DISTINCT modifier and column
// alias. The query builder's aggregate helpers (spec §4.6 count/sum/
// avg/min/max) build these rather than ad hoc RawSQL so the alias and
// DISTINCT keyword stay structured through rendering.
type FuncCall struct {
	chain
	Name     string
	Arg      ValueExpression
	Distinct bool
	Alias    string
}

// Func builds a plain function call over a single argument.
func Func(name string, arg ValueExpression) FuncCall {
	f := FuncCall{Name: name, Arg: arg}
	f.chain.self = f
	return f
}

// FuncDistinct builds a function call with a DISTINCT argument, e.g.
// COUNT(DISTINCT customer_id).
func FuncDistinct(name string, arg ValueExpression) FuncCall {
	f := FuncCall{Name: name, Arg: arg, Distinct: true}
	f.chain.self = f
	return f
}

// As attaches a column alias, returning a new FuncCall.
func (f FuncCall) As(alias string) FuncCall {
	f.Alias = alias
	f.chain.self = f
	return f
}

func (f FuncCall) Render(d dialect.Dialect) (string, []any, error) {
	argSQL, params, err := f.Arg.Render(d)
	if err != nil {
		return "", nil, err
	}
	distinct := ""
	if f.Distinct {
		distinct = "DISTINCT "
	}
	sql := f.Name + "(" + distinct + argSQL + ")"
	if f.Alias != "" {
		sql += " AS " + d.QuoteIdentifier(f.Alias)
	}
	return sql, params, nil
}

// CountAll renders COUNT(*), since "*" has no ValueExpression shape of
// its own (Wildcard is select-list only, spec §4.5 edge case).
type CountAll struct {
	chain
	Alias string
}

// Count builds a COUNT(*) expression.
func Count() CountAll {
	c := CountAll{}
	c.chain.self = c
	return c
}

func (c CountAll) As(alias string) CountAll {
	c.Alias = alias
	c.chain.self = c
	return c
}

func (c CountAll) Render(d dialect.Dialect) (string, []any, error) {
	sql := "COUNT(*)"
	if c.Alias != "" {
		sql += " AS " + d.QuoteIdentifier(c.Alias)
	}
	return sql, nil, nil
}
