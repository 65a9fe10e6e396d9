// Package expr implements the expression tree from spec §4.5: typed
// nodes that each render to a (SQL fragment, parameter tuple) pair via a
// supplied dialect. Every parameter leaf renders a bare "?" placeholder
// regardless of the target dialect; dialect.Rebind resolves those into
// the dialect's native placeholder style once the full statement is
// assembled, mirroring the teacher's generatePlaceholder(driverName,
// position) but as a single final pass instead of one call per fragment.
package expr

import (
	"fmt"
	"strings"

	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// Expression is the root node contract (spec §4.5): render to a SQL
// fragment plus its parameter tuple, in left-to-right traversal order.
type Expression interface {
	Render(d dialect.Dialect) (string, []any, error)
}

// Predicate is an Expression known to yield a boolean (WHERE/HAVING/ON/
// QUALIFY-usable). The marker method exists only to keep predicates and
// plain value expressions from being accidentally interchanged by the
// query builder.
type Predicate interface {
	Expression
	isPredicate()
}

// ValueExpression yields a non-boolean value and carries the chaining
// combinator methods (spec §9: "without operator overloading, provide
// named combinators... plus convenience operator-like methods for Go
// callers who prefer chaining"). Every concrete leaf/node type below
// embeds chain to pick these up, rather than modeling spec's
// Comparable/StringExpression subclasses as distinct Go interfaces —
// Go's composition does not give us free subtype-scoped methods, and
// gating BETWEEN/LIKE to "string-shaped" values only could not be
// enforced by the type system anyway, so every value expression gets
// the full combinator set.
type ValueExpression interface {
	Expression
	isValueExpression()
}

// chain implements ValueExpression's combinator methods once and is
// embedded by every concrete value-producing node. self must be set to
// the embedding value at construction time so method receivers see the
// fully-formed node instead of chain's zero value.
type chain struct {
	self ValueExpression
}

func (c chain) isValueExpression() {}

func (c chain) Eq(rhs ValueExpression) Predicate  { return Eq(c.self, rhs) }
func (c chain) Neq(rhs ValueExpression) Predicate { return Neq(c.self, rhs) }
func (c chain) Gt(rhs ValueExpression) Predicate  { return Gt(c.self, rhs) }
func (c chain) Gte(rhs ValueExpression) Predicate { return Gte(c.self, rhs) }
func (c chain) Lt(rhs ValueExpression) Predicate  { return Lt(c.self, rhs) }
func (c chain) Lte(rhs ValueExpression) Predicate { return Lte(c.self, rhs) }

func (c chain) In(values ...ValueExpression) Predicate    { return In(c.self, values...) }
func (c chain) NotIn(values ...ValueExpression) Predicate { return NotIn(c.self, values...) }

func (c chain) Between(low, high ValueExpression) Predicate    { return Between(c.self, low, high) }
func (c chain) NotBetween(low, high ValueExpression) Predicate { return NotBetween(c.self, low, high) }

func (c chain) Like(pattern ValueExpression) Predicate  { return Like(c.self, pattern) }
func (c chain) ILike(pattern ValueExpression) Predicate { return ILike(c.self, pattern) }

func (c chain) IsNull() Predicate    { return IsNull(c.self) }
func (c chain) IsNotNull() Predicate { return IsNotNull(c.self) }

func (c chain) Add(rhs ValueExpression) ValueExpression { return Arithmetic("+", c.self, rhs) }
func (c chain) Sub(rhs ValueExpression) ValueExpression { return Arithmetic("-", c.self, rhs) }
func (c chain) Mul(rhs ValueExpression) ValueExpression { return Arithmetic("*", c.self, rhs) }
func (c chain) Div(rhs ValueExpression) ValueExpression { return Arithmetic("/", c.self, rhs) }
func (c chain) Mod(rhs ValueExpression) ValueExpression { return Arithmetic("%", c.self, rhs) }

// --- Leaf nodes -------------------------------------------------------

// Column references a table column, optionally table-qualified.
type Column struct {
	chain
	Qualifier string
	Name      string
}

// Col builds an unqualified column reference.
func Col(name string) Column {
	c := Column{Name: name}
	c.chain.self = c
	return c
}

// QualifiedCol builds a table- or alias-qualified column reference.
func QualifiedCol(qualifier, name string) Column {
	c := Column{Qualifier: qualifier, Name: name}
	c.chain.self = c
	return c
}

func (c Column) Render(d dialect.Dialect) (string, []any, error) {
	if c.Qualifier == "" {
		return d.QuoteIdentifier(c.Name), nil, nil
	}
	return d.QuoteIdentifier(c.Qualifier) + "." + d.QuoteIdentifier(c.Name), nil, nil
}

// Literal is a bound value rendered as a single parameter placeholder.
type Literal struct {
	chain
	Value any
}

// Lit wraps a Go value as a bound parameter.
func Lit(value any) Literal {
	l := Literal{Value: value}
	l.chain.self = l
	return l
}

func (l Literal) Render(d dialect.Dialect) (string, []any, error) {
	return "?", []any{l.Value}, nil
}

// Wildcard renders the SELECT-list "*" verbatim, with no parameter slot
// (spec §4.5 edge case: never a Literal("*")).
type Wildcard struct{}

func (Wildcard) Render(d dialect.Dialect) (string, []any, error) { return "*", nil, nil }

// RawSQL emits verbatim SQL text with out-of-band parameters, for
// fragments the tree has no dedicated node for. It satisfies both
// ValueExpression and Predicate.
type RawSQL struct {
	chain
	SQL    string
	Params []any
}

// Raw wraps a verbatim SQL fragment as a value expression.
func Raw(sql string, params ...any) RawSQL {
	r := RawSQL{SQL: sql, Params: params}
	r.chain.self = r
	return r
}

func (r RawSQL) Render(d dialect.Dialect) (string, []any, error) { return r.SQL, r.Params, nil }

// RawPredicate wraps verbatim SQL as a boolean-valued predicate (the
// query builder's where(raw_sql, params) path per spec §4.6).
type RawPredicate struct {
	SQL    string
	Params []any
}

func RawPred(sql string, params ...any) RawPredicate { return RawPredicate{SQL: sql, Params: params} }

func (RawPredicate) isPredicate() {}

func (r RawPredicate) Render(d dialect.Dialect) (string, []any, error) { return r.SQL, r.Params, nil }

// Table references a table or aliased source by name.
type Table struct {
	Name  string
	Alias string
}

func TableRef(name string) Table               { return Table{Name: name} }
func TableRefAs(name, alias string) Table      { return Table{Name: name, Alias: alias} }

func (t Table) Render(d dialect.Dialect) (string, []any, error) {
	sql := d.QuoteIdentifier(t.Name)
	if t.Alias != "" {
		sql += " AS " + d.QuoteIdentifier(t.Alias)
	}
	return sql, nil, nil
}

// Subquery wraps a nested Expression (typically a *Query) as a query
// source, parenthesizing it and applying an optional alias.
type Subquery struct {
	Inner Expression
	Alias string
}

func SubqueryAs(inner Expression, alias string) Subquery { return Subquery{Inner: inner, Alias: alias} }

func (s Subquery) Render(d dialect.Dialect) (string, []any, error) {
	sql, params, err := s.Inner.Render(d)
	if err != nil {
		return "", nil, err
	}
	rendered := "(" + sql + ")"
	if s.Alias != "" {
		rendered += " AS " + d.QuoteIdentifier(s.Alias)
	}
	return rendered, params, nil
}

// --- Binary/unary operators --------------------------------------------

// BinaryExpression renders two operands joined by an operator, delegating
// to the dialect's binary-operator formatter.
type BinaryExpression struct {
	Op          string
	Left, Right Expression
}

func (b BinaryExpression) Render(d dialect.Dialect) (string, []any, error) {
	leftSQL, leftParams, err := b.Left.Render(d)
	if err != nil {
		return "", nil, err
	}
	rightSQL, rightParams, err := b.Right.Render(d)
	if err != nil {
		return "", nil, err
	}
	sql, params := d.FormatBinaryOperator(b.Op, leftSQL, rightSQL, leftParams, rightParams)
	return sql, params, nil
}

// BinaryArithmeticExpression is a BinaryExpression whose result is a
// value (not a predicate) — e.g. `quantity * unit_price`.
type BinaryArithmeticExpression struct {
	chain
	BinaryExpression
}

// Arithmetic builds a chainable arithmetic value expression.
func Arithmetic(op string, left, right ValueExpression) BinaryArithmeticExpression {
	a := BinaryArithmeticExpression{BinaryExpression: BinaryExpression{Op: op, Left: left, Right: right}}
	a.chain.self = a
	return a
}

func (a BinaryArithmeticExpression) Render(d dialect.Dialect) (string, []any, error) {
	return a.BinaryExpression.Render(d)
}

// UnaryExpression renders a single operand with a prefix/suffix operator.
type UnaryExpression struct {
	Op       string
	Operand  Expression
	Position dialect.UnaryPosition
}

func (u UnaryExpression) Render(d dialect.Dialect) (string, []any, error) {
	sql, params, err := u.Operand.Render(d)
	if err != nil {
		return "", nil, err
	}
	renderedSQL, renderedParams := d.FormatUnaryOperator(u.Op, sql, u.Position, params)
	return renderedSQL, renderedParams, nil
}

// --- Predicates ---------------------------------------------------------

// ComparisonPredicate compares two value expressions.
type ComparisonPredicate struct {
	BinaryExpression
}

func (ComparisonPredicate) isPredicate() {}

func comparison(op string, left, right ValueExpression) ComparisonPredicate {
	return ComparisonPredicate{BinaryExpression{Op: op, Left: left, Right: right}}
}

func Eq(left, right ValueExpression) Predicate  { return comparison("=", left, right) }
func Neq(left, right ValueExpression) Predicate { return comparison("<>", left, right) }
func Gt(left, right ValueExpression) Predicate  { return comparison(">", left, right) }
func Gte(left, right ValueExpression) Predicate { return comparison(">=", left, right) }
func Lt(left, right ValueExpression) Predicate  { return comparison("<", left, right) }
func Lte(left, right ValueExpression) Predicate { return comparison("<=", left, right) }

// IsNullPredicate renders `operand IS [NOT] NULL`.
type IsNullPredicate struct {
	Operand Expression
	Negate  bool
}

func (IsNullPredicate) isPredicate() {}

func IsNull(operand ValueExpression) Predicate    { return IsNullPredicate{Operand: operand} }
func IsNotNull(operand ValueExpression) Predicate { return IsNullPredicate{Operand: operand, Negate: true} }

func (p IsNullPredicate) Render(d dialect.Dialect) (string, []any, error) {
	sql, params, err := p.Operand.Render(d)
	if err != nil {
		return "", nil, err
	}
	op := "IS NULL"
	if p.Negate {
		op = "IS NOT NULL"
	}
	renderedSQL, renderedParams := d.FormatUnaryOperator(op, sql, dialect.UnarySuffix, params)
	return renderedSQL, renderedParams, nil
}

// InPredicate renders `operand [NOT] IN (set)`. An empty set renders as
// the dialect-deterministic "always false"/"always true" form (spec §9
// Open Question 2) rather than emitting invalid `IN ()` SQL.
type InPredicate struct {
	Operand ValueExpression
	Set     []ValueExpression
	Negate  bool
}

func (InPredicate) isPredicate() {}

func In(operand ValueExpression, values ...ValueExpression) Predicate {
	return InPredicate{Operand: operand, Set: values}
}

func NotIn(operand ValueExpression, values ...ValueExpression) Predicate {
	return InPredicate{Operand: operand, Set: values, Negate: true}
}

func (p InPredicate) Render(d dialect.Dialect) (string, []any, error) {
	if len(p.Set) == 0 {
		if p.Negate {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}
	operandSQL, operandParams, err := p.Operand.Render(d)
	if err != nil {
		return "", nil, err
	}
	members := make([]string, len(p.Set))
	params := append([]any{}, operandParams...)
	for i, v := range p.Set {
		sql, memberParams, err := v.Render(d)
		if err != nil {
			return "", nil, err
		}
		members[i] = sql
		params = append(params, memberParams...)
	}
	keyword := "IN"
	if p.Negate {
		keyword = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", operandSQL, keyword, strings.Join(members, ", ")), params, nil
}

// BetweenPredicate renders `operand [NOT] BETWEEN low AND high`.
type BetweenPredicate struct {
	Operand    ValueExpression
	Low, High  ValueExpression
	Negate     bool
}

func (BetweenPredicate) isPredicate() {}

func Between(operand, low, high ValueExpression) Predicate {
	return BetweenPredicate{Operand: operand, Low: low, High: high}
}

func NotBetween(operand, low, high ValueExpression) Predicate {
	return BetweenPredicate{Operand: operand, Low: low, High: high, Negate: true}
}

func (p BetweenPredicate) Render(d dialect.Dialect) (string, []any, error) {
	operandSQL, operandParams, err := p.Operand.Render(d)
	if err != nil {
		return "", nil, err
	}
	lowSQL, lowParams, err := p.Low.Render(d)
	if err != nil {
		return "", nil, err
	}
	highSQL, highParams, err := p.High.Render(d)
	if err != nil {
		return "", nil, err
	}
	keyword := "BETWEEN"
	if p.Negate {
		keyword = "NOT BETWEEN"
	}
	params := append([]any{}, operandParams...)
	params = append(params, lowParams...)
	params = append(params, highParams...)
	return fmt.Sprintf("%s %s %s AND %s", operandSQL, keyword, lowSQL, highSQL), params, nil
}

// Like/ILike treat the pattern as a bound parameter, never a literal
// (spec §4.5 edge case); escaping wildcard metacharacters is the
// caller's responsibility.
func Like(operand ValueExpression, pattern ValueExpression) Predicate {
	return comparisonLike("LIKE", operand, pattern)
}

func ILike(operand ValueExpression, pattern ValueExpression) Predicate {
	return comparisonLike("ILIKE", operand, pattern)
}

func comparisonLike(op string, operand, pattern ValueExpression) Predicate {
	return ComparisonPredicate{BinaryExpression{Op: op, Left: operand, Right: pattern}}
}

// LogicalPredicate joins one or more predicates with AND/OR, or negates a
// single one.
type LogicalPredicate struct {
	Connective string // "AND", "OR", "NOT"
	Operands   []Predicate
}

func (LogicalPredicate) isPredicate() {}

func And(operands ...Predicate) Predicate { return LogicalPredicate{Connective: "AND", Operands: operands} }
func Or(operands ...Predicate) Predicate  { return LogicalPredicate{Connective: "OR", Operands: operands} }
func Not(operand Predicate) Predicate {
	return LogicalPredicate{Connective: "NOT", Operands: []Predicate{operand}}
}

func (p LogicalPredicate) Render(d dialect.Dialect) (string, []any, error) {
	if len(p.Operands) == 0 {
		return "", nil, ormerr.New(ormerr.Query, "logical predicate requires at least one operand")
	}
	if p.Connective == "NOT" {
		sql, params, err := p.Operands[0].Render(d)
		if err != nil {
			return "", nil, err
		}
		renderedSQL, renderedParams := d.FormatUnaryOperator("NOT", sql, dialect.UnaryPrefix, params)
		return renderedSQL, renderedParams, nil
	}
	parts := make([]string, len(p.Operands))
	var params []any
	for i, op := range p.Operands {
		sql, opParams, err := op.Render(d)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, opParams...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	joiner := " " + p.Connective + " "
	return "(" + strings.Join(parts, joiner) + ")", params, nil
}
