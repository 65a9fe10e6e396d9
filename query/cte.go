package query

import (
	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/expr"
	"github.com/ormkit/ormkit/ormerr"
)

// WithCTE attaches a non-recursive named CTE, rendering query eagerly
// (it must compile on its own dialect/state before being embedded).
func (b *Builder) WithCTE(name string, query *Builder, columns ...string) *Builder {
	return b.withCTE(name, query, columns, nil)
}

// WithMaterializedCTE attaches a CTE with an explicit MATERIALIZED hint
// (materialized=true) or NOT MATERIALIZED (materialized=false); dialects
// that don't support the hint ignore it (spec §4.6's materialized?).
func (b *Builder) WithMaterializedCTE(name string, query *Builder, materialized bool, columns ...string) *Builder {
	return b.withCTE(name, query, columns, &materialized)
}

// WithRecursiveCTE attaches a CTE and flips the RECURSIVE flag for the
// whole statement (spec §4.6's with_recursive_cte).
func (b *Builder) WithRecursiveCTE(name string, query *Builder, columns ...string) *Builder {
	b.recursive = true
	return b.withCTE(name, query, columns, nil)
}

func (b *Builder) withCTE(name string, query *Builder, columns []string, materialized *bool) *Builder {
	sql, params, err := query.ToSQL()
	if err != nil {
		return b.fail(ormerr.Of(err), err.Error())
	}
	b.ctes = append(b.ctes, dialect.CTEDefinition{
		Name:         name,
		Columns:      columns,
		QuerySQL:     sql,
		QueryParams:  params,
		Materialized: materialized,
	})
	return b
}

// FromCTE switches the builder's FROM source to a previously-defined
// CTE by name, optionally aliased (spec §4.6's from_cte(name, alias?)).
func (b *Builder) FromCTE(name string, alias ...string) *Builder {
	if len(alias) > 0 && alias[0] != "" {
		b.from = expr.TableRefAs(name, alias[0])
		return b
	}
	b.from = expr.TableRef(name)
	return b
}

// Union/UnionAll/Intersect/Except combine two builders into a new
// builder wrapping a SetOperationQuery (spec §4.6). The operator keyword
// mirrors Go's lack of overloadable |, &, - operators for user types.
func (b *Builder) Union(other *Builder) *Builder     { return b.combine("UNION", false, other) }
func (b *Builder) UnionAll(other *Builder) *Builder  { return b.combine("UNION", true, other) }
func (b *Builder) Intersect(other *Builder) *Builder { return b.combine("INTERSECT", false, other) }
func (b *Builder) Except(other *Builder) *Builder    { return b.combine("EXCEPT", false, other) }

func (b *Builder) combine(operator string, all bool, other *Builder) *Builder {
	return &Builder{
		dial: b.dial,
		setOp: &setOperation{
			operator: operator,
			all:      all,
			left:     b,
			right:    other,
		},
	}
}

// setOpFlag maps an operator/all pair to its capability.Set flag, so
// buildExpression can gate a set operation against the dialect before
// rendering any SQL for it.
func setOpFlag(operator string, all bool) uint64 {
	switch {
	case operator == "UNION" && !all:
		return capability.SetOpUnion
	case operator == "UNION" && all:
		return capability.SetOpUnionAll
	case operator == "INTERSECT" && !all:
		return capability.SetOpIntersect
	case operator == "INTERSECT" && all:
		return capability.SetOpIntersectAll
	case operator == "EXCEPT" && !all:
		return capability.SetOpExcept
	case operator == "EXCEPT" && all:
		return capability.SetOpExceptAll
	default:
		return 0
	}
}

func setOpLabel(operator string, all bool) string {
	if all {
		return operator + " ALL"
	}
	return operator
}

// explainQuery compiles the accumulated query and wraps it with the
// dialect's EXPLAIN syntax (spec §4.6's explain(**options) plus §9 Open
// Question 3); ExplainPlan in explain.go runs and parses it.
func (b *Builder) explainQuery() (string, error) {
	sqlText, _, err := b.ToSQL()
	if err != nil {
		return "", err
	}
	handler := b.dial.Explain()
	if !handler.IsSupported() {
		return "", ormerr.Newf(ormerr.Database, "%s does not support EXPLAIN", b.dial.Name())
	}
	return handler.WrapQuery(sqlText, b.explainOpts)
}
