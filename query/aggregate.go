package query

import (
	"context"

	"github.com/ormkit/ormkit/expr"
	"github.com/ormkit/ormkit/ormerr"
)

// SelectCount/SelectSum/SelectAvg/SelectMin/SelectMax add an aggregate
// column to the select list and return the builder (spec §4.6: "used
// after group_by or alongside other aggregate expressions, adds an
// aggregate column"). Pair with GroupBy and the Aggregate() terminal.
func (b *Builder) SelectCount(col any, alias string) *Builder {
	return b.selectAggregate("COUNT", col, alias)
}
func (b *Builder) SelectSum(col any, alias string) *Builder {
	return b.selectAggregate("SUM", col, alias)
}
func (b *Builder) SelectAvg(col any, alias string) *Builder {
	return b.selectAggregate("AVG", col, alias)
}
func (b *Builder) SelectMin(col any, alias string) *Builder {
	return b.selectAggregate("MIN", col, alias)
}
func (b *Builder) SelectMax(col any, alias string) *Builder {
	return b.selectAggregate("MAX", col, alias)
}

// SelectCountAll adds COUNT(*) to the select list.
func (b *Builder) SelectCountAll(alias string) *Builder {
	b.selectList = append(b.selectList, expr.Count().As(alias))
	return b
}

func (b *Builder) selectAggregate(name string, col any, alias string) *Builder {
	v, err := toValueExpr(col)
	if err != nil {
		return b.fail(ormerr.Validation, err.Error())
	}
	b.selectList = append(b.selectList, expr.Func(name, v).As(alias))
	return b
}

// scalarColumn builds a clone of the builder whose select list is
// replaced by a single aggregate expression, for use as a terminal on a
// non-aggregate builder (spec §4.6: "executes a scalar aggregate and
// returns a value"). GroupBy must be empty — a grouped query has more
// than one output row, so a caller wanting per-group aggregates should
// use SelectCount/etc plus Aggregate() instead.
func (b *Builder) scalarClone(aggExpr expr.Expression) (*Builder, error) {
	if len(b.groupBy) > 0 {
		return nil, ormerr.New(ormerr.Validation, "scalar aggregate terminal is not valid on a GROUP BY builder; use Select<Agg> plus Aggregate()")
	}
	clone := *b
	clone.selectList = []expr.Expression{aggExpr}
	clone.orderBy = nil
	return &clone, nil
}

// Count executes COUNT(*) over the builder's FROM/WHERE/JOIN state and
// returns the scalar result.
func (b *Builder) Count(ctx context.Context, exec Executor) (int64, error) {
	clone, err := b.scalarClone(expr.Count())
	if err != nil {
		return 0, err
	}
	row, err := clone.One(ctx, exec)
	if err != nil {
		return 0, err
	}
	return firstValueAsInt64(row)
}

func (b *Builder) Sum(ctx context.Context, exec Executor, col any) (any, error) {
	return b.scalarAggregateValue(ctx, exec, "SUM", col)
}
func (b *Builder) Avg(ctx context.Context, exec Executor, col any) (any, error) {
	return b.scalarAggregateValue(ctx, exec, "AVG", col)
}
func (b *Builder) Min(ctx context.Context, exec Executor, col any) (any, error) {
	return b.scalarAggregateValue(ctx, exec, "MIN", col)
}
func (b *Builder) Max(ctx context.Context, exec Executor, col any) (any, error) {
	return b.scalarAggregateValue(ctx, exec, "MAX", col)
}

func (b *Builder) scalarAggregateValue(ctx context.Context, exec Executor, fn string, col any) (any, error) {
	v, err := toValueExpr(col)
	if err != nil {
		return nil, err
	}
	clone, err := b.scalarClone(expr.Func(fn, v))
	if err != nil {
		return nil, err
	}
	row, err := clone.One(ctx, exec)
	if err != nil {
		return nil, err
	}
	return firstValue(row), nil
}

func firstValue(row map[string]any) any {
	for _, v := range row {
		return v
	}
	return nil
}

func firstValueAsInt64(row map[string]any) (int64, error) {
	v := firstValue(row)
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, ormerr.Newf(ormerr.TypeConversion, "unexpected COUNT(*) result type %T", v)
	}
}
