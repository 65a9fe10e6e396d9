package expr

import (
	"strings"

	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// JoinClause is one join term: a source joined to the accumulating FROM
// clause via dialect.FormatJoinExpression.
type JoinClause struct {
	Kind      dialect.JoinKind
	Source    Expression
	On        Predicate
	Using     []string
}

// QueryExpression composes a single SELECT statement: the clause order
// in rendered SQL is fixed per spec §4.6 — WITH is applied by wrapping
// in a WithQueryExpression; this node covers SELECT through FOR UPDATE.
type QueryExpression struct {
	SelectList    []Expression
	From          Expression
	Joins         []JoinClause
	Where         Predicate
	GroupBy       []Expression
	Having        Predicate
	Qualify       Predicate
	OrderBy       []dialect.OrderByClause
	Limit, Offset *int
	ForUpdate     dialect.ForUpdateOptions
}

func (q QueryExpression) Render(d dialect.Dialect) (string, []any, error) {
	var params []any

	selectSQL, selectParams, err := renderSelectList(d, q.SelectList)
	if err != nil {
		return "", nil, err
	}
	params = append(params, selectParams...)

	fromSQL, fromParams, err := q.From.Render(d)
	if err != nil {
		return "", nil, err
	}
	params = append(params, fromParams...)

	sql := "SELECT " + selectSQL + " FROM " + fromSQL

	for _, j := range q.Joins {
		sourceSQL, sourceParams, err := j.Source.Render(d)
		if err != nil {
			return "", nil, err
		}
		var onSQL string
		var onParams []any
		if j.On != nil {
			onSQL, onParams, err = j.On.Render(d)
			if err != nil {
				return "", nil, err
			}
		}
		joinSQL, joinParams, err := d.FormatJoinExpression(j.Kind, sourceSQL, onSQL, append(append([]any{}, sourceParams...), onParams...), j.Using)
		if err != nil {
			return "", nil, err
		}
		sql += " " + joinSQL
		params = append(params, joinParams...)
	}

	if q.Where != nil {
		whereSQL, whereParams, err := q.Where.Render(d)
		if err != nil {
			return "", nil, err
		}
		clause, clauseParams := d.FormatWhereClause(whereSQL, whereParams)
		if clause != "" {
			sql += " " + clause
			params = append(params, clauseParams...)
		}
	}

	if len(q.GroupBy) > 0 {
		groupBySQL := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			gsql, gparams, err := g.Render(d)
			if err != nil {
				return "", nil, err
			}
			if len(gparams) > 0 {
				return "", nil, ormerr.New(ormerr.Query, "GROUP BY expressions may not bind parameters")
			}
			groupBySQL[i] = gsql
		}
		var havingSQL string
		var havingParams []any
		if q.Having != nil {
			havingSQL, havingParams, err = q.Having.Render(d)
			if err != nil {
				return "", nil, err
			}
		}
		clause, clauseParams := d.FormatGroupByHavingClause(groupBySQL, havingSQL, havingParams)
		if clause != "" {
			sql += " " + clause
			params = append(params, clauseParams...)
		}
	} else if q.Having != nil {
		return "", nil, ormerr.New(ormerr.Query, "HAVING requires a prior GROUP BY")
	}

	if q.Qualify != nil {
		qualifySQL, qualifyParams, err := q.Qualify.Render(d)
		if err != nil {
			return "", nil, err
		}
		clause, clauseParams, err := d.FormatQualifyClause(qualifySQL, qualifyParams)
		if err != nil {
			return "", nil, err
		}
		if clause != "" {
			sql += " " + clause
			params = append(params, clauseParams...)
		}
	}

	if len(q.OrderBy) > 0 {
		clause, clauseParams := d.FormatOrderByClause(q.OrderBy)
		sql += " " + clause
		params = append(params, clauseParams...)
	}

	limitOffsetSQL, limitOffsetParams, err := d.FormatLimitOffsetClause(q.Limit, q.Offset)
	if err != nil {
		return "", nil, err
	}
	if limitOffsetSQL != "" {
		sql += " " + limitOffsetSQL
		params = append(params, limitOffsetParams...)
	}

	forUpdateSQL, err := d.FormatForUpdateClause(q.ForUpdate)
	if err != nil {
		return "", nil, err
	}
	if forUpdateSQL != "" {
		sql += " " + forUpdateSQL
	}

	return sql, params, nil
}

func renderSelectList(d dialect.Dialect, list []Expression) (string, []any, error) {
	if len(list) == 0 {
		sql, _, err := Wildcard{}.Render(d)
		return sql, nil, err
	}
	parts := make([]string, len(list))
	var params []any
	for i, e := range list {
		sql, p, err := e.Render(d)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, p...)
	}
	return strings.Join(parts, ", "), params, nil
}

// WithQueryExpression prefixes an inner query with one or more CTEs and
// an optional RECURSIVE flag.
type WithQueryExpression struct {
	CTEs      []dialect.CTEDefinition
	Recursive bool
	Inner     Expression
}

func (w WithQueryExpression) Render(d dialect.Dialect) (string, []any, error) {
	withSQL, withParams, err := d.CTE().Render(w.CTEs, w.Recursive)
	if err != nil {
		return "", nil, err
	}
	innerSQL, innerParams, err := w.Inner.Render(d)
	if err != nil {
		return "", nil, err
	}
	params := append(append([]any{}, withParams...), innerParams...)
	return withSQL + " " + innerSQL, params, nil
}

// SetOperationExpression combines two sub-queries with UNION/INTERSECT/
// EXCEPT, optionally ALL. Leaves render as parenthesized sub-selects.
type SetOperationExpression struct {
	Operator string // "UNION", "INTERSECT", "EXCEPT"
	All      bool
	Left     Expression
	Right    Expression
}

func (s SetOperationExpression) Render(d dialect.Dialect) (string, []any, error) {
	if !validSetOperator(s.Operator) {
		return "", nil, ormerr.Newf(ormerr.Query, "unknown set operator %q", s.Operator)
	}
	leftSQL, leftParams, err := s.Left.Render(d)
	if err != nil {
		return "", nil, err
	}
	rightSQL, rightParams, err := s.Right.Render(d)
	if err != nil {
		return "", nil, err
	}
	keyword := s.Operator
	if s.All {
		keyword += " ALL"
	}
	sql := "(" + leftSQL + ") " + keyword + " (" + rightSQL + ")"
	params := append(append([]any{}, leftParams...), rightParams...)
	return sql, params, nil
}

func validSetOperator(op string) bool {
	switch op {
	case "UNION", "INTERSECT", "EXCEPT":
		return true
	default:
		return false
	}
}
