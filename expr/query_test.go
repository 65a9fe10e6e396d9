package expr

import (
	"testing"

	"github.com/ormkit/ormkit/dialect"
)

func TestQueryExpressionRendersFixedClauseOrder(t *testing.T) {
	limit := 10
	q := QueryExpression{
		From:    TableRef("users"),
		Where:   RawPred("status = ?", "active"),
		OrderBy: []dialect.OrderByClause{{SQL: `"id"`}},
		Limit:   &limit,
	}
	sql, params, err := q.Render(newDialect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT * FROM "users" WHERE status = ? ORDER BY "id" ASC LIMIT ?`
	if sql != want {
		t.Fatalf("got %q want %q", sql, want)
	}
	if len(params) != 2 || params[0] != "active" || params[1] != 10 {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestQueryExpressionRejectsHavingWithoutGroupBy(t *testing.T) {
	q := QueryExpression{From: TableRef("users"), Having: RawPred("COUNT(*) > ?", 5)}
	_, _, err := q.Render(newDialect())
	if err == nil {
		t.Fatalf("expected an error for HAVING without GROUP BY")
	}
}

func TestQueryExpressionRendersGroupByHaving(t *testing.T) {
	q := QueryExpression{
		SelectList: []Expression{Col("status"), Raw("COUNT(*) AS n")},
		From:       TableRef("users"),
		GroupBy:    []Expression{Col("status")},
		Having:     RawPred("COUNT(*) > ?", 5),
	}
	sql, params, err := q.Render(newDialect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT "status", COUNT(*) AS n FROM "users" GROUP BY "status" HAVING COUNT(*) > ?`
	if sql != want {
		t.Fatalf("got %q want %q", sql, want)
	}
	if len(params) != 1 || params[0] != 5 {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestWithQueryExpressionPrefixesRecursiveCTE(t *testing.T) {
	w := WithQueryExpression{
		Recursive: true,
		CTEs: []dialect.CTEDefinition{{
			Name:     "tree",
			QuerySQL: "SELECT id, parent_id FROM nodes WHERE id = ? UNION ALL SELECT n.id, n.parent_id FROM nodes n JOIN tree t ON n.parent_id = t.id",
			QueryParams: []any{7},
		}},
		Inner: QueryExpression{From: TableRef("tree")},
	}
	sql, params, err := w.Render(recursiveCTEDialect{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantPrefix := `WITH RECURSIVE "tree" AS (SELECT id, parent_id FROM nodes WHERE id = ? UNION ALL SELECT n.id, n.parent_id FROM nodes n JOIN tree t ON n.parent_id = t.id) SELECT * FROM "tree"`
	if sql != wantPrefix {
		t.Fatalf("got %q want %q", sql, wantPrefix)
	}
	if len(params) != 1 || params[0] != 7 {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestSetOperationExpressionParenthesizesBothSides(t *testing.T) {
	q1 := QueryExpression{SelectList: []Expression{Col("id")}, From: TableRef("users"), Where: RawPred("status = ?", "active")}
	q2 := QueryExpression{SelectList: []Expression{Col("id")}, From: TableRef("users"), Where: RawPred("status = ?", "pending")}
	u := SetOperationExpression{Operator: "UNION", Left: q1, Right: q2}
	sql, params, err := u.Render(newDialect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `(SELECT "id" FROM "users" WHERE status = ?) UNION (SELECT "id" FROM "users" WHERE status = ?)`
	if sql != want {
		t.Fatalf("got %q want %q", sql, want)
	}
	if len(params) != 2 || params[0] != "active" || params[1] != "pending" {
		t.Fatalf("unexpected params: %v", params)
	}
}

// recursiveCTEDialect is a test dialect whose CTE handler actually
// renders (package dialect's test dialects use UnsupportedCTE).
type recursiveCTEDialect struct{ testDialect }

func (recursiveCTEDialect) CTE() dialect.CTEHandler { return renderingCTEHandler{} }

type renderingCTEHandler struct{}

func (renderingCTEHandler) SupportsRecursive() bool        { return true }
func (renderingCTEHandler) SupportsMaterializedHint() bool { return false }
func (renderingCTEHandler) SupportsMultiple() bool         { return true }
func (renderingCTEHandler) SupportsInDML() bool            { return true }

func (renderingCTEHandler) Render(ctes []dialect.CTEDefinition, recursive bool) (string, []any, error) {
	sql := "WITH "
	if recursive {
		sql += "RECURSIVE "
	}
	var params []any
	for i, cte := range ctes {
		if i > 0 {
			sql += ", "
		}
		sql += `"` + cte.Name + `"` + " AS (" + cte.QuerySQL + ")"
		params = append(params, cte.QueryParams...)
	}
	return sql, params, nil
}
