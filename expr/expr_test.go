package expr

import (
	"strings"
	"testing"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
)

type testDialect struct{ dialect.ANSI }

func (testDialect) Name() string                        { return "test" }
func (testDialect) Placeholder(position int) string      { return "?" }
func (testDialect) QuoteIdentifier(name string) string   { return `"` + name + `"` }
func (testDialect) Capabilities() capability.Set         { return capability.NewSet() }
func (testDialect) Returning() dialect.ReturningHandler  { return dialect.UnsupportedReturning }
func (testDialect) CTE() dialect.CTEHandler              { return dialect.UnsupportedCTE }
func (testDialect) JSONOps() dialect.JSONOperationHandler { return dialect.UnsupportedJSON }
func (testDialect) Explain() dialect.ExplainHandler      { return nil }

func newDialect() dialect.Dialect { return testDialect{} }

func countPlaceholders(sql string) int { return strings.Count(sql, "?") }

func TestColumnRendersQuotedIdentifierWithNoParams(t *testing.T) {
	sql, params, err := Col("status").Render(newDialect())
	if err != nil || sql != `"status"` || len(params) != 0 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestQualifiedColumnRendersDotted(t *testing.T) {
	sql, _, err := QualifiedCol("u", "id").Render(newDialect())
	if err != nil || sql != `"u"."id"` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestWildcardHasNoParameterSlot(t *testing.T) {
	sql, params, err := Wildcard{}.Render(newDialect())
	if err != nil || sql != "*" || params != nil {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestLiteralRendersBarePlaceholder(t *testing.T) {
	sql, params, err := Lit(42).Render(newDialect())
	if err != nil || sql != "?" || len(params) != 1 || params[0] != 42 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestEqParameterCountMatchesPlaceholderCount(t *testing.T) {
	p := Col("status").Eq(Lit("active"))
	sql, params, err := p.Render(newDialect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if countPlaceholders(sql) != len(params) {
		t.Fatalf("placeholder count %d does not match param count %d", countPlaceholders(sql), len(params))
	}
	if sql != `"status" = ?` || params[0] != "active" {
		t.Fatalf("unexpected render: %q %v", sql, params)
	}
}

func TestAndPreservesLeftToRightParameterOrder(t *testing.T) {
	p := And(Col("a").Eq(Lit(1)), Col("b").Eq(Lit(2)), Col("c").Eq(Lit(3)))
	sql, params, err := p.Render(newDialect())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if countPlaceholders(sql) != 3 || len(params) != 3 {
		t.Fatalf("expected 3 placeholders and 3 params, got %q %v", sql, params)
	}
	if params[0] != 1 || params[1] != 2 || params[2] != 3 {
		t.Fatalf("expected left-to-right param order, got %v", params)
	}
}

func TestEmptyInRendersAlwaysFalse(t *testing.T) {
	sql, params, err := In(Col("id")).Render(newDialect())
	if err != nil || sql != "1 = 0" || params != nil {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestEmptyNotInRendersAlwaysTrue(t *testing.T) {
	sql, params, err := NotIn(Col("id")).Render(newDialect())
	if err != nil || sql != "1 = 1" || params != nil {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestInWithValuesBindsEachMember(t *testing.T) {
	sql, params, err := In(Col("id"), Lit(1), Lit(2), Lit(3)).Render(newDialect())
	if err != nil || sql != `"id" IN (?, ?, ?)` || len(params) != 3 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestBetweenRendersLowThenHigh(t *testing.T) {
	sql, params, err := Between(Col("age"), Lit(18), Lit(65)).Render(newDialect())
	if err != nil || sql != `"age" BETWEEN ? AND ?` || len(params) != 2 || params[0] != 18 || params[1] != 65 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestIsNullRendersSuffixOperator(t *testing.T) {
	sql, params, err := IsNull(Col("deleted_at")).Render(newDialect())
	if err != nil || sql != `"deleted_at" IS NULL` || params != nil {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestLikeBindsPatternAsParameterNotLiteral(t *testing.T) {
	sql, params, err := Like(Col("name"), Lit("%a%")).Render(newDialect())
	if err != nil || sql != `"name" LIKE ?` || len(params) != 1 || params[0] != "%a%" {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestNotNegatesSingleOperand(t *testing.T) {
	sql, _, err := Not(Col("active").Eq(Lit(true))).Render(newDialect())
	if err != nil || sql != `NOT "active" = ?` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestRawSQLPassesThroughVerbatim(t *testing.T) {
	sql, params, err := Raw("LOWER(?)", "X").Render(newDialect())
	if err != nil || sql != "LOWER(?)" || params[0] != "X" {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestSubqueryParenthesizesAndAliases(t *testing.T) {
	inner := QueryExpression{From: TableRef("users")}
	sql, _, err := SubqueryAs(inner, "u").Render(newDialect())
	if err != nil || sql != `(SELECT * FROM "users") AS "u"` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestArithmeticChainsIntoComparison(t *testing.T) {
	expr := Col("quantity").Mul(Col("unit_price")).Gt(Lit(100))
	sql, params, err := expr.Render(newDialect())
	if err != nil || sql != `("quantity" * "unit_price") > ?` || params[0] != 100 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}
