package query

import (
	"context"
	"testing"

	"github.com/ormkit/ormkit/dialect/mysql"
	"github.com/ormkit/ormkit/dialect/sqlite"
	"github.com/ormkit/ormkit/expr"
	"github.com/ormkit/ormkit/ormerr"
)

func sqliteDialect() *sqlite.Dialect { return sqlite.New([3]int{3, 35, 0}) }

func TestToSQLSimpleWhere(t *testing.T) {
	b := New(sqliteDialect(), "users").Where(expr.Col("active").Eq(expr.Lit(true)))
	sqlText, params, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT * FROM "users" WHERE ("active" = ?)`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
	if len(params) != 1 || params[0] != true {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestWhereStringChainsWithAnd(t *testing.T) {
	b := New(sqliteDialect(), "users").
		Where("age > ?", 18).
		Where(expr.Col("active").Eq(expr.Lit(true)))
	sqlText, params, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT * FROM "users" WHERE (age > ? AND "active" = ?)`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
	if len(params) != 2 || params[0] != 18 || params[1] != true {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestSelectReplaceAndAppend(t *testing.T) {
	b := New(sqliteDialect(), "users").Select("id", "name").SelectAppend("email")
	sqlText, _, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT "id", "name", "email" FROM "users"`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
}

func TestHavingWithoutGroupByFailsAtBuildTime(t *testing.T) {
	b := New(sqliteDialect(), "orders").Having("total > 100")
	if ormerr.Of(b.buildErr) != ormerr.Validation {
		t.Fatalf("expected Validation error calling Having before GroupBy, got %v", b.buildErr)
	}
	if _, _, err := b.ToSQL(); ormerr.Of(err) != ormerr.Validation {
		t.Fatalf("expected ToSQL to surface the same Validation error, got %v", err)
	}
}

func TestGroupByThenHavingSucceeds(t *testing.T) {
	b := New(sqliteDialect(), "orders").
		GroupBy("customer_id").
		Having(expr.Col("total").Gt(expr.Lit(100))).
		SelectCount(expr.Col("id"), "order_count")
	sqlText, _, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT COUNT("id") AS "order_count" FROM "orders" GROUP BY "customer_id" HAVING ("total" > ?)`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
}

func TestOffsetWithoutLimitFailsOnStrictDialect(t *testing.T) {
	b := New(mysql.New([3]int{8, 0, 0}), "users").Offset(10)
	if _, _, err := b.ToSQL(); ormerr.Of(err) != ormerr.Validation {
		t.Fatalf("expected Validation error for OFFSET without LIMIT, got %v", err)
	}
}

func TestOffsetWithoutLimitAllowedOnPermissiveDialect(t *testing.T) {
	b := New(sqliteDialect(), "users").Offset(10)
	if _, _, err := b.ToSQL(); err != nil {
		t.Fatalf("expected sqlite to permit OFFSET without LIMIT, got %v", err)
	}
}

func TestGroupByStripsAliasSuffix(t *testing.T) {
	b := New(sqliteDialect(), "orders").GroupBy("customer_id AS cust")
	sqlText, _, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT * FROM "orders" GROUP BY "customer_id"`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
}

func TestJoinRendersOnCondition(t *testing.T) {
	b := New(sqliteDialect(), "orders").
		InnerJoin("customers", expr.QualifiedCol("orders", "customer_id").Eq(expr.QualifiedCol("customers", "id")))
	sqlText, _, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT * FROM "orders" INNER JOIN "customers" ON ("orders"."customer_id" = "customers"."id")`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
}

func TestWhereInListAndBetween(t *testing.T) {
	b := New(sqliteDialect(), "users").
		WhereInList(expr.Col("id"), 1, 2, 3).
		WhereBetween(expr.Col("age"), 18, 65)
	sqlText, params, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT * FROM "users" WHERE ("id" IN (?, ?, ?) AND "age" BETWEEN ? AND ?)`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
	if len(params) != 5 {
		t.Fatalf("expected 5 params, got %+v", params)
	}
}

func TestOrderByLimitOffset(t *testing.T) {
	b := New(sqliteDialect(), "users").
		OrderBy(Asc(expr.Col("name")), Desc(expr.Col("created_at"))).
		Limit(10).
		Offset(5)
	sqlText, _, err := b.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `SELECT * FROM "users" ORDER BY "name" ASC, "created_at" DESC LIMIT ? OFFSET ?`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
}

func TestUnionCombinesTwoBuilders(t *testing.T) {
	left := New(sqliteDialect(), "active_users").Select("id")
	right := New(sqliteDialect(), "archived_users").Select("id")
	combined := left.Union(right)
	sqlText, _, err := combined.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `(SELECT "id" FROM "active_users") UNION (SELECT "id" FROM "archived_users")`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
}

func TestIntersectFailsWhenDialectLacksSetOp(t *testing.T) {
	// MySQL 8.0.0 declares only SetOpUnion|SetOpUnionAll (mysql.go gates
	// INTERSECT/EXCEPT behind the 8.0.19 version check).
	dial := mysql.New([3]int{8, 0, 0})
	left := New(dial, "active_users").Select("id")
	right := New(dial, "archived_users").Select("id")
	combined := left.Intersect(right)

	sqlText, _, err := combined.ToSQL()
	if ormerr.Of(err) != ormerr.SetOperationNotSupported {
		t.Fatalf("expected SetOperationNotSupported, got %v", err)
	}
	if sqlText != "" {
		t.Fatalf("expected no SQL to be emitted, got %q", sqlText)
	}
}

func TestExceptFailsWhenDialectLacksSetOp(t *testing.T) {
	dial := mysql.New([3]int{8, 0, 0})
	left := New(dial, "active_users").Select("id")
	right := New(dial, "archived_users").Select("id")
	combined := left.Except(right)

	sqlText, _, err := combined.ToSQL()
	if ormerr.Of(err) != ormerr.SetOperationNotSupported {
		t.Fatalf("expected SetOperationNotSupported, got %v", err)
	}
	if sqlText != "" {
		t.Fatalf("expected no SQL to be emitted, got %q", sqlText)
	}
}

func TestUnionAllowedOnDialectWithoutIntersect(t *testing.T) {
	// The gate is per-operator: a dialect lacking INTERSECT can still UNION.
	dial := mysql.New([3]int{8, 0, 0})
	left := New(dial, "active_users").Select("id")
	right := New(dial, "archived_users").Select("id")
	combined := left.Union(right)

	if _, _, err := combined.ToSQL(); err != nil {
		t.Fatalf("expected UNION to succeed, got %v", err)
	}
}

func TestQualifyRaisesQueryErrorOnDialectsWithoutIt(t *testing.T) {
	// None of this package's dialects override ANSI's FormatQualifyClause,
	// so QUALIFY always renders to a typed error rather than silently
	// dropping the predicate.
	b := New(sqliteDialect(), "events").
		SelectAppend("row_number() OVER (PARTITION BY user_id ORDER BY ts) AS rn").
		Qualify(expr.Col("rn").Eq(expr.Lit(1)))
	if _, _, err := b.ToSQL(); ormerr.Of(err) != ormerr.Query {
		t.Fatalf("expected Query error for unsupported QUALIFY, got %v", err)
	}
}

func TestWithCTEPrefixesQuery(t *testing.T) {
	inner := New(sqliteDialect(), "orders").Select("customer_id").Where(expr.Col("total").Gt(expr.Lit(100)))
	outer := New(sqliteDialect(), "big_spenders").WithCTE("big_spenders", inner)
	sqlText, params, err := outer.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	want := `WITH "big_spenders" AS (SELECT "customer_id" FROM "orders" WHERE ("total" > ?)) SELECT * FROM "big_spenders"`
	if sqlText != want {
		t.Fatalf("got %q want %q", sqlText, want)
	}
	if len(params) != 1 || params[0] != 100 {
		t.Fatalf("unexpected params: %+v", params)
	}
}

// stubExecutor is a minimal in-memory Executor double for terminal tests
// that don't need a real driver round trip.
type stubExecutor struct {
	rows []map[string]any
	err  error
}

func (s stubExecutor) FetchAll(ctx context.Context, sqlText string, params ...any) ([]map[string]any, error) {
	return s.rows, s.err
}

func (s stubExecutor) FetchOne(ctx context.Context, sqlText string, params ...any) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rows) == 0 {
		return nil, ormerr.ErrRecordNotFound
	}
	return s.rows[0], nil
}

func TestAllReturnsRows(t *testing.T) {
	exec := stubExecutor{rows: []map[string]any{{"id": int64(1)}, {"id": int64(2)}}}
	b := New(sqliteDialect(), "users")
	rows, err := b.All(context.Background(), exec)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestOneReturnsNotFoundWhenEmpty(t *testing.T) {
	exec := stubExecutor{}
	b := New(sqliteDialect(), "users")
	_, err := b.One(context.Background(), exec)
	if ormerr.Of(err) != ormerr.RecordNotFound {
		t.Fatalf("expected RecordNotFound, got %v", err)
	}
}

func TestCountExecutesScalarAggregate(t *testing.T) {
	exec := stubExecutor{rows: []map[string]any{{"count(*)": int64(7)}}}
	b := New(sqliteDialect(), "users").Where(expr.Col("active").Eq(expr.Lit(true)))
	n, err := b.Count(context.Background(), exec)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestCountRejectsGroupedBuilder(t *testing.T) {
	exec := stubExecutor{}
	b := New(sqliteDialect(), "orders").GroupBy("customer_id")
	if _, err := b.Count(context.Background(), exec); ormerr.Of(err) != ormerr.Validation {
		t.Fatalf("expected Validation error on grouped builder, got %v", err)
	}
}

func TestAllModelsRequiresFactory(t *testing.T) {
	exec := stubExecutor{rows: []map[string]any{{"id": int64(1)}}}
	b := New(sqliteDialect(), "users")
	if _, err := b.AllModels(context.Background(), exec); ormerr.Of(err) != ormerr.Validation {
		t.Fatalf("expected Validation error without a bound factory, got %v", err)
	}
}
