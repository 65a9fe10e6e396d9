package backend

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ormkit/ormkit/adapter"
	"github.com/ormkit/ormkit/dialect/mssql"
	"github.com/ormkit/ormkit/dialect/sqlite"
	"github.com/ormkit/ormkit/ormerr"
)

func newTestBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	b := New("sqlite3", db, sqlite.New([3]int{3, 35, 0}), adapter.DefaultRegistry(), nil, 0)
	return b, mock
}

func TestExecuteRunsPlainStatement(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec(`INSERT INTO "users"`).WithArgs("alice").WillReturnResult(sqlmock.NewResult(7, 1))

	result, err := b.Execute(context.Background(), ExecuteOptions{
		SQL:    `INSERT INTO "users" ("name") VALUES (?)`,
		Params: []any{"alice"},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.LastInsertID != 7 || result.RowsAffected != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecuteWithReturningQueriesAndScansRows(t *testing.T) {
	b, mock := newTestBackend(t)
	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice")
	mock.ExpectQuery(`INSERT INTO "users".*RETURNING`).WithArgs("alice").WillReturnRows(rows)

	result, err := b.Execute(context.Background(), ExecuteOptions{
		SQL:              `INSERT INTO "users" ("name") VALUES (?)`,
		Params:           []any{"alice"},
		Returning:        true,
		ReturningColumns: []string{"id", "name"},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0]["name"] != "alice" {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
}

func newMSSQLTestBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	b := New("sqlserver", db, mssql.New([3]int{2019, 0, 0}), adapter.DefaultRegistry(), nil, 0)
	return b, mock
}

// TestExecuteWithReturningPlacesOutputBeforeValuesOnMSSQL asserts the full
// rendered statement, not just the OUTPUT fragment: SQL Server rejects
// OUTPUT trailing an INSERT's VALUES list.
func TestExecuteWithReturningPlacesOutputBeforeValuesOnMSSQL(t *testing.T) {
	b, mock := newMSSQLTestBackend(t)
	rows := sqlmock.NewRows([]string{"id"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO [users] ([name]) OUTPUT INSERTED.[id] VALUES (@p1)`)).
		WithArgs("alice").
		WillReturnRows(rows)

	result, err := b.Execute(context.Background(), ExecuteOptions{
		SQL:              `INSERT INTO [users] ([name]) VALUES (@p1)`,
		Params:           []any{"alice"},
		Returning:        true,
		ReturningColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0]["id"] != int64(1) {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestExecuteWithReturningPlacesOutputBeforeWhereOnMSSQL covers the
// UPDATE/DELETE side of the same placement rule: OUTPUT must sit between
// the SET list and WHERE, not trail the whole statement.
func TestExecuteWithReturningPlacesOutputBeforeWhereOnMSSQL(t *testing.T) {
	b, mock := newMSSQLTestBackend(t)
	rows := sqlmock.NewRows([]string{"id"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE [users] SET [name] = @p1 OUTPUT INSERTED.[id] WHERE [id] = @p2`)).
		WithArgs("alice", 1).
		WillReturnRows(rows)

	result, err := b.Execute(context.Background(), ExecuteOptions{
		SQL:              `UPDATE [users] SET [name] = @p1 WHERE [id] = @p2`,
		Params:           []any{"alice", 1},
		Returning:        true,
		ReturningColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFetchOneReturnsNotFoundWhenEmpty(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.FetchOne(context.Background(), `SELECT "id" FROM "users" WHERE "id" = ?`, 1)
	if ormerr.Of(err) != ormerr.RecordNotFound {
		t.Fatalf("expected RecordNotFound, got %v", err)
	}
}

func TestFetchAllReturnsAllRows(t *testing.T) {
	b, mock := newTestBackend(t)
	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice").AddRow(2, "bob")
	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	got, err := b.FetchAll(context.Background(), `SELECT "id", "name" FROM "users"`)
	if err != nil {
		t.Fatalf("fetch all failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
}

func TestPingSucceeds(t *testing.T) {
	b, _ := newTestBackend(t)
	// go-sqlmock disables ping monitoring by default (every ping
	// silently succeeds), so this only exercises the happy path.
	if !b.Ping(context.Background(), false) {
		t.Fatalf("expected ping to succeed")
	}
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	err := b.Transaction(context.Background(), func(ctx context.Context, tx *Backend) error {
		_, err := tx.Execute(ctx, ExecuteOptions{SQL: `INSERT INTO "users" ("name") VALUES (?)`, Params: []any{"alice"}})
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	sentinel := ormerr.New(ormerr.Query, "boom")
	err := b.Transaction(context.Background(), func(ctx context.Context, tx *Backend) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}
