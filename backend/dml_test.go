package backend

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ormkit/ormkit/ormerr"
)

func TestInsertSynthesizesAndExecutes(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec(`INSERT INTO "users" \("name"\) VALUES \(\?\)`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(5, 1))

	result, err := b.Insert(context.Background(), InsertOptions{
		Table: "users",
		Data:  map[string]any{"name": "alice"},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if result.LastInsertID != 5 {
		t.Fatalf("unexpected last insert id: %d", result.LastInsertID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertWithReturningAppendsClause(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectQuery(`INSERT INTO "users" \("name"\) VALUES \(\?\) RETURNING "id"`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	result, err := b.Insert(context.Background(), InsertOptions{
		Table:            "users",
		Data:             map[string]any{"name": "alice"},
		Returning:        true,
		ReturningColumns: []string{"id"},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0]["id"] != int64(1) {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
}

func TestInsertRejectsUnsafeColumnName(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.Insert(context.Background(), InsertOptions{
		Table: "users",
		Data:  map[string]any{"name; drop table users": "alice"},
	})
	if ormerr.Of(err) != ormerr.Validation {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestUpdateAppendsWhereAndOrdersParams(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec(`UPDATE "users" SET "name" = \? WHERE "id" = \?`).
		WithArgs("bob", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := b.Update(context.Background(), UpdateOptions{
		Table:       "users",
		Data:        map[string]any{"name": "bob"},
		Where:       `"id" = ?`,
		WhereParams: []any{1},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateRejectsEmptyData(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.Update(context.Background(), UpdateOptions{Table: "users", Where: `"id" = ?`, WhereParams: []any{1}})
	if ormerr.Of(err) != ormerr.Validation {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestDeleteWithWhere(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec(`DELETE FROM "users" WHERE "id" = \?`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := b.Delete(context.Background(), DeleteOptions{
		Table:       "users",
		Where:       `"id" = ?`,
		WhereParams: []any{1},
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertAutoCommitWrapsInTransaction(t *testing.T) {
	b, mock := newTestBackend(t)
	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := b.Insert(context.Background(), InsertOptions{
		Table:      "users",
		Data:       map[string]any{"name": "alice"},
		AutoCommit: true,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
