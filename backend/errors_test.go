package backend

import (
	"testing"

	mssql "github.com/denisenkom/go-mssqldb"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/ormkit/ormkit/ormerr"
)

func TestTranslatePostgresErrorClassifiesBySQLSTATE(t *testing.T) {
	cases := []struct {
		code string
		want ormerr.Kind
	}{
		{"23505", ormerr.Integrity},
		{"40P01", ormerr.Deadlock},
		{"55P03", ormerr.Operational},
		{"42601", ormerr.Query},
		{"XX000", ormerr.Database},
	}
	for _, c := range cases {
		err := translatePostgresError(&pq.Error{Code: pq.ErrorCode(c.code), Message: "boom"})
		if ormerr.Of(err) != c.want {
			t.Errorf("code %s: expected %v, got %v", c.code, c.want, ormerr.Of(err))
		}
	}
}

func TestTranslateMySQLErrorClassifiesByNumber(t *testing.T) {
	cases := []struct {
		number uint16
		want   ormerr.Kind
	}{
		{1062, ormerr.Integrity},
		{1213, ormerr.Deadlock},
		{1205, ormerr.Operational},
		{1064, ormerr.Query},
		{9999, ormerr.Database},
	}
	for _, c := range cases {
		err := translateMySQLError(&mysqldriver.MySQLError{Number: c.number, Message: "boom"})
		if ormerr.Of(err) != c.want {
			t.Errorf("number %d: expected %v, got %v", c.number, c.want, ormerr.Of(err))
		}
	}
}

func TestTranslateSQLiteErrorClassifiesByCode(t *testing.T) {
	cases := []struct {
		code sqlite3.ErrNo
		want ormerr.Kind
	}{
		{sqlite3.ErrConstraint, ormerr.Integrity},
		{sqlite3.ErrBusy, ormerr.Operational},
		{sqlite3.ErrLocked, ormerr.Deadlock},
		{sqlite3.ErrIoErr, ormerr.Database},
	}
	for _, c := range cases {
		err := translateSQLiteError(sqlite3.Error{Code: c.code})
		if ormerr.Of(err) != c.want {
			t.Errorf("code %v: expected %v, got %v", c.code, c.want, ormerr.Of(err))
		}
	}
}

func TestTranslateMSSQLErrorClassifiesByNumber(t *testing.T) {
	cases := []struct {
		number int32
		want   ormerr.Kind
	}{
		{2627, ormerr.Integrity},
		{547, ormerr.Integrity},
		{1205, ormerr.Deadlock},
		{1222, ormerr.Operational},
		{50000, ormerr.Database},
	}
	for _, c := range cases {
		err := translateMSSQLError(mssql.Error{Number: c.number, Message: "boom"})
		if ormerr.Of(err) != c.want {
			t.Errorf("number %d: expected %v, got %v", c.number, c.want, ormerr.Of(err))
		}
	}
}

func TestTranslateDriverErrorFallsBackForUnknownDriver(t *testing.T) {
	err := translateDriverError("unknown", assertError{})
	if ormerr.Of(err) != ormerr.Database {
		t.Fatalf("expected Database fallback, got %v", err)
	}
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
