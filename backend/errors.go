package backend

import (
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/ormkit/ormkit/ormerr"
)

// translateDriverError implements spec §4.8's error translation: inspect
// the driver's native error type and classify it into the ormerr
// taxonomy. Grounded on the teacher's driverName-dispatch idiom
// (NewDB/NewDBWithLogger take a driverName precisely so callers can
// special-case per-driver behavior); the teacher itself never classified
// errors, so this is new code following that same dispatch shape.
func translateDriverError(driverName string, err error) error {
	switch driverName {
	case "postgres":
		return translatePostgresError(err)
	case "mysql":
		return translateMySQLError(err)
	case "sqlite3":
		return translateSQLiteError(err)
	case "sqlserver":
		return translateMSSQLError(err)
	default:
		return ormerr.Wrap(ormerr.Database, "statement failed", err)
	}
}

// translatePostgresError classifies *pq.Error by SQLSTATE class (spec §3
// domain-stack table): 23xxx integrity, 40P01/55P03/57014
// deadlock/lock-unavailable, everything else falls through to Database.
func translatePostgresError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return ormerr.Wrap(ormerr.Database, "statement failed", err)
	}
	code := string(pqErr.Code)
	switch {
	case strings.HasPrefix(code, "23"):
		return ormerr.Wrap(ormerr.Integrity, pqErr.Message, err)
	case code == "40P01":
		return ormerr.Wrap(ormerr.Deadlock, pqErr.Message, err)
	case code == "55P03" || code == "57014":
		return ormerr.Wrap(ormerr.Operational, pqErr.Message, err)
	case strings.HasPrefix(code, "42"):
		return ormerr.Wrap(ormerr.Query, pqErr.Message, err)
	default:
		return ormerr.Wrap(ormerr.Database, pqErr.Message, err)
	}
}

// translateMySQLError classifies *mysql.MySQLError by error number (spec
// §3): 1062 duplicate key -> Integrity, 1213 deadlock -> Deadlock, 1205
// lock wait timeout -> Operational.
func translateMySQLError(err error) error {
	myErr, ok := err.(*mysqldriver.MySQLError)
	if !ok {
		return ormerr.Wrap(ormerr.Database, "statement failed", err)
	}
	switch myErr.Number {
	case 1062, 1451, 1452:
		return ormerr.Wrap(ormerr.Integrity, myErr.Message, err)
	case 1213:
		return ormerr.Wrap(ormerr.Deadlock, myErr.Message, err)
	case 1205:
		return ormerr.Wrap(ormerr.Operational, myErr.Message, err)
	case 1064, 1146:
		return ormerr.Wrap(ormerr.Query, myErr.Message, err)
	default:
		return ormerr.Wrap(ormerr.Database, myErr.Message, err)
	}
}

// translateSQLiteError classifies sqlite3.Error by its primary and
// extended result codes.
func translateSQLiteError(err error) error {
	liteErr, ok := err.(sqlite3.Error)
	if !ok {
		return ormerr.Wrap(ormerr.Database, "statement failed", err)
	}
	switch liteErr.Code {
	case sqlite3.ErrConstraint:
		return ormerr.Wrap(ormerr.Integrity, liteErr.Error(), err)
	case sqlite3.ErrBusy:
		return ormerr.Wrap(ormerr.Operational, liteErr.Error(), err)
	case sqlite3.ErrLocked:
		return ormerr.Wrap(ormerr.Deadlock, liteErr.Error(), err)
	default:
		return ormerr.Wrap(ormerr.Database, liteErr.Error(), err)
	}
}

// translateMSSQLError classifies mssql.Error by SQL Server error number:
// 2627/2601 unique constraint -> Integrity, 547 FK constraint ->
// Integrity, 1205 deadlock victim -> Deadlock.
func translateMSSQLError(err error) error {
	msErr, ok := err.(mssql.Error)
	if !ok {
		return ormerr.Wrap(ormerr.Database, "statement failed", err)
	}
	switch msErr.Number {
	case 2627, 2601, 547:
		return ormerr.Wrap(ormerr.Integrity, msErr.Message, err)
	case 1205:
		return ormerr.Wrap(ormerr.Deadlock, msErr.Message, err)
	case 1222:
		return ormerr.Wrap(ormerr.Operational, msErr.Message, err)
	default:
		return ormerr.Wrap(ormerr.Database, msErr.Message, err)
	}
}
