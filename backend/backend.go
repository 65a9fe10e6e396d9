// Package backend implements the storage backend from spec §4.8: the
// single point through which all SQL is issued, generalizing the
// teacher's DB/Tx/Executor (executor.go) to drive the dialect/expr/query
// stack instead of caller-supplied raw strings, and adding DML helpers,
// RETURNING negotiation, and driver-error classification the teacher
// never needed for its single-backend design.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ormkit/ormkit"
	"github.com/ormkit/ormkit/adapter"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/model"
	"github.com/ormkit/ormkit/ormerr"
	"github.com/ormkit/ormkit/txn"
)

// querier is the minimal surface Backend drives SQL through. *sql.DB and
// *sql.Conn both implement it, mirroring the teacher's sqlQueryExecutor
// split between *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryResult is the uniform shape Execute and its DML helpers return.
type QueryResult struct {
	Rows         []map[string]any
	RowsAffected int64
	LastInsertID int64
	Duration     time.Duration
	// ReturningForced is set when a caller asked for RETURNING with
	// force=true on a dialect that does not support it (spec §9 Open
	// Question 1); Rows will be empty and RowsAffected is the only
	// reliable signal.
	ReturningForced bool
}

// ExecuteOptions configures one call to Execute, spec §4.8's
// execute(sql, params?, returning?, column_types?, returning_columns?,
// force_returning?).
type ExecuteOptions struct {
	SQL    string
	Params []any

	// Query marks a statement that returns rows on its own (a plain
	// SELECT), as opposed to Returning below, which marks a DML
	// statement that returns rows only because a RETURNING/OUTPUT clause
	// was appended to it.
	Query bool

	// ParamWireTypes, if non-nil, must be the same length as Params;
	// a non-empty entry adapts the matching param outbound via the
	// registry before binding it to the driver.
	ParamWireTypes []adapter.Wire

	Returning        bool
	ReturningColumns []string
	ForceReturning   bool

	// ColumnAdapters adapts RETURNING rows inbound, column name ->
	// adapter. Callers that don't need model-level adaptation leave it
	// nil and receive raw driver values (with []byte already normalized
	// to string, matching the teacher's scanRowToMap).
	ColumnAdapters map[string]model.Adapter
}

// Backend is the storage backend from spec §4.8: a dialect, an adapter
// registry, a lazily-activated transaction manager, and a driver
// connection. Not safe for concurrent use by multiple goroutines at
// once, per spec §5 — callers that need concurrent access open one
// Backend per goroutine against the same *sql.DB pool.
type Backend struct {
	driverName string
	db         *sql.DB
	exec       querier
	dial       dialect.Dialect
	registry   *adapter.Registry
	logger     ormkit.Logger
	timeout    time.Duration

	manager *txn.Manager

	version      [3]int
	versionKnown bool
}

// Open connects to dsn via database/sql.Open, applies pool options, and
// returns a ready Backend. Mirrors the teacher's Open(driverName, dsn,
// opts...).
func Open(driverName, dsn string, dial dialect.Dialect, registry *adapter.Registry, opts ...ormkit.Option) (*Backend, error) {
	cfg := ormkit.NewConfig(opts...)

	cfg.Logger.Info("opening database connection", "driver", driverName)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.Connection, "open "+driverName, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	b := New(driverName, db, dial, registry, cfg.Logger, cfg.Timeout)
	return b, nil
}

// New wraps an already-open *sql.DB. logger may be nil, in which case the
// package-wide default logger is used (teacher's NewDBWithLogger).
func New(driverName string, db *sql.DB, dial dialect.Dialect, registry *adapter.Registry, logger ormkit.Logger, timeout time.Duration) *Backend {
	if logger == nil {
		logger = ormkit.GetLogger()
	}
	if registry == nil {
		registry = adapter.DefaultRegistry()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Backend{
		driverName: driverName,
		db:         db,
		exec:       db,
		dial:       dial,
		registry:   registry,
		logger:     logger,
		timeout:    timeout,
		manager:    txn.New(nil),
	}
}

// Dialect returns the dialect this backend renders SQL for.
func (b *Backend) Dialect() dialect.Dialect { return b.dial }

// Registry returns the adapter registry this backend adapts values with.
func (b *Backend) Registry() *adapter.Registry { return b.registry }

// TransactionManager returns the lazily-activated, per-instance singleton
// transaction manager (spec §4.8: "lazily created, singleton per backend
// instance").
func (b *Backend) TransactionManager() *txn.Manager { return b.manager }

// Disconnect releases the connection: rolls back any active transaction,
// then closes the pool. Idempotent.
func (b *Backend) Disconnect(ctx context.Context) error {
	if b.manager.State() == txn.Active {
		if err := b.manager.Rollback(ctx, b.exec); err != nil {
			b.logger.Warn("rollback during disconnect failed", "error", err)
		}
	}
	if err := b.db.Close(); err != nil {
		return ormerr.Wrap(ormerr.Connection, "disconnect", err)
	}
	return nil
}

// Connect is a no-op for an already-open *sql.DB (connections are
// established lazily by database/sql); it exists to satisfy spec §4.8's
// connect()/disconnect() pairing and to give Ping(reconnect=true) a
// documented counterpart.
func (b *Backend) Connect(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Ping reports whether a SELECT-1-equivalent succeeds. When reconnect is
// true and the first ping fails, it is retried once after giving the
// pool a chance to redial.
func (b *Backend) Ping(ctx context.Context, reconnect bool) bool {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	if err := b.db.PingContext(ctx); err == nil {
		return true
	} else if !reconnect {
		return false
	}
	ctx2, cancel2 := b.withTimeout(ctx)
	defer cancel2()
	return b.db.PingContext(ctx2) == nil
}

// GetServerVersion returns the server's (major, minor, patch), caching
// the result after the first successful call. The probe query is left to
// the dialect since it differs per backend family; dialects that don't
// implement VersionDialect report the zero version.
func (b *Backend) GetServerVersion(ctx context.Context) ([3]int, error) {
	if b.versionKnown {
		return b.version, nil
	}
	prober, ok := b.dial.(VersionDialect)
	if !ok {
		return [3]int{}, nil
	}
	v, err := prober.ProbeVersion(ctx, b.exec)
	if err != nil {
		return [3]int{}, ormerr.Wrap(ormerr.Connection, "probe server version", err)
	}
	b.version = v
	b.versionKnown = true
	return v, nil
}

// VersionDialect is implemented by dialects that can probe their own
// server version over a live connection (spec §4.8's cached
// get_server_version()).
type VersionDialect interface {
	ProbeVersion(ctx context.Context, exec interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}) ([3]int, error)
}

// SupportsReturning reports whether the dialect's RETURNING handler is
// active, derived from capabilities/version per spec §4.8.
func (b *Backend) SupportsReturning() bool {
	return b.dial.Returning().IsSupported()
}

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Execute is the single point through which all SQL is issued (spec
// §4.8). It adapts params outbound, negotiates RETURNING, runs the
// statement, and adapts returned rows inbound.
func (b *Backend) Execute(ctx context.Context, opts ExecuteOptions) (*QueryResult, error) {
	sqlText := opts.SQL
	params := opts.Params

	if opts.Returning {
		rendered, err := b.appendReturning(sqlText, opts.ReturningColumns, opts.ForceReturning)
		if err != nil {
			return nil, err
		}
		sqlText = rendered
	}

	adapted, err := b.adaptParamsOutbound(params, opts.ParamWireTypes)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	b.logger.Debug("executing statement", "sql", sqlText, "params", adapted)
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	if opts.Query || (opts.Returning && b.SupportsReturning()) {
		rows, err := b.exec.QueryContext(ctx, sqlText, adapted...)
		if err != nil {
			return nil, b.translate(err)
		}
		defer rows.Close()
		maps, err := scanRowsToMaps(rows)
		if err != nil {
			return nil, ormerr.Wrap(ormerr.Query, "scan returning rows", err)
		}
		maps, err = b.adaptRowsInbound(maps, opts.ColumnAdapters)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Rows: maps, RowsAffected: int64(len(maps)), Duration: time.Since(start)}, nil
	}

	result, err := b.exec.ExecContext(ctx, sqlText, adapted...)
	if err != nil {
		b.logger.Error("statement failed", "sql", sqlText, "error", err)
		return nil, b.translate(err)
	}
	affected, _ := result.RowsAffected()
	lastID, _ := result.LastInsertId()
	return &QueryResult{
		RowsAffected:    affected,
		LastInsertID:    lastID,
		Duration:        time.Since(start),
		ReturningForced: opts.Returning && opts.ForceReturning && !b.SupportsReturning(),
	}, nil
}

// FetchAll runs sqlText and returns every row as a map, thin wrapper per
// spec §4.8's fetch_all.
func (b *Backend) FetchAll(ctx context.Context, sqlText string, params ...any) ([]map[string]any, error) {
	result, err := b.Execute(ctx, ExecuteOptions{SQL: sqlText, Params: params, Query: true})
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// FetchOne runs sqlText and returns the first row, or ErrRecordNotFound
// if there isn't one. Thin wrapper per spec §4.8's fetch_one.
func (b *Backend) FetchOne(ctx context.Context, sqlText string, params ...any) (map[string]any, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	rows, err := b.exec.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, b.translate(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, ormerr.Wrap(ormerr.Query, "row iteration", err)
		}
		return nil, ormerr.ErrRecordNotFound
	}
	row, err := scanRowToMap(rows)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.Query, "scan row", err)
	}
	return row, nil
}

// Transaction is the scoped, guaranteed-release context from spec §4.8:
// fn runs against a Backend pinned to a single connection for the
// duration, committing on a nil return and rolling back otherwise
// (including on panic, re-raised after unwinding). A dedicated *sql.Conn
// is acquired so that the manager's raw BEGIN/SAVEPOINT/COMMIT text and
// every statement fn issues land on the same physical connection — a
// pooled *sql.DB alone cannot guarantee that.
func (b *Backend) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Backend) error) (err error) {
	conn, connErr := b.db.Conn(ctx)
	if connErr != nil {
		return ormerr.Wrap(ormerr.Connection, "acquire connection for transaction", connErr)
	}
	defer conn.Close()

	scoped := &Backend{
		driverName: b.driverName,
		db:         b.db,
		exec:       conn,
		dial:       b.dial,
		registry:   b.registry,
		logger:     b.logger,
		timeout:    b.timeout,
		manager:    b.manager,
		version:    b.version, versionKnown: b.versionKnown,
	}

	return b.manager.WithTx(ctx, conn, func(ctx context.Context) error {
		return fn(ctx, scoped)
	})
}

func (b *Backend) adaptParamsOutbound(params []any, wireTypes []adapter.Wire) ([]any, error) {
	if len(wireTypes) == 0 {
		return params, nil
	}
	if len(wireTypes) != len(params) {
		return nil, ormerr.New(ormerr.Validation, "ParamWireTypes must match Params length")
	}
	out := make([]any, len(params))
	for i, p := range params {
		w := wireTypes[i]
		if w == "" {
			out[i] = p
			continue
		}
		adapted, err := b.registry.AdaptToDB(p, w, nil)
		if err != nil {
			return nil, err
		}
		out[i] = adapted
	}
	return out, nil
}

func (b *Backend) adaptRowsInbound(rows []map[string]any, columnAdapters map[string]model.Adapter) ([]map[string]any, error) {
	if len(columnAdapters) == 0 {
		return rows, nil
	}
	for _, row := range rows {
		for col, a := range columnAdapters {
			v, ok := row[strings.ToLower(col)]
			if !ok {
				continue
			}
			adapted, err := a.FromDB(v)
			if err != nil {
				return nil, ormerr.Wrap(ormerr.TypeConversion, "adapt returning column "+col, err)
			}
			row[strings.ToLower(col)] = adapted
		}
	}
	return rows, nil
}

// appendReturning implements spec §4.8's RETURNING negotiation: normalize
// columns, validate each against the safety regex, consult the dialect's
// handler, and splice the rendered clause in at the position the dialect
// requires.
func (b *Backend) appendReturning(sqlText string, columns []string, force bool) (string, error) {
	for _, c := range columns {
		if err := ValidateIdentifier(c); err != nil {
			return "", err
		}
	}
	handler := b.dial.Returning()
	clause, err := handler.Render(columns, force)
	if err != nil {
		return "", err
	}
	if clause == "" {
		return sqlText, nil
	}
	if handler.Placement() == dialect.ReturningLeading {
		return insertLeadingReturning(sqlText, clause), nil
	}
	return sqlText + " " + clause, nil
}

// insertLeadingReturning splices clause in before the VALUES list of an
// INSERT or the WHERE clause of an UPDATE/DELETE, per SQL Server's OUTPUT
// placement rules. Falls back to trailing if neither keyword is present.
func insertLeadingReturning(sqlText, clause string) string {
	idx := strings.Index(sqlText, " VALUES ")
	if idx == -1 {
		idx = strings.Index(sqlText, " WHERE ")
	}
	if idx == -1 {
		return sqlText + " " + clause
	}
	return sqlText[:idx] + " " + clause + sqlText[idx:]
}

func (b *Backend) translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ormerr.ErrRecordNotFound
	}
	return translateDriverError(b.driverName, err)
}

func scanRowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		row, err := scanRowToMapWithCols(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRowToMap(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return scanRowToMapWithCols(rows, cols)
}

// scanRowToMapWithCols normalizes column names to lowercase and converts
// []byte to string, matching the teacher's scanRowToMapWithCols exactly.
func scanRowToMapWithCols(rows *sql.Rows, cols []string) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	result := make(map[string]any, len(cols))
	for i, col := range cols {
		key := strings.ToLower(col)
		if bs, ok := values[i].([]byte); ok {
			result[key] = string(bs)
		} else {
			result[key] = values[i]
		}
	}
	return result, nil
}

func quoteIdentifierPath(d dialect.Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		p = strings.Trim(p, `"`)
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
