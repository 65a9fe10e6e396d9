package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/model"
	"github.com/ormkit/ormkit/ormerr"
	"github.com/ormkit/ormkit/txn"
)

// InsertOptions configures Insert, spec §4.8's insert(table, data, …).
type InsertOptions struct {
	Table            string
	Data             map[string]any
	Returning        bool
	ReturningColumns []string
	ForceReturning   bool
	ColumnAdapters   map[string]model.Adapter
	// AutoCommit, when true and no transaction is active, commits the
	// single statement in its own transaction (spec §4.8).
	AutoCommit bool
}

// UpdateOptions configures Update, spec §4.8's update(table, data, where,
// params, …).
type UpdateOptions struct {
	Table            string
	Data             map[string]any
	Where            string
	WhereParams      []any
	Returning        bool
	ReturningColumns []string
	ForceReturning   bool
	ColumnAdapters   map[string]model.Adapter
	AutoCommit       bool
}

// DeleteOptions configures Delete, spec §4.8's delete(table, where,
// params, …).
type DeleteOptions struct {
	Table       string
	Where       string
	WhereParams []any
	AutoCommit  bool
}

// Insert synthesizes an INSERT statement using the backend's dialect and
// issues it through Execute.
func (b *Backend) Insert(ctx context.Context, opts InsertOptions) (*QueryResult, error) {
	if err := ValidateIdentifier(opts.Table); err != nil {
		return nil, err
	}
	cols := sortedKeys(opts.Data)
	quotedCols := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	params := make([]any, len(cols))
	for i, c := range cols {
		if err := ValidateIdentifier(c); err != nil {
			return nil, err
		}
		quotedCols[i] = quoteIdentifierPath(b.dial, c)
		placeholders[i] = "?"
		params[i] = opts.Data[c]
	}

	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifierPath(b.dial, opts.Table),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "))
	sqlText = dialect.Rebind(b.dial, sqlText)

	return b.runDML(ctx, sqlText, params, opts.AutoCommit, execOptions{
		returning:        opts.Returning,
		returningColumns: opts.ReturningColumns,
		forceReturning:   opts.ForceReturning,
		columnAdapters:   opts.ColumnAdapters,
	})
}

// Update synthesizes an UPDATE statement. Callers pre-render the WHERE
// predicate's bare-"?" SQL (e.g. via package expr) and supply its params
// in WhereParams; Update concatenates SET params first, WHERE params
// second, matching left-to-right placeholder order.
func (b *Backend) Update(ctx context.Context, opts UpdateOptions) (*QueryResult, error) {
	if err := ValidateIdentifier(opts.Table); err != nil {
		return nil, err
	}
	if len(opts.Data) == 0 {
		return nil, ormerr.New(ormerr.Validation, "update requires at least one changed column")
	}
	cols := sortedKeys(opts.Data)
	setClauses := make([]string, len(cols))
	params := make([]any, 0, len(cols)+len(opts.WhereParams))
	for i, c := range cols {
		if err := ValidateIdentifier(c); err != nil {
			return nil, err
		}
		setClauses[i] = fmt.Sprintf("%s = ?", quoteIdentifierPath(b.dial, c))
		params = append(params, opts.Data[c])
	}
	params = append(params, opts.WhereParams...)

	sqlText := fmt.Sprintf("UPDATE %s SET %s", quoteIdentifierPath(b.dial, opts.Table), strings.Join(setClauses, ", "))
	if opts.Where != "" {
		sqlText += " WHERE " + opts.Where
	}
	sqlText = dialect.Rebind(b.dial, sqlText)

	return b.runDML(ctx, sqlText, params, opts.AutoCommit, execOptions{
		returning:        opts.Returning,
		returningColumns: opts.ReturningColumns,
		forceReturning:   opts.ForceReturning,
		columnAdapters:   opts.ColumnAdapters,
	})
}

// Delete synthesizes a DELETE statement.
func (b *Backend) Delete(ctx context.Context, opts DeleteOptions) (*QueryResult, error) {
	if err := ValidateIdentifier(opts.Table); err != nil {
		return nil, err
	}
	sqlText := "DELETE FROM " + quoteIdentifierPath(b.dial, opts.Table)
	if opts.Where != "" {
		sqlText += " WHERE " + opts.Where
	}
	sqlText = dialect.Rebind(b.dial, sqlText)

	return b.runDML(ctx, sqlText, opts.WhereParams, opts.AutoCommit, execOptions{})
}

type execOptions struct {
	returning        bool
	returningColumns []string
	forceReturning   bool
	columnAdapters   map[string]model.Adapter
}

// runDML centralizes the auto_commit behavior spec §4.8 assigns to every
// DML helper: when autoCommit is requested and no transaction is already
// active, the statement runs inside its own begin/commit (rolling back on
// failure); otherwise it runs directly against the backend's current
// connection, leaving any enclosing transaction's fate to the caller.
func (b *Backend) runDML(ctx context.Context, sqlText string, params []any, autoCommit bool, eo execOptions) (*QueryResult, error) {
	execOpts := ExecuteOptions{
		SQL:              sqlText,
		Params:           params,
		Returning:        eo.returning,
		ReturningColumns: eo.returningColumns,
		ForceReturning:   eo.forceReturning,
		ColumnAdapters:   eo.columnAdapters,
	}

	if !autoCommit || b.manager.State() == txn.Active {
		return b.Execute(ctx, execOpts)
	}

	if err := b.manager.Begin(ctx, b.exec); err != nil {
		return nil, err
	}
	result, err := b.Execute(ctx, execOpts)
	if err != nil {
		if rbErr := b.manager.Rollback(ctx, b.exec); rbErr != nil {
			b.logger.Warn("rollback after auto_commit failure also failed", "error", rbErr)
		}
		return nil, err
	}
	if err := b.manager.Commit(ctx, b.exec); err != nil {
		return nil, err
	}
	return result, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
