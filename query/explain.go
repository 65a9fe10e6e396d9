package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

// ExplainPlan runs the builder's query wrapped in the dialect's EXPLAIN
// syntax and parses the driver's output (spec §4.6: "subsequent terminal
// returns the plan rather than rows"). Requires Explain(opts) to have
// been called first.
func (b *Builder) ExplainPlan(ctx context.Context, exec Executor) (*dialect.ExplainResult, error) {
	if !b.explain {
		return nil, ormerr.New(ormerr.Validation, "ExplainPlan requires a builder flagged via Explain(opts)")
	}
	sqlText, err := b.explainQuery()
	if err != nil {
		return nil, err
	}
	rows, err := exec.FetchAll(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	result, err := b.dial.Explain().Parse(joinExplainRows(rows), b.explainOpts)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// joinExplainRows flattens EXPLAIN's row-shaped driver output (each
// dialect emits differently-named plan columns) into one raw text blob
// for the dialect's Parse to work from.
func joinExplainRows(rows []map[string]any) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			lines = append(lines, fmt.Sprint(v))
		}
	}
	return strings.Join(lines, "\n")
}
