package sqlite

import (
	"testing"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
)

func TestPlaceholderIsQuestionMarkStyle(t *testing.T) {
	d := New([3]int{3, 45, 0})
	if d.Placeholder(1) != "?" {
		t.Fatalf("unexpected placeholder rendering")
	}
}

func TestQuoteIdentifierUsesDoubleQuotes(t *testing.T) {
	d := New([3]int{3, 45, 0})
	if got := d.QuoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Fatalf("unexpected quoting: %q", got)
	}
}

func TestCapabilitiesIncludeReturningAndWindow(t *testing.T) {
	d := New([3]int{3, 45, 0})
	caps := d.Capabilities()
	if !caps.SupportsReturning(capability.ReturningBasic) {
		t.Fatalf("expected RETURNING support")
	}
	if !caps.SupportsWindow(capability.WindowRowNumber) {
		t.Fatalf("expected window function support")
	}
}

func TestOffsetWithoutLimitIsAllowed(t *testing.T) {
	d := New([3]int{3, 45, 0})
	offset := 5
	sql, params, err := d.FormatLimitOffsetClause(nil, &offset)
	if err != nil || sql != "OFFSET ?" || len(params) != 1 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestReturningPlacementIsTrailing(t *testing.T) {
	d := New([3]int{3, 45, 0})
	if d.Returning().Placement() != dialect.ReturningTrailing {
		t.Fatalf("expected RETURNING to trail the statement")
	}
}

func TestFormatUpsertUsesExcludedAlias(t *testing.T) {
	d := New([3]int{3, 45, 0})
	sql, err := d.FormatUpsert([]string{"email"}, []string{"name"})
	if err != nil || sql != `ON CONFLICT ("email") DO UPDATE SET "name" = excluded."name"` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}
