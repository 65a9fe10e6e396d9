package postgres

import (
	"testing"

	"github.com/ormkit/ormkit/capability"
	"github.com/ormkit/ormkit/dialect"
	"github.com/ormkit/ormkit/ormerr"
)

func TestPlaceholderIsDollarStyle(t *testing.T) {
	d := New([3]int{16, 0, 0})
	if d.Placeholder(1) != "$1" || d.Placeholder(12) != "$12" {
		t.Fatalf("unexpected placeholder rendering")
	}
}

func TestQuoteIdentifierDoublesEmbeddedQuotes(t *testing.T) {
	d := New([3]int{16, 0, 0})
	if got := d.QuoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Fatalf("unexpected quoting: %q", got)
	}
}

func TestCapabilitiesIncludeCoreFeatures(t *testing.T) {
	d := New([3]int{16, 0, 0})
	caps := d.Capabilities()
	if !caps.SupportsCategory(capability.CategoryCTE) || !caps.SupportsCTE(capability.CTERecursive) {
		t.Fatalf("expected recursive CTE support")
	}
	if !caps.SupportsReturning(capability.ReturningMultiRow) {
		t.Fatalf("expected multi-row RETURNING support")
	}
}

func TestReturningRendersStarWhenNoColumnsGiven(t *testing.T) {
	d := New([3]int{16, 0, 0})
	sql, err := d.Returning().Render(nil, false)
	if err != nil || sql != "RETURNING *" {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestReturningRendersQuotedColumnList(t *testing.T) {
	d := New([3]int{16, 0, 0})
	sql, err := d.Returning().Render([]string{"id", "created_at"}, false)
	if err != nil || sql != `RETURNING "id", "created_at"` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestReturningPlacementIsTrailing(t *testing.T) {
	d := New([3]int{16, 0, 0})
	if d.Returning().Placement() != dialect.ReturningTrailing {
		t.Fatalf("expected RETURNING to trail the statement")
	}
}

func TestFormatUpsertRejectsEmptyConflictTargets(t *testing.T) {
	d := New([3]int{16, 0, 0})
	_, err := d.FormatUpsert(nil, []string{"name"})
	if ormerr.Of(err) != ormerr.Query {
		t.Fatalf("expected Query error, got %v", err)
	}
}

func TestFormatUpsertDoNothing(t *testing.T) {
	d := New([3]int{16, 0, 0})
	sql, err := d.FormatUpsert([]string{"email"}, nil)
	if err != nil || sql != `ON CONFLICT ("email") DO NOTHING` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestFormatUpsertDoUpdate(t *testing.T) {
	d := New([3]int{16, 0, 0})
	sql, err := d.FormatUpsert([]string{"email"}, []string{"name"})
	if err != nil || sql != `ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name"` {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestCTERenderRequiresAtLeastOneDefinition(t *testing.T) {
	d := New([3]int{16, 0, 0})
	_, _, err := d.CTE().Render(nil, false)
	if ormerr.Of(err) != ormerr.Query {
		t.Fatalf("expected Query error, got %v", err)
	}
}

func TestJSONExtractBindsPathAsParameter(t *testing.T) {
	h := jsonHandler{}
	sql, params, err := h.Extract(`"data"`, "$.a.b")
	if err != nil || sql != `"data" #>> ?` || len(params) != 1 || params[0] != "$.a.b" {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}
