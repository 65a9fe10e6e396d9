package mssql

import (
	"testing"

	"github.com/ormkit/ormkit/dialect"
)

func TestPlaceholderIsNamedParamStyle(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	if d.Placeholder(1) != "@p1" || d.Placeholder(12) != "@p12" {
		t.Fatalf("unexpected placeholder rendering")
	}
}

func TestQuoteIdentifierUsesBrackets(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	if got := d.QuoteIdentifier("weird]name"); got != "[weird]]name]" {
		t.Fatalf("unexpected quoting: %q", got)
	}
}

func TestReturningUsesOutputInserted(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	sql, err := d.Returning().Render([]string{"id"}, false)
	if err != nil || sql != "OUTPUT INSERTED.[id]" {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestReturningPlacementIsLeading(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	if d.Returning().Placement() != dialect.ReturningLeading {
		t.Fatalf("expected OUTPUT to require leading placement")
	}
}

func TestLimitOffsetUsesFetchNextSyntax(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	limit, offset := 10, 20
	sql, params, err := d.FormatLimitOffsetClause(&limit, &offset)
	if err != nil || sql != "OFFSET ? ROWS FETCH NEXT ? ROWS ONLY" || len(params) != 2 {
		t.Fatalf("unexpected render: %q %v %v", sql, params, err)
	}
}

func TestForUpdateClauseIsRejectedInFavorOfLockingHint(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	_, err := d.FormatForUpdateClause(dialect.ForUpdateOptions{Mode: dialect.ForUpdateUpdate})
	if err == nil {
		t.Fatalf("expected an error directing callers to FormatLockingHint")
	}
}

func TestFormatLockingHintRendersTableHints(t *testing.T) {
	d := New([3]int{2019, 0, 0})
	sql, err := d.FormatLockingHint(dialect.ForUpdateOptions{Mode: dialect.ForUpdateUpdate, NoWait: true})
	if err != nil || sql != "WITH (ROWLOCK, UPDLOCK, NOWAIT)" {
		t.Fatalf("unexpected render: %q %v", sql, err)
	}
}

func TestJSONUnsupportedBeforeVersion2016(t *testing.T) {
	d := New([3]int{2014, 0, 0})
	_, _, err := d.JSONOps().Extract("col", "$.a")
	if err == nil {
		t.Fatalf("expected JSON operations to be unsupported before SQL Server 2016")
	}
}
