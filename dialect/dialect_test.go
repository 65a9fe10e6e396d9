package dialect

import "testing"

func TestRebindReplacesPlaceholdersInOrder(t *testing.T) {
	d := pgLikeDialect{}
	got := Rebind(d, `SELECT * FROM t WHERE a = ? AND b = ?`)
	want := `SELECT * FROM t WHERE a = $1 AND b = $2`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRebindLeavesQuotedQuestionMarksAlone(t *testing.T) {
	d := pgLikeDialect{}
	got := Rebind(d, `SELECT * FROM t WHERE note = 'what?' AND a = ?`)
	want := `SELECT * FROM t WHERE note = 'what?' AND a = $1`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

// pgLikeDialect is a minimal Dialect stand-in exercising only Placeholder,
// which is all Rebind needs.
type pgLikeDialect struct{ Dialect }

func (pgLikeDialect) Placeholder(position int) string {
	digits := []rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}
	return "$" + string(digits[position])
}
