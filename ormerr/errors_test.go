package ormerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindAncestry(t *testing.T) {
	err := New(Deadlock, "lock wait timeout")

	if !errors.Is(err, New(Lock, "")) {
		t.Fatalf("expected Deadlock to satisfy errors.Is(Lock)")
	}
	if !errors.Is(err, New(Database, "")) {
		t.Fatalf("expected Deadlock to satisfy errors.Is(Database)")
	}
	if errors.Is(err, New(Integrity, "")) {
		t.Fatalf("did not expect Deadlock to satisfy errors.Is(Integrity)")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("driver: connection refused")
	wrapped := Wrap(Connection, "dial failed", cause)

	if !errors.Is(wrapped, New(Database, "")) {
		t.Fatalf("expected wrapped Connection error to satisfy errors.Is(Database)")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Fatalf("expected Unwrap to return the original cause")
	}
}

func TestWrapAvoidsDoubleWrapping(t *testing.T) {
	inner := New(Integrity, "unique violation")
	outer := Wrap(Integrity, "insert failed", inner)

	if outer != inner {
		t.Fatalf("expected Wrap to return the same *Error when kinds match")
	}
}

func TestOfDefaultsToDatabase(t *testing.T) {
	if Of(fmt.Errorf("not an ormkit error")) != Database {
		t.Fatalf("expected Of to default unrecognized errors to Database")
	}
	if Of(New(RecordNotFound, "")) != RecordNotFound {
		t.Fatalf("expected Of to report the concrete Kind")
	}
}

func TestIsHelper(t *testing.T) {
	err := New(IsolationLevel, "unmapped isolation level SERIALIZABLE")
	if !Is(err, Transaction) {
		t.Fatalf("expected IsolationLevel to satisfy Is(Transaction)")
	}
	if !Is(err, Database) {
		t.Fatalf("expected IsolationLevel to satisfy Is(Database)")
	}
}

func TestSentinelsCompareByKind(t *testing.T) {
	specific := Newf(ReturningNotSupported, "backend %s has no RETURNING support", "mysql")
	if !errors.Is(specific, ErrReturningNotSupported) {
		t.Fatalf("expected formatted error to satisfy errors.Is against the sentinel")
	}
}
