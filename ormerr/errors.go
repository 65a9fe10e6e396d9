// Package ormerr defines the closed error taxonomy shared by every ormkit
// component. Every failure that crosses a component boundary is reported
// through a *Error carrying one of the Kind constants below; callers use
// errors.Is/errors.As exactly as they would with any wrapped stdlib error.
package ormerr

import (
	"errors"
	"fmt"
)

// Kind identifies a node in the error taxonomy tree described in spec §7.
type Kind int

const (
	// Database is the taxonomy root. Every other Kind descends from it.
	Database Kind = iota
	Connection
	Transaction
	IsolationLevel // subkind of Transaction
	Query
	Validation
	Lock
	Deadlock // subkind of Lock
	Integrity
	TypeConversion
	Operational
	RecordNotFound
	ReturningNotSupported
	CTENotSupported
	WindowFunctionNotSupported
	JsonOperationNotSupported
	GroupingSetNotSupported
	SetOperationNotSupported
)

var names = map[Kind]string{
	Database:                  "Database",
	Connection:                "Connection",
	Transaction:               "Transaction",
	IsolationLevel:            "IsolationLevel",
	Query:                     "Query",
	Validation:                "Validation",
	Lock:                      "Lock",
	Deadlock:                  "Deadlock",
	Integrity:                 "Integrity",
	TypeConversion:            "TypeConversion",
	Operational:               "Operational",
	RecordNotFound:            "RecordNotFound",
	ReturningNotSupported:     "ReturningNotSupported",
	CTENotSupported:           "CTENotSupported",
	WindowFunctionNotSupported: "WindowFunctionNotSupported",
	JsonOperationNotSupported:  "JsonOperationNotSupported",
	GroupingSetNotSupported:    "GroupingSetNotSupported",
	SetOperationNotSupported:   "SetOperationNotSupported",
}

// parent maps each subkind to its immediate ancestor, so errors.Is can walk
// the taxonomy (a Deadlock also Is(Lock) and Is(Database)).
var parent = map[Kind]Kind{
	Connection:                 Database,
	Transaction:                Database,
	IsolationLevel:             Transaction,
	Query:                      Database,
	Validation:                 Database,
	Lock:                       Database,
	Deadlock:                   Lock,
	Integrity:                  Database,
	TypeConversion:             Database,
	Operational:                Database,
	RecordNotFound:             Database,
	ReturningNotSupported:      Database,
	CTENotSupported:            Database,
	WindowFunctionNotSupported: Database,
	JsonOperationNotSupported:  Database,
	GroupingSetNotSupported:    Database,
	SetOperationNotSupported:   Database,
}

// String returns the taxonomy name, e.g. "Deadlock".
func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "Unknown"
}

// Ancestors returns k and every ancestor up to and including Database.
func (k Kind) Ancestors() []Kind {
	chain := []Kind{k}
	for {
		p, ok := parent[chain[len(chain)-1]]
		if !ok {
			return chain
		}
		chain = append(chain, p)
	}
}

// Error is the single concrete error type every ormkit component raises.
// It is never used for control flow outside of errors.Is/As checks.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ormkit: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("ormkit: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ormerr.Lock) succeed for an *Error of Kind Deadlock,
// since Deadlock's ancestor chain includes Lock and Database.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Message != "" || other.Cause != nil {
		// A fully-populated target is a request for Cause-equality, not a
		// taxonomy membership test; fall back to exact match.
		return e.Kind == other.Kind && e.Message == other.Message
	}
	for _, k := range e.Kind.Ancestors() {
		if k == other.Kind {
			return true
		}
	}
	return false
}

// New constructs a bare *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a bare *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that wraps cause. If cause is already an
// *Error of the same Kind it is returned unchanged to avoid double-wrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	if existing, ok := cause.(*Error); ok && existing.Kind == kind {
		return existing
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of reports the Kind of err, walking wrapped errors via errors.As.
// Returns Database (the root) for any error not produced by this package.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Database
}

// Is reports whether err's Kind is kind or a descendant of kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, New(kind, ""))
}

// Sentinel, zero-argument errors for the handful of kinds callers most
// commonly compare against directly with errors.Is.
var (
	ErrRecordNotFound            = New(RecordNotFound, "record not found")
	ErrReturningNotSupported     = New(ReturningNotSupported, "RETURNING is not supported by this dialect/version")
	ErrCTENotSupported           = New(CTENotSupported, "common table expressions are not supported by this dialect/version")
	ErrWindowFunctionNotSupported = New(WindowFunctionNotSupported, "window functions are not supported by this dialect/version")
	ErrJSONOperationNotSupported  = New(JsonOperationNotSupported, "JSON operations are not supported by this dialect/version")
	ErrGroupingSetNotSupported    = New(GroupingSetNotSupported, "grouping sets are not supported by this dialect/version")
	ErrSetOperationNotSupported   = New(SetOperationNotSupported, "this set operation is not supported by this dialect/version")
)
