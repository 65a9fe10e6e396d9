// Package capability implements the per-dialect feature declaration model
// from spec §4.3: a top-level category bit-set plus one bit-set per
// category enumerating specific features. Capability queries are pure
// functions of the declared bit-sets; they never touch the network.
package capability

// Category identifies a top-level feature family. Marking any feature
// within a category auto-enables the category bit (see Set.with*).
type Category uint64

const (
	CategorySetOperations Category = 1 << iota
	CategoryWindowFunctions
	CategoryAdvancedGrouping
	CategoryCTE
	CategoryJSON
	CategoryReturning
	CategoryTransactions
	CategoryBulk
	CategoryJoin
	CategoryConstraints
	CategoryAggregateFunctions
	CategoryDateTimeFunctions
	CategoryStringFunctions
	CategoryMathFunctions
)

// Set-operation features.
const (
	SetOpUnion uint64 = 1 << iota
	SetOpUnionAll
	SetOpIntersect
	SetOpIntersectAll
	SetOpExcept
	SetOpExceptAll
)

// Window-function features.
const (
	WindowRowNumber uint64 = 1 << iota
	WindowRank
	WindowDenseRank
	WindowLag
	WindowLead
	WindowNtile
	WindowFirstValue
	WindowLastValue
	WindowFilterClause
	WindowOrderedSetAggregates
)

// CTE features.
const (
	CTEBasic uint64 = 1 << iota
	CTERecursive
	CTECompoundRecursive
	CTEInDML
	CTEMaterialized
)

// JSON features.
const (
	JSONExtract uint64 = 1 << iota
	JSONContains
	JSONSet
	JSONArrayAggregate
	JSONObjectAggregate
	JSONPathQuery
)

// RETURNING features.
const (
	ReturningBasic uint64 = 1 << iota
	ReturningMultiRow
	ReturningComputedExpr
	ReturningUnreliableAffectedRows
)

// Transaction features.
const (
	TransactionSavepoints uint64 = 1 << iota
	TransactionIsolationLevels
	TransactionReadOnly
	TransactionDeferredConstraints
)

// Bulk-operation features.
const (
	BulkInsert uint64 = 1 << iota
	BulkUpsert
	BulkCopy
)

// Join features.
const (
	JoinInner uint64 = 1 << iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinNatural
	JoinLateral
)

// Constraint features.
const (
	ConstraintForeignKey uint64 = 1 << iota
	ConstraintUnique
	ConstraintCheck
	ConstraintDeferrable
)

// Grouping features.
const (
	GroupingSets uint64 = 1 << iota
	GroupingCube
	GroupingRollup
	GroupingQualify
)

// Set bundles the top-level category bit-set with each category's
// feature-specific bit-set, as spec §4.3 describes.
type Set struct {
	Categories Category

	SetOps       uint64
	Window       uint64
	CTE          uint64
	JSON         uint64
	Returning    uint64
	Transactions uint64
	Bulk         uint64
	Join         uint64
	Constraints  uint64
	Grouping     uint64
	Aggregate    uint64
	DateTime     uint64
	String       uint64
	Math         uint64
}

// NewSet returns an empty capability set. Use the With* builders to mark
// individual features additively.
func NewSet() Set {
	return Set{}
}

func (s Set) WithSetOp(flag uint64) Set {
	s.SetOps |= flag
	s.Categories |= CategorySetOperations
	return s
}

func (s Set) WithWindow(flag uint64) Set {
	s.Window |= flag
	s.Categories |= CategoryWindowFunctions
	return s
}

func (s Set) WithCTE(flag uint64) Set {
	s.CTE |= flag
	s.Categories |= CategoryCTE
	return s
}

func (s Set) WithJSON(flag uint64) Set {
	s.JSON |= flag
	s.Categories |= CategoryJSON
	return s
}

func (s Set) WithReturning(flag uint64) Set {
	s.Returning |= flag
	s.Categories |= CategoryReturning
	return s
}

func (s Set) WithTransaction(flag uint64) Set {
	s.Transactions |= flag
	s.Categories |= CategoryTransactions
	return s
}

func (s Set) WithBulk(flag uint64) Set {
	s.Bulk |= flag
	s.Categories |= CategoryBulk
	return s
}

func (s Set) WithJoin(flag uint64) Set {
	s.Join |= flag
	s.Categories |= CategoryJoin
	return s
}

func (s Set) WithConstraint(flag uint64) Set {
	s.Constraints |= flag
	s.Categories |= CategoryConstraints
	return s
}

func (s Set) WithGrouping(flag uint64) Set {
	s.Grouping |= flag
	s.Categories |= CategoryAdvancedGrouping
	return s
}

func (s Set) WithAggregate(flag uint64) Set {
	s.Aggregate |= flag
	s.Categories |= CategoryAggregateFunctions
	return s
}

func (s Set) WithDateTime(flag uint64) Set {
	s.DateTime |= flag
	s.Categories |= CategoryDateTimeFunctions
	return s
}

func (s Set) WithString(flag uint64) Set {
	s.String |= flag
	s.Categories |= CategoryStringFunctions
	return s
}

func (s Set) WithMath(flag uint64) Set {
	s.Math |= flag
	s.Categories |= CategoryMathFunctions
	return s
}

// SupportsCategory reports whether the top-level category bit is set.
func (s Set) SupportsCategory(cat Category) bool { return s.Categories&cat != 0 }

func (s Set) SupportsSetOp(flag uint64) bool       { return s.SetOps&flag != 0 }
func (s Set) SupportsWindow(flag uint64) bool       { return s.Window&flag != 0 }
func (s Set) SupportsCTE(flag uint64) bool          { return s.CTE&flag != 0 }
func (s Set) SupportsJSON(flag uint64) bool         { return s.JSON&flag != 0 }
func (s Set) SupportsReturning(flag uint64) bool    { return s.Returning&flag != 0 }
func (s Set) SupportsTransaction(flag uint64) bool  { return s.Transactions&flag != 0 }
func (s Set) SupportsBulk(flag uint64) bool         { return s.Bulk&flag != 0 }
func (s Set) SupportsJoin(flag uint64) bool         { return s.Join&flag != 0 }
func (s Set) SupportsConstraint(flag uint64) bool   { return s.Constraints&flag != 0 }
func (s Set) SupportsGrouping(flag uint64) bool     { return s.Grouping&flag != 0 }
func (s Set) SupportsAggregate(flag uint64) bool    { return s.Aggregate&flag != 0 }
func (s Set) SupportsDateTime(flag uint64) bool     { return s.DateTime&flag != 0 }
func (s Set) SupportsString(flag uint64) bool       { return s.String&flag != 0 }
func (s Set) SupportsMath(flag uint64) bool         { return s.Math&flag != 0 }

// AllSetOps is a convenience "all of" constant covering every set
// operation flag, for dialects (e.g. PostgreSQL) that support the full
// family.
const AllSetOps = SetOpUnion | SetOpUnionAll | SetOpIntersect | SetOpIntersectAll | SetOpExcept | SetOpExceptAll

// AllWindowFunctions covers the full window-function family.
const AllWindowFunctions = WindowRowNumber | WindowRank | WindowDenseRank | WindowLag | WindowLead |
	WindowNtile | WindowFirstValue | WindowLastValue | WindowFilterClause | WindowOrderedSetAggregates

// AllCTE covers the full CTE family.
const AllCTE = CTEBasic | CTERecursive | CTECompoundRecursive | CTEInDML | CTEMaterialized

// AllJoins covers every join flag except LATERAL, which several dialects
// omit.
const AllJoins = JoinInner | JoinLeft | JoinRight | JoinFull | JoinCross | JoinNatural
