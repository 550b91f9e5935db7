package query

import "github.com/nimbusdb/nimbusdb/internal/value"

// CursorOp names a scanner cursor operation. The
// planner chooses CursorInit/CursorStep; the scanner (package scan) drives
// an index cursor accordingly.
type CursorOp int

const (
	BeforeFirst CursorOp = iota
	AfterLast
	Eq
	Next
	Prev
)

func (c CursorOp) String() string {
	switch c {
	case BeforeFirst:
		return "BeforeFirst"
	case AfterLast:
		return "AfterLast"
	case Eq:
		return "Eq"
	case Next:
		return "Next"
	case Prev:
		return "Prev"
	default:
		return "Unknown"
	}
}

// IndexValueKind is the declared value type of an index: string, i64 or f64.
type IndexValueKind int

const (
	IndexKindString IndexValueKind = iota
	IndexKindI64
	IndexKindF64
)

func (k IndexValueKind) String() string {
	switch k {
	case IndexKindString:
		return "String"
	case IndexKindI64:
		return "I64"
	case IndexKindF64:
		return "F64"
	default:
		return "Unknown"
	}
}

// IndexDescriptor is the planner's view of one declared index. The
// concrete index manager (package index) implements this so that query
// stays free of any storage dependency.
type IndexDescriptor interface {
	Path() value.Path
	ValueKind() IndexValueKind
	Unique() bool
	RowCount() int64
}

// Plan is the planner's output: either a
// full-collection scan, a primary-key shortcut, or an index-driven scan
// bounded by up to two expressions.
type Plan struct {
	// MainIndex is nil for a full scan or primary-key plan.
	MainIndex IndexDescriptor

	// E1 is the driving bound expression (the node that produced
	// CursorInit); E2 is the optional second bound used as a fail-fast
	// upper (or lower) check. Both nil for a full scan.
	E1, E2 *Node

	CursorInit CursorOp
	CursorStep CursorOp

	// OrderbySupport is true when MainIndex's path is a prefix of the
	// single $orderby key, letting the scan itself deliver sorted order.
	OrderbySupport bool

	// SortingRequired is true when $orderby is present but no candidate
	// index covers it; the consumer must route through the external
	// sorter.
	SortingRequired bool

	// UsePrimaryKey marks the primary-key shortcut: PrimaryKeyIDs holds the id set directly,
	// bypassing the index layer entirely.
	UsePrimaryKey bool
	PrimaryKeyIDs []value.Value

	// Residual is every node not already accounted for by E1/E2 (or, for
	// a full scan, the entire tree); the consumer evaluates it per id.
	Residual *Node
}

// IsFullScan reports whether this plan has no usable index and no
// primary-key shortcut.
func (p *Plan) IsFullScan() bool {
	return !p.UsePrimaryKey && p.MainIndex == nil
}

// MainIndexPath returns the selected index's path, "_id" for a primary-key
// plan, or "" for a full scan, for diagnostic logging.
func (p *Plan) MainIndexPath() string {
	if p.UsePrimaryKey {
		return "_id"
	}
	if p.MainIndex == nil {
		return ""
	}
	return p.MainIndex.Path().String()
}

// newFullScanPlan builds a plan that falls back to a full-collection scan
// over the primary map.
func newFullScanPlan(root *Node, sortingRequired bool) *Plan {
	return &Plan{
		CursorInit:      BeforeFirst,
		CursorStep:      Next,
		SortingRequired: sortingRequired,
		Residual:        root,
	}
}

// newPrimaryKeyPlan builds the primary-key shortcut plan.
func newPrimaryKeyPlan(ids []value.Value, residual *Node) *Plan {
	return &Plan{
		UsePrimaryKey: true,
		PrimaryKeyIDs: ids,
		CursorInit:    Eq,
		CursorStep:    Next,
		Residual:      residual,
	}
}
