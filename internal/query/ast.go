package query

import "github.com/nimbusdb/nimbusdb/internal/value"

// Op identifies a field-predicate operator recognised by the parser
//.
type Op int

const (
	// OpEq is implicit equality: "<path>": <scalar>.
	OpEq Op = iota
	OpIn
	OpNin
	OpNi
	OpGt
	OpGte
	OpLt
	OpLte
	OpBt
	OpBegin
	OpIcase
	OpStrand
	OpStror
	OpExists
	OpElemMatch
	OpRegex
)

// String names the operator for diagnostics and plan logging.
func (o Op) String() string {
	switch o {
	case OpEq:
		return "$eq"
	case OpIn:
		return "$in"
	case OpNin:
		return "$nin"
	case OpNi:
		return "$ni"
	case OpGt:
		return "$gt"
	case OpGte:
		return "$gte"
	case OpLt:
		return "$lt"
	case OpLte:
		return "$lte"
	case OpBt:
		return "$bt"
	case OpBegin:
		return "$begin"
	case OpIcase:
		return "$icase"
	case OpStrand:
		return "$strand"
	case OpStror:
		return "$stror"
	case OpExists:
		return "$exists"
	case OpElemMatch:
		return "$elemMatch"
	case OpRegex:
		return "$regex"
	default:
		return "$unknown"
	}
}

// JoinKind identifies how an internal tree node combines its children.
type JoinKind int

const (
	// JoinLeaf marks a node that is a single field predicate, not a
	// boolean combination of children.
	JoinLeaf JoinKind = iota
	JoinAnd
	JoinOr
)

// Node is one node of the filter expression tree: either a leaf field
// predicate (Join == JoinLeaf) or an internal And/Or combination of
// Children. Negate flips the evaluated result of this node, implementing
// both field-level $not and the standalone $not:{...} clause.
//
// Prematched is set by the planner on the leaf node that drove the chosen
// scan, and on both bound leaves of a two-sided range; the residual evaluator skips
// nodes with Prematched set, since the scan itself already satisfied them.
type Node struct {
	Join     JoinKind
	Negate   bool
	Children []*Node

	// Leaf fields, valid only when Join == JoinLeaf.
	Path  value.Path
	Op    Op
	RHS   value.Value    // scalar right-hand side
	Array []value.Value  // array right-hand side ($in, $nin, $bt, $strand, $stror, $begin-multi)
	Sub   *Node          // sub-query right-hand side ($elemMatch)
	RegexSrc string

	// caseInsensitive is set by $icase on a leaf predicate.
	caseInsensitive bool

	Prematched bool
}

// IsSolid reports whether a node is eligible for index selection
//: a plain path, no enclosing
// disjunction/negation (checked by the caller walking the tree), not a
// regex, not $elemMatch, and any array RHS within the implementation
// bound.
func (n *Node) IsSolid(maxArrayLen int, indexRowCount int64) bool {
	if n.Join != JoinLeaf {
		return false
	}
	if !n.Path.IsPlain() {
		return false
	}
	if n.Op == OpRegex || n.Op == OpElemMatch {
		return false
	}
	if n.Array != nil {
		limit := maxArrayLen
		if indexRowCount > 0 {
			frac := int(float64(indexRowCount) * 0.005)
			if frac < limit {
				limit = frac
			}
		}
		if limit > 0 && len(n.Array) > limit {
			return false
		}
	}
	return true
}

// OrderByKey is one key of an $orderby clause: a path and ascending (1) /
// descending (-1) sign.
type OrderByKey struct {
	Path       value.Path
	Descending bool
}

// JoinClause is a $do.<field>.$join / $slice projection directive.
type JoinClause struct {
	Path       value.Path
	Collection string // set for $join
	HasSlice   bool
	SliceFrom  int
	SliceTo    int
}

// FieldProjection controls $fields inclusion/exclusion. Include and
// Exclude are mutually exclusive; mixing them is a parse error.
type FieldProjection struct {
	Include []value.Path
	Exclude []value.Path
}

// Apply holds every apply/hint clause the parser lifts out of the filter
// tree: update operators, $upsert, $dropall, joins,
// ordering, paging, and projection.
type Apply struct {
	Set         map[string]value.Value
	Unset       []value.Path
	Inc         map[string]value.Value
	Rename      map[string]string // old path -> new path, same parent
	AddToSet    map[string]value.Value
	AddToSetAll map[string][]value.Value
	Push        map[string]value.Value
	PushAll     map[string][]value.Value
	Pull        map[string]value.Value
	PullAll     map[string][]value.Value
	Upsert      *value.Object

	DropAll bool

	Joins []JoinClause

	OrderBy []OrderByKey
	Skip    int64
	Max     int64 // read only when HasMax is set; $max: 0 delivers nothing
	HasMax  bool

	Fields *FieldProjection
}

// HasMutation reports whether executing this query would write to the
// collection, which determines whether the execution driver must acquire
// a write lock.
func (a *Apply) HasMutation() bool {
	if a == nil {
		return false
	}
	return len(a.Set) > 0 || len(a.Unset) > 0 || len(a.Inc) > 0 || len(a.Rename) > 0 ||
		len(a.AddToSet) > 0 || len(a.AddToSetAll) > 0 ||
		len(a.Push) > 0 || len(a.PushAll) > 0 ||
		len(a.Pull) > 0 || len(a.PullAll) > 0 ||
		a.Upsert != nil || a.DropAll
}

// Query is the parser's output: the filter expression tree plus the
// apply/hint side structure.
type Query struct {
	Root  *Node
	Apply *Apply
}

// NewAndNode builds an AND combination; an empty Children list matches
// everything (vacuous truth).
func NewAndNode(children ...*Node) *Node {
	return &Node{Join: JoinAnd, Children: children}
}

// NewOrNode builds an OR combination; an empty Children list matches nothing.
func NewOrNode(children ...*Node) *Node {
	return &Node{Join: JoinOr, Children: children}
}

// NewNotNode negates child. Double negation ($not:{$not:x}) is not a
// special case: negating a node whose Negate is already true simply
// flips it back.
func NewNotNode(child *Node) *Node {
	if child == nil {
		return nil
	}
	dup := *child
	dup.Negate = !child.Negate
	return &dup
}

// NewLeaf builds a leaf field predicate node.
func NewLeaf(path value.Path, op Op, rhs value.Value) *Node {
	return &Node{Join: JoinLeaf, Path: path, Op: op, RHS: rhs}
}
