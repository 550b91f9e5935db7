package query

import "github.com/nimbusdb/nimbusdb/internal/value"

// defaultMaxArrayLen is the implementation bound on an $in/$nin rhs array
// length past which a node is no longer solid.
const defaultMaxArrayLen = 500

// Optimizer selects the main index (if any) for a parsed filter tree over
// the collection's declared indexes and, failing that, an orderby-only scan.
type Optimizer struct {
	indexes        []IndexDescriptor
	primaryKeyPath value.Path
}

// NewOptimizer creates an Optimizer over the collection's declared
// indexes. primaryKeyPath names the document-id field, enabling the
// primary-key shortcut.
func NewOptimizer(indexes []IndexDescriptor, primaryKeyPath value.Path) *Optimizer {
	return &Optimizer{indexes: indexes, primaryKeyPath: primaryKeyPath}
}

// candidate is one index's proposed plan, before ranking.
type candidate struct {
	idx        IndexDescriptor
	e1, e2     *Node
	cursorInit CursorOp
	cursorStep CursorOp
	weight     int
	hasUpper   bool
	used       map[*Node]bool
}

// Select computes a plan for root given orderBy.
func (o *Optimizer) Select(root *Node, orderBy []OrderByKey) *Plan {
	solid := collectSolidTopLevel(root)

	if pk := o.tryPrimaryKey(root, solid); pk != nil {
		return pk
	}

	byPath := map[string][]*Node{}
	for _, n := range solid {
		key := n.Path.String()
		byPath[key] = append(byPath[key], n)
	}

	var best *candidate
	for _, idx := range o.indexes {
		c := o.buildCandidate(idx, byPath[idx.Path().String()])
		if c == nil && len(orderBy) == 1 && idx.Path().Prefix(orderBy[0].Path) {
			c = &candidate{idx: idx, cursorInit: BeforeFirst, cursorStep: Next, weight: 8, used: map[*Node]bool{}}
		}
		if c == nil {
			continue
		}
		if betterCandidate(c, best) {
			best = c
		}
	}

	if best == nil {
		return newFullScanPlan(root, len(orderBy) > 0)
	}

	orderbySupport := len(orderBy) == 1 && best.idx.Path().Prefix(orderBy[0].Path)
	if orderbySupport && orderBy[0].Descending {
		best.cursorInit = AfterLast
		best.cursorStep = Prev
	}
	sortingRequired := len(orderBy) > 0 && !orderbySupport

	return &Plan{
		MainIndex:       best.idx,
		E1:              best.e1,
		E2:              best.e2,
		CursorInit:      best.cursorInit,
		CursorStep:      best.cursorStep,
		OrderbySupport:  orderbySupport,
		SortingRequired: sortingRequired,
		Residual:        buildResidual(root, best.used),
	}
}

// tryPrimaryKey implements the primary-key shortcut: an eligible $eq or
// $in node on the id field bypasses the index layer entirely.
func (o *Optimizer) tryPrimaryKey(root *Node, solid []*Node) *Plan {
	if o.primaryKeyPath.String() == "" {
		return nil
	}
	for _, n := range solid {
		if n.Path.String() != o.primaryKeyPath.String() {
			continue
		}
		switch n.Op {
		case OpEq:
			used := map[*Node]bool{n: true}
			return newPrimaryKeyPlan([]value.Value{n.RHS}, buildResidual(root, used))
		case OpIn:
			used := map[*Node]bool{n: true}
			return newPrimaryKeyPlan(n.Array, buildResidual(root, used))
		}
	}
	return nil
}

// buildCandidate folds every solid node on idx's path into bounding
// expressions: equality wins outright; otherwise $in or $begin drive the
// cursor; otherwise range bounds ($gt/$gte low, $lt/$lte high) tighten
// e1/e2.
func (o *Optimizer) buildCandidate(idx IndexDescriptor, nodes []*Node) *candidate {
	var eqNode, inNode, beginNode, lowNode, highNode *Node

	for _, n := range nodes {
		if !n.IsSolid(defaultMaxArrayLen, idx.RowCount()) {
			continue
		}
		switch n.Op {
		case OpEq:
			if eqNode == nil {
				eqNode = n
			}
		case OpIn:
			if inNode == nil {
				inNode = n
			}
		case OpBegin:
			if beginNode == nil && idx.ValueKind() == IndexKindString {
				beginNode = n
			}
		case OpGt, OpGte:
			if lowNode == nil || value.Compare(n.RHS, lowNode.RHS) > 0 {
				lowNode = n
			}
		case OpLt, OpLte:
			if highNode == nil || value.Compare(n.RHS, highNode.RHS) < 0 {
				highNode = n
			}
		}
	}

	c := &candidate{idx: idx, cursorInit: BeforeFirst, cursorStep: Next, used: map[*Node]bool{}}

	switch {
	case eqNode != nil:
		c.e1 = eqNode
		c.cursorInit = Eq
		c.weight = 10
		c.used[eqNode] = true
	case inNode != nil:
		c.e1 = inNode
		c.cursorInit = Eq
		c.weight = 9
		c.used[inNode] = true
	case beginNode != nil:
		c.e1 = beginNode
		c.cursorInit = Eq
		c.weight = 6
		c.used[beginNode] = true
	default:
		if lowNode != nil {
			c.e1 = lowNode
			c.cursorInit = Eq
			c.weight = 7
			c.used[lowNode] = true
		}
		if highNode != nil {
			if c.e1 == nil {
				c.e1 = highNode
				c.cursorInit = Eq
				c.weight = 5
			} else {
				c.e2 = highNode
				c.hasUpper = true
			}
			c.used[highNode] = true
		}
	}

	if c.e1 == nil {
		return nil
	}
	return c
}

// betterCandidate ranks two candidates: operator weight, then two-sided
// range preference, then smaller index row count, then shorter index
// path.
func betterCandidate(a, b *candidate) bool {
	if b == nil {
		return true
	}
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if a.hasUpper != b.hasUpper {
		return a.hasUpper
	}
	if a.idx.RowCount() != b.idx.RowCount() {
		return a.idx.RowCount() < b.idx.RowCount()
	}
	return len(a.idx.Path().String()) < len(b.idx.Path().String())
}

// collectSolidTopLevel gathers every leaf reachable from root through
// nothing but non-negated AND nodes. $and's subquery-array form nests
// each sub-query's predicates in their own AND node (parseSubqueryArray
// wraps every element of "$and": [...] in NewAndNode), so a leaf can sit
// several AND layers below root without anything solid-breaking (an $or,
// a $not, or a negated node) in between. A leaf nested under a
// disjunction, negation, or reached through a negated AND never
// participates in index selection, only in the residual filter.
func collectSolidTopLevel(root *Node) []*Node {
	if root == nil || root.Negate || root.Join != JoinAnd {
		return nil
	}
	var out []*Node
	collectSolidAnd(root, &out)
	return out
}

// collectSolidAnd appends n's solid leaves to out, recursing into any
// non-negated AND child. Call only on a non-negated AND node.
func collectSolidAnd(n *Node, out *[]*Node) {
	for _, c := range n.Children {
		switch {
		case c.Join == JoinLeaf && !c.Negate && c.IsSolid(defaultMaxArrayLen, 0):
			*out = append(*out, c)
		case c.Join == JoinAnd && !c.Negate:
			collectSolidAnd(c, out)
		}
	}
}

// buildResidual clones root, marking every node present in used as
// Prematched so the consumer's evaluator (package query's Evaluator)
// skips re-checking a condition the scan already guarantees.
func buildResidual(root *Node, used map[*Node]bool) *Node {
	if root == nil {
		return nil
	}
	clone := *root
	if used[root] {
		clone.Prematched = true
	}
	if len(root.Children) > 0 {
		clone.Children = make([]*Node, len(root.Children))
		for i, c := range root.Children {
			clone.Children[i] = buildResidual(c, used)
		}
	}
	return &clone
}
