package query

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

// ParseError reports a query parse failure. Offset is always 0: the parser
// walks the already-decoded document and does not track byte positions in
// the source BSON.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query parse error at offset %d: %s", e.Offset, e.Message)
}

func parseErr(offset int, format string, args ...any) error {
	return &ParseError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// knownApplyKeys lists every recognised apply/hint clause; anything else starting with "$" at the top level of a
// query or sub-query object is an unknown top-level $-key parse error.
var knownApplyKeys = map[string]bool{
	"$set": true, "$unset": true, "$inc": true, "$rename": true,
	"$addToSet": true, "$addToSetAll": true,
	"$push": true, "$pushAll": true,
	"$pull": true, "$pullAll": true,
	"$upsert": true, "$dropall": true, "$do": true,
	"$orderby": true, "$skip": true, "$max": true, "$fields": true,
}

var knownFieldOps = map[string]bool{
	"$eq": true, "$in": true, "$nin": true, "$ni": true, "$not": true,
	"$gt": true, "$gte": true, "$lt": true, "$lte": true, "$bt": true,
	"$begin": true, "$icase": true, "$strand": true, "$stror": true,
	"$exists": true, "$elemMatch": true, "$regex": true,
}

// Parse decodes raw BSON query bytes and parses them into a Query.
func Parse(raw []byte) (*Query, error) {
	doc, err := value.Decode(raw)
	if err != nil {
		return nil, errors.Wrap(err, "query: decode")
	}
	return ParseValue(doc)
}

// ParseValue parses an already-decoded document value into a Query. This
// entry point lets hint documents and $or/$and sub-queries share the same
// parser.
func ParseValue(doc value.Value) (*Query, error) {
	if doc.Kind() != value.KindObject {
		return nil, parseErr(0, "query root must be an object")
	}

	p := &parseState{apply: &Apply{}}
	root, err := p.parseTopLevel(doc.AsObject())
	if err != nil {
		return nil, err
	}
	return &Query{Root: root, Apply: p.apply}, nil
}

type parseState struct {
	offset int
	apply  *Apply
}

// parseTopLevel parses the top-level query object: compound operators,
// apply/hint clauses, and field predicates, combined by implicit
// conjunction.
func (p *parseState) parseTopLevel(obj *value.Object) (*Node, error) {
	var children []*Node

	for _, key := range obj.Keys() {
		val, _ := obj.Get(key)

		switch {
		case key == "$and":
			subs, err := p.parseSubqueryArray(val)
			if err != nil {
				return nil, err
			}
			children = append(children, subs...)

		case key == "$or":
			subs, err := p.parseSubqueryArray(val)
			if err != nil {
				return nil, err
			}
			children = append(children, NewOrNode(subs...))

		case key == "$not":
			if val.Kind() != value.KindObject {
				return nil, parseErr(p.offset, "$not requires a sub-query object")
			}
			inner, err := p.parseTopLevel(val.AsObject())
			if err != nil {
				return nil, err
			}
			children = append(children, NewNotNode(inner))

		case knownApplyKeys[key]:
			if err := p.parseApplyClause(key, val); err != nil {
				return nil, err
			}

		case len(key) > 0 && key[0] == '$':
			return nil, parseErr(p.offset, "unknown top-level key %q", key)

		default:
			node, err := p.parseFieldPredicate(key, val)
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
	}

	return NewAndNode(children...), nil
}

func (p *parseState) parseSubqueryArray(v value.Value) ([]*Node, error) {
	if v.Kind() != value.KindArray {
		return nil, parseErr(p.offset, "expected an array of sub-queries")
	}
	var out []*Node
	for _, elem := range v.AsArray() {
		if elem.Kind() != value.KindObject {
			return nil, parseErr(p.offset, "sub-query must be an object")
		}
		node, err := p.parseTopLevel(elem.AsObject())
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// parseFieldPredicate parses "<path>": <scalar-or-operator-object>.
func (p *parseState) parseFieldPredicate(path string, rhs value.Value) (*Node, error) {
	compiled := value.CompilePath(path)

	if rhs.Kind() != value.KindObject {
		return NewLeaf(compiled, OpEq, rhs), nil
	}

	// An operator object is a map whose keys begin with "$"; if none of
	// its keys do, treat the object itself as a literal equality value
	// (an embedded-document equality match).
	obj := rhs.AsObject()
	hasOperatorKey := false
	for _, k := range obj.Keys() {
		if len(k) > 0 && k[0] == '$' {
			hasOperatorKey = true
			break
		}
	}
	if !hasOperatorKey {
		return NewLeaf(compiled, OpEq, rhs), nil
	}

	return p.parseOperatorObject(compiled, obj)
}

func (p *parseState) parseOperatorObject(path value.Path, obj *value.Object) (*Node, error) {
	var nodes []*Node

	for _, key := range obj.Keys() {
		val, _ := obj.Get(key)
		if !knownFieldOps[key] {
			return nil, parseErr(p.offset, "unknown operator %q", key)
		}

		node, err := p.parseOneOperator(path, key, val)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return NewAndNode(nodes...), nil
}

func (p *parseState) parseOneOperator(path value.Path, key string, val value.Value) (*Node, error) {
	switch key {
	case "$eq":
		return NewLeaf(path, OpEq, val), nil
	case "$in":
		arr, err := requireArray(val, p.offset, "$in")
		if err != nil {
			return nil, err
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpIn, Array: arr}, nil
	case "$nin":
		arr, err := requireArray(val, p.offset, "$nin")
		if err != nil {
			return nil, err
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpNin, Array: arr}, nil
	case "$ni":
		return &Node{Join: JoinLeaf, Path: path, Op: OpNi, RHS: val}, nil
	case "$not":
		var inner *Node
		var err error
		if val.Kind() == value.KindObject {
			inner, err = p.parseOperatorObject(path, val.AsObject())
		} else {
			inner = NewLeaf(path, OpEq, val)
		}
		if err != nil {
			return nil, err
		}
		return NewNotNode(inner), nil
	case "$gt":
		return NewLeaf(path, OpGt, val), nil
	case "$gte":
		return NewLeaf(path, OpGte, val), nil
	case "$lt":
		return NewLeaf(path, OpLt, val), nil
	case "$lte":
		return NewLeaf(path, OpLte, val), nil
	case "$bt":
		arr, err := requireArray(val, p.offset, "$bt")
		if err != nil {
			return nil, err
		}
		if len(arr) != 2 {
			return nil, parseErr(p.offset, "$bt requires a two-element array")
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpBt, Array: arr}, nil
	case "$begin":
		if val.Kind() == value.KindArray {
			return &Node{Join: JoinLeaf, Path: path, Op: OpBegin, Array: val.AsArray()}, nil
		}
		return NewLeaf(path, OpBegin, val), nil
	case "$icase":
		return p.parseIcase(path, val)
	case "$strand":
		arr, err := requireArray(val, p.offset, "$strand")
		if err != nil {
			return nil, err
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpStrand, Array: arr}, nil
	case "$stror":
		arr, err := requireArray(val, p.offset, "$stror")
		if err != nil {
			return nil, err
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpStror, Array: arr}, nil
	case "$exists":
		if val.Kind() != value.KindBool {
			return nil, parseErr(p.offset, "$exists requires a boolean")
		}
		return NewLeaf(path, OpExists, val), nil
	case "$elemMatch":
		if val.Kind() != value.KindObject {
			return nil, parseErr(p.offset, "$elemMatch requires a sub-query object")
		}
		sub, err := p.parseTopLevel(val.AsObject())
		if err != nil {
			return nil, err
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpElemMatch, Sub: sub}, nil
	case "$regex":
		if val.Kind() != value.KindString {
			return nil, parseErr(p.offset, "$regex requires a string pattern")
		}
		return &Node{Join: JoinLeaf, Path: path, Op: OpRegex, RegexSrc: val.AsString()}, nil
	default:
		return nil, parseErr(p.offset, "unknown operator %q", key)
	}
}

func (p *parseState) parseIcase(path value.Path, val value.Value) (*Node, error) {
	if val.Kind() == value.KindObject {
		inner, err := p.parseOperatorObject(path, val.AsObject())
		if err != nil {
			return nil, err
		}
		markCaseInsensitive(inner)
		return inner, nil
	}
	n := NewLeaf(path, OpEq, val)
	n.caseInsensitive = true
	return n, nil
}

func markCaseInsensitive(n *Node) {
	if n == nil {
		return
	}
	if n.Join == JoinLeaf {
		n.caseInsensitive = true
		return
	}
	for _, c := range n.Children {
		markCaseInsensitive(c)
	}
}

func requireArray(v value.Value, offset int, op string) ([]value.Value, error) {
	if v.Kind() != value.KindArray {
		return nil, parseErr(offset, "%s requires an array", op)
	}
	return v.AsArray(), nil
}
