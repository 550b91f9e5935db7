package query

import (
	"regexp"
	"strings"
	"sync"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

// Evaluator evaluates filter trees against one document in memory, over
// the query package's operator set and value.Path resolution.
//
// Evaluation is short-circuit left-to-right within a conjunction and
// short-circuit on first match within a disjunction. A node with Prematched set returns true without touching the
// document, since the chosen scanner already guarantees it.
type Evaluator struct {
	regexCache   map[string]*regexp.Regexp
	regexCacheMu sync.Mutex
}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{regexCache: make(map[string]*regexp.Regexp)}
}

// Match is the evaluator's verdict plus, for $elemMatch, the array index
// of the matching element.
type Match struct {
	Matched    bool
	ArrayIndex int // -1 unless a positional operator produced a match
}

// Evaluate tests doc against n, returning Match.Matched and, for
// $elemMatch, the matched element's index.
func (e *Evaluator) Evaluate(n *Node, doc value.Value) Match {
	if n == nil {
		return Match{Matched: true, ArrayIndex: -1}
	}
	m := e.evaluate(n, doc)
	if n.Negate {
		m.Matched = !m.Matched
	}
	return m
}

func (e *Evaluator) evaluate(n *Node, doc value.Value) Match {
	if n.Prematched {
		return Match{Matched: true, ArrayIndex: -1}
	}

	switch n.Join {
	case JoinAnd:
		return e.evaluateAnd(n, doc)
	case JoinOr:
		return e.evaluateOr(n, doc)
	default:
		return e.evaluateLeaf(n, doc)
	}
}

func (e *Evaluator) evaluateAnd(n *Node, doc value.Value) Match {
	if len(n.Children) == 0 {
		return Match{Matched: true, ArrayIndex: -1}
	}
	idx := -1
	for _, c := range n.Children {
		m := e.Evaluate(c, doc)
		if !m.Matched {
			return Match{Matched: false, ArrayIndex: -1}
		}
		if m.ArrayIndex >= 0 {
			idx = m.ArrayIndex
		}
	}
	return Match{Matched: true, ArrayIndex: idx}
}

func (e *Evaluator) evaluateOr(n *Node, doc value.Value) Match {
	if len(n.Children) == 0 {
		return Match{Matched: false, ArrayIndex: -1}
	}
	for _, c := range n.Children {
		if m := e.Evaluate(c, doc); m.Matched {
			return m
		}
	}
	return Match{Matched: false, ArrayIndex: -1}
}

func (e *Evaluator) evaluateLeaf(n *Node, doc value.Value) Match {
	switch n.Op {
	case OpExists:
		_, found := value.ResolveFirst(doc, n.Path)
		want := n.RHS.AsBool()
		return boolMatch(found == want)

	case OpElemMatch:
		return e.evaluateElemMatch(n, doc)

	case OpRegex:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return e.matchRegex(n.RegexSrc, v)
		})

	case OpStrand:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return matchTokenSet(v, n.Array, true)
		})

	case OpStror:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return matchTokenSet(v, n.Array, false)
		})

	case OpBegin:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return matchBegin(v, n)
		})

	case OpBt:
		lo, hi := n.Array[0], n.Array[1]
		if value.Compare(lo, hi) > 0 {
			lo, hi = hi, lo
		}
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return value.Compare(v, lo) >= 0 && value.Compare(v, hi) <= 0
		})

	case OpIn:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return containsEqual(n.Array, v, n.caseInsensitive)
		})

	case OpNin:
		return e.evaluateAllMissOrNone(n.Path, doc, func(v value.Value) bool {
			return containsEqual(n.Array, v, n.caseInsensitive)
		})

	case OpNi:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			if v.Kind() != value.KindArray {
				return false
			}
			for _, e2 := range v.AsArray() {
				if valuesEqual(e2, n.RHS, n.caseInsensitive) {
					return true
				}
			}
			return false
		})

	case OpGt:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool { return value.Compare(v, n.RHS) > 0 })
	case OpGte:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool { return value.Compare(v, n.RHS) >= 0 })
	case OpLt:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool { return value.Compare(v, n.RHS) < 0 })
	case OpLte:
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool { return value.Compare(v, n.RHS) <= 0 })

	default: // OpEq
		return e.evaluateAny(n.Path, doc, func(v value.Value) bool {
			return valuesEqual(v, n.RHS, n.caseInsensitive)
		})
	}
}

// evaluateAny resolves path against doc and reports true if pred holds
// for any resolved value.
func (e *Evaluator) evaluateAny(path value.Path, doc value.Value, pred func(value.Value) bool) Match {
	matches := value.Resolve(doc, path)
	for _, m := range matches {
		if pred(m.Value) {
			return Match{Matched: true, ArrayIndex: m.ArrayIndex}
		}
	}
	return Match{Matched: false, ArrayIndex: -1}
}

// evaluateAllMissOrNone implements $nin: the path must resolve to no
// value for which pred holds. An empty resolution vacuously matches
//.
func (e *Evaluator) evaluateAllMissOrNone(path value.Path, doc value.Value, pred func(value.Value) bool) Match {
	matches := value.Resolve(doc, path)
	for _, m := range matches {
		if pred(m.Value) {
			return Match{Matched: false, ArrayIndex: -1}
		}
	}
	return Match{Matched: true, ArrayIndex: -1}
}

func (e *Evaluator) evaluateElemMatch(n *Node, doc value.Value) Match {
	matches := value.Resolve(doc, n.Path)
	for _, m := range matches {
		if m.Value.Kind() != value.KindArray {
			continue
		}
		for i, elem := range m.Value.AsArray() {
			if e.Evaluate(n.Sub, elem).Matched {
				return Match{Matched: true, ArrayIndex: i}
			}
		}
	}
	return Match{Matched: false, ArrayIndex: -1}
}

func boolMatch(b bool) Match {
	return Match{Matched: b, ArrayIndex: -1}
}

func valuesEqual(a, b value.Value, caseInsensitive bool) bool {
	if caseInsensitive && a.Kind() == value.KindString && b.Kind() == value.KindString {
		return value.EqualFold(a.AsString(), b.AsString())
	}
	return value.Equal(a, b)
}

func containsEqual(set []value.Value, v value.Value, caseInsensitive bool) bool {
	for _, s := range set {
		if valuesEqual(s, v, caseInsensitive) {
			return true
		}
	}
	return false
}

func matchBegin(v value.Value, n *Node) bool {
	if v.Kind() != value.KindString {
		return false
	}
	s := v.AsString()
	if n.Array != nil {
		for _, p := range n.Array {
			if p.Kind() == value.KindString && value.HasPrefixFold(s, p.AsString()) {
				return true
			}
		}
		return false
	}
	return n.RHS.Kind() == value.KindString && value.HasPrefixFold(s, n.RHS.AsString())
}

// matchTokenSet implements $strand ("all tokens present") and $stror
// ("any token present"): the field value is split on whitespace and
// punctuation into tokens, then set semantics are applied against the
// operator's token array.
func matchTokenSet(v value.Value, tokens []value.Value, requireAll bool) bool {
	if v.Kind() != value.KindString {
		return false
	}
	present := tokenize(v.AsString())
	for _, t := range tokens {
		if t.Kind() != value.KindString {
			continue
		}
		_, ok := present[strings.ToLower(t.AsString())]
		if requireAll && !ok {
			return false
		}
		if !requireAll && ok {
			return true
		}
	}
	return requireAll
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	start := -1
	flush := func(end int) {
		if start >= 0 {
			out[strings.ToLower(s[start:end])] = struct{}{}
			start = -1
		}
	}
	for i, r := range s {
		if isTokenSep(r) {
			flush(i)
		} else if start < 0 {
			start = i
		}
	}
	flush(len(s))
	return out
}

func isTokenSep(r rune) bool {
	switch {
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	default:
		return true
	}
}

func (e *Evaluator) matchRegex(pattern string, v value.Value) bool {
	if v.Kind() != value.KindString {
		return false
	}
	e.regexCacheMu.Lock()
	re, ok := e.regexCache[pattern]
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			e.regexCacheMu.Unlock()
			return false
		}
		re = compiled
		e.regexCache[pattern] = re
	}
	e.regexCacheMu.Unlock()
	return re.MatchString(v.AsString())
}
