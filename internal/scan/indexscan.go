package scan

import (
	"bytes"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/index"
	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// runIndex dispatches a unique- or duplicate-index plan by the shape of
// its driving expression. Index.Lookup/LookupRange
// already hide the unique/duplicate key-layout difference, so both
// scanner kinds share one implementation here; duplicate mode's extra
// "de-duplicate consecutive ids" requirement is layered on uniformly
// wherever ids are produced.
func runIndex(plan *query.Plan, ix *index.Index, c Consumer) {
	reverse := plan.CursorStep == query.Prev
	dup := ix.Mode() == index.Duplicate

	if plan.E1 == nil {
		// orderby-support-only candidate: no filter bound, just walk the whole index for its order.
		runCursorBound(ix, nil, nil, false, false, reverse, dup, c)
		return
	}

	switch plan.E1.Op {
	case query.OpEq:
		var ids []bson.ObjectID
		if key, ok := ix.EncodeValue(plan.E1.RHS); ok {
			ids, _ = ix.Lookup(key)
		}
		if reverse {
			reverseIDs(ids)
		}
		runIDSlice(ids, dup, c)
	case query.OpIn:
		ids := lookupIn(ix, plan.E1.Array, reverse)
		runIDSlice(ids, dup, c)
	case query.OpBegin:
		prefix, ok := ix.EncodeValue(plan.E1.RHS)
		if !ok {
			runIDSlice(nil, dup, c)
			return
		}
		runPrefixBound(ix, prefix, reverse, dup, c)
	default:
		low, lowStrict, high, highStrict := boundsFrom(ix, plan.E1, plan.E2)
		runCursorBound(ix, low, high, lowStrict, highStrict, reverse, dup, c)
	}
}

// runIDSlice optionally collapses consecutive duplicate ids, then drives
// the slice through the standard step/rewind/stop protocol.
func runIDSlice(ids []bson.ObjectID, dedupe bool, c Consumer) {
	if dedupe {
		ids = dedupConsecutive(ids)
	}
	drive(sliceWalk(ids), c)
}

// dedupConsecutive drops an id that repeats the immediately preceding one
//.
func dedupConsecutive(ids []bson.ObjectID) []bson.ObjectID {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id == out[len(out)-1] {
			continue
		}
		out = append(out, id)
	}
	return out
}

func reverseIDs(ids []bson.ObjectID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// lookupIn resolves an $in array as sorted point lookups in index key
// order, deduplicating repeated rhs values first.
func lookupIn(ix *index.Index, arr []value.Value, reverse bool) []bson.ObjectID {
	seen := map[string]bool{}
	var keys [][]byte
	for _, v := range arr {
		k, ok := ix.EncodeValue(v)
		if !ok {
			continue
		}
		sk := string(k)
		if seen[sk] {
			continue
		}
		seen[sk] = true
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	var ids []bson.ObjectID
	for _, k := range keys {
		group, err := ix.Lookup(k)
		if err != nil {
			continue
		}
		if reverse {
			reverseIDs(group)
		}
		ids = append(ids, group...)
	}
	return ids
}

// boundsFrom derives the encoded low/high bound keys and their strictness
// from whichever of e1/e2 carries a $gt/$gte and $lt/$lte operator; the
// planner may put either role in either slot.
func boundsFrom(ix *index.Index, e1, e2 *query.Node) (low []byte, lowStrict bool, high []byte, highStrict bool) {
	for _, n := range [2]*query.Node{e1, e2} {
		if n == nil {
			continue
		}
		switch n.Op {
		case query.OpGt, query.OpGte:
			if k, ok := ix.EncodeValue(n.RHS); ok {
				low = k
				lowStrict = n.Op == query.OpGt
			}
		case query.OpLt, query.OpLte:
			if k, ok := ix.EncodeValue(n.RHS); ok {
				high = k
				highStrict = n.Op == query.OpLt
			}
		}
	}
	return
}

// runCursorBound walks ix between low and high (either nil for unbounded),
// applying exact strict-bound filtering via Index.ValuePart since a B+ Tree
// range is inclusive on both ends and, in Duplicate mode, bounded on a
// compound (value, doc-id) key rather than the bare value. An upper-bound
// failure (or, walking in reverse, a lower-bound failure) is terminal: the
// index is sorted, so nothing past it can match either.
func runCursorBound(ix *index.Index, low, high []byte, lowStrict, highStrict, reverse, dup bool, c Consumer) {
	cur := ix.OpenCursor(low, high, reverse)
	walk := func(yield func(bson.ObjectID) bool) {
		defer cur.Close()
		var last bson.ObjectID
		haveLast := false
		for {
			key, id, ok := cur.Next()
			if !ok {
				return
			}
			v := ix.ValuePart(key)

			if reverse {
				if high != nil && violates(v, high, highStrict, true) {
					continue
				}
				if low != nil && violates(v, low, lowStrict, false) {
					return
				}
			} else {
				if low != nil && violates(v, low, lowStrict, false) {
					continue
				}
				if high != nil && violates(v, high, highStrict, true) {
					return
				}
			}

			if dup && haveLast && id == last {
				continue
			}
			last, haveLast = id, true
			if !yield(id) {
				return
			}
		}
	}
	drive(walk, c)
}

// runPrefixBound walks ix for every key carrying the given byte prefix
// ($begin, string indexes only); a mismatch encountered after the first
// matching entry is terminal, one encountered before it just means the
// cursor hasn't reached the prefixed region yet (relevant only to the
// reverse-walk case, where the cursor starts at the top of the tree).
func runPrefixBound(ix *index.Index, prefix []byte, reverse, dup bool, c Consumer) {
	high := ix.PrefixUpperBound(prefix)
	var cur *index.Cursor
	if reverse {
		cur = ix.OpenCursor(prefix, high, true)
	} else {
		cur = ix.OpenCursor(prefix, nil, false)
	}

	walk := func(yield func(bson.ObjectID) bool) {
		defer cur.Close()
		entered := false
		var last bson.ObjectID
		haveLast := false
		for {
			key, id, ok := cur.Next()
			if !ok {
				return
			}
			v := ix.ValuePart(key)
			if !bytes.HasPrefix(v, prefix) {
				if entered {
					return
				}
				continue
			}
			entered = true

			if dup && haveLast && id == last {
				continue
			}
			last, haveLast = id, true
			if !yield(id) {
				return
			}
		}
	}
	drive(walk, c)
}

// violates reports whether v fails a bound: upper checks v > bound (or >=
// when strict); !upper checks v < bound (or <= when strict).
func violates(v, bound []byte, strict, upper bool) bool {
	cmp := bytes.Compare(v, bound)
	if upper {
		return cmp > 0 || (cmp == 0 && strict)
	}
	return cmp < 0 || (cmp == 0 && strict)
}
