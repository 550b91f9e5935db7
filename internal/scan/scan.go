// Package scan drives the four scanner variants over a query.Plan:
// primary-key, unique-index, duplicate-index, and full-collection. Each
// produces candidate document ids to a Consumer, honouring the
// consumer's step/rewind/stop protocol, and terminates a bounded index
// walk the instant an $lt/$lte/$begin upper bound fails (the index is
// sorted, so a failure there can never be followed by a match). Every
// variant reduces to the same shape: a single cursor producing candidate
// ids to an evaluate-and-deliver callback, whether that cursor walks a
// B+ tree index or the primary id-ordered store.
package scan

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/index"
	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// Consumer receives scanned ids in turn. Visit returns the step to advance
// by (positive to move forward that many candidates, negative to rewind,
// zero to stop scanning) and whether this id matched. The scanner moves by
// step and counts the ids reported matched for Done's final accounting.
// Done is called exactly once, after the scan stops,
// either because the source was exhausted or because Visit returned a zero
// step; resultCount is the number of ids for which Visit reported matched.
type Consumer interface {
	Visit(id bson.ObjectID) (step int, matched bool)
	Done(resultCount int)
}

// PrimaryStore is the primary id-ordered document store's read surface
// that the full scanner needs; package collection provides the concrete
// implementation. Ascend and Descend are push-style iterators (the
// range-over-func shape): they call yield once per id in order and stop
// early if yield returns false.
type PrimaryStore interface {
	Ascend(yield func(id bson.ObjectID) bool)
	Descend(yield func(id bson.ObjectID) bool)
}

// Run drives plan to completion against ix (nil for a full scan or
// primary-key plan) and store, delivering candidate ids to c.
func Run(plan *query.Plan, ix *index.Index, store PrimaryStore, c Consumer) {
	switch {
	case plan.UsePrimaryKey:
		runPrimaryKey(plan, c)
	case plan.IsFullScan():
		runFullScan(plan, store, c)
	default:
		runIndex(plan, ix, c)
	}
}

// runPrimaryKey implements the primary-key shortcut scanner: one consumer
// call per id named in the plan, no index or store access at all (a
// missing id is simply an orphaned candidate the consumer pipeline's
// load-document step discovers and skips).
func runPrimaryKey(plan *query.Plan, c Consumer) {
	ids := make([]bson.ObjectID, 0, len(plan.PrimaryKeyIDs))
	for _, v := range plan.PrimaryKeyIDs {
		if v.Kind() == value.KindObjectID {
			ids = append(ids, v.AsObjectID())
		}
	}
	drive(sliceWalk(ids), c)
}

// runFullScan walks the primary map in id order, or reverse when the plan
// calls for it ($orderby on the id field, descending, with no covering
// index).
func runFullScan(plan *query.Plan, store PrimaryStore, c Consumer) {
	if plan.CursorStep == query.Prev {
		drive(store.Descend, c)
		return
	}
	drive(store.Ascend, c)
}

// sliceWalk adapts a precomputed id slice to the push-style walk shape the
// other scanners and drive share.
func sliceWalk(ids []bson.ObjectID) func(func(bson.ObjectID) bool) {
	return func(yield func(bson.ObjectID) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// drive implements the step/rewind/stop protocol over any forward-only,
// push-style id source. Visited ids are buffered so
// a negative step can rewind within them without requiring the underlying
// source (a B+ Tree cursor, most often) to support seeking backwards.
func drive(walk func(func(bson.ObjectID) bool), c Consumer) {
	var buf []bson.ObjectID
	pos := 0
	resultCount := 0

	walk(func(id bson.ObjectID) bool {
		buf = append(buf, id)
		for pos < len(buf) {
			step, matched := c.Visit(buf[pos])
			if matched {
				resultCount++
			}
			if step == 0 {
				return false
			}
			pos += step
			if pos < 0 {
				pos = 0
			}
		}
		return true
	})

	c.Done(resultCount)
}
