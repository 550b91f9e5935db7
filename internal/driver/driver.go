// Package driver implements the execution driver that turns a parsed
// query into a completed scan: it acquires the database and collection
// locks at the right level, computes a plan, wires the scanner through
// the consumer pipeline (and, when ordering demands it, the external
// sorter), runs the scan to completion, and emits one diagnostic log
// entry describing how the query ran.
package driver

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"

	"github.com/nimbusdb/nimbusdb/internal/collection"
	"github.com/nimbusdb/nimbusdb/internal/consumer"
	"github.com/nimbusdb/nimbusdb/internal/index"
	"github.com/nimbusdb/nimbusdb/internal/join"
	"github.com/nimbusdb/nimbusdb/internal/logging"
	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/scan"
	"github.com/nimbusdb/nimbusdb/internal/sortx"
	"github.com/nimbusdb/nimbusdb/internal/value"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// queriesExecuted and queriesSorted are process-wide counters exposed
// through metrics.WritePrometheus, one per completed query and one per
// query that routed through the external sorter.
var (
	queriesExecuted = metrics.NewCounter("nimbusdb_queries_executed_total")
	queriesSorted   = metrics.NewCounter("nimbusdb_queries_sorted_total")
)

// Driver runs queries against one collection registry. Logger is optional;
// a nil Logger silently drops the per-query diagnostic entry.
type Driver struct {
	Registry *collection.Registry
	Logger   logging.Logger
}

// New creates a Driver over registry. A nil logger is allowed.
func New(registry *collection.Registry, logger logging.Logger) *Driver {
	return &Driver{Registry: registry, Logger: logger}
}

// Result is what one query execution produced: the matched/delivered
// count and, when the query carried $upsert and matched nothing, the id
// of the document it inserted.
type Result struct {
	Count      int
	UpsertedID bson.ObjectID
	Upserted   bool
}

// Exec runs raw (a BSON query document) against the named collection,
// delivering each projected result to visit in turn, exactly as
// scan.Consumer's step protocol: a positive step advances, zero stops
// early. visit may be nil for a query run purely for its side effects or
// its count.
//
// Locking follows the outer-before-inner hierarchy: the registry's own
// lock first, then the target collection's lock, read unless the query
// carries a mutation operator or $upsert, in which case the collection
// lock is taken exclusively (the registry lock itself stays a read-lock,
// since no collection is created or removed — only the map entry
// pointing at the target collection is read).
func (d *Driver) Exec(collName string, raw []byte, hint []byte, visit consumer.Visitor) (Result, error) {
	q, err := query.Parse(raw)
	if err != nil {
		return Result{}, err
	}
	return d.run(collName, q, hint, visit)
}

// ExecValue is Exec over an already-decoded query document, used by
// callers (such as patch()) that build the query programmatically rather
// than receiving raw BSON bytes.
func (d *Driver) ExecValue(collName string, doc value.Value, hint []byte, visit consumer.Visitor) (Result, error) {
	q, err := query.ParseValue(doc)
	if err != nil {
		return Result{}, err
	}
	return d.run(collName, q, hint, visit)
}

func (d *Driver) run(collName string, q *query.Query, hintRaw []byte, visit consumer.Visitor) (Result, error) {
	write := q.Apply.HasMutation()

	d.Registry.DBLock().RLock()
	defer d.Registry.DBLock().RUnlock()

	coll, ok := d.Registry.Get(collName)
	if !ok {
		return Result{}, fmt.Errorf("driver: collection %q not found", collName)
	}

	if write {
		coll.Lock.Lock()
		defer coll.Lock.Unlock()
	} else {
		coll.Lock.RLock()
		defer coll.Lock.RUnlock()
	}

	if err := mergeHint(q, hintRaw); err != nil {
		return Result{}, err
	}

	var orderBy []query.OrderByKey
	if q.Apply != nil {
		orderBy = q.Apply.OrderBy
	}
	plan := query.NewOptimizer(coll.Indexes.List(), value.CompilePath("_id")).Select(q.Root, orderBy)

	pipelineVisitor := visit
	var sorter *sortx.Sorter
	if plan.SortingRequired {
		sorter = sortx.New(sortx.Options{})
		defer sorter.Close()
		pipelineVisitor = sorterVisitor{sorter}
	}

	pipeline := consumer.New(plan.Residual, sortedApply(q.Apply, plan.SortingRequired), consumer.Config{
		Store:   coll.Primary,
		Index:   coll.Indexes,
		Joiner:  join.NewResolver(collection.JoinStore{Registry: d.Registry}),
		Logger:  d.Logger,
		Visitor: pipelineVisitor,
	})

	var ix *index.Index
	if !plan.IsFullScan() && !plan.UsePrimaryKey {
		ix, _ = coll.Indexes.Get(plan.MainIndexPath())
	}
	scan.Run(plan, ix, coll.Primary, pipeline)

	if err := pipeline.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Count: pipeline.ResultCount()}

	if sorter != nil {
		if err := sorter.Err(); err != nil {
			return Result{}, err
		}
		skip, max := int64(0), int64(0)
		if q.Apply != nil {
			skip = q.Apply.Skip
			if q.Apply.HasMax {
				max = q.Apply.Max
				if max == 0 {
					skip = int64(sorter.Len()) // $max: 0 delivers nothing
				}
			}
		}
		delivered := 0
		err := sorter.Sort(q.Apply.OrderBy)
		if err != nil {
			return Result{}, err
		}
		err = sorter.Drain(skip, max, func(id bson.ObjectID, doc value.Value) int {
			delivered++
			if visit == nil {
				return 1
			}
			return visit.Visit(id, doc)
		})
		if err != nil {
			return Result{}, err
		}
		res.Count = delivered
	}

	if q.Apply != nil && q.Apply.Upsert != nil && res.Count == 0 {
		id, err := pipeline.Upsert()
		if err != nil && err != consumer.ErrNoUpsert {
			return res, err
		}
		if err == nil {
			res.Upserted = true
			res.UpsertedID = id
		}
	}

	d.log(plan, q, res)
	return res, nil
}

// sortedApply returns a, or a shallow copy with Skip/Max cleared when
// sorting is required: the external sorter applies $skip/$max at drain
// time, over the fully sorted set, so the per-candidate pipeline must let
// every matching document through to it untrimmed.
func sortedApply(a *query.Apply, sortingRequired bool) *query.Apply {
	if a == nil || !sortingRequired {
		return a
	}
	dup := *a
	dup.Skip = 0
	dup.HasMax = false
	dup.Max = 0
	return &dup
}

// sorterVisitor adapts a *sortx.Sorter to consumer.Visitor, so the
// consumer pipeline can feed it exactly as it would the caller's own
// visitor.
type sorterVisitor struct{ s *sortx.Sorter }

func (v sorterVisitor) Visit(id bson.ObjectID, doc value.Value) int {
	return v.s.Write(id, doc)
}

// mergeHint parses an optional hint document (the same apply/hint clause
// grammar the main query body uses, per ParseValue's own doc comment) and
// folds its $orderby/$skip/$max/$fields/$do into q.Apply, letting a
// caller supply sort/paging/projection separately from the filter itself,
// the way query_exec/query_count/query_list each take hints as a
// distinct argument from the query bytes. A hint carries no filter
// conditions of its own; any it contains are ignored.
func mergeHint(q *query.Query, hintRaw []byte) error {
	if len(hintRaw) == 0 {
		return nil
	}
	hint, err := query.Parse(hintRaw)
	if err != nil {
		return err
	}
	if hint.Apply == nil {
		return nil
	}
	if q.Apply == nil {
		q.Apply = &query.Apply{}
	}
	if len(hint.Apply.OrderBy) > 0 {
		q.Apply.OrderBy = hint.Apply.OrderBy
	}
	if hint.Apply.Skip > 0 {
		q.Apply.Skip = hint.Apply.Skip
	}
	if hint.Apply.HasMax {
		q.Apply.Max = hint.Apply.Max
		q.Apply.HasMax = true
	}
	if hint.Apply.Fields != nil {
		q.Apply.Fields = hint.Apply.Fields
	}
	if len(hint.Apply.Joins) > 0 {
		q.Apply.Joins = hint.Apply.Joins
	}
	return nil
}

// log emits one diagnostic summary per query run, describing the selected
// main index, cursor operations, condition counts, result size, and
// whether the external sorter ran.
func (d *Driver) log(plan *query.Plan, q *query.Query, res Result) {
	if d.Logger == nil {
		return
	}

	mainIdx := plan.MainIndexPath()
	if mainIdx == "" {
		mainIdx = "NONE"
	}

	ands, ors := countJoins(q.Root)
	active := countActiveConditions(q.Root)

	sorting := "NO"
	if plan.SortingRequired {
		sorting = "YES"
	}

	d.Logger.Debug("query executed",
		"main_index", mainIdx,
		"cursor_init", plan.CursorInit.String(),
		"cursor_step", plan.CursorStep.String(),
		"conditions", active,
		"and_branches", ands,
		"or_branches", ors,
		"result_count", res.Count,
		"sorting", sorting,
	)

	queriesExecuted.Inc()
	if plan.SortingRequired {
		queriesSorted.Inc()
	}
}

// countActiveConditions counts every leaf node contributing to the match
// decision: every leaf that is not prematched (already accounted for by
// the chosen scan). Leaves under a negation are counted like any other.
func countActiveConditions(n *query.Node) int {
	if n == nil {
		return 0
	}
	if n.Join == query.JoinLeaf {
		if n.Prematched {
			return 0
		}
		return 1
	}
	count := 0
	for _, c := range n.Children {
		count += countActiveConditions(c)
	}
	return count
}

// countJoins counts every $and/$or combination node anywhere in the tree.
func countJoins(n *query.Node) (ands, ors int) {
	if n == nil {
		return 0, 0
	}
	switch n.Join {
	case query.JoinAnd:
		ands++
	case query.JoinOr:
		ors++
	}
	for _, c := range n.Children {
		a, o := countJoins(c)
		ands += a
		ors += o
	}
	return ands, ors
}
