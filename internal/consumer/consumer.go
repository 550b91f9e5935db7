// Package consumer implements the per-candidate-id pipeline that a scanner
// (package scan) drives: load the document, apply the residual filter,
// honour $skip, apply update operators with index maintenance, project the
// result, and deliver it to the caller's visitor. A matching document that
// is also being updated is loaded, mutated, and re-stored with validation
// and rollback around the write before the next candidate is considered.
package consumer

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/logging"
	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// DocStore is the primary document store's read/write surface the pipeline
// needs; package collection provides the concrete implementation.
type DocStore interface {
	Get(id bson.ObjectID) (doc value.Value, ok bool, err error)
	Put(id bson.ObjectID, doc value.Value) error
	Delete(id bson.ObjectID) error
}

// IndexUpdater is the secondary-index maintenance surface a mutation step
// drives; internal/index.Manager satisfies this directly.
type IndexUpdater interface {
	InsertDoc(id bson.ObjectID, doc value.Value) error
	UpdateDoc(id bson.ObjectID, oldDoc, newDoc value.Value) error
	RemoveDoc(id bson.ObjectID, doc value.Value) error
}

// Joiner resolves a $do.<field>.$join reference during projection;
// internal/join provides the concrete implementation. ok is false when id
// doesn't resolve to any document in collection, in which case the
// original value at the field is left untouched.
type Joiner interface {
	Resolve(collection string, id value.Value) (doc value.Value, ok bool)
}

// Visitor receives a delivered document and reports how the scan should
// advance, exactly like scan.Consumer's step protocol.
type Visitor interface {
	Visit(id bson.ObjectID, doc value.Value) (step int)
}

// Config wires a Pipeline's collaborators. Evaluator, Joiner, and Logger
// are optional: a nil Evaluator gets a fresh query.NewEvaluator(), a nil
// Joiner leaves join clauses unresolved, and a nil Logger silently drops
// the orphaned-index-entry warning.
type Config struct {
	Store     DocStore
	Index     IndexUpdater
	Evaluator *query.Evaluator
	Joiner    Joiner
	Logger    logging.Logger
	Visitor   Visitor
}

// Pipeline implements scan.Consumer for one query execution. It is single-
// use: construct one per query run, since it carries the mutable
// $skip/$max countdown state.
type Pipeline struct {
	store   DocStore
	index   IndexUpdater
	eval    *query.Evaluator
	joiner  Joiner
	logger  logging.Logger
	visitor Visitor

	residual *query.Node
	apply    *query.Apply

	skipRemaining int64
	hasMax        bool
	maxRemaining  int64

	resultCount int
	err         error
}

// New builds a Pipeline for one query's residual filter and apply clause.
func New(residual *query.Node, apply *query.Apply, cfg Config) *Pipeline {
	eval := cfg.Evaluator
	if eval == nil {
		eval = query.NewEvaluator()
	}
	p := &Pipeline{
		store:    cfg.Store,
		index:    cfg.Index,
		eval:     eval,
		joiner:   cfg.Joiner,
		logger:   cfg.Logger,
		visitor:  cfg.Visitor,
		residual: residual,
		apply:    apply,
	}
	if apply != nil {
		p.skipRemaining = apply.Skip
		if apply.HasMax {
			p.hasMax = true
			p.maxRemaining = apply.Max
		}
	}
	return p
}

// Visit implements scan.Consumer, running the seven-step per-id pipeline
// (load, residual filter, skip, max-gate, mutate, project, deliver).
// matched reports whether the document passed the residual filter,
// independent of whether $skip or $max kept it from reaching the visitor.
func (p *Pipeline) Visit(id bson.ObjectID) (step int, matched bool) {
	if p.err != nil {
		return 0, false
	}

	doc, ok, err := p.store.Get(id)
	if err != nil {
		p.err = err
		return 0, false
	}
	if !ok {
		if p.logger != nil {
			p.logger.Warn("orphaned index entry", "id", id.Hex())
		}
		return 1, false
	}

	if !p.eval.Evaluate(p.residual, doc).Matched {
		return 1, false
	}

	if p.skipRemaining > 0 {
		p.skipRemaining--
		return 1, true
	}

	// $max gates the whole remaining pipeline, not just visitor delivery:
	// an exhausted limit stops mutation and projection work too, and
	// $max:0 does no work at all.
	if p.hasMax && p.maxRemaining <= 0 {
		return 0, true
	}

	if p.apply.HasMutation() {
		mutated, err := p.mutate(id, doc)
		if err != nil {
			p.err = err
			return 0, false
		}
		doc = mutated
	}

	projected := doc
	if p.apply != nil && (p.apply.Fields != nil || len(p.apply.Joins) > 0) {
		projected = project(doc, p.apply, p.joiner)
	}

	step = 1
	if p.visitor != nil {
		step = p.visitor.Visit(id, projected)
	}

	if p.hasMax {
		p.maxRemaining--
		if p.maxRemaining <= 0 {
			step = 0
		}
	}

	return step, true
}

// Done implements scan.Consumer, recording the final matched count for the
// execution driver's diagnostic log and upsert decision.
func (p *Pipeline) Done(resultCount int) { p.resultCount = resultCount }

// ResultCount returns the count Done was last invoked with.
func (p *Pipeline) ResultCount() int { return p.resultCount }

// Err returns the store I/O error that aborted the scan, if any.
func (p *Pipeline) Err() error { return p.err }

// mutate applies a.Apply's update operators to a clone of doc, maintains
// every secondary index against the (old, new) pair, and persists the
// result — or, under $dropall, removes the document instead. Index
// maintenance runs before the primary-store write: a unique violation
// rolls back inside IndexUpdater.UpdateDoc without ever touching the
// store, leaving the document's stored value untouched on that error.
func (p *Pipeline) mutate(id bson.ObjectID, doc value.Value) (value.Value, error) {
	clone := doc.AsObject().Clone()
	if err := query.ApplyMutations(clone, p.apply); err != nil {
		return value.Value{}, err
	}
	newDoc := value.ObjectVal(clone)

	if p.apply.DropAll {
		if err := p.index.RemoveDoc(id, doc); err != nil {
			return value.Value{}, err
		}
		if err := p.store.Delete(id); err != nil {
			return value.Value{}, err
		}
		return doc, nil
	}

	if err := p.index.UpdateDoc(id, doc, newDoc); err != nil {
		return value.Value{}, err
	}
	if err := p.store.Put(id, newDoc); err != nil {
		return value.Value{}, err
	}
	return newDoc, nil
}

// ErrNoUpsert is returned by Upsert when the query carried no $upsert
// clause.
var ErrNoUpsert = errNoUpsert{}

type errNoUpsert struct{}

func (errNoUpsert) Error() string { return "consumer: query has no $upsert clause" }

// Upsert inserts the query's $upsert document under a fresh id. The
// execution driver calls this once, after the scan completes with
// ResultCount() == 0.
func (p *Pipeline) Upsert() (bson.ObjectID, error) {
	if p.apply == nil || p.apply.Upsert == nil {
		return bson.ObjectID{}, ErrNoUpsert
	}
	id := value.NewObjectID()
	doc := value.ObjectVal(p.apply.Upsert.Clone())
	if err := p.index.InsertDoc(id, doc); err != nil {
		return bson.ObjectID{}, err
	}
	if err := p.store.Put(id, doc); err != nil {
		return bson.ObjectID{}, err
	}
	return id, nil
}
