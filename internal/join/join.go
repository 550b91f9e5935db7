// Package join resolves $do.<field>.$join projection clauses: given a collection name and the oid (or oid-string) found
// at a field, it fetches and returns the referenced document so
// internal/consumer's projection step can inline it in place of the bare
// reference. Documents already fetched by (collection, id) are memoized
// for the lifetime of one query, since the same reference commonly
// repeats across the result set.
package join

import (
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

// CollectionStore looks up one document by id within a named collection;
// package collection's registry provides the concrete implementation.
type CollectionStore interface {
	Get(collection string, id bson.ObjectID) (doc value.Value, ok bool, err error)
}

// Resolver implements consumer.Joiner against a CollectionStore, caching
// every (collection, id) lookup for the lifetime of the Resolver. The
// execution driver constructs one Resolver per query and discards it at
// query end.
type Resolver struct {
	store CollectionStore

	mu    sync.Mutex
	cache map[string]map[bson.ObjectID]value.Value
	miss  map[string]map[bson.ObjectID]bool
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store CollectionStore) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[string]map[bson.ObjectID]value.Value),
		miss:  make(map[string]map[bson.ObjectID]bool),
	}
}

// Resolve implements consumer.Joiner. idVal is the raw value found at the
// joined field — either an oid or an oid-string; any
// other kind never resolves. A lookup error is treated as a non-match
// rather than propagated, since a dangling reference is not itself a
// store I/O failure worth aborting the query over.
func (r *Resolver) Resolve(collection string, idVal value.Value) (value.Value, bool) {
	id, ok := toObjectID(idVal)
	if !ok {
		return value.Value{}, false
	}

	r.mu.Lock()
	if byID, ok := r.cache[collection]; ok {
		if doc, ok := byID[id]; ok {
			r.mu.Unlock()
			return doc, true
		}
	}
	if misses, ok := r.miss[collection]; ok && misses[id] {
		r.mu.Unlock()
		return value.Value{}, false
	}
	r.mu.Unlock()

	doc, ok, err := r.store.Get(collection, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil || !ok {
		if r.miss[collection] == nil {
			r.miss[collection] = make(map[bson.ObjectID]bool)
		}
		r.miss[collection][id] = true
		return value.Value{}, false
	}
	if r.cache[collection] == nil {
		r.cache[collection] = make(map[bson.ObjectID]value.Value)
	}
	r.cache[collection][id] = doc
	return doc, true
}

// toObjectID accepts either a native oid value or its hex-string form.
func toObjectID(v value.Value) (bson.ObjectID, bool) {
	switch v.Kind() {
	case value.KindObjectID:
		return v.AsObjectID(), true
	case value.KindString:
		id, err := bson.ObjectIDFromHex(v.AsString())
		if err != nil {
			return bson.ObjectID{}, false
		}
		return id, true
	default:
		return bson.ObjectID{}, false
	}
}
