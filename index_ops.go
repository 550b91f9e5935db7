package nimbusdb

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/index"
	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// IndexValueKind is the declared value type of an index, the library
// API's own name for query.IndexValueKind so a caller never has to import
// the internal query package directly.
type IndexValueKind int

const (
	IndexString IndexValueKind = iota
	IndexI64
	IndexF64
)

func (k IndexValueKind) internal() (query.IndexValueKind, bool) {
	switch k {
	case IndexString:
		return query.IndexKindString, true
	case IndexI64:
		return query.IndexKindI64, true
	case IndexF64:
		return query.IndexKindF64, true
	default:
		return 0, false
	}
}

// EnsureIndex declares a secondary index on coll at the dotted path, of
// the given value kind, rejecting duplicate keys when unique is true. A
// second call against the same path with a different kind or uniqueness
// setting fails with ErrMismatchedIndexUniqueness. Matches index_ensure().
func (db *DB) EnsureIndex(coll, path string, kind IndexValueKind, unique bool) error {
	k, ok := kind.internal()
	if !ok {
		return ErrInvalidIndexMode
	}

	c, err := db.collection(coll)
	if err != nil {
		return err
	}

	mode := index.Duplicate
	if unique {
		mode = index.Unique
	}

	c.Lock.Lock()
	defer c.Lock.Unlock()

	compiled := value.CompilePath(path)
	_, alreadyDeclared := c.Indexes.Get(compiled.String())

	ix, err := c.Indexes.EnsureIndex(compiled, k, mode)
	if err != nil {
		return err
	}
	if alreadyDeclared {
		return nil
	}

	// Backfill the freshly declared index from every document already in
	// the collection: EnsureIndex only creates the tree, it doesn't know
	// about documents stored before this call.
	var backfillErr error
	c.Primary.Ascend(func(id bson.ObjectID) bool {
		doc, ok, err := c.Primary.Get(id)
		if err != nil {
			backfillErr = err
			return false
		}
		if !ok {
			return true
		}
		if err := ix.InsertDoc(id, doc); err != nil {
			backfillErr = err
			return false
		}
		return true
	})
	return backfillErr
}

// RemoveIndex drops the secondary index declared at path on coll, if any.
// Matches index_remove().
func (db *DB) RemoveIndex(coll, path string) error {
	c, err := db.collection(coll)
	if err != nil {
		return err
	}

	c.Lock.Lock()
	defer c.Lock.Unlock()

	return c.Indexes.RemoveIndex(value.CompilePath(path))
}
