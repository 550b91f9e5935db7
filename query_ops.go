package nimbusdb

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/consumer"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// VisitFunc receives one query result in turn; a zero return stops the
// scan early, a positive return continues it, mirroring
// consumer.Visitor's own step protocol so a caller can hand a closure
// straight to QueryExec without wrapping it in a named type.
type VisitFunc func(id bson.ObjectID, doc value.Value) (step int)

// visitorFunc adapts a VisitFunc to consumer.Visitor.
type visitorFunc VisitFunc

func (f visitorFunc) Visit(id bson.ObjectID, doc value.Value) int { return f(id, doc) }

// QueryExec runs query (a BSON-encoded filter/update/hint document)
// against coll, delivering each result to visit as the scan produces it.
// hint carries $orderby/$skip/$max/$fields/$do separately from query, the
// same way the scan driver's hint argument does. visit may be nil for a
// query run purely for its mutation side effects. Matches query_exec().
func (db *DB) QueryExec(coll string, query []byte, hint []byte, visit VisitFunc) (Result, error) {
	var v consumer.Visitor
	if visit != nil {
		v = visitorFunc(visit)
	}
	res, err := db.driver.Exec(coll, query, hint, v)
	return Result(res), err
}

// QueryCount runs query against coll and returns the number of matching
// (and, for a mutating query, affected) documents without materializing
// them. Matches query_count().
func (db *DB) QueryCount(coll string, query []byte, hint []byte) (int, error) {
	res, err := db.driver.Exec(coll, query, hint, nil)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// QueryList runs query against coll and returns every matching document
// as a slice, up to limit documents (limit <= 0 means unlimited — the
// query's own $max, if present, still applies on top of it). Matches
// query_list().
func (db *DB) QueryList(coll string, query []byte, hint []byte, limit int) ([]value.Value, error) {
	var docs []value.Value
	collector := visitorFunc(func(id bson.ObjectID, doc value.Value) int {
		docs = append(docs, doc)
		if limit > 0 && len(docs) >= limit {
			return 0
		}
		return 1
	})

	if _, err := db.driver.Exec(coll, query, hint, collector); err != nil {
		return nil, err
	}
	return docs, nil
}

// Result is what one query execution produced: the matched/delivered
// count and, when the query carried $upsert and matched nothing, the id
// of the document it inserted. Mirrors internal/driver.Result one-for-one
// so callers never need to import the driver package directly.
type Result struct {
	Count      int
	UpsertedID bson.ObjectID
	Upserted   bool
}
