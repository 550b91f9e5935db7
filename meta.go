package nimbusdb

import "go.mongodb.org/mongo-driver/v2/bson"

// IndexMeta describes one declared secondary index as reported by meta().
type IndexMeta struct {
	Path     string
	Kind     string
	Unique   bool
	RowCount int64
}

// CollectionMeta describes one open collection as reported by meta().
type CollectionMeta struct {
	Name        string
	RecordCount int64
	Indexes     []IndexMeta
}

// Meta is the database-wide report returned by meta(): every open
// collection, its record count, and its declared indexes.
type Meta struct {
	Collections []CollectionMeta
}

// Meta reports every open collection's record count and declared
// indexes. Matches meta().
func (db *DB) Meta() (Meta, error) {
	var report Meta
	for _, name := range db.registry.List() {
		c, ok := db.registry.Get(name)
		if !ok {
			continue
		}

		c.Lock.RLock()
		var recordCount int64
		c.Primary.Ascend(func(id bson.ObjectID) bool {
			recordCount++
			return true
		})
		c.Lock.RUnlock()

		cm := CollectionMeta{Name: name}
		for _, ix := range c.Indexes.List() {
			cm.Indexes = append(cm.Indexes, IndexMeta{
				Path:     ix.Path().String(),
				Kind:     ix.ValueKind().String(),
				Unique:   ix.Unique(),
				RowCount: ix.RowCount(),
			})
		}
		cm.RecordCount = recordCount
		report.Collections = append(report.Collections, cm)
	}
	return report, nil
}
