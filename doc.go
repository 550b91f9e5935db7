// Package nimbusdb is an embeddable document database: collections of
// BSON documents addressed by object id, queried through a small
// predicate/update language, with secondary indexes the query optimizer
// selects automatically.
//
// # Opening a database
//
//	cfg := config.DefaultConfig()
//	cfg.Storage.DataDir = "/var/lib/nimbusdb/catalog"
//	db, err := nimbusdb.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// # Documents
//
//	id, err := db.Put("books", doc)
//	got, err := db.Get("books", id)
//	err = db.Patch("books", id, patchDoc, false)
//	err = db.Del("books", id)
//
// # Indexes
//
//	err := db.EnsureIndex("books", "author", IndexString, false)
//
// # Queries
//
//	n, err := db.QueryCount("books", []byte(`{"author": "tolstoy"}`), nil)
//	docs, err := db.QueryList("books", []byte(`{"author": "tolstoy"}`), nil, 0)
//
// DB is the single object an embedding host constructs and calls into:
// open once, then Put/Get/Patch/Del and query through it.
package nimbusdb
