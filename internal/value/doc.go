// Package value implements NimbusDB's BSON-typed value model: a tagged
// union over the scalar and composite document types, comparison rules
// that follow BSON ordering, and dotted-path traversal with wildcard
// support.
//
// Encoding and decoding of the tagged union to and from wire bytes is
// delegated to go.mongodb.org/mongo-driver/v2/bson, the external BSON
// collaborator assumed by the query subsystem; this
// package only adds the comparison and path-resolution semantics the
// query engine needs on top of it.
package value
