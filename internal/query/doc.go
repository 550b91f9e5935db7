// Package query implements nimbusdb's query subsystem: parsing a query
// document into an expression tree of filter nodes and apply/projection
// clauses (ast.go, parser.go), evaluating that tree against one document
// (eval.go), planning index selection (plan.go, optimizer.go), and
// applying update operators to a matched document (apply.go).
//
// Field selectors are dotted value.Path strings, and predicates compose
// through $and/$or/$not the way the query documents themselves do.
package query
