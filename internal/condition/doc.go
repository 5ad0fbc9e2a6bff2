// Package condition defines the filter conditions attached to cached
// queries.
//
// A condition is an ordered tree of relational comparisons joined by
// logical connectives. It has two uses: it is part of a query's identity
// (through its canonical textual form) and it scopes both reads and
// replacement deletes in the document store (through the SQL compiler in
// internal/querysql).
//
// Expr is a sealed interface; only the node types in this package
// implement it, which keeps type switches in compilers exhaustive.
//
// The empty condition (a nil Expr or an And with no children) matches
// every row of a resource type.
package condition
