// Package queryir provides an abstract query intermediate representation (IR)
// for listing the audit log.
//
// The IR sits between the places that filter the log (store listings, the
// CLI's audit --where flags) and the SQL backend in package querysql:
//
//	[--where field=value] → [Query IR] → [SQL Backend]
//
// A query reads one Source, events or receipts, with a Predicate over the
// source's columns or over top-level keys of the row's JSON payload
// (PayloadPrefix + key).
//
// SUPPORTED FRAGMENT:
//   - Select(from, filter, limit)
//   - Predicates: Equals, OneOf, And
//   - Scalar literals only: ir.String, ir.Int, ir.Bool
//
// EXCLUDED:
//   - NULL comparisons
//   - OR across fields, negation
//   - Joins, aggregations, subqueries
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case OneOf:
//	case And:
//	}
//
// Results are always in log order: by logical clock, then by a binary
// collated id. Validate rejects unknown sources and fields before anything
// reaches a backend.
package queryir
