package queryir

import "github.com/roach88/exproxy/internal/ir"

// Query represents an abstract query over the audit log.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition over one log row.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal value
//   - OneOf: field matches any of a set of literal values
//   - And: all predicates must be true
//
// There is no OR across fields and no negation; a listing that needs them
// is two listings.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Source names the log a Select reads.
type Source string

const (
	// Events is the append-only audit event log.
	Events Source = "events"
	// Receipts is the log of external call receipts, reverted calls included.
	Receipts Source = "receipts"
)

// PayloadPrefix is the field prefix that addresses a key inside a row's
// JSON payload: the event fields of an event, the result of a receipt.
const PayloadPrefix = "fields."

// Select reads the rows of one log that satisfy Filter, in log order.
//
// Example:
//
//	Select{
//	  From: Events,
//	  Filter: &And{Predicates: []Predicate{
//	    &Equals{Field: "name", Value: ir.String("TransformedERC20")},
//	    &Equals{Field: "fields.taker", Value: ir.String("0x...a11ce")},
//	  }},
//	  Limit: 10,
//	}
//
// Rows always come back ordered by their logical clock value; Limit 0
// means no limit.
type Select struct {
	From   Source
	Filter Predicate // nil = no filter
	Limit  int
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// Field is either a column of the source (see Columns) or PayloadPrefix
// followed by a top-level key of the row's payload. Value is a scalar:
// strings, integers and booleans compare; null, arrays and objects do not.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// OneOf matches when the field equals any of Values.
type OneOf struct {
	Field  string
	Values []ir.Value
}

func (OneOf) predicateNode() {}

// And represents a conjunction of predicates. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

var columns = map[Source][]string{
	Events:   {"seq", "id", "tx_id", "emitter", "name"},
	Receipts: {"seq", "tx_id", "from", "to", "selector", "status", "error_code"},
}

// Columns returns the filterable columns of a source, or nil for an unknown
// source.
func Columns(s Source) []string {
	cols := columns[s]
	if cols == nil {
		return nil
	}
	return append([]string(nil), cols...)
}
