package queryir

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/exproxy/internal/ir"
)

// ValidationError lists every problem found in a query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

var payloadKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that a query only names known sources and fields and only
// compares scalar values. It returns a *ValidationError listing every
// problem, or nil.
//
// Validate is a pure function with no side effects.
func Validate(query Query) error {
	v := &validator{}
	v.validateQuery(query)
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	source   Source
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if Columns(sel.From) == nil {
		v.addProblem("unknown source %q", sel.From)
		return
	}
	if sel.Limit < 0 {
		v.addProblem("limit must be non-negative, got %d", sel.Limit)
	}
	v.source = sel.From
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case OneOf:
		v.validateOneOf(pred)
	case *OneOf:
		v.validateOneOf(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.validateField(eq.Field)
	v.validateValue(eq.Field, eq.Value)
}

func (v *validator) validateOneOf(in OneOf) {
	v.validateField(in.Field)
	if len(in.Values) == 0 {
		v.addProblem("field %q: one-of needs at least one value", in.Field)
	}
	for _, val := range in.Values {
		v.validateValue(in.Field, val)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func (v *validator) validateField(field string) {
	if key, ok := strings.CutPrefix(field, PayloadPrefix); ok {
		if !payloadKey.MatchString(key) {
			v.addProblem("field %q: payload key must be an identifier", field)
		}
		return
	}
	if !slices.Contains(columns[v.source], field) {
		v.addProblem("unknown %s field %q (valid: %s, %s<key>)",
			v.source, field, strings.Join(columns[v.source], ", "), PayloadPrefix)
	}
}

func (v *validator) validateValue(field string, val ir.Value) {
	switch val.(type) {
	case ir.String, ir.Int, ir.Bool:
	case nil, ir.Null:
		v.addProblem("field %q compared to null", field)
	default:
		v.addProblem("field %q compared to non-scalar %T", field, val)
	}
}
