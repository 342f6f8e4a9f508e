package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/exproxy/internal/ir"
)

// ParsePredicate parses a command-line filter of the form field=value or
// field=a|b|c. Values that parse as integers become ir.Int, true and false
// become ir.Bool, double-quoted values stay strings verbatim and 0x-prefixed
// values are lowercased to match the log's canonical hex.
func ParsePredicate(expr string) (Predicate, error) {
	field, raw, ok := strings.Cut(expr, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return nil, fmt.Errorf("filter %q: want field=value", expr)
	}
	alts := strings.Split(raw, "|")
	values := make([]ir.Value, len(alts))
	for i, alt := range alts {
		values[i] = parseLiteral(strings.TrimSpace(alt))
	}
	if len(values) == 1 {
		return Equals{Field: field, Value: values[0]}, nil
	}
	return OneOf{Field: field, Values: values}, nil
}

func parseLiteral(s string) ir.Value {
	if unq, err := strconv.Unquote(s); err == nil && strings.HasPrefix(s, `"`) {
		return ir.String(unq)
	}
	switch s {
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(n)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return ir.String(strings.ToLower(s))
	}
	return ir.String(s)
}
