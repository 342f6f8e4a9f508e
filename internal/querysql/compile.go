package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/queryir"
)

// SQLCompiler compiles audit queries to parameterized SQL for SQLite.
//
// Every query is ordered by the log's clock with a binary-collated
// tiebreaker, and every value is bound as a parameter, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// table maps a query source onto its SQLite table.
type table struct {
	name     string
	selects  string            // column list, in the order the store scans it
	columns  map[string]string // query field -> column
	payload  string            // JSON payload column
	tiebreak string
}

var tables = map[queryir.Source]table{
	queryir.Events: {
		name:    "events",
		selects: "seq, id, tx_id, emitter, name, fields",
		columns: map[string]string{
			"seq": "seq", "id": "id", "tx_id": "tx_id", "emitter": "emitter", "name": "name",
		},
		payload:  "fields",
		tiebreak: "id",
	},
	queryir.Receipts: {
		name:    "receipts",
		selects: "tx_id, seq, from_address, to_address, selector, status, error_code, error_message, result",
		columns: map[string]string{
			"seq": "seq", "tx_id": "tx_id", "from": "from_address", "to": "to_address",
			"selector": "selector", "status": "status", "error_code": "error_code",
		},
		payload:  "result",
		tiebreak: "tx_id",
	},
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error) tuple. Invalid queries fail with the
// *queryir.ValidationError from queryir.Validate.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	t := tables[q.From]

	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "SELECT %s FROM %s", t.selects, t.name)
	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(t, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		params = whereParams
	}
	fmt.Fprintf(&b, " ORDER BY seq ASC, %s COLLATE BINARY ASC", t.tiebreak)
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compilePredicate(t table, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(t, pred)
	case *queryir.Equals:
		return c.compileEquals(t, *pred)
	case queryir.OneOf:
		return c.compileOneOf(t, pred)
	case *queryir.OneOf:
		return c.compileOneOf(t, *pred)
	case queryir.And:
		return c.compileAnd(t, pred)
	case *queryir.And:
		return c.compileAnd(t, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// fieldExpr returns the SQL expression reading a field and the parameters
// it binds.
func (c *SQLCompiler) fieldExpr(t table, field string) (string, []any) {
	if key, ok := strings.CutPrefix(field, queryir.PayloadPrefix); ok {
		return fmt.Sprintf("json_extract(%s, ?)", t.payload), []any{`$."` + key + `"`}
	}
	return t.columns[field], nil
}

func (c *SQLCompiler) compileEquals(t table, eq queryir.Equals) (string, []any, error) {
	expr, params := c.fieldExpr(t, eq.Field)
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, err
	}
	return expr + " = ?", append(params, param), nil
}

func (c *SQLCompiler) compileOneOf(t table, in queryir.OneOf) (string, []any, error) {
	expr, params := c.fieldExpr(t, in.Field)
	marks := make([]string, len(in.Values))
	for i, v := range in.Values {
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, err
		}
		marks[i] = "?"
		params = append(params, param)
	}
	return fmt.Sprintf("%s IN (%s)", expr, strings.Join(marks, ", ")), params, nil
}

func (c *SQLCompiler) compileAnd(t table, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := c.compilePredicate(t, pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// valueToParam converts a scalar to a SQLite parameter. Booleans become
// 0/1, which is how json_extract reports JSON true and false.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
