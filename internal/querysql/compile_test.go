package querysql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/queryir"
)

func TestCompile_AllEvents(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.Select{From: queryir.Events})
	require.NoError(t, err)

	assert.Equal(t, "SELECT seq, id, tx_id, emitter, name, fields FROM events ORDER BY seq ASC, id COLLATE BINARY ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_EventFilter(t *testing.T) {
	query := &queryir.Select{
		From: queryir.Events,
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "name", Value: ir.String("Transfer")},
			&queryir.Equals{Field: "fields.amount", Value: ir.Int(30)},
		}},
		Limit: 10,
	}

	sql, params, err := NewSQLCompiler().Compile(query)
	require.NoError(t, err)

	assert.Equal(t, "SELECT seq, id, tx_id, emitter, name, fields FROM events"+
		" WHERE name = ? AND json_extract(fields, ?) = ?"+
		" ORDER BY seq ASC, id COLLATE BINARY ASC LIMIT ?", sql)
	assert.Equal(t, []any{"Transfer", `$."amount"`, int64(30), int64(10)}, params)
	assert.NotContains(t, sql, "Transfer", "values are never interpolated")
}

func TestCompile_ReceiptColumns(t *testing.T) {
	query := queryir.Select{
		From: queryir.Receipts,
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "from", Value: ir.String("0x01")},
			queryir.OneOf{Field: "status", Values: []ir.Value{ir.String("success"), ir.String("reverted")}},
			queryir.Equals{Field: "fields.ok", Value: ir.Bool(true)},
		}},
	}

	sql, params, err := NewSQLCompiler().Compile(query)
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM receipts WHERE from_address = ? AND status IN (?, ?) AND json_extract(result, ?) = ?")
	assert.Contains(t, sql, "ORDER BY seq ASC, tx_id COLLATE BINARY ASC")
	assert.Equal(t, []any{"0x01", "success", "reverted", `$."ok"`, int64(1)}, params)
}

func TestCompile_EmptyAnd(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.Select{From: queryir.Receipts, Filter: queryir.And{}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE 1 = 1")
	assert.Empty(t, params)
}

func TestCompile_RejectsInvalidQuery(t *testing.T) {
	_, _, err := NewSQLCompiler().Compile(queryir.Select{
		From:   queryir.Events,
		Filter: queryir.Equals{Field: "name; DROP TABLE events", Value: ir.String("x")},
	})
	require.Error(t, err)
	var verr *queryir.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestValueToParam(t *testing.T) {
	tests := []struct {
		in   ir.Value
		want any
	}{
		{ir.String("a"), "a"},
		{ir.Int(-5), int64(-5)},
		{ir.Bool(true), int64(1)},
		{ir.Bool(false), int64(0)},
	}
	for _, tt := range tests {
		got, err := valueToParam(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := valueToParam(ir.Array{})
	assert.Error(t, err)
}
