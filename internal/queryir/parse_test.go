package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		expr string
		want Predicate
	}{
		{"name=Transfer", Equals{Field: "name", Value: ir.String("Transfer")}},
		{"fields.amount=100", Equals{Field: "fields.amount", Value: ir.Int(100)}},
		{"fields.amount=-7", Equals{Field: "fields.amount", Value: ir.Int(-7)}},
		{`fields.memo="100"`, Equals{Field: "fields.memo", Value: ir.String("100")}},
		{"fields.ok=true", Equals{Field: "fields.ok", Value: ir.Bool(true)}},
		{"emitter=0xABCDEF", Equals{Field: "emitter", Value: ir.String("0xabcdef")}},
		{" tx_id = tx-1 ", Equals{Field: "tx_id", Value: ir.String("tx-1")}},
		{"name=", Equals{Field: "name", Value: ir.String("")}},
		{
			"status=success|reverted",
			OneOf{Field: "status", Values: []ir.Value{ir.String("success"), ir.String("reverted")}},
		},
		{"fields.note=a=b", Equals{Field: "fields.note", Value: ir.String("a=b")}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParsePredicate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePredicate_Invalid(t *testing.T) {
	for _, expr := range []string{"", "name", "=Transfer", "  =x"} {
		_, err := ParsePredicate(expr)
		assert.Error(t, err, expr)
	}
}
