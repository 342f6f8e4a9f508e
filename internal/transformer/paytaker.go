package transformer

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/token"
)

// PayTakerKind is the code kind of the pay-taker transformer.
const PayTakerKind = "exproxy.transformer.pay-taker"

// PayTaker moves vault holdings to the pipeline recipient. It reports the
// amount paid per listed token; it produces nothing in the vault.
//
// Data: {"tokens": [address...], "amounts": [int...]}. A missing or negative
// amount pays the whole balance of that token. The zero address is native
// value.
type PayTaker struct{ base }

// NewPayTaker returns the pay-taker code.
func NewPayTaker() PayTaker {
	return PayTaker{base{kind: PayTakerKind, step: payTaker}}
}

func payTaker(f *host.Frame, c Context) (Result, error) {
	tokens, err := host.ArgArray(c.Data, "tokens")
	if err != nil {
		return Result{}, err
	}
	amounts, err := host.ArgArray(c.Data, "amounts")
	if err != nil {
		return Result{}, err
	}

	paid := make([]int64, 0, len(tokens))
	for i, raw := range tokens {
		s, ok := raw.(ir.String)
		if !ok {
			return Result{}, revert.New(revert.CodeInvalidArgument, "tokens[%d]: want address, got %T", i, raw)
		}
		tok, err := ir.ParseAddress(string(s))
		if err != nil {
			return Result{}, revert.Wrap(revert.CodeInvalidArgument, err, "tokens[%d]", i)
		}

		amount := int64(-1)
		if i < len(amounts) {
			n, ok := amounts[i].(ir.Int)
			if !ok {
				return Result{}, revert.New(revert.CodeInvalidArgument, "amounts[%d]: want int, got %T", i, amounts[i])
			}
			amount = int64(n)
		}
		if amount < 0 {
			if amount, err = token.BalanceOf(f, tok, f.Self()); err != nil {
				return Result{}, err
			}
		}
		if err := token.Transfer(f, tok, c.Recipient, amount); err != nil {
			return Result{}, err
		}
		paid = append(paid, amount)
	}
	return Result{Paid: paid}, nil
}
