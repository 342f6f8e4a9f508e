package transformer

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/token"
)

// MintKind is the code kind of the mint transformer.
const MintKind = "exproxy.transformer.mint"

// Mint converts one mintable token into another at a fixed rate: it burns
// input held by the vault and mints output to the vault.
//
// Data: {"inputToken", "outputToken", "amount"?, "rateNumerator"?,
// "rateDenominator"?}. Amount defaults to the vault's whole input balance;
// the rate to 1/1.
type Mint struct{ base }

// NewMint returns the mint code.
func NewMint() Mint {
	return Mint{base{kind: MintKind, step: mintStep}}
}

func mintStep(f *host.Frame, c Context) (Result, error) {
	in, err := host.ArgAddress(c.Data, "inputToken")
	if err != nil {
		return Result{}, err
	}
	out, err := host.ArgAddress(c.Data, "outputToken")
	if err != nil {
		return Result{}, err
	}
	if in == token.Native || out == token.Native {
		return Result{}, revert.New(revert.CodeInvalidArgument, "mint transformer cannot convert native value")
	}
	amount, err := host.ArgOptionalInt(c.Data, "amount", -1)
	if err != nil {
		return Result{}, err
	}
	if amount < 0 {
		if amount, err = token.BalanceOf(f, in, f.Self()); err != nil {
			return Result{}, err
		}
	}
	num, err := host.ArgOptionalInt(c.Data, "rateNumerator", 1)
	if err != nil {
		return Result{}, err
	}
	den, err := host.ArgOptionalInt(c.Data, "rateDenominator", 1)
	if err != nil {
		return Result{}, err
	}
	if num < 0 || den <= 0 {
		return Result{}, revert.New(revert.CodeInvalidArgument, "invalid rate %d/%d", num, den)
	}

	produced, ok := ir.MulDiv(amount, num, den)
	if !ok {
		return Result{}, revert.New(revert.CodeInvalidArgument,
			"%d at rate %d/%d overflows the output amount", amount, num, den)
	}
	if err := token.Burn(f, in, f.Self(), amount); err != nil {
		return Result{}, err
	}
	if err := token.Mint(f, out, f.Self(), produced); err != nil {
		return Result{}, err
	}
	return Result{Consumed: amount, Produced: produced}, nil
}
