package token

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
)

// Native is the token address standing for the host's native value.
var Native = ir.ZeroAddress

// BalanceOf returns the balance of owner in tok, or its native balance when
// tok is Native.
func BalanceOf(f *host.Frame, tok, owner ir.Address) (int64, error) {
	if tok == Native {
		return f.Balance(owner)
	}
	out, err := f.Call(tok, 0, SigBalanceOf.Selector(), ir.Object{"owner": owner.Value()})
	if err != nil {
		return 0, err
	}
	return intResult(out, "balance")
}

// Allowance returns how much spender may pull from owner.
func Allowance(f *host.Frame, tok, owner, spender ir.Address) (int64, error) {
	out, err := f.Call(tok, 0, SigAllowance.Selector(), ir.Object{
		"owner":   owner.Value(),
		"spender": spender.Value(),
	})
	if err != nil {
		return 0, err
	}
	return intResult(out, "allowance")
}

// Transfer moves amount of tok from the frame's account to to.
func Transfer(f *host.Frame, tok, to ir.Address, amount int64) error {
	if amount == 0 {
		return nil
	}
	if tok == Native {
		_, err := f.Call(to, amount, ir.Selector{}, nil)
		return err
	}
	_, err := f.Call(tok, 0, SigTransfer.Selector(), ir.Object{
		"to":     to.Value(),
		"amount": ir.Int(amount),
	})
	return err
}

// TransferFrom moves amount of tok from from to to under the frame account's
// allowance.
func TransferFrom(f *host.Frame, tok, from, to ir.Address, amount int64) error {
	_, err := f.Call(tok, 0, SigTransferFrom.Selector(), ir.Object{
		"from":   from.Value(),
		"to":     to.Value(),
		"amount": ir.Int(amount),
	})
	return err
}

// Mint creates amount of tok for to.
func Mint(f *host.Frame, tok, to ir.Address, amount int64) error {
	_, err := f.Call(tok, 0, SigMint.Selector(), ir.Object{
		"to":     to.Value(),
		"amount": ir.Int(amount),
	})
	return err
}

// Burn destroys amount of tok held by owner.
func Burn(f *host.Frame, tok, owner ir.Address, amount int64) error {
	_, err := f.Call(tok, 0, SigBurn.Selector(), ir.Object{
		"owner":  owner.Value(),
		"amount": ir.Int(amount),
	})
	return err
}

func intResult(out ir.Object, key string) (int64, error) {
	n, ok := out[key].(ir.Int)
	if !ok {
		return 0, revert.New(revert.CodeInternal, "result %q: want int, got %T", key, out[key])
	}
	return int64(n), nil
}
