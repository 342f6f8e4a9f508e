// Package token implements a mintable ERC20-style token module.
//
// Tokens are the assets the custody and transform layers move around. A token
// deployed with a "minter" immutable only lets that account mint and burn.
// Without one, minting and burning are open to anyone: such tokens are test
// assets that seed scenarios and let the Mint transformer convert between
// them, and must not stand in for real custody assets.
package token

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// Kind is the code kind of token accounts.
const Kind = "exproxy.token"

// Namespace holds all token state.
var Namespace = storage.NamespaceFor("exproxy.token")

const (
	fieldName = iota
	fieldSymbol
	fieldTotalSupply
	fieldBalances
	fieldAllowances
)

// Event names.
const (
	EventTransfer = "Transfer"
	EventApproval = "Approval"
)

func arg(name, typ string) ir.NamedArg { return ir.NamedArg{Name: name, Type: typ} }

// Function signatures.
var (
	SigName         = ir.FunctionSig{Name: "name", View: true}
	SigSymbol       = ir.FunctionSig{Name: "symbol", View: true}
	SigTotalSupply  = ir.FunctionSig{Name: "totalSupply", View: true}
	SigBalanceOf    = ir.FunctionSig{Name: "balanceOf", Inputs: []ir.NamedArg{arg("owner", "address")}, View: true}
	SigAllowance    = ir.FunctionSig{Name: "allowance", Inputs: []ir.NamedArg{arg("owner", "address"), arg("spender", "address")}, View: true}
	SigTransfer     = ir.FunctionSig{Name: "transfer", Inputs: []ir.NamedArg{arg("to", "address"), arg("amount", "uint256")}}
	SigTransferFrom = ir.FunctionSig{Name: "transferFrom", Inputs: []ir.NamedArg{arg("from", "address"), arg("to", "address"), arg("amount", "uint256")}}
	SigApprove      = ir.FunctionSig{Name: "approve", Inputs: []ir.NamedArg{arg("spender", "address"), arg("amount", "uint256")}}
	SigMint         = ir.FunctionSig{Name: "mint", Inputs: []ir.NamedArg{arg("to", "address"), arg("amount", "uint256")}}
	SigBurn         = ir.FunctionSig{Name: "burn", Inputs: []ir.NamedArg{arg("owner", "address"), arg("amount", "uint256")}}
)

// Token is the token code.
type Token struct{}

// Kind implements host.Code.
func (Token) Kind() string { return Kind }

// Namespaces implements host.Code.
func (Token) Namespaces() []storage.Namespace { return []storage.Namespace{Namespace} }

// Construct records name and symbol.
func (Token) Construct(f *host.Frame, args ir.Object) error {
	name, err := host.ArgString(args, "name")
	if err != nil {
		return err
	}
	symbol, err := host.ArgString(args, "symbol")
	if err != nil {
		return err
	}
	if err := storage.StoreString(f, Namespace.Field(fieldName), name); err != nil {
		return err
	}
	return storage.StoreString(f, Namespace.Field(fieldSymbol), symbol)
}

// Methods implements host.Code.
func (Token) Methods() []host.Method {
	return []host.Method{
		{Sig: SigName, Handle: stringView(fieldName, "name")},
		{Sig: SigSymbol, Handle: stringView(fieldSymbol, "symbol")},
		{Sig: SigTotalSupply, Handle: totalSupply},
		{Sig: SigBalanceOf, Handle: balanceOf},
		{Sig: SigAllowance, Handle: allowance},
		{Sig: SigTransfer, Handle: transfer},
		{Sig: SigTransferFrom, Handle: transferFrom},
		{Sig: SigApprove, Handle: approve},
		{Sig: SigMint, Handle: mint},
		{Sig: SigBurn, Handle: burn},
	}
}

func balanceSlot(owner ir.Address) ir.Slot {
	return Namespace.Key(fieldBalances, owner.Hex())
}

func allowanceSlot(owner, spender ir.Address) ir.Slot {
	return Namespace.Key(fieldAllowances, owner.Hex(), spender.Hex())
}

func stringView(field uint64, key string) host.Handler {
	return func(f *host.Frame, _ ir.Object) (ir.Object, error) {
		s, err := storage.LoadString(f, Namespace.Field(field))
		if err != nil {
			return nil, err
		}
		return ir.Object{key: ir.String(s)}, nil
	}
}

func totalSupply(f *host.Frame, _ ir.Object) (ir.Object, error) {
	n, err := storage.LoadInt(f, Namespace.Field(fieldTotalSupply))
	if err != nil {
		return nil, err
	}
	return ir.Object{"totalSupply": ir.Int(n)}, nil
}

func balanceOf(f *host.Frame, args ir.Object) (ir.Object, error) {
	owner, err := host.ArgAddress(args, "owner")
	if err != nil {
		return nil, err
	}
	n, err := storage.LoadInt(f, balanceSlot(owner))
	if err != nil {
		return nil, err
	}
	return ir.Object{"balance": ir.Int(n)}, nil
}

func allowance(f *host.Frame, args ir.Object) (ir.Object, error) {
	owner, err := host.ArgAddress(args, "owner")
	if err != nil {
		return nil, err
	}
	spender, err := host.ArgAddress(args, "spender")
	if err != nil {
		return nil, err
	}
	n, err := storage.LoadInt(f, allowanceSlot(owner, spender))
	if err != nil {
		return nil, err
	}
	return ir.Object{"allowance": ir.Int(n)}, nil
}

func transfer(f *host.Frame, args ir.Object) (ir.Object, error) {
	to, err := host.ArgAddress(args, "to")
	if err != nil {
		return nil, err
	}
	amount, err := host.ArgAmount(args, "amount")
	if err != nil {
		return nil, err
	}
	if err := move(f, f.Caller(), to, amount); err != nil {
		return nil, err
	}
	return ir.Object{"success": ir.Bool(true)}, nil
}

func transferFrom(f *host.Frame, args ir.Object) (ir.Object, error) {
	from, err := host.ArgAddress(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := host.ArgAddress(args, "to")
	if err != nil {
		return nil, err
	}
	amount, err := host.ArgAmount(args, "amount")
	if err != nil {
		return nil, err
	}
	if f.Caller() != from {
		slot := allowanceSlot(from, f.Caller())
		allowed, err := storage.LoadInt(f, slot)
		if err != nil {
			return nil, err
		}
		if allowed < amount {
			return nil, revert.New(revert.CodeInsufficientAllowance,
				"%s may spend %d of %s, needs %d", f.Caller(), allowed, from, amount)
		}
		if err := storage.StoreInt(f, slot, allowed-amount); err != nil {
			return nil, err
		}
	}
	if err := move(f, from, to, amount); err != nil {
		return nil, err
	}
	return ir.Object{"success": ir.Bool(true)}, nil
}

func approve(f *host.Frame, args ir.Object) (ir.Object, error) {
	spender, err := host.ArgAddress(args, "spender")
	if err != nil {
		return nil, err
	}
	amount, err := host.ArgAmount(args, "amount")
	if err != nil {
		return nil, err
	}
	if err := storage.StoreInt(f, allowanceSlot(f.Caller(), spender), amount); err != nil {
		return nil, err
	}
	if err := f.Emit(EventApproval, ir.Object{
		"owner":   f.Caller().Value(),
		"spender": spender.Value(),
		"amount":  ir.Int(amount),
	}); err != nil {
		return nil, err
	}
	return ir.Object{"success": ir.Bool(true)}, nil
}

// requireMinter enforces the optional minter immutable.
func requireMinter(f *host.Frame) error {
	minter, err := host.ArgOptionalAddress(f.Immutables(), "minter")
	if err != nil {
		return err
	}
	if !minter.IsZero() && f.Caller() != minter {
		return revert.New(revert.CodeNotAuthorized, "only %s may mint or burn %s", minter, f.Self())
	}
	return nil
}

func mint(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := requireMinter(f); err != nil {
		return nil, err
	}
	to, err := host.ArgAddress(args, "to")
	if err != nil {
		return nil, err
	}
	amount, err := host.ArgAmount(args, "amount")
	if err != nil {
		return nil, err
	}
	if err := adjust(f, to, amount); err != nil {
		return nil, err
	}
	if err := adjustSupply(f, amount); err != nil {
		return nil, err
	}
	return nil, emitTransfer(f, ir.ZeroAddress, to, amount)
}

func burn(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := requireMinter(f); err != nil {
		return nil, err
	}
	owner, err := host.ArgAddress(args, "owner")
	if err != nil {
		return nil, err
	}
	amount, err := host.ArgAmount(args, "amount")
	if err != nil {
		return nil, err
	}
	if err := adjust(f, owner, -amount); err != nil {
		return nil, err
	}
	if err := adjustSupply(f, -amount); err != nil {
		return nil, err
	}
	return nil, emitTransfer(f, owner, ir.ZeroAddress, amount)
}

// move transfers amount between balances and emits Transfer.
func move(f *host.Frame, from, to ir.Address, amount int64) error {
	if to.IsZero() {
		return revert.New(revert.CodeInvalidArgument, "transfer to the zero address")
	}
	if err := adjust(f, from, -amount); err != nil {
		return err
	}
	if err := adjust(f, to, amount); err != nil {
		return err
	}
	return emitTransfer(f, from, to, amount)
}

func adjust(f *host.Frame, owner ir.Address, delta int64) error {
	slot := balanceSlot(owner)
	bal, err := storage.LoadInt(f, slot)
	if err != nil {
		return err
	}
	if bal+delta < 0 && delta < 0 {
		return revert.New(revert.CodeInsufficientBalance,
			"%s holds %d, needs %d", owner, bal, -delta)
	}
	next, ok := ir.AddAmount(bal, delta)
	if !ok {
		return revert.New(revert.CodeArithmeticOverflow,
			"balance of %s overflows: %d + %d", owner, bal, delta)
	}
	return storage.StoreInt(f, slot, next)
}

func adjustSupply(f *host.Frame, delta int64) error {
	slot := Namespace.Field(fieldTotalSupply)
	supply, err := storage.LoadInt(f, slot)
	if err != nil {
		return err
	}
	next, ok := ir.AddAmount(supply, delta)
	if !ok {
		return revert.New(revert.CodeArithmeticOverflow,
			"total supply overflows: %d + %d", supply, delta)
	}
	return storage.StoreInt(f, slot, next)
}

func emitTransfer(f *host.Frame, from, to ir.Address, amount int64) error {
	return f.Emit(EventTransfer, ir.Object{
		"from":   from.Value(),
		"to":     to.Value(),
		"amount": ir.Int(amount),
	})
}
