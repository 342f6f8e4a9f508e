package custody

import (
	"github.com/roach88/exproxy/internal/access"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
	"github.com/roach88/exproxy/internal/token"
)

// AllowanceTargetKind is the code kind of the allowance target.
const AllowanceTargetKind = "exproxy.allowance-target"

// AllowanceNamespace holds the owner handshake, the trusted spender and its
// history.
var AllowanceNamespace = storage.NamespaceFor("exproxy.allowance-target")

// Fields 0 and 1 belong to the ownership record.
const (
	fieldSpender = 2
	fieldHistory = 3
)

// EventSpenderChanged is emitted whenever the trusted spender changes.
const EventSpenderChanged = "SpenderChanged"

var (
	allowanceOwnership = access.New(AllowanceNamespace)
	spenderHistory     = storage.AddressList{NS: AllowanceNamespace, Field: fieldHistory}
)

// AllowanceTarget function signatures.
var (
	SigSpend = ir.FunctionSig{Name: "spend", Inputs: []ir.NamedArg{
		{Name: "owner", Type: "address"},
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}}
	SigSetSpender = ir.FunctionSig{Name: "setSpender", Inputs: []ir.NamedArg{
		{Name: "spender", Type: "address"},
	}}
	SigSpender              = ir.FunctionSig{Name: "spender", View: true}
	SigSpenderHistoryLength = ir.FunctionSig{Name: "spenderHistoryLength", View: true}
	SigSpenderAt            = ir.FunctionSig{Name: "spenderAt", Inputs: []ir.NamedArg{
		{Name: "index", Type: "uint256"},
	}, View: true}
)

// AllowanceTarget is the spend indirection code.
type AllowanceTarget struct{}

// Kind implements host.Code.
func (AllowanceTarget) Kind() string { return AllowanceTargetKind }

// Namespaces implements host.Code.
func (AllowanceTarget) Namespaces() []storage.Namespace {
	return []storage.Namespace{AllowanceNamespace}
}

// Methods implements host.Code.
func (AllowanceTarget) Methods() []host.Method {
	methods := []host.Method{
		{Sig: SigSpend, Handle: spend},
		{Sig: SigSetSpender, Handle: setSpender},
		{Sig: SigSpender, Handle: currentSpender},
		{Sig: SigSpenderHistoryLength, Handle: spenderHistoryLength},
		{Sig: SigSpenderAt, Handle: spenderAt},
	}
	return append(methods, allowanceOwnership.Methods()...)
}

// Construct sets the owner (args.owner, default the deployer) and, when
// given, the initial spender.
func (AllowanceTarget) Construct(f *host.Frame, args ir.Object) error {
	owner, err := host.ArgOptionalAddress(args, "owner")
	if err != nil {
		return err
	}
	if owner.IsZero() {
		owner = f.Caller()
	}
	if err := allowanceOwnership.Set(f, owner); err != nil {
		return err
	}
	spender, err := host.ArgOptionalAddress(args, "spender")
	if err != nil {
		return err
	}
	if spender.IsZero() {
		return nil
	}
	return changeSpender(f, spender)
}

func loadSpender(f *host.Frame) (ir.Address, error) {
	return storage.LoadAddress(f, AllowanceNamespace.Field(fieldSpender))
}

// spend moves tokens the owner approved to this target. Only the current
// spender may ask.
func spend(f *host.Frame, args ir.Object) (ir.Object, error) {
	spender, err := loadSpender(f)
	if err != nil {
		return nil, err
	}
	if spender.IsZero() || f.Caller() != spender {
		return nil, revert.New(revert.CodeNotAuthorized, "%s is not the trusted spender", f.Caller()).
			With("spender", spender.Hex())
	}
	owner, err := host.ArgAddress(args, "owner")
	if err != nil {
		return nil, err
	}
	tok, err := host.ArgAddress(args, "token")
	if err != nil {
		return nil, err
	}
	amount, err := host.ArgAmount(args, "amount")
	if err != nil {
		return nil, err
	}
	recipient, err := host.ArgAddress(args, "recipient")
	if err != nil {
		return nil, err
	}
	if err := token.TransferFrom(f, tok, owner, recipient, amount); err != nil {
		return nil, err
	}
	return nil, nil
}

func setSpender(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := allowanceOwnership.RequireOwner(f, f.Caller()); err != nil {
		return nil, err
	}
	spender, err := host.ArgAddress(args, "spender")
	if err != nil {
		return nil, err
	}
	return nil, changeSpender(f, spender)
}

func changeSpender(f *host.Frame, spender ir.Address) error {
	previous, err := loadSpender(f)
	if err != nil {
		return err
	}
	if err := storage.StoreAddress(f, AllowanceNamespace.Field(fieldSpender), spender); err != nil {
		return err
	}
	idx, err := spenderHistory.Push(f, spender)
	if err != nil {
		return err
	}
	return f.Emit(EventSpenderChanged, ir.Object{
		"previous": previous.Value(),
		"spender":  spender.Value(),
		"index":    ir.Int(idx),
	})
}

func currentSpender(f *host.Frame, _ ir.Object) (ir.Object, error) {
	spender, err := loadSpender(f)
	if err != nil {
		return nil, err
	}
	return ir.Object{"spender": spender.Value()}, nil
}

func spenderHistoryLength(f *host.Frame, _ ir.Object) (ir.Object, error) {
	n, err := spenderHistory.Len(f)
	if err != nil {
		return nil, err
	}
	return ir.Object{"length": ir.Int(n)}, nil
}

func spenderAt(f *host.Frame, args ir.Object) (ir.Object, error) {
	idx, err := host.ArgAmount(args, "index")
	if err != nil {
		return nil, err
	}
	a, err := spenderHistory.At(f, idx)
	if err != nil {
		return nil, revert.Wrap(revert.CodeInvalidArgument, err, "spender history")
	}
	return ir.Object{"spender": a.Value()}, nil
}
