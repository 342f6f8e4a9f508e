package feature

import (
	"github.com/roach88/exproxy/internal/custody"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/storage"
	"github.com/roach88/exproxy/internal/token"
)

// TokenSpenderKind is the code kind of the token spender feature.
const TokenSpenderKind = "exproxy.feature.token-spender"

// TokenSpenderNamespace holds the allowance target address.
var TokenSpenderNamespace = storage.NamespaceFor("exproxy.token-spender")

const fieldAllowanceTarget = 0

// TokenSpender function signatures.
var (
	SigSpendTokens = ir.FunctionSig{Name: "spendTokens", Inputs: []ir.NamedArg{
		{Name: "token", Type: "address"},
		{Name: "owner", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "amount", Type: "uint256"},
	}}
	SigGetAllowanceTarget  = ir.FunctionSig{Name: "getAllowanceTarget", View: true}
	SigGetSpendableBalance = ir.FunctionSig{Name: "getSpendableBalance", Inputs: []ir.NamedArg{
		{Name: "token", Type: "address"},
		{Name: "owner", Type: "address"},
	}, View: true}
)

// TokenSpender pulls user tokens through the AllowanceTarget.
type TokenSpender struct{}

// Kind implements host.Code.
func (TokenSpender) Kind() string { return TokenSpenderKind }

// Namespaces implements host.Code.
func (TokenSpender) Namespaces() []storage.Namespace {
	return []storage.Namespace{TokenSpenderNamespace, proxy.TableNamespace}
}

// Methods implements host.Code.
func (TokenSpender) Methods() []host.Method {
	return []host.Method{
		{Sig: SigMigrate, Handle: migrateTokenSpender},
		{Sig: SigSpendTokens, Handle: spendTokens},
		{Sig: SigGetAllowanceTarget, Handle: getAllowanceTarget},
		{Sig: SigGetSpendableBalance, Handle: getSpendableBalance},
	}
}

func migrateTokenSpender(f *host.Frame, args ir.Object) (ir.Object, error) {
	config, err := migrateConfig(f, args)
	if err != nil {
		return nil, err
	}
	target, err := host.ArgAddress(config, "allowanceTarget")
	if err != nil {
		return nil, err
	}
	if err := storage.StoreAddress(f, TokenSpenderNamespace.Field(fieldAllowanceTarget), target); err != nil {
		return nil, err
	}
	if err := registerFunctions(f, SigSpendTokens, SigGetAllowanceTarget, SigGetSpendableBalance); err != nil {
		return nil, err
	}
	return MigrateSuccess(), nil
}

func allowanceTarget(f *host.Frame) (ir.Address, error) {
	return storage.LoadAddress(f, TokenSpenderNamespace.Field(fieldAllowanceTarget))
}

// spendTokens is internal to the Dispatcher: only features running inside it
// may pull user funds.
func spendTokens(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := onlySelf(f); err != nil {
		return nil, err
	}
	tok, err := host.ArgAddress(args, "token")
	if err != nil {
		return nil, err
	}
	owner, err := host.ArgAddress(args, "owner")
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
	target, err := allowanceTarget(f)
	if err != nil {
		return nil, err
	}
	_, err = f.Call(target, 0, custody.SigSpend.Selector(), ir.Object{
		"owner":     owner.Value(),
		"token":     tok.Value(),
		"amount":    ir.Int(amount),
		"recipient": to.Value(),
	})
	return nil, err
}

func getAllowanceTarget(f *host.Frame, _ ir.Object) (ir.Object, error) {
	target, err := allowanceTarget(f)
	if err != nil {
		return nil, err
	}
	return ir.Object{"allowanceTarget": target.Value()}, nil
}

// getSpendableBalance is the smaller of the owner's balance and what the
// owner approved to the allowance target.
func getSpendableBalance(f *host.Frame, args ir.Object) (ir.Object, error) {
	tok, err := host.ArgAddress(args, "token")
	if err != nil {
		return nil, err
	}
	owner, err := host.ArgAddress(args, "owner")
	if err != nil {
		return nil, err
	}
	target, err := allowanceTarget(f)
	if err != nil {
		return nil, err
	}
	bal, err := token.BalanceOf(f, tok, owner)
	if err != nil {
		return nil, err
	}
	allowed, err := token.Allowance(f, tok, owner, target)
	if err != nil {
		return nil, err
	}
	return ir.Object{"balance": ir.Int(min(bal, allowed))}, nil
}
