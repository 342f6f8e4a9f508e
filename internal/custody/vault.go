package custody

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// VaultKind is the code kind of vaults.
const VaultKind = "exproxy.vault"

// VaultNamespace holds the vault controller.
var VaultNamespace = storage.NamespaceFor("exproxy.vault")

const fieldController = 0

// EventControllerChanged is emitted when control moves to a new controller.
const EventControllerChanged = "ControllerChanged"

// Vault function signatures.
var (
	SigExecute = ir.FunctionSig{Name: "execute", Inputs: []ir.NamedArg{
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "selector", Type: "bytes4"},
		{Name: "args", Type: "tuple"},
	}}
	SigExecuteDelegate = ir.FunctionSig{Name: "executeDelegate", Inputs: []ir.NamedArg{
		{Name: "target", Type: "address"},
		{Name: "selector", Type: "bytes4"},
		{Name: "args", Type: "tuple"},
	}}
	SigController      = ir.FunctionSig{Name: "controller", View: true}
	SigTransferControl = ir.FunctionSig{Name: "transferControl", Inputs: []ir.NamedArg{
		{Name: "newController", Type: "address"},
	}}
)

// Vault is the custody wallet code. The account that deploys a vault becomes
// its controller.
type Vault struct{}

// Kind implements host.Code.
func (Vault) Kind() string { return VaultKind }

// Namespaces implements host.Code.
func (Vault) Namespaces() []storage.Namespace { return []storage.Namespace{VaultNamespace} }

// Methods implements host.Code.
func (Vault) Methods() []host.Method {
	return []host.Method{
		{Sig: SigExecute, Handle: execute},
		{Sig: SigExecuteDelegate, Handle: executeDelegate},
		{Sig: SigController, Handle: controller},
		{Sig: SigTransferControl, Handle: transferControl},
	}
}

// Construct records the deployer as controller.
func (Vault) Construct(f *host.Frame, _ ir.Object) error {
	return storage.StoreAddress(f, VaultNamespace.Field(fieldController), f.Caller())
}

// Receive accepts native value from anyone.
func (Vault) Receive(*host.Frame) error { return nil }

func requireController(f *host.Frame) error {
	ctl, err := storage.LoadAddress(f, VaultNamespace.Field(fieldController))
	if err != nil {
		return err
	}
	if f.Caller() != ctl {
		return revert.New(revert.CodeNotController, "%s does not control vault %s", f.Caller(), f.Self()).
			With("controller", ctl.Hex())
	}
	return nil
}

// execute performs a regular call with the vault's own authority.
func execute(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := requireController(f); err != nil {
		return nil, err
	}
	target, err := host.ArgAddress(args, "target")
	if err != nil {
		return nil, err
	}
	value, err := host.ArgAmount(args, "value")
	if err != nil {
		return nil, err
	}
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	callArgs, err := host.ArgObject(args, "args")
	if err != nil {
		return nil, err
	}
	return f.Call(target, value, sel, callArgs)
}

// executeDelegate runs target's code against the vault's storage and balances.
func executeDelegate(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := requireController(f); err != nil {
		return nil, err
	}
	target, err := host.ArgAddress(args, "target")
	if err != nil {
		return nil, err
	}
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	callArgs, err := host.ArgObject(args, "args")
	if err != nil {
		return nil, err
	}
	return f.DelegateCall(target, sel, callArgs)
}

func controller(f *host.Frame, _ ir.Object) (ir.Object, error) {
	ctl, err := storage.LoadAddress(f, VaultNamespace.Field(fieldController))
	if err != nil {
		return nil, err
	}
	return ir.Object{"controller": ctl.Value()}, nil
}

func transferControl(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := requireController(f); err != nil {
		return nil, err
	}
	next, err := host.ArgAddress(args, "newController")
	if err != nil {
		return nil, err
	}
	if next.IsZero() {
		return nil, revert.New(revert.CodeInvalidArgument, "vault controller must not be the zero address")
	}
	if err := storage.StoreAddress(f, VaultNamespace.Field(fieldController), next); err != nil {
		return nil, err
	}
	return nil, f.Emit(EventControllerChanged, ir.Object{
		"previousController": f.Caller().Value(),
		"newController":      next.Value(),
	})
}
