package feature

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// RegistryKind is the code kind of the function registry feature.
const RegistryKind = "exproxy.feature.registry"

// Registry function signatures.
var (
	SigExtend = ir.FunctionSig{Name: "extend", Inputs: []ir.NamedArg{
		{Name: "selector", Type: "bytes4"},
		{Name: "impl", Type: "address"},
	}}
	SigRollback = ir.FunctionSig{Name: "rollback", Inputs: []ir.NamedArg{
		{Name: "selector", Type: "bytes4"},
		{Name: "target", Type: "address"},
	}}
	SigGetRollbackLength = ir.FunctionSig{Name: "getRollbackLength", Inputs: []ir.NamedArg{
		{Name: "selector", Type: "bytes4"},
	}, View: true}
	SigGetRollbackEntryAtIndex = ir.FunctionSig{Name: "getRollbackEntryAtIndex", Inputs: []ir.NamedArg{
		{Name: "selector", Type: "bytes4"},
		{Name: "index", Type: "uint256"},
	}, View: true}
)

// Registry lets the owner change the selector table after bootstrap.
type Registry struct{}

// Kind implements host.Code.
func (Registry) Kind() string { return RegistryKind }

// Namespaces implements host.Code.
func (Registry) Namespaces() []storage.Namespace {
	return []storage.Namespace{proxy.TableNamespace}
}

// Methods implements host.Code.
func (Registry) Methods() []host.Method {
	return []host.Method{
		{Sig: SigMigrate, Handle: migrateRegistry},
		{Sig: SigExtend, Handle: extend},
		{Sig: SigRollback, Handle: rollback},
		{Sig: SigGetRollbackLength, Handle: getRollbackLength},
		{Sig: SigGetRollbackEntryAtIndex, Handle: getRollbackEntryAtIndex},
	}
}

func migrateRegistry(f *host.Frame, args ir.Object) (ir.Object, error) {
	if _, err := migrateConfig(f, args); err != nil {
		return nil, err
	}
	if err := registerFunctions(f, SigExtend, SigRollback, SigGetRollbackLength, SigGetRollbackEntryAtIndex); err != nil {
		return nil, err
	}
	return MigrateSuccess(), nil
}

func extend(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := onlyOwner(f); err != nil {
		return nil, err
	}
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	impl, err := host.ArgAddress(args, "impl")
	if err != nil {
		return nil, err
	}
	return nil, proxy.Extend(f, sel, impl)
}

// rollback without a target restores the previous implementation; with one
// it restores that exact entry.
func rollback(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := onlyOwner(f); err != nil {
		return nil, err
	}
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	if _, ok := args["target"]; !ok {
		return nil, proxy.RollbackPrevious(f, sel)
	}
	target, err := host.ArgAddress(args, "target")
	if err != nil {
		return nil, err
	}
	return nil, proxy.RollbackTo(f, sel, target)
}

func getRollbackLength(f *host.Frame, args ir.Object) (ir.Object, error) {
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	n, err := proxy.History(sel).Len(f)
	if err != nil {
		return nil, err
	}
	return ir.Object{"length": ir.Int(n)}, nil
}

func getRollbackEntryAtIndex(f *host.Frame, args ir.Object) (ir.Object, error) {
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	idx, err := host.ArgAmount(args, "index")
	if err != nil {
		return nil, err
	}
	impl, err := proxy.History(sel).At(f, idx)
	if err != nil {
		return nil, revert.Wrap(revert.CodeInvalidArgument, err, "rollback history of %s", sel)
	}
	return ir.Object{"impl": impl.Value()}, nil
}
