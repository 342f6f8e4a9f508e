package feature

import (
	"github.com/roach88/exproxy/internal/access"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// SigMigrate is the install entry point every feature implements.
var SigMigrate = ir.FunctionSig{Name: "migrate", Inputs: []ir.NamedArg{
	{Name: "config", Type: "tuple"},
}}

// SigMigratorBootstrap is the entry point bootstrapWith delegates to.
var SigMigratorBootstrap = ir.FunctionSig{Name: "bootstrap", Inputs: []ir.NamedArg{
	{Name: "config", Type: "tuple"},
}}

// OwnableNamespace holds the Dispatcher's owner.
var OwnableNamespace = storage.NamespaceFor("exproxy.ownable")

var ownership = access.New(OwnableNamespace)

// EventMigrated is emitted when a bootstrap or owner migration completes.
const EventMigrated = "Migrated"

// MigrateSuccess is the result every successful migrate entry returns.
func MigrateSuccess() ir.Object {
	return ir.Object{"magic": ir.String(ir.MigrateSuccess)}
}

// Migrated reports whether out carries the migrate magic.
func Migrated(out ir.Object) bool {
	magic, ok := out["magic"].(ir.String)
	return ok && string(magic) == ir.MigrateSuccess
}

// requireDelegated rejects direct calls to entry points that only make sense
// against the Dispatcher's storage.
func requireDelegated(f *host.Frame, entry string) error {
	if !f.Delegated() {
		return revert.New(revert.CodeNotAuthorized, "%s.%s must be delegate-called", f.Kind(), entry)
	}
	return nil
}

// onlyOwner fails unless the caller owns the Dispatcher.
func onlyOwner(f *host.Frame) error {
	return ownership.RequireOwner(f, f.Caller())
}

// onlySelf fails unless the Dispatcher calls itself.
func onlySelf(f *host.Frame) error {
	if f.Caller() != f.Self() {
		return revert.New(revert.CodeNotAuthorized, "only %s may call this function", f.Self())
	}
	return nil
}

// registerFunctions points sigs at the executing feature's own address.
func registerFunctions(f *host.Frame, sigs ...ir.FunctionSig) error {
	for _, sig := range sigs {
		if err := proxy.Extend(f, sig.Selector(), f.CodeAddress()); err != nil {
			return err
		}
	}
	return nil
}

// migrateConfig decodes the config of a migrate entry.
func migrateConfig(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := requireDelegated(f, "migrate"); err != nil {
		return nil, err
	}
	return host.ArgObject(args, "config")
}

// immutableAddress reads an address constant of the executing code.
func immutableAddress(f *host.Frame, name string) (ir.Address, error) {
	a, err := host.ArgAddress(f.Immutables(), name)
	if err != nil {
		return ir.ZeroAddress, revert.Wrap(revert.CodeInternal, err, "%s immutable %q", f.Kind(), name)
	}
	return a, nil
}

// Codes returns every feature code kind.
func Codes() []host.Code {
	return []host.Code{
		Bootstrap{},
		Registry{},
		Ownable{},
		TokenSpender{},
		TransformERC20{},
	}
}
