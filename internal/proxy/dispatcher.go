package proxy

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// Kind is the code kind of the Dispatcher.
const Kind = "exproxy.dispatcher"

// BootstrapKind is the code kind the constructor deploys to run the one-shot
// bootstrap. Registered by the feature package.
const BootstrapKind = "exproxy.feature.bootstrap"

// Bootstrap entry points, mapped by the constructor and removed by the
// bootstrap itself.
var (
	SigBootstrap = ir.FunctionSig{Name: "bootstrap", Inputs: []ir.NamedArg{
		{Name: "entries", Type: "tuple[]"},
		{Name: "owner", Type: "address"},
	}}
	SigBootstrapWith = ir.FunctionSig{Name: "bootstrapWith", Inputs: []ir.NamedArg{
		{Name: "target", Type: "address"},
		{Name: "args", Type: "tuple"},
	}}
)

// Built-in views.
var (
	SigGetFunctionImplementation = ir.FunctionSig{Name: "getFunctionImplementation", Inputs: []ir.NamedArg{
		{Name: "selector", Type: "bytes4"},
	}, View: true}
	SigMigrationState = ir.FunctionSig{Name: "migrationState", View: true}
)

// BootstrapSelectors are the selectors reserved for the bootstrap.
func BootstrapSelectors() []ir.Selector {
	return []ir.Selector{SigBootstrap.Selector(), SigBootstrapWith.Selector()}
}

// Dispatcher is the entry point code.
type Dispatcher struct{}

// Kind implements host.Code.
func (Dispatcher) Kind() string { return Kind }

// Namespaces implements host.Code.
func (Dispatcher) Namespaces() []storage.Namespace {
	return []storage.Namespace{TableNamespace, MigrationNamespace}
}

// Methods implements host.Code.
func (Dispatcher) Methods() []host.Method {
	return []host.Method{
		{Sig: SigGetFunctionImplementation, Handle: getFunctionImplementation},
		{Sig: SigMigrationState, Handle: migrationState},
	}
}

// Construct deploys the Bootstrap feature and maps the bootstrap selectors
// to it. Only args.bootstrapCaller (default: the deployer) may bootstrap.
func (Dispatcher) Construct(f *host.Frame, args ir.Object) error {
	caller, err := host.ArgOptionalAddress(args, "bootstrapCaller")
	if err != nil {
		return err
	}
	if caller.IsZero() {
		caller = f.Caller()
	}
	bootstrap, err := f.Deploy(BootstrapKind, ir.Object{
		"bootstrapCaller": caller.Value(),
		"proxy":           f.Self().Value(),
	}, nil)
	if err != nil {
		return err
	}
	for _, sel := range BootstrapSelectors() {
		if err := Set(f, sel, bootstrap); err != nil {
			return err
		}
	}
	return StoreMigration(f, MigrationRecord{State: Unmigrated, Bootstrapper: bootstrap})
}

// Fallback delegates every other selector to its registered implementation.
func (Dispatcher) Fallback(f *host.Frame, sel ir.Selector, args ir.Object) (ir.Object, error) {
	impl, err := Implementation(f, sel)
	if err != nil {
		return nil, err
	}
	if impl.IsZero() {
		if isBootstrapSelector(sel) {
			rec, err := LoadMigration(f)
			if err != nil {
				return nil, err
			}
			if rec.State != Unmigrated {
				return nil, revert.New(revert.CodeAlreadyMigrated, "dispatcher %s is already bootstrapped", f.Self())
			}
		}
		return nil, revert.New(revert.CodeUnknownSelector, "no implementation for %s", sel).
			With("dispatcher", f.Self().Hex())
	}
	return f.DelegateCall(impl, sel, args)
}

func isBootstrapSelector(sel ir.Selector) bool {
	for _, s := range BootstrapSelectors() {
		if s == sel {
			return true
		}
	}
	return false
}

func getFunctionImplementation(f *host.Frame, args ir.Object) (ir.Object, error) {
	sel, err := host.ArgSelector(args, "selector")
	if err != nil {
		return nil, err
	}
	impl, err := Implementation(f, sel)
	if err != nil {
		return nil, err
	}
	return ir.Object{"impl": impl.Value()}, nil
}

func migrationState(f *host.Frame, _ ir.Object) (ir.Object, error) {
	rec, err := LoadMigration(f)
	if err != nil {
		return nil, err
	}
	return rec.Value(), nil
}
