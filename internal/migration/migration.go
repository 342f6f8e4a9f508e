// Package migration provides the migrator codes that bootstrap a fresh
// Dispatcher through bootstrapWith.
//
// A migrator is deployed with an initializeCaller immutable. That account
// calls initialize, which hands control to the Dispatcher; the Dispatcher
// delegate-calls the migrator's bootstrap entry, which installs every feature
// in its own storage context. Any feature that fails to install aborts the
// whole bootstrap. The migrator retires itself once initialize returns.
package migration

import (
	"github.com/roach88/exproxy/internal/access"
	"github.com/roach88/exproxy/internal/feature"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// Migrator code kinds.
const (
	InitialKind = "exproxy.migration.initial"
	FullKind    = "exproxy.migration.full"
)

// SigInitialize starts the bootstrap of proxy.
var SigInitialize = ir.FunctionSig{Name: "initialize", Inputs: []ir.NamedArg{
	{Name: "proxy", Type: "address"},
	{Name: "owner", Type: "address"},
	{Name: "features", Type: "tuple"},
	{Name: "config", Type: "tuple"},
}}

// Features names the deployed feature accounts a migrator installs.
// TokenSpender and TransformERC20 are only read by the full migration.
type Features struct {
	Registry       ir.Address
	Ownable        ir.Address
	TokenSpender   ir.Address
	TransformERC20 ir.Address
}

// Value renders fs as initialize arguments.
func (fs Features) Value() ir.Object {
	return ir.Object{
		"registry":       fs.Registry.Value(),
		"ownable":        fs.Ownable.Value(),
		"tokenSpender":   fs.TokenSpender.Value(),
		"transformERC20": fs.TransformERC20.Value(),
	}
}

// Config carries the install parameters of the full migration.
type Config struct {
	AllowanceTarget     ir.Address
	TransformerDeployer ir.Address
}

// Value renders c as initialize arguments.
func (c Config) Value() ir.Object {
	return ir.Object{
		"allowanceTarget":     c.AllowanceTarget.Value(),
		"transformerDeployer": c.TransformerDeployer.Value(),
	}
}

// InitializeArgs builds the arguments of initialize.
func InitializeArgs(dispatcher, owner ir.Address, fs Features, c Config) ir.Object {
	return ir.Object{
		"proxy":    dispatcher.Value(),
		"owner":    owner.Value(),
		"features": fs.Value(),
		"config":   c.Value(),
	}
}

// install is one feature install performed by a migrator.
type install struct {
	name   string
	config func(c ir.Object) ir.Object
}

func noConfig(ir.Object) ir.Object { return ir.Object{} }

func pick(keys ...string) func(ir.Object) ir.Object {
	return func(c ir.Object) ir.Object {
		out := ir.Object{}
		for _, k := range keys {
			if v, ok := c[k]; ok {
				out[k] = v
			}
		}
		return out
	}
}

// migrator is the code shared by the initial and full migrations; they
// differ only in which features they install.
type migrator struct {
	kind     string
	installs []install
}

// Initial installs the registry and ownership features.
func Initial() host.Code {
	return migrator{kind: InitialKind, installs: []install{
		{name: "registry", config: noConfig},
		{name: "ownable", config: noConfig},
	}}
}

// Full installs the initial features plus the token spender and the
// transform pipeline.
func Full() host.Code {
	return migrator{kind: FullKind, installs: []install{
		{name: "registry", config: noConfig},
		{name: "ownable", config: noConfig},
		{name: "tokenSpender", config: pick("allowanceTarget")},
		{name: "transformERC20", config: pick("transformerDeployer")},
	}}
}

// Codes returns both migrator codes.
func Codes() []host.Code {
	return []host.Code{Initial(), Full()}
}

func (m migrator) Kind() string { return m.kind }

func (m migrator) Namespaces() []storage.Namespace {
	return []storage.Namespace{proxy.TableNamespace, feature.OwnableNamespace}
}

func (m migrator) Methods() []host.Method {
	return []host.Method{
		{Sig: SigInitialize, Handle: m.initialize},
		{Sig: feature.SigMigratorBootstrap, Handle: m.bootstrap},
	}
}

// initialize hands the migrator's arguments to proxy.bootstrapWith and
// retires the migrator once the Dispatcher is bootstrapped.
func (m migrator) initialize(f *host.Frame, args ir.Object) (ir.Object, error) {
	if f.Delegated() {
		return nil, revert.New(revert.CodeNotAuthorized, "initialize must not be delegate-called")
	}
	allowed, err := host.ArgAddress(f.Immutables(), "initializeCaller")
	if err != nil {
		return nil, revert.Wrap(revert.CodeInternal, err, "%s immutable", m.kind)
	}
	if f.Caller() != allowed {
		return nil, revert.New(revert.CodeNotAuthorized, "%s may not initialize", f.Caller()).
			With("initializeCaller", allowed.Hex())
	}
	dispatcher, err := host.ArgAddress(args, "proxy")
	if err != nil {
		return nil, err
	}
	out, err := f.Call(dispatcher, 0, proxy.SigBootstrapWith.Selector(), ir.Object{
		"target": f.Self().Value(),
		"args":   args,
	})
	if err != nil {
		return nil, err
	}
	if err := f.SelfDestruct(allowed); err != nil {
		return nil, err
	}
	return out, nil
}

// bootstrap runs inside the Dispatcher: every install is a delegate call into
// the feature's migrate entry, and every one must confirm success.
func (m migrator) bootstrap(f *host.Frame, args ir.Object) (ir.Object, error) {
	if !f.Delegated() || f.Caller() != f.CodeAddress() {
		return nil, revert.New(revert.CodeNotAuthorized, "%s.bootstrap is only reachable through initialize", m.kind)
	}
	config, err := host.ArgObject(args, "config")
	if err != nil {
		return nil, err
	}
	owner, err := host.ArgAddress(config, "owner")
	if err != nil {
		return nil, err
	}
	features, err := host.ArgObject(config, "features")
	if err != nil {
		return nil, err
	}
	settings, err := host.ArgObject(config, "config")
	if err != nil {
		return nil, err
	}

	for _, in := range m.installs {
		impl, err := host.ArgAddress(features, in.name)
		if err != nil {
			return nil, revert.Wrap(revert.CodePartialMigrationNotAllowed, err, "feature %s", in.name)
		}
		out, err := f.DelegateCall(impl, feature.SigMigrate.Selector(), ir.Object{"config": in.config(settings)})
		if err != nil {
			return nil, revert.Wrap(revert.CodePartialMigrationNotAllowed, err, "install %s (%s)", in.name, impl)
		}
		if !feature.Migrated(out) {
			return nil, revert.New(revert.CodePartialMigrationNotAllowed,
				"install %s (%s) did not confirm success", in.name, impl)
		}
	}

	if err := access.New(feature.OwnableNamespace).Set(f, owner); err != nil {
		return nil, err
	}
	return feature.MigrateSuccess(), nil
}
