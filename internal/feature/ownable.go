package feature

import (
	"github.com/roach88/exproxy/internal/access"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// OwnableKind is the code kind of the ownership feature.
const OwnableKind = "exproxy.feature.ownable"

// SigOwnerMigrate runs a migration on an already bootstrapped Dispatcher.
var SigOwnerMigrate = ir.FunctionSig{Name: "migrate", Inputs: []ir.NamedArg{
	{Name: "target", Type: "address"},
	{Name: "config", Type: "tuple"},
}}

// Ownable exposes the owner handshake and owner-driven migrations.
type Ownable struct{}

// Kind implements host.Code.
func (Ownable) Kind() string { return OwnableKind }

// Namespaces implements host.Code.
func (Ownable) Namespaces() []storage.Namespace {
	return []storage.Namespace{OwnableNamespace, proxy.TableNamespace}
}

// Methods implements host.Code.
func (Ownable) Methods() []host.Method {
	methods := []host.Method{
		{Sig: SigMigrate, Handle: migrateOwnable},
		{Sig: SigOwnerMigrate, Handle: ownerMigrate},
	}
	return append(methods, ownership.Methods()...)
}

func migrateOwnable(f *host.Frame, args ir.Object) (ir.Object, error) {
	if _, err := migrateConfig(f, args); err != nil {
		return nil, err
	}
	err := registerFunctions(f,
		access.SigOwner,
		access.SigPendingOwner,
		access.SigTransferOwnership,
		access.SigAcceptOwnership,
		SigOwnerMigrate,
	)
	if err != nil {
		return nil, err
	}
	return MigrateSuccess(), nil
}

// ownerMigrate delegates to target's migrate entry on behalf of the owner.
func ownerMigrate(f *host.Frame, args ir.Object) (ir.Object, error) {
	rec, err := proxy.LoadMigration(f)
	if err != nil {
		return nil, err
	}
	if rec.State != proxy.Migrated {
		return nil, revert.New(revert.CodeNotMigrated, "dispatcher %s is %s", f.Self(), rec.State)
	}
	if err := onlyOwner(f); err != nil {
		return nil, err
	}
	target, err := host.ArgAddress(args, "target")
	if err != nil {
		return nil, err
	}
	config, err := host.ArgObject(args, "config")
	if err != nil {
		return nil, err
	}

	out, err := f.DelegateCall(target, SigMigrate.Selector(), ir.Object{"config": config})
	if err != nil {
		return nil, revert.Wrap(revert.CodeMigrateCallFailed, err, "migrate %s", target)
	}
	if !Migrated(out) {
		return nil, revert.New(revert.CodeMigrateCallFailed, "migrate %s did not confirm success", target)
	}

	owner, err := ownership.Owner(f)
	if err != nil {
		return nil, err
	}
	if err := f.Emit(EventMigrated, ir.Object{
		"caller":   f.Caller().Value(),
		"migrator": target.Value(),
		"owner":    owner.Value(),
	}); err != nil {
		return nil, err
	}
	return nil, nil
}
