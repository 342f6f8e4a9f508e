package feature

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// SigDie retires the Bootstrap once its work is done.
var SigDie = ir.FunctionSig{Name: "die"}

// Bootstrap performs the one-shot install of a fresh Dispatcher.
//
// Immutables: bootstrapCaller (the only account allowed to bootstrap) and
// proxy (the Dispatcher that deployed it).
type Bootstrap struct{}

// Kind implements host.Code.
func (Bootstrap) Kind() string { return proxy.BootstrapKind }

// Namespaces implements host.Code.
func (Bootstrap) Namespaces() []storage.Namespace {
	return []storage.Namespace{proxy.TableNamespace, proxy.MigrationNamespace, OwnableNamespace}
}

// Methods implements host.Code.
func (Bootstrap) Methods() []host.Method {
	return []host.Method{
		{Sig: proxy.SigBootstrap, Handle: bootstrap},
		{Sig: proxy.SigBootstrapWith, Handle: bootstrapWith},
		{Sig: SigDie, Handle: die},
	}
}

// Entry is one selector table row installed by bootstrap.
type Entry struct {
	Selector ir.Selector
	Impl     ir.Address
}

// EntriesValue renders entries as bootstrap arguments.
func EntriesValue(entries []Entry) ir.Array {
	arr := make(ir.Array, len(entries))
	for i, e := range entries {
		arr[i] = ir.Object{"selector": e.Selector.Value(), "impl": e.Impl.Value()}
	}
	return arr
}

func parseEntries(args ir.Object) ([]Entry, error) {
	raw, err := host.ArgArray(args, "entries")
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(raw))
	for i, v := range raw {
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, revert.New(revert.CodeInvalidArgument, "entries[%d]: want object, got %T", i, v)
		}
		if entries[i].Selector, err = host.ArgSelector(obj, "selector"); err != nil {
			return nil, err
		}
		if entries[i].Impl, err = host.ArgAddress(obj, "impl"); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// begin checks the guards and marks the Dispatcher as migrating. The
// bootstrap selectors are removed before any install work runs.
func begin(f *host.Frame) (proxy.MigrationRecord, error) {
	if err := requireDelegated(f, "bootstrap"); err != nil {
		return proxy.MigrationRecord{}, err
	}
	allowed, err := immutableAddress(f, "bootstrapCaller")
	if err != nil {
		return proxy.MigrationRecord{}, err
	}
	if f.Caller() != allowed {
		return proxy.MigrationRecord{}, revert.New(revert.CodeNotAuthorized,
			"%s may not bootstrap %s", f.Caller(), f.Self()).With("bootstrapCaller", allowed.Hex())
	}
	rec, err := proxy.LoadMigration(f)
	if err != nil {
		return rec, err
	}
	if rec.State != proxy.Unmigrated {
		return rec, revert.New(revert.CodeAlreadyMigrated, "dispatcher %s is %s", f.Self(), rec.State)
	}
	rec.State = proxy.Migrating
	if err := proxy.StoreMigration(f, rec); err != nil {
		return rec, err
	}
	for _, sel := range proxy.BootstrapSelectors() {
		if err := proxy.Remove(f, sel); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// finish seals the migration record and retires the Bootstrap.
func finish(f *host.Frame, rec proxy.MigrationRecord, migrator ir.Address) (ir.Object, error) {
	owner, err := ownership.Owner(f)
	if err != nil {
		return nil, err
	}
	if owner.IsZero() {
		return nil, revert.New(revert.CodeInvalidArgument, "bootstrap left %s without owner", f.Self())
	}
	rec.State = proxy.Migrated
	rec.Migrator = migrator
	rec.TxID = f.TxID()
	if err := proxy.StoreMigration(f, rec); err != nil {
		return nil, err
	}
	if err := f.Emit(EventMigrated, ir.Object{
		"caller":   f.Caller().Value(),
		"migrator": migrator.Value(),
		"owner":    owner.Value(),
	}); err != nil {
		return nil, err
	}
	if _, err := f.Call(f.CodeAddress(), 0, SigDie.Selector(), nil); err != nil {
		return nil, err
	}
	return rec.Value(), nil
}

func bootstrap(f *host.Frame, args ir.Object) (ir.Object, error) {
	rec, err := begin(f)
	if err != nil {
		return nil, err
	}
	entries, err := parseEntries(args)
	if err != nil {
		return nil, err
	}
	owner, err := host.ArgAddress(args, "owner")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := proxy.Extend(f, e.Selector, e.Impl); err != nil {
			return nil, err
		}
	}
	if err := ownership.Set(f, owner); err != nil {
		return nil, err
	}
	return finish(f, rec, f.CodeAddress())
}

func bootstrapWith(f *host.Frame, args ir.Object) (ir.Object, error) {
	rec, err := begin(f)
	if err != nil {
		return nil, err
	}
	target, err := host.ArgAddress(args, "target")
	if err != nil {
		return nil, err
	}
	config, err := host.ArgObject(args, "args")
	if err != nil {
		return nil, err
	}
	out, err := f.DelegateCall(target, SigMigratorBootstrap.Selector(), ir.Object{"config": config})
	if err != nil {
		return nil, err
	}
	if !Migrated(out) {
		return nil, revert.New(revert.CodeMigrateCallFailed, "migrator %s did not confirm success", target)
	}
	return finish(f, rec, target)
}

// die is called by the Dispatcher at the end of the bootstrap.
func die(f *host.Frame, _ ir.Object) (ir.Object, error) {
	if f.Delegated() {
		return nil, revert.New(revert.CodeNotAuthorized, "die must not be delegate-called")
	}
	dispatcher, err := immutableAddress(f, "proxy")
	if err != nil {
		return nil, err
	}
	if f.Caller() != dispatcher {
		return nil, revert.New(revert.CodeNotAuthorized, "only %s may retire the bootstrap", dispatcher)
	}
	return nil, f.SelfDestruct(dispatcher)
}
