package feature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/access"
	"github.com/roach88/exproxy/internal/deploy"
	"github.com/roach88/exproxy/internal/feature"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/manifest"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/testutil"
	"github.com/roach88/exproxy/internal/token"
)

var (
	owner   = testutil.Owner
	alice   = testutil.Alice
	bob     = testutil.Bob
	mallory = testutil.Mallory
)

// fixture is a fully bootstrapped Dispatcher with two tokens and the stock
// transformers.
type fixture struct {
	*testutil.Env
	d   *deploy.Deployment
	usd ir.Address
	eur ir.Address
}

func newFixture(t *testing.T, extra ...host.Code) *fixture {
	t.Helper()
	env := testutil.NewEnv(t, append(deploy.Codes(), extra...))
	m := &manifest.Manifest{
		Deployer:            testutil.Deployer,
		Owner:               owner,
		TransformerDeployer: testutil.Deployer,
		Migration:           manifest.MigrationFull,
		Tokens: []manifest.Token{
			{Label: "EUR", Name: "Test Euro", Symbol: "EUR"},
			{Label: "USD", Name: "Test Dollar", Symbol: "USD", Mint: []manifest.Allocation{{To: alice, Amount: 1000}}},
		},
		Transformers: []string{manifest.TransformerMint, manifest.TransformerPayTaker},
		Funding:      []manifest.Allocation{{To: alice, Amount: 100}},
	}
	d, err := deploy.Run(env.Ctx, env.Host, m, nil)
	require.NoError(t, err)
	return &fixture{Env: env, d: d, usd: d.Tokens["USD"], eur: d.Tokens["EUR"]}
}

func (f *fixture) impl(sig ir.FunctionSig) ir.Address {
	f.T.Helper()
	out := f.View(f.d.Dispatcher, proxy.SigGetFunctionImplementation, ir.Object{"selector": sig.Selector().Value()})
	a, err := ir.ParseAddress(string(out["impl"].(ir.String)))
	require.NoError(f.T, err)
	return a
}

func (f *fixture) owner() ir.Value {
	return f.View(f.d.Dispatcher, access.SigOwner, nil)["owner"]
}

func (f *fixture) balance(tok, who ir.Address) int64 {
	f.T.Helper()
	if tok == token.Native {
		return f.Balance(who)
	}
	return int64(f.View(tok, token.SigBalanceOf, ir.Object{"owner": who.Value()})["balance"].(ir.Int))
}

func TestBootstrap_FullMigrationInstallsEveryFeature(t *testing.T) {
	f := newFixture(t)

	state := f.View(f.d.Dispatcher, proxy.SigMigrationState, nil)
	assert.Equal(t, ir.String("migrated"), state["state"])
	assert.Equal(t, f.d.Migrator.Value(), state["migrator"])
	assert.Equal(t, owner.Value(), f.owner())

	assert.Equal(t, f.d.Registry, f.impl(feature.SigExtend))
	assert.Equal(t, f.d.Ownable, f.impl(access.SigTransferOwnership))
	assert.Equal(t, f.d.TokenSpender, f.impl(feature.SigSpendTokens))
	assert.Equal(t, f.d.TransformERC20, f.impl(feature.SigTransformERC20))

	for _, sig := range []ir.FunctionSig{proxy.SigBootstrap, proxy.SigBootstrapWith} {
		assert.True(t, f.impl(sig).IsZero(), "%s must be unmapped after bootstrap", sig.Name)
	}

	_, live, err := f.Host.Code(f.Ctx, f.d.Migrator)
	require.NoError(t, err)
	assert.False(t, live, "migrator retires after initialize")

	assert.Contains(t, testutil.EventNames(f.d.Receipt), feature.EventMigrated)
}

func TestBootstrap_SecondAttemptFails(t *testing.T) {
	f := newFixture(t)

	args := ir.Object{
		"entries": feature.EntriesValue([]feature.Entry{{Selector: feature.SigExtend.Selector(), Impl: mallory}}),
		"owner":   mallory.Value(),
	}
	for _, from := range []ir.Address{testutil.Deployer, f.d.Migrator, mallory} {
		f.Reverts(revert.CodeAlreadyMigrated, from, f.d.Dispatcher, proxy.SigBootstrap, args)
	}
	f.Reverts(revert.CodeAlreadyMigrated, testutil.Deployer, f.d.Dispatcher, proxy.SigBootstrapWith, ir.Object{
		"target": mallory.Value(),
		"args":   ir.Object{},
	})

	assert.Equal(t, owner.Value(), f.owner())
	assert.Equal(t, f.d.Registry, f.impl(feature.SigExtend))
}

func TestBootstrap_DirectEntries(t *testing.T) {
	env := testutil.NewEnv(t, deploy.Codes())
	dispatcher := env.Deploy(testutil.Deployer, proxy.Kind, nil, nil)
	registry := env.Deploy(testutil.Deployer, feature.RegistryKind, nil, nil)

	args := ir.Object{
		"entries": feature.EntriesValue([]feature.Entry{{Selector: feature.SigExtend.Selector(), Impl: registry}}),
		"owner":   owner.Value(),
	}
	env.Reverts(revert.CodeNotAuthorized, mallory, dispatcher, proxy.SigBootstrap, args)

	state := env.View(dispatcher, proxy.SigMigrationState, nil)
	assert.Equal(t, ir.String("unmigrated"), state["state"], "failed bootstrap changes nothing")

	receipt := env.Call(testutil.Deployer, dispatcher, proxy.SigBootstrap, args)
	assert.Equal(t, []string{proxy.EventProxyFunctionUpdated, feature.EventMigrated}, testutil.EventNames(receipt))

	out := env.View(dispatcher, proxy.SigGetFunctionImplementation, ir.Object{"selector": feature.SigExtend.Selector().Value()})
	assert.Equal(t, registry.Value(), out["impl"])

	env.Reverts(revert.CodeAlreadyMigrated, testutil.Deployer, dispatcher, proxy.SigBootstrap, args)
}

func TestDispatcher_UnknownSelector(t *testing.T) {
	f := newFixture(t)
	f.Reverts(revert.CodeUnknownSelector, alice, f.d.Dispatcher, ir.FunctionSig{Name: "doesNotExist"}, nil)
}

func TestFeature_MigrateMustBeDelegated(t *testing.T) {
	f := newFixture(t)
	for _, impl := range []ir.Address{f.d.Registry, f.d.Ownable, f.d.TokenSpender, f.d.TransformERC20} {
		f.Reverts(revert.CodeNotAuthorized, owner, impl, feature.SigMigrate, ir.Object{"config": ir.Object{}})
	}
}

func TestOwnable_TwoStepTransfer(t *testing.T) {
	f := newFixture(t)

	f.Reverts(revert.CodeNotAuthorized, mallory, f.d.Dispatcher, access.SigTransferOwnership, ir.Object{"newOwner": mallory.Value()})

	f.Call(owner, f.d.Dispatcher, access.SigTransferOwnership, ir.Object{"newOwner": bob.Value()})
	assert.Equal(t, owner.Value(), f.owner(), "owner keeps control until acceptance")

	f.Reverts(revert.CodeNotAuthorized, mallory, f.d.Dispatcher, access.SigAcceptOwnership, nil)
	f.Call(bob, f.d.Dispatcher, access.SigAcceptOwnership, nil)
	assert.Equal(t, bob.Value(), f.owner())

	f.Reverts(revert.CodeNotAuthorized, owner, f.d.Dispatcher, feature.SigExtend, ir.Object{
		"selector": feature.SigExtend.Selector().Value(),
		"impl":     mallory.Value(),
	})
}

func TestOwnable_Migrate(t *testing.T) {
	f := newFixture(t)
	registry2 := f.Deploy(testutil.Deployer, feature.RegistryKind, nil, nil)
	args := ir.Object{"target": registry2.Value(), "config": ir.Object{}}

	f.Reverts(revert.CodeNotAuthorized, mallory, f.d.Dispatcher, feature.SigOwnerMigrate, args)
	assert.Equal(t, f.d.Registry, f.impl(feature.SigExtend))

	receipt := f.Call(owner, f.d.Dispatcher, feature.SigOwnerMigrate, args)
	assert.Equal(t, registry2, f.impl(feature.SigExtend))
	assert.Equal(t, registry2, f.impl(feature.SigRollback))
	assert.Contains(t, testutil.EventNames(receipt), feature.EventMigrated)

	f.Reverts(revert.CodeMigrateCallFailed, owner, f.d.Dispatcher, feature.SigOwnerMigrate, ir.Object{
		"target": f.usd.Value(),
		"config": ir.Object{},
	})
}

func TestOwnable_MigrateNeedsInstalledFeature(t *testing.T) {
	env := testutil.NewEnv(t, deploy.Codes())
	dispatcher := env.Deploy(testutil.Deployer, proxy.Kind, nil, nil)
	ownable := env.Deploy(testutil.Deployer, feature.OwnableKind, nil, nil)
	env.Call(testutil.Deployer, dispatcher, proxy.SigBootstrap, ir.Object{
		"entries": feature.EntriesValue(nil),
		"owner":   owner.Value(),
	})

	// Bootstrapped without the Ownable feature: its migrate entry is unreachable.
	env.Reverts(revert.CodeUnknownSelector, owner, dispatcher, feature.SigOwnerMigrate, ir.Object{
		"target": ownable.Value(),
		"config": ir.Object{},
	})
}
