package custody_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/access"
	"github.com/roach88/exproxy/internal/custody"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/testutil"
	"github.com/roach88/exproxy/internal/token"
)

var (
	controller = testutil.Deployer
	alice      = testutil.Alice
	bob        = testutil.Bob
	mallory    = testutil.Mallory
)

func newEnv(t *testing.T) *testutil.Env {
	return testutil.NewEnv(t, []host.Code{custody.Vault{}, custody.AllowanceTarget{}, token.Token{}})
}

func deployToken(env *testutil.Env) ir.Address {
	return env.Deploy(testutil.Deployer, token.Kind, nil, ir.Object{"name": ir.String("T"), "symbol": ir.String("T")})
}

func tokenBalance(env *testutil.Env, tok, owner ir.Address) int64 {
	return int64(env.View(tok, token.SigBalanceOf, ir.Object{"owner": owner.Value()})["balance"].(ir.Int))
}

func TestVault_ControllerIsDeployer(t *testing.T) {
	env := newEnv(t)
	vault := env.Deploy(controller, custody.VaultKind, nil, nil)
	out := env.View(vault, custody.SigController, nil)
	assert.Equal(t, controller.Value(), out["controller"])
}

func TestVault_OnlyControllerMovesAssets(t *testing.T) {
	env := newEnv(t)
	vault := env.Deploy(controller, custody.VaultKind, nil, nil)
	tok := deployToken(env)
	env.Call(alice, tok, token.SigMint, ir.Object{"to": vault.Value(), "amount": ir.Int(100)})
	env.Fund(vault, 50)

	transferArgs := ir.Object{
		"target":   tok.Value(),
		"value":    ir.Int(0),
		"selector": token.SigTransfer.Selector().Value(),
		"args":     ir.Object{"to": mallory.Value(), "amount": ir.Int(100)},
	}
	env.Reverts(revert.CodeNotController, mallory, vault, custody.SigExecute, transferArgs)
	env.Reverts(revert.CodeNotController, mallory, vault, custody.SigExecute, ir.Object{
		"target":   mallory.Value(),
		"value":    ir.Int(50),
		"selector": ir.Selector{}.Value(),
	})
	env.Reverts(revert.CodeNotController, mallory, vault, custody.SigExecuteDelegate, ir.Object{
		"target":   tok.Value(),
		"selector": token.SigTransfer.Selector().Value(),
	})
	assert.Equal(t, int64(100), tokenBalance(env, tok, vault))
	assert.Equal(t, int64(50), env.Balance(vault))
	assert.Zero(t, tokenBalance(env, tok, mallory))
	assert.Zero(t, env.Balance(mallory))

	env.Call(controller, vault, custody.SigExecute, transferArgs)
	assert.Zero(t, tokenBalance(env, tok, vault))
	assert.Equal(t, int64(100), tokenBalance(env, tok, mallory))
}

func TestVault_ReceivesAndSendsNativeValue(t *testing.T) {
	env := newEnv(t)
	vault := env.Deploy(controller, custody.VaultKind, nil, nil)
	env.Fund(alice, 10)

	r := env.Send(alice, vault, 10, ir.FunctionSig{}, nil)
	require.Equal(t, ir.StatusSuccess, r.Status, r.ErrorMessage)

	env.Call(controller, vault, custody.SigExecute, ir.Object{
		"target":   bob.Value(),
		"value":    ir.Int(7),
		"selector": ir.Selector{}.Value(),
	})
	assert.Equal(t, int64(3), env.Balance(vault))
	assert.Equal(t, int64(7), env.Balance(bob))
}

func TestVault_TransferControl(t *testing.T) {
	env := newEnv(t)
	vault := env.Deploy(controller, custody.VaultKind, nil, nil)

	env.Reverts(revert.CodeNotController, mallory, vault, custody.SigTransferControl,
		ir.Object{"newController": mallory.Value()})

	r := env.Call(controller, vault, custody.SigTransferControl, ir.Object{"newController": bob.Value()})
	assert.Equal(t, []string{custody.EventControllerChanged}, testutil.EventNames(r))
	assert.Equal(t, bob.Value(), env.View(vault, custody.SigController, nil)["controller"])

	env.Reverts(revert.CodeNotController, controller, vault, custody.SigTransferControl,
		ir.Object{"newController": controller.Value()})
}

func TestAllowanceTarget_OnlySpenderSpends(t *testing.T) {
	env := newEnv(t)
	spenderA := bob
	target := env.Deploy(controller, custody.AllowanceTargetKind, nil, ir.Object{"spender": spenderA.Value()})
	tok := deployToken(env)
	env.Call(alice, tok, token.SigMint, ir.Object{"to": alice.Value(), "amount": ir.Int(100)})
	env.Call(alice, tok, token.SigApprove, ir.Object{"spender": target.Value(), "amount": ir.Int(60)})

	spendArgs := ir.Object{
		"owner":     alice.Value(),
		"token":     tok.Value(),
		"amount":    ir.Int(25),
		"recipient": mallory.Value(),
	}
	env.Reverts(revert.CodeNotAuthorized, mallory, target, custody.SigSpend, spendArgs)

	env.Call(spenderA, target, custody.SigSpend, spendArgs)
	assert.Equal(t, int64(75), tokenBalance(env, tok, alice))
	assert.Equal(t, int64(25), tokenBalance(env, tok, mallory))
}

func TestAllowanceTarget_SpenderChangeKeepsApprovals(t *testing.T) {
	env := newEnv(t)
	oldSpender, newSpender := bob, testutil.Owner
	target := env.Deploy(controller, custody.AllowanceTargetKind, nil, ir.Object{"spender": oldSpender.Value()})
	tok := deployToken(env)
	env.Call(alice, tok, token.SigMint, ir.Object{"to": alice.Value(), "amount": ir.Int(100)})
	env.Call(alice, tok, token.SigApprove, ir.Object{"spender": target.Value(), "amount": ir.Int(40)})

	env.Reverts(revert.CodeNotAuthorized, mallory, target, custody.SigSetSpender, ir.Object{"spender": mallory.Value()})

	r := env.Call(controller, target, custody.SigSetSpender, ir.Object{"spender": newSpender.Value()})
	require.Len(t, r.Events, 1)
	assert.Equal(t, custody.EventSpenderChanged, r.Events[0].Name)
	assert.Equal(t, oldSpender.Value(), r.Events[0].Fields["previous"])
	assert.Equal(t, ir.Int(1), r.Events[0].Fields["index"])

	// The user never re-approves.
	allowance := env.View(tok, token.SigAllowance, ir.Object{"owner": alice.Value(), "spender": target.Value()})
	assert.Equal(t, ir.Int(40), allowance["allowance"])

	spendArgs := ir.Object{
		"owner":     alice.Value(),
		"token":     tok.Value(),
		"amount":    ir.Int(40),
		"recipient": newSpender.Value(),
	}
	env.Reverts(revert.CodeNotAuthorized, oldSpender, target, custody.SigSpend, spendArgs)
	env.Call(newSpender, target, custody.SigSpend, spendArgs)
	assert.Equal(t, int64(40), tokenBalance(env, tok, newSpender))

	assert.Equal(t, ir.Int(2), env.View(target, custody.SigSpenderHistoryLength, nil)["length"])
	assert.Equal(t, oldSpender.Value(), env.View(target, custody.SigSpenderAt, ir.Object{"index": ir.Int(0)})["spender"])
	assert.Equal(t, newSpender.Value(), env.View(target, custody.SigSpenderAt, ir.Object{"index": ir.Int(1)})["spender"])
}

func TestAllowanceTarget_TwoStepOwnership(t *testing.T) {
	env := newEnv(t)
	target := env.Deploy(controller, custody.AllowanceTargetKind, nil, nil)

	env.Call(controller, target, access.SigTransferOwnership, ir.Object{"newOwner": bob.Value()})
	assert.Equal(t, controller.Value(), env.View(target, access.SigOwner, nil)["owner"])

	env.Reverts(revert.CodeNotAuthorized, mallory, target, access.SigAcceptOwnership, nil)
	env.Call(bob, target, access.SigAcceptOwnership, nil)
	assert.Equal(t, bob.Value(), env.View(target, access.SigOwner, nil)["owner"])

	env.Reverts(revert.CodeNotAuthorized, controller, target, custody.SigSetSpender, ir.Object{"spender": controller.Value()})
}
