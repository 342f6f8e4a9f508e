// Package testutil provides deterministic hosts and call helpers for tests.
//
// Every Env uses an in-memory store and sequential tx ids ("tx-1", "tx-2",
// ...), so event ids and golden traces are reproducible.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/store"
)

// Well-known test accounts.
var (
	Deployer = ir.MustAddress("0x00000000000000000000000000000000000de910")
	Owner    = ir.MustAddress("0x000000000000000000000000000000000000041e")
	Alice    = ir.MustAddress("0x00000000000000000000000000000000000a11ce")
	Bob      = ir.MustAddress("0x0000000000000000000000000000000000000b0b")
	Mallory  = ir.MustAddress("0x000000000000000000000000000000000000ba11")
)

// Env is a host over an in-memory store.
type Env struct {
	T    testing.TB
	Host *host.Host
	Ctx  context.Context
}

// NewEnv creates a host running codes.
func NewEnv(t testing.TB, codes []host.Code, opts ...host.Option) *Env {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	book := host.NewCodebook()
	require.NoError(t, book.Register(codes...))

	opts = append([]host.Option{host.WithTxIDGenerator(host.NewSequentialGenerator("tx"))}, opts...)
	h, err := host.New(context.Background(), st, book, opts...)
	require.NoError(t, err)
	return &Env{T: t, Host: h, Ctx: context.Background()}
}

// Deploy deploys kind from from and requires success.
func (e *Env) Deploy(from ir.Address, kind string, immutables, args ir.Object) ir.Address {
	e.T.Helper()
	addr, receipt, err := e.Host.Deploy(e.Ctx, from, kind, immutables, args)
	require.NoError(e.T, err)
	require.Equal(e.T, ir.StatusSuccess, receipt.Status, "deploy %s: %s", kind, receipt.ErrorMessage)
	return addr
}

// Send executes a call and returns its receipt, whatever the status.
// A zero FunctionSig sends a plain value transfer.
func (e *Env) Send(from, to ir.Address, value int64, sig ir.FunctionSig, args ir.Object) *ir.Receipt {
	e.T.Helper()
	var sel ir.Selector
	if sig.Name != "" {
		sel = sig.Selector()
	}
	receipt, err := e.Host.Call(e.Ctx, ir.Msg{
		From:     from,
		To:       to,
		Value:    value,
		Selector: sel,
		Args:     args,
	})
	require.NoError(e.T, err)
	return receipt
}

// Call executes a call and requires success.
func (e *Env) Call(from, to ir.Address, sig ir.FunctionSig, args ir.Object) *ir.Receipt {
	e.T.Helper()
	receipt := e.Send(from, to, 0, sig, args)
	require.Equal(e.T, ir.StatusSuccess, receipt.Status, "%s: %s", sig.Signature(), receipt.ErrorMessage)
	return receipt
}

// Reverts executes a call and requires it to revert with code.
func (e *Env) Reverts(code revert.Code, from, to ir.Address, sig ir.FunctionSig, args ir.Object) *ir.Receipt {
	e.T.Helper()
	receipt := e.Send(from, to, 0, sig, args)
	require.Equal(e.T, ir.StatusReverted, receipt.Status, "%s should revert with %s", sig.Signature(), code)
	require.Equal(e.T, string(code), receipt.ErrorCode, receipt.ErrorMessage)
	return receipt
}

// View executes a read-only call and requires success.
func (e *Env) View(to ir.Address, sig ir.FunctionSig, args ir.Object) ir.Object {
	e.T.Helper()
	out, err := e.Host.View(e.Ctx, ir.Msg{From: Alice, To: to, Selector: sig.Selector(), Args: args})
	require.NoError(e.T, err, sig.Signature())
	return out
}

// Fund credits native value.
func (e *Env) Fund(addr ir.Address, amount int64) {
	e.T.Helper()
	require.NoError(e.T, e.Host.Fund(e.Ctx, addr, amount))
}

// Balance returns the native balance of addr.
func (e *Env) Balance(addr ir.Address) int64 {
	e.T.Helper()
	bal, err := e.Host.Balance(e.Ctx, addr)
	require.NoError(e.T, err)
	return bal
}

// EventNames lists the names of the events of a receipt in order.
func EventNames(r *ir.Receipt) []string {
	names := make([]string, len(r.Events))
	for i, ev := range r.Events {
		names[i] = ev.Name
	}
	return names
}
