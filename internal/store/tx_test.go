package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
)

var (
	alice = ir.MustAddress("0x00000000000000000000000000000000000a11ce")
	bob   = ir.MustAddress("0x0000000000000000000000000000000000000b0b")
	slotA = ir.Slot{0x01}
	slotB = ir.Slot{0x02}
)

func begin(t *testing.T, s *Store) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func TestTx_Accounts(t *testing.T) {
	ctx := context.Background()
	tx := begin(t, openMemory(t))

	acct, ok, err := tx.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, alice, acct.Address)
	assert.Equal(t, ir.Object{}, acct.Immutables)
	assert.False(t, acct.HasCode())

	require.NoError(t, tx.PutAccount(ctx, Account{
		Address:    alice,
		Kind:       "exproxy.dispatcher",
		Immutables: ir.Object{"bootstrapCaller": bob.Value()},
		Nonce:      3,
		Balance:    100,
	}))
	acct, ok, err = tx.GetAccount(ctx, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, acct.HasCode())
	assert.Equal(t, uint64(3), acct.Nonce)
	assert.Equal(t, int64(100), acct.Balance)
	assert.Equal(t, ir.Object{"bootstrapCaller": bob.Value()}, acct.Immutables)

	acct.Destroyed = true
	require.NoError(t, tx.PutAccount(ctx, acct))
	acct, _, err = tx.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.False(t, acct.HasCode(), "destroyed accounts carry no live code")
}

func TestTx_NegativeBalanceRejected(t *testing.T) {
	tx := begin(t, openMemory(t))
	err := tx.PutAccount(context.Background(), Account{Address: alice, Balance: -1})
	assert.Error(t, err)
}

func TestTx_Slots(t *testing.T) {
	ctx := context.Background()
	tx := begin(t, openMemory(t))
	require.NoError(t, tx.PutAccount(ctx, Account{Address: alice}))

	v, err := tx.GetSlot(ctx, alice, slotA)
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, v)

	require.NoError(t, tx.SetSlot(ctx, alice, slotA, ir.Int(7)))
	require.NoError(t, tx.SetSlot(ctx, alice, slotB, ir.Object{"k": ir.String("v")}))
	v, err = tx.GetSlot(ctx, alice, slotA)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(7), v)

	require.NoError(t, tx.SetSlot(ctx, alice, slotA, ir.Int(0)))
	v, err = tx.GetSlot(ctx, alice, slotA)
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, v, "writing zero clears the slot")

	require.NoError(t, tx.ClearSlots(ctx, alice))
	v, err = tx.GetSlot(ctx, alice, slotB)
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, v)
}

func TestTx_SavepointRollback(t *testing.T) {
	ctx := context.Background()
	tx := begin(t, openMemory(t))
	require.NoError(t, tx.PutAccount(ctx, Account{Address: alice}))
	require.NoError(t, tx.SetSlot(ctx, alice, slotA, ir.Int(1)))

	require.NoError(t, tx.Savepoint(ctx, "frame_1"))
	require.NoError(t, tx.SetSlot(ctx, alice, slotA, ir.Int(2)))
	require.NoError(t, tx.RollbackTo(ctx, "frame_1"))

	v, err := tx.GetSlot(ctx, alice, slotA)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v)

	require.NoError(t, tx.Savepoint(ctx, "frame_2"))
	require.NoError(t, tx.SetSlot(ctx, alice, slotA, ir.Int(3)))
	require.NoError(t, tx.Release(ctx, "frame_2"))

	v, err = tx.GetSlot(ctx, alice, slotA)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(3), v)
}

func TestTx_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutAccount(ctx, Account{Address: alice, Balance: 5}))
	require.NoError(t, tx.AppendEvent(ctx, ir.Event{Seq: 1, ID: "ev-1", TxID: "tx-1", Emitter: alice, Name: "Transfer"}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "rollback after rollback is a no-op")

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	events, err := s.Events(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
