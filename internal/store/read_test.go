package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/queryir"
)

// seedLog commits two calls: tx-1 with two events and tx-2 with one, plus
// a receipt for each.
func seedLog(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	events := []ir.Event{
		{Seq: 1, TxID: "tx-1", Emitter: alice, Name: "Transfer", Fields: ir.Object{
			"from": alice.Value(), "to": bob.Value(), "amount": ir.Int(30),
		}},
		{Seq: 2, TxID: "tx-1", Emitter: alice, Name: "Approval", Fields: ir.Object{
			"owner": alice.Value(), "spender": bob.Value(), "amount": ir.Int(5), "unlimited": ir.Bool(false),
		}},
		{Seq: 4, TxID: "tx-2", Emitter: bob, Name: "Transfer", Fields: ir.Object{
			"from": bob.Value(), "to": alice.Value(), "amount": ir.Int(30), "memo": ir.Null{},
		}},
	}
	for i, ev := range events {
		ev.ID = fmt.Sprintf("ev-%d", i+1)
		require.NoError(t, tx.AppendEvent(ctx, ev))
	}
	sel := ir.SelectorOf("transfer(address,uint256)")
	require.NoError(t, tx.WriteReceipt(ctx, ir.Receipt{
		TxID: "tx-1", Seq: 3, From: alice, To: alice, Selector: sel,
		Status: ir.StatusSuccess, Result: ir.Object{"ok": ir.Bool(true)},
	}))
	require.NoError(t, tx.WriteReceipt(ctx, ir.Receipt{
		TxID: "tx-2", Seq: 5, From: bob, To: bob, Selector: sel,
		Status: ir.StatusReverted, ErrorCode: "INSUFFICIENT_BALANCE", ErrorMessage: "balance 0 < 30",
	}))
	require.NoError(t, tx.WriteReceipt(ctx, ir.Receipt{
		TxID: "tx-2", Seq: 6, From: bob, To: bob, Selector: sel, Status: ir.StatusSuccess,
	}), "a second receipt for the same tx is ignored")
	require.NoError(t, tx.Commit())
}

func eventIDs(events []ir.Event) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}

func TestEvents_Filters(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	seedLog(t, s)

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"ev-1", "ev-2", "ev-3"}},
		{"by tx", EventFilter{TxID: "tx-1"}, []string{"ev-1", "ev-2"}},
		{"by name", EventFilter{Name: "Transfer"}, []string{"ev-1", "ev-3"}},
		{"by emitter", EventFilter{Emitter: bob}, []string{"ev-3"}},
		{"limit", EventFilter{Limit: 2}, []string{"ev-1", "ev-2"}},
		{"combined", EventFilter{TxID: "tx-1", Name: "Transfer"}, []string{"ev-1"}},
		{"payload field", EventFilter{Where: []queryir.Predicate{
			queryir.Equals{Field: "fields.to", Value: alice.Value()},
		}}, []string{"ev-3"}},
		{"payload integer", EventFilter{Where: []queryir.Predicate{
			queryir.Equals{Field: "fields.amount", Value: ir.Int(30)},
		}}, []string{"ev-1", "ev-3"}},
		{"payload bool", EventFilter{Where: []queryir.Predicate{
			queryir.Equals{Field: "fields.unlimited", Value: ir.Bool(false)},
		}}, []string{"ev-2"}},
		{"one of", EventFilter{Where: []queryir.Predicate{
			queryir.OneOf{Field: "name", Values: []ir.Value{ir.String("Approval"), ir.String("Paused")}},
		}}, []string{"ev-2"}},
		{"no match", EventFilter{Name: "Paused"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.Events(ctx, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, events)
			assert.Equal(t, tt.want, eventIDs(events))
		})
	}
}

func TestEvents_RoundTripsFields(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	seedLog(t, s)

	events, err := s.Events(ctx, EventFilter{TxID: "tx-2"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, int64(4), ev.Seq)
	assert.Equal(t, bob, ev.Emitter)
	assert.Equal(t, ir.Object{
		"from": bob.Value(), "to": alice.Value(), "amount": ir.Int(30),
	}, ev.Fields, "null fields are dropped")
}

func TestEvents_InvalidFilter(t *testing.T) {
	_, err := openMemory(t).Events(context.Background(), EventFilter{Where: []queryir.Predicate{
		queryir.Equals{Field: "status", Value: ir.String("success")},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown events field "status"`)
}

func TestReceipts(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	seedLog(t, s)

	all, err := s.Receipts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "tx-1", all[0].TxID)
	assert.Equal(t, ir.Object{"ok": ir.Bool(true)}, all[0].Result)
	assert.Equal(t, ir.StatusReverted, all[1].Status)
	assert.Equal(t, int64(5), all[1].Seq)

	reverted, err := s.Receipts(ctx, queryir.Equals{Field: "status", Value: ir.String("reverted")})
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	assert.Equal(t, "INSUFFICIENT_BALANCE", reverted[0].ErrorCode)
	assert.Equal(t, "balance 0 < 30", reverted[0].ErrorMessage)

	byResult, err := s.Receipts(ctx, queryir.Equals{Field: "fields.ok", Value: ir.Bool(true)})
	require.NoError(t, err)
	require.Len(t, byResult, 1)
	assert.Equal(t, "tx-1", byResult[0].TxID)

	r, ok, err := s.Receipt(ctx, "tx-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bob, r.From)

	_, ok, err = s.Receipt(ctx, "tx-9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastSeq(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	seedLog(t, s)
	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), seq)
}

func TestSlotsAndAccounts(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutAccount(ctx, Account{Address: bob, Balance: 1}))
	require.NoError(t, tx.PutAccount(ctx, Account{Address: alice, Kind: "exproxy.token"}))
	require.NoError(t, tx.SetSlot(ctx, alice, slotB, ir.String("b")))
	require.NoError(t, tx.SetSlot(ctx, alice, slotA, ir.Int(1)))
	require.NoError(t, tx.Commit())

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, bob, accounts[0].Address, "ordered by address")
	assert.Equal(t, "exproxy.token", accounts[1].Kind)

	slots, err := s.Slots(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []SlotEntry{
		{Slot: slotA, Value: ir.Int(1)},
		{Slot: slotB, Value: ir.String("b")},
	}, slots)
}
