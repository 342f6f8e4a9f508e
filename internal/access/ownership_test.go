package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// memContext is an in-memory Context.
type memContext struct {
	slots  map[ir.Slot]ir.Value
	caller ir.Address
	events []string
}

func newMemContext() *memContext {
	return &memContext{slots: make(map[ir.Slot]ir.Value)}
}

func (m *memContext) Load(slot ir.Slot) (ir.Value, error) {
	if v, ok := m.slots[slot]; ok {
		return v, nil
	}
	return ir.Null{}, nil
}

func (m *memContext) Store(slot ir.Slot, v ir.Value) error {
	if ir.IsZero(v) {
		delete(m.slots, slot)
		return nil
	}
	m.slots[slot] = v
	return nil
}

func (m *memContext) Caller() ir.Address { return m.caller }

func (m *memContext) Emit(name string, _ ir.Object) error {
	m.events = append(m.events, name)
	return nil
}

var (
	ownerA = ir.MustAddress("0x00000000000000000000000000000000000000aa")
	ownerB = ir.MustAddress("0x00000000000000000000000000000000000000bb")
	nobody = ir.MustAddress("0x00000000000000000000000000000000000000cc")
)

func TestOwnership_TwoStepHandshake(t *testing.T) {
	ctx := newMemContext()
	o := New(storage.NamespaceFor("test.ownable"))
	require.NoError(t, o.Set(ctx, ownerA))

	ctx.caller = ownerA
	require.NoError(t, o.Propose(ctx, ownerB))

	owner, err := o.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, ownerA, owner, "owner unchanged until accepted")

	ctx.caller = nobody
	err = o.Accept(ctx)
	assert.ErrorIs(t, err, revert.ErrNotAuthorized)

	ctx.caller = ownerB
	require.NoError(t, o.Accept(ctx))

	owner, err = o.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, ownerB, owner)
	pending, err := o.Pending(ctx)
	require.NoError(t, err)
	assert.True(t, pending.IsZero())

	assert.Equal(t, []string{EventOwnershipTransferProposed, EventOwnershipTransferred}, ctx.events)
}

func TestOwnership_OnlyOwnerProposes(t *testing.T) {
	ctx := newMemContext()
	o := New(storage.NamespaceFor("test.ownable"))
	require.NoError(t, o.Set(ctx, ownerA))

	ctx.caller = nobody
	assert.ErrorIs(t, o.Propose(ctx, nobody), revert.ErrNotAuthorized)

	ctx.caller = ownerA
	assert.ErrorIs(t, o.Propose(ctx, ir.ZeroAddress), revert.ErrInvalidArgument)
	assert.Empty(t, ctx.events)
}

func TestOwnership_UnsetOwnerRejectsEveryone(t *testing.T) {
	ctx := newMemContext()
	o := New(storage.NamespaceFor("test.ownable"))
	assert.ErrorIs(t, o.RequireOwner(ctx, ir.ZeroAddress), revert.ErrNotAuthorized)
}
