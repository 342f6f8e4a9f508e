package storage

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
)

func TestNamespaceFor_Deterministic(t *testing.T) {
	a := NamespaceFor("exproxy.proxy")
	b := NamespaceFor("exproxy.proxy")
	assert.Equal(t, a.Prefix(), b.Prefix())
	assert.Equal(t, "exproxy.proxy", a.ID())
	assert.False(t, a.Disjoint(b))
}

// Pinned so an accidental change of the derivation shows up as a failure:
// existing deployments would lose their state.
func TestNamespaceFor_PrefixIsStable(t *testing.T) {
	ns := NamespaceFor("exproxy.proxy")
	sum := ir.NamespacePrefix("exproxy.proxy")
	assert.Equal(t, sum, ns.Prefix())
	assert.Equal(t, ns.Prefix(), ns.Base().Prefix())
}

func TestNamespace_DisjointRegions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids := make([]string, 200)
	for i := range ids {
		ids[i] = fmt.Sprintf("module.%d.%x", i, rng.Uint64())
	}

	for i, a := range ids {
		nsA := NamespaceFor(a)
		for _, b := range ids[i+1:] {
			nsB := NamespaceFor(b)
			require.True(t, nsA.Disjoint(nsB), "%s vs %s", a, b)

			// Every slot derived from A stays outside B.
			field := rng.Uint64() % 16
			key := fmt.Sprintf("k%d", rng.Int())
			for _, slot := range []ir.Slot{nsA.Base(), nsA.Field(field), nsA.Key(field, key), nsA.Index(field, int64(field))} {
				require.True(t, nsA.Contains(slot))
				require.False(t, nsB.Contains(slot), "slot %s of %s lies in %s", slot, a, b)
			}
		}
	}
}

func TestNamespace_KeyPartsAreUnambiguous(t *testing.T) {
	ns := NamespaceFor("test")
	assert.NotEqual(t, ns.Key(1, "ab", "c"), ns.Key(1, "a", "bc"))
	assert.NotEqual(t, ns.Key(1, "a"), ns.Key(2, "a"))
	assert.NotEqual(t, ns.Field(1), ns.Key(1))
}

func TestTypedAccessors_RoundTrip(t *testing.T) {
	mem := Memory{}
	ns := NamespaceFor("test")
	addr := ir.MustAddress("0x00000000000000000000000000000000000000aa")
	sel := ir.SelectorOf("extend(bytes4,address)")

	require.NoError(t, StoreAddress(mem, ns.Field(0), addr))
	require.NoError(t, StoreInt(mem, ns.Field(1), 42))
	require.NoError(t, StoreString(mem, ns.Field(2), "hello"))
	require.NoError(t, StoreBool(mem, ns.Field(3), true))
	require.NoError(t, StoreSelector(mem, ns.Field(4), sel))

	gotAddr, err := LoadAddress(mem, ns.Field(0))
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)
	n, err := LoadInt(mem, ns.Field(1))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	s, err := LoadString(mem, ns.Field(2))
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	b, err := LoadBool(mem, ns.Field(3))
	require.NoError(t, err)
	assert.True(t, b)
	gotSel, err := LoadSelector(mem, ns.Field(4))
	require.NoError(t, err)
	assert.Equal(t, sel, gotSel)

	// Zero values delete their slots.
	require.NoError(t, StoreAddress(mem, ns.Field(0), ir.ZeroAddress))
	require.NoError(t, StoreInt(mem, ns.Field(1), 0))
	assert.Len(t, mem, 3)
}

func TestTypedAccessors_WrongType(t *testing.T) {
	mem := Memory{}
	ns := NamespaceFor("test")
	require.NoError(t, StoreString(mem, ns.Field(0), "x"))
	_, err := LoadInt(mem, ns.Field(0))
	assert.Error(t, err)
}

func TestAddressList(t *testing.T) {
	mem := Memory{}
	list := AddressList{NS: NamespaceFor("test"), Field: 3}
	addrs := []ir.Address{
		ir.MustAddress("0x0000000000000000000000000000000000000001"),
		ir.MustAddress("0x0000000000000000000000000000000000000002"),
		ir.MustAddress("0x0000000000000000000000000000000000000003"),
	}
	for i, a := range addrs {
		idx, err := list.Push(mem, a)
		require.NoError(t, err)
		assert.Equal(t, int64(i), idx)
	}

	var got []ir.Address
	n, err := list.Len(mem)
	require.NoError(t, err)
	for i := int64(0); i < n; i++ {
		a, err := list.At(mem, i)
		require.NoError(t, err)
		got = append(got, a)
	}
	if diff := cmp.Diff(addrs, got); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, list.Truncate(mem, 1))
	n, err = list.Len(mem)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = list.At(mem, 1)
	assert.Error(t, err)
	assert.Len(t, mem, 2, "head and first element remain")
}

func TestAddressList_KeyedListsAreSeparate(t *testing.T) {
	mem := Memory{}
	ns := NamespaceFor("test")
	a := AddressList{NS: ns, Field: 1, Parts: []string{"0xaaaaaaaa"}}
	b := AddressList{NS: ns, Field: 1, Parts: []string{"0xbbbbbbbb"}}
	_, err := a.Push(mem, ir.MustAddress("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)

	n, err := b.Len(mem)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGuard_RegisterAndCheck(t *testing.T) {
	g := NewGuard()
	proxyNS := NamespaceFor("exproxy.proxy")
	vaultNS := NamespaceFor("exproxy.vault")
	require.NoError(t, g.Register(proxyNS, vaultNS))
	require.NoError(t, g.Register(proxyNS), "re-registering the same id is a no-op")
	assert.Equal(t, 2, g.Len())

	owner, ok := g.Owner(vaultNS.Field(0))
	require.True(t, ok)
	assert.Equal(t, "exproxy.vault", owner)

	assert.NoError(t, g.Check("vault", []Namespace{vaultNS}, vaultNS.Field(0)))
	err := g.Check("vault", []Namespace{vaultNS}, proxyNS.Field(0))
	assert.ErrorIs(t, err, revert.ErrStorageCollision)

	var unknown ir.Slot
	unknown[0] = 0xff
	assert.NoError(t, g.Check("vault", nil, unknown), "unowned slots pass")
}

func TestGuard_PrefixCollision(t *testing.T) {
	g := NewGuard()
	a := NamespaceFor("a")
	forged := Namespace{id: "b", prefix: a.Prefix()}
	require.NoError(t, g.Register(a))
	err := g.Register(forged)
	assert.ErrorIs(t, err, revert.ErrStorageCollision)
}
