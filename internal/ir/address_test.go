package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorOfMatchesEVM(t *testing.T) {
	tests := []struct {
		signature string
		want      string
	}{
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"balanceOf(address)", "0x70a08231"},
		{"approve(address,uint256)", "0x095ea7b3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SelectorOf(tt.signature).Hex(), tt.signature)
	}
}

func TestFunctionSig(t *testing.T) {
	sig := FunctionSig{Name: "transfer", Inputs: []NamedArg{
		{Name: "to", Type: "address"},
		{Name: "amount", Type: "uint256"},
	}}
	assert.Equal(t, "transfer(address,uint256)", sig.Signature())
	assert.Equal(t, SelectorOf("transfer(address,uint256)"), sig.Selector())
	assert.Equal(t, "owner()", FunctionSig{Name: "owner"}.Signature())
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("0x00000000000000000000000000000000000A11CE")
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000a11ce", a.Hex())
	assert.Equal(t, a.Hex(), a.String())
	assert.Equal(t, String(a.Hex()), a.Value())
	assert.False(t, a.IsZero())

	bare, err := ParseAddress("00000000000000000000000000000000000a11ce")
	require.NoError(t, err)
	assert.Equal(t, a, bare)

	for _, bad := range []string{"", "0x12", "0x" + "zz000000000000000000000000000000000a11ce"} {
		_, err := ParseAddress(bad)
		assert.Error(t, err, bad)
	}
	assert.True(t, ZeroAddress.IsZero())
	assert.Panics(t, func() { MustAddress("nope") })
}

func TestAddressJSON(t *testing.T) {
	a := MustAddress("0x0000000000000000000000000000000000000b0b")
	data, err := json.Marshal(map[string]Address{"to": a})
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"0x0000000000000000000000000000000000000b0b"}`, string(data))

	var back map[string]Address
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back["to"])

	var bad Address
	assert.Error(t, json.Unmarshal([]byte(`"0x1"`), &bad))
}

func TestSelectorAndSlotParsing(t *testing.T) {
	sel, err := ParseSelector("0xa9059cbb")
	require.NoError(t, err)
	assert.Equal(t, SelectorOf("transfer(address,uint256)"), sel)
	assert.True(t, Selector{}.IsZero())

	var back Selector
	require.NoError(t, back.UnmarshalText([]byte(sel.Hex())))
	assert.Equal(t, sel, back)

	_, err = ParseSelector("0xa9059c")
	assert.Error(t, err)

	var slot Slot
	slot[0], slot[16], slot[31] = 0xaa, 0xbb, 0xcc
	parsed, err := ParseSlot(slot.Hex())
	require.NoError(t, err)
	assert.Equal(t, slot, parsed)
	prefix := slot.Prefix()
	assert.Equal(t, byte(0xaa), prefix[0])
	assert.Equal(t, byte(0), prefix[15])
}
