package ir

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Address identifies an account on the host: an external caller, a deployed
// module, the dispatcher, a vault or a token. 20 bytes, rendered 0x-prefixed hex.
type Address [20]byte

// ZeroAddress is the "no address" value.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed (or bare) 40-digit hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(s, a[:]); err != nil {
		return ZeroAddress, fmt.Errorf("parse address %q: %w", s, err)
	}
	return a, nil
}

// MustAddress is like ParseAddress but panics on error.
// Use only in tests or for compile-time constants.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the lowercase 0x-prefixed form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Value returns a as an IR string value.
func (a Address) Value() Value { return String(a.Hex()) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Selector is the 4-byte dispatch key derived from a function signature.
type Selector [4]byte

// SelectorOf returns the first four bytes of Keccak-256(signature), matching
// the EVM function selector for the same canonical signature.
//
// Example: SelectorOf("transfer(address,uint256)") == 0xa9059cbb
func SelectorOf(signature string) Selector {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var s Selector
	copy(s[:], h.Sum(nil))
	return s
}

// ParseSelector parses a 0x-prefixed 8-digit hex selector.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	if err := decodeFixedHex(s, sel[:]); err != nil {
		return Selector{}, fmt.Errorf("parse selector %q: %w", s, err)
	}
	return sel, nil
}

// Hex returns the lowercase 0x-prefixed form.
func (s Selector) Hex() string { return "0x" + hex.EncodeToString(s[:]) }

// String implements fmt.Stringer.
func (s Selector) String() string { return s.Hex() }

// IsZero reports whether s is the empty selector used for plain value transfers.
func (s Selector) IsZero() bool { return s == Selector{} }

// Value returns s as an IR string value.
func (s Selector) Value() Value { return String(s.Hex()) }

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) { return []byte(s.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(b []byte) error {
	parsed, err := ParseSelector(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Slot is a 32-byte persistent storage key within one account.
// The high 16 bytes carry the owning namespace prefix.
type Slot [32]byte

// ParseSlot parses a 0x-prefixed 64-digit hex slot.
func ParseSlot(s string) (Slot, error) {
	var slot Slot
	if err := decodeFixedHex(s, slot[:]); err != nil {
		return Slot{}, fmt.Errorf("parse slot %q: %w", s, err)
	}
	return slot, nil
}

// Hex returns the lowercase 0x-prefixed form.
func (s Slot) Hex() string { return "0x" + hex.EncodeToString(s[:]) }

// String implements fmt.Stringer.
func (s Slot) String() string { return s.Hex() }

// Prefix returns the namespace prefix half of the slot.
func (s Slot) Prefix() [16]byte {
	var p [16]byte
	copy(p[:], s[:16])
	return p
}

func decodeFixedHex(s string, out []byte) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(out) {
		return fmt.Errorf("want %d hex digits, got %d", 2*len(out), len(s))
	}
	if _, err := hex.Decode(out, []byte(s)); err != nil {
		return err
	}
	return nil
}
