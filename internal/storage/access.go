package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/exproxy/internal/ir"
)

// Storage is the slot-level view of one account's persistent state.
// Frames implement it against the account whose storage context they run in.
type Storage interface {
	Load(slot ir.Slot) (ir.Value, error)
	Store(slot ir.Slot, v ir.Value) error
}

// LoadAddress reads an address slot. Empty slots read as the zero address.
func LoadAddress(st Storage, slot ir.Slot) (ir.Address, error) {
	v, err := st.Load(slot)
	if err != nil {
		return ir.ZeroAddress, err
	}
	switch val := v.(type) {
	case nil, ir.Null:
		return ir.ZeroAddress, nil
	case ir.String:
		return ir.ParseAddress(string(val))
	default:
		return ir.ZeroAddress, fmt.Errorf("slot %s: want address, got %T", slot, v)
	}
}

// StoreAddress writes an address slot; the zero address clears it.
func StoreAddress(st Storage, slot ir.Slot, a ir.Address) error {
	if a.IsZero() {
		return st.Store(slot, ir.Null{})
	}
	return st.Store(slot, a.Value())
}

// LoadInt reads an integer slot. Empty slots read as 0.
func LoadInt(st Storage, slot ir.Slot) (int64, error) {
	v, err := st.Load(slot)
	if err != nil {
		return 0, err
	}
	switch val := v.(type) {
	case nil, ir.Null:
		return 0, nil
	case ir.Int:
		return int64(val), nil
	default:
		return 0, fmt.Errorf("slot %s: want int, got %T", slot, v)
	}
}

// StoreInt writes an integer slot; 0 clears it.
func StoreInt(st Storage, slot ir.Slot, n int64) error {
	return st.Store(slot, ir.Int(n))
}

// LoadString reads a string slot. Empty slots read as "".
func LoadString(st Storage, slot ir.Slot) (string, error) {
	v, err := st.Load(slot)
	if err != nil {
		return "", err
	}
	switch val := v.(type) {
	case nil, ir.Null:
		return "", nil
	case ir.String:
		return string(val), nil
	default:
		return "", fmt.Errorf("slot %s: want string, got %T", slot, v)
	}
}

// StoreString writes a string slot; "" clears it.
func StoreString(st Storage, slot ir.Slot, s string) error {
	return st.Store(slot, ir.String(s))
}

// LoadBool reads a boolean slot. Empty slots read as false.
func LoadBool(st Storage, slot ir.Slot) (bool, error) {
	v, err := st.Load(slot)
	if err != nil {
		return false, err
	}
	switch val := v.(type) {
	case nil, ir.Null:
		return false, nil
	case ir.Bool:
		return bool(val), nil
	default:
		return false, fmt.Errorf("slot %s: want bool, got %T", slot, v)
	}
}

// StoreBool writes a boolean slot; false clears it.
func StoreBool(st Storage, slot ir.Slot, b bool) error {
	return st.Store(slot, ir.Bool(b))
}

// LoadSelector reads a selector slot. Empty slots read as the zero selector.
func LoadSelector(st Storage, slot ir.Slot) (ir.Selector, error) {
	v, err := st.Load(slot)
	if err != nil {
		return ir.Selector{}, err
	}
	switch val := v.(type) {
	case nil, ir.Null:
		return ir.Selector{}, nil
	case ir.String:
		return ir.ParseSelector(string(val))
	default:
		return ir.Selector{}, fmt.Errorf("slot %s: want selector, got %T", slot, v)
	}
}

// StoreSelector writes a selector slot; the zero selector clears it.
func StoreSelector(st Storage, slot ir.Slot, sel ir.Selector) error {
	if sel.IsZero() {
		return st.Store(slot, ir.Null{})
	}
	return st.Store(slot, sel.Value())
}

// AddressList is an append-only list of addresses at field of a namespace.
// The length lives in the head slot, elements in derived index slots. Parts,
// when set, key one list per mapping entry (e.g. one history per selector).
type AddressList struct {
	NS    Namespace
	Field uint64
	Parts []string
}

func (l AddressList) head() ir.Slot {
	if len(l.Parts) == 0 {
		return l.NS.Field(l.Field)
	}
	return l.NS.Key(l.Field, l.Parts...)
}

func (l AddressList) elem(i int64) ir.Slot {
	if len(l.Parts) == 0 {
		return l.NS.Index(l.Field, i)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	parts := append(append([]string{}, l.Parts...), "#", string(b[:]))
	return l.NS.Key(l.Field, parts...)
}

// Len returns the number of elements.
func (l AddressList) Len(st Storage) (int64, error) {
	return LoadInt(st, l.head())
}

// At returns element i.
func (l AddressList) At(st Storage, i int64) (ir.Address, error) {
	n, err := l.Len(st)
	if err != nil {
		return ir.ZeroAddress, err
	}
	if i < 0 || i >= n {
		return ir.ZeroAddress, fmt.Errorf("index %d out of range [0,%d)", i, n)
	}
	return LoadAddress(st, l.elem(i))
}

// Push appends a and returns its index.
func (l AddressList) Push(st Storage, a ir.Address) (int64, error) {
	n, err := l.Len(st)
	if err != nil {
		return 0, err
	}
	if err := StoreAddress(st, l.elem(n), a); err != nil {
		return 0, err
	}
	if err := StoreInt(st, l.head(), n+1); err != nil {
		return 0, err
	}
	return n, nil
}

// Truncate shortens the list to n elements, clearing the dropped slots.
func (l AddressList) Truncate(st Storage, n int64) error {
	cur, err := l.Len(st)
	if err != nil {
		return err
	}
	for i := n; i < cur; i++ {
		if err := StoreAddress(st, l.elem(i), ir.ZeroAddress); err != nil {
			return err
		}
	}
	return StoreInt(st, l.head(), n)
}
