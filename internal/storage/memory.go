package storage

import (
	"sort"

	"github.com/roach88/exproxy/internal/ir"
)

// Memory is an in-memory Storage. Used to lay out state off-host, e.g. when
// previewing slot layouts from the CLI and in tests.
type Memory map[ir.Slot]ir.Value

// Load implements Storage.
func (m Memory) Load(slot ir.Slot) (ir.Value, error) {
	if v, ok := m[slot]; ok {
		return v, nil
	}
	return ir.Null{}, nil
}

// Store implements Storage. Zero values delete the slot.
func (m Memory) Store(slot ir.Slot, v ir.Value) error {
	if ir.IsZero(v) {
		delete(m, slot)
		return nil
	}
	m[slot] = v
	return nil
}

// Slots returns the occupied slots in ascending order.
func (m Memory) Slots() []ir.Slot {
	slots := make([]ir.Slot, 0, len(m))
	for s := range m {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Hex() < slots[j].Hex()
	})
	return slots
}
