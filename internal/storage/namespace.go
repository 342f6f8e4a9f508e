package storage

import (
	"encoding/binary"

	"github.com/roach88/exproxy/internal/ir"
)

// Namespace is a module's exclusive region of the shared key space.
type Namespace struct {
	id     string
	prefix [16]byte
}

// NamespaceFor derives the namespace of moduleID. Pure and deterministic:
// the same identifier yields the same region in every build and upgrade.
func NamespaceFor(moduleID string) Namespace {
	return Namespace{id: moduleID, prefix: ir.NamespacePrefix(moduleID)}
}

// ID returns the module identifier the namespace was derived from.
func (n Namespace) ID() string { return n.id }

// Prefix returns the 16-byte region prefix.
func (n Namespace) Prefix() [16]byte { return n.prefix }

// Base returns the first slot of the region.
func (n Namespace) Base() ir.Slot { return n.Field(0) }

// Field returns the slot of fixed field i.
func (n Namespace) Field(i uint64) ir.Slot {
	var s ir.Slot
	copy(s[:16], n.prefix[:])
	binary.BigEndian.PutUint64(s[24:], i)
	return s
}

// Key returns the slot of a mapping entry: field i indexed by parts.
// Nested mappings pass one part per level.
func (n Namespace) Key(field uint64, parts ...string) ir.Slot {
	var s ir.Slot
	copy(s[:16], n.prefix[:])
	off := ir.MappingOffset(n.prefix, field, parts...)
	copy(s[16:], off[:])
	return s
}

// Index returns the slot of element i of the array stored at field.
func (n Namespace) Index(field uint64, i int64) ir.Slot {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	return n.Key(field, "#", string(b[:]))
}

// Contains reports whether slot lies in the region.
func (n Namespace) Contains(slot ir.Slot) bool {
	return slot.Prefix() == n.prefix
}

// Disjoint reports whether n and other own non-overlapping regions.
func (n Namespace) Disjoint(other Namespace) bool {
	return n.prefix != other.prefix
}
