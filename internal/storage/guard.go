package storage

import (
	"fmt"
	"sync"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
)

// Guard is the runtime assertion layer. It knows every statically declared
// namespace and rejects writes that land in a namespace the writing code did
// not declare. Slots whose prefix belongs to no known namespace pass through.
//
// Thread-safety: Register and Check are safe for concurrent use.
type Guard struct {
	mu    sync.RWMutex
	known map[[16]byte]string
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{known: make(map[[16]byte]string)}
}

// Register records namespaces. Registering the same identifier twice is a
// no-op; two different identifiers with the same prefix fail with
// STORAGE_COLLISION.
func (g *Guard) Register(namespaces ...Namespace) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ns := range namespaces {
		if owner, ok := g.known[ns.prefix]; ok {
			if owner != ns.id {
				return revert.New(revert.CodeStorageCollision,
					"namespace %q collides with %q", ns.id, owner)
			}
			continue
		}
		g.known[ns.prefix] = ns.id
	}
	return nil
}

// Owner returns the identifier of the namespace that owns slot, if known.
func (g *Guard) Owner(slot ir.Slot) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.known[slot.Prefix()]
	return id, ok
}

// Check validates a write to slot by code that declared allowed.
func (g *Guard) Check(writer string, allowed []Namespace, slot ir.Slot) error {
	owner, ok := g.Owner(slot)
	if !ok {
		return nil
	}
	for _, ns := range allowed {
		if ns.Contains(slot) {
			return nil
		}
	}
	return revert.New(revert.CodeStorageCollision,
		"%s wrote into namespace %q", writer, owner).With("slot", slot.Hex())
}

// Len returns the number of registered namespaces.
func (g *Guard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.known)
}

// String implements fmt.Stringer.
func (g *Guard) String() string {
	return fmt.Sprintf("storage.Guard(%d namespaces)", g.Len())
}
