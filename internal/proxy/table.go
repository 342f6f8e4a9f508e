package proxy

import (
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// TableNamespace holds the selector table and its rollback history.
var TableNamespace = storage.NamespaceFor("exproxy.proxy")

const (
	fieldImpls   = 0
	fieldHistory = 1
)

// EventProxyFunctionUpdated is emitted on every change of a table entry.
const EventProxyFunctionUpdated = "ProxyFunctionUpdated"

// Context is what table mutations need from an executing frame.
type Context interface {
	storage.Storage
	Emit(name string, fields ir.Object) error
}

func implSlot(sel ir.Selector) ir.Slot {
	return TableNamespace.Key(fieldImpls, sel.Hex())
}

// History returns the rollback history of sel, oldest first.
func History(sel ir.Selector) storage.AddressList {
	return storage.AddressList{NS: TableNamespace, Field: fieldHistory, Parts: []string{sel.Hex()}}
}

// Implementation returns the implementation registered for sel, or zero.
func Implementation(st storage.Storage, sel ir.Selector) (ir.Address, error) {
	return storage.LoadAddress(st, implSlot(sel))
}

// Remove deletes sel from the table without touching its history.
func Remove(st storage.Storage, sel ir.Selector) error {
	return storage.StoreAddress(st, implSlot(sel), ir.ZeroAddress)
}

// Set writes sel -> impl without touching its history.
func Set(st storage.Storage, sel ir.Selector, impl ir.Address) error {
	return storage.StoreAddress(st, implSlot(sel), impl)
}

// Extend points sel at impl, remembering the previous implementation
// (possibly zero) in the rollback history.
func Extend(c Context, sel ir.Selector, impl ir.Address) error {
	old, err := Implementation(c, sel)
	if err != nil {
		return err
	}
	if _, err := History(sel).Push(c, old); err != nil {
		return err
	}
	if err := Set(c, sel, impl); err != nil {
		return err
	}
	return emitUpdated(c, sel, old, impl)
}

// RollbackPrevious restores the most recent history entry of sel, removing
// sel when the history is empty.
func RollbackPrevious(c Context, sel ir.Selector) error {
	current, err := Implementation(c, sel)
	if err != nil {
		return err
	}
	hist := History(sel)
	n, err := hist.Len(c)
	if err != nil {
		return err
	}
	var previous ir.Address
	if n > 0 {
		if previous, err = hist.At(c, n-1); err != nil {
			return err
		}
		if err := hist.Truncate(c, n-1); err != nil {
			return err
		}
	}
	if err := Set(c, sel, previous); err != nil {
		return err
	}
	return emitUpdated(c, sel, current, previous)
}

// RollbackTo restores target, which must be the current implementation, the
// zero address, or an entry of the history. The history is truncated at the
// most recent occurrence of target.
func RollbackTo(c Context, sel ir.Selector, target ir.Address) error {
	current, err := Implementation(c, sel)
	if err != nil {
		return err
	}
	if current == target {
		return nil
	}
	hist := History(sel)
	n, err := hist.Len(c)
	if err != nil {
		return err
	}
	i := n - 1
	for ; i >= 0; i-- {
		entry, err := hist.At(c, i)
		if err != nil {
			return err
		}
		if entry == target {
			break
		}
	}
	if i < 0 {
		if !target.IsZero() {
			return revert.New(revert.CodeNotInRollbackHistory,
				"%s was never registered for %s", target, sel)
		}
		i = 0
	}
	if err := hist.Truncate(c, i); err != nil {
		return err
	}
	if err := Set(c, sel, target); err != nil {
		return err
	}
	return emitUpdated(c, sel, current, target)
}

func emitUpdated(c Context, sel ir.Selector, old, impl ir.Address) error {
	return c.Emit(EventProxyFunctionUpdated, ir.Object{
		"selector": sel.Value(),
		"oldImpl":  old.Value(),
		"newImpl":  impl.Value(),
	})
}
