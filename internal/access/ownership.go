// Package access provides the two-step ownership handshake shared by the
// Ownable feature and the AllowanceTarget.
//
// An owner proposes a successor; the successor accepts. Until acceptance the
// current owner keeps full control and may propose someone else.
package access

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// Event names.
const (
	EventOwnershipTransferProposed = "OwnershipTransferProposed"
	EventOwnershipTransferred      = "OwnershipTransferred"
)

// Slot fields within the ownership namespace.
const (
	fieldOwner   = 0
	fieldPending = 1
)

// Context is what ownership checks need from an executing frame.
// *host.Frame implements it.
type Context interface {
	storage.Storage
	Caller() ir.Address
	Emit(name string, fields ir.Object) error
}

// Ownership keeps an owner and a pending owner in a namespace.
type Ownership struct {
	NS storage.Namespace
}

// New returns the ownership record stored in ns.
func New(ns storage.Namespace) Ownership {
	return Ownership{NS: ns}
}

// Owner returns the current owner.
func (o Ownership) Owner(st storage.Storage) (ir.Address, error) {
	return storage.LoadAddress(st, o.NS.Field(fieldOwner))
}

// Pending returns the proposed owner, or zero.
func (o Ownership) Pending(st storage.Storage) (ir.Address, error) {
	return storage.LoadAddress(st, o.NS.Field(fieldPending))
}

// Set installs owner directly, without handshake. Used by constructors and
// bootstrap, where the caller is already trusted.
func (o Ownership) Set(st storage.Storage, owner ir.Address) error {
	if err := storage.StoreAddress(st, o.NS.Field(fieldPending), ir.ZeroAddress); err != nil {
		return err
	}
	return storage.StoreAddress(st, o.NS.Field(fieldOwner), owner)
}

// RequireOwner fails with NOT_AUTHORIZED unless who is the owner.
func (o Ownership) RequireOwner(st storage.Storage, who ir.Address) error {
	owner, err := o.Owner(st)
	if err != nil {
		return err
	}
	if owner.IsZero() || who != owner {
		return revert.New(revert.CodeNotAuthorized, "%s is not the owner", who).
			With("owner", owner.Hex())
	}
	return nil
}

// Propose records next as pending owner. Only the owner may propose.
func (o Ownership) Propose(c Context, next ir.Address) error {
	if err := o.RequireOwner(c, c.Caller()); err != nil {
		return err
	}
	if next.IsZero() {
		return revert.New(revert.CodeInvalidArgument, "new owner must not be the zero address")
	}
	if err := storage.StoreAddress(c, o.NS.Field(fieldPending), next); err != nil {
		return err
	}
	return c.Emit(EventOwnershipTransferProposed, ir.Object{
		"owner":    c.Caller().Value(),
		"proposed": next.Value(),
	})
}

// Accept completes the handshake. Only the pending owner may accept.
func (o Ownership) Accept(c Context) error {
	pending, err := o.Pending(c)
	if err != nil {
		return err
	}
	if pending.IsZero() || c.Caller() != pending {
		return revert.New(revert.CodeNotAuthorized, "%s is not the pending owner", c.Caller())
	}
	previous, err := o.Owner(c)
	if err != nil {
		return err
	}
	if err := o.Set(c, pending); err != nil {
		return err
	}
	return c.Emit(EventOwnershipTransferred, ir.Object{
		"previousOwner": previous.Value(),
		"newOwner":      pending.Value(),
	})
}

// Function signatures of the ownership surface.
var (
	SigOwner             = ir.FunctionSig{Name: "owner", View: true}
	SigPendingOwner      = ir.FunctionSig{Name: "pendingOwner", View: true}
	SigTransferOwnership = ir.FunctionSig{Name: "transferOwnership", Inputs: []ir.NamedArg{{Name: "newOwner", Type: "address"}}}
	SigAcceptOwnership   = ir.FunctionSig{Name: "acceptOwnership"}
)

// Methods exposes the ownership surface as module functions.
func (o Ownership) Methods() []host.Method {
	return []host.Method{
		{Sig: SigOwner, Handle: func(f *host.Frame, _ ir.Object) (ir.Object, error) {
			owner, err := o.Owner(f)
			if err != nil {
				return nil, err
			}
			return ir.Object{"owner": owner.Value()}, nil
		}},
		{Sig: SigPendingOwner, Handle: func(f *host.Frame, _ ir.Object) (ir.Object, error) {
			pending, err := o.Pending(f)
			if err != nil {
				return nil, err
			}
			return ir.Object{"pendingOwner": pending.Value()}, nil
		}},
		{Sig: SigTransferOwnership, Handle: func(f *host.Frame, args ir.Object) (ir.Object, error) {
			next, err := host.ArgAddress(args, "newOwner")
			if err != nil {
				return nil, err
			}
			return nil, o.Propose(f, next)
		}},
		{Sig: SigAcceptOwnership, Handle: func(f *host.Frame, _ ir.Object) (ir.Object, error) {
			return nil, o.Accept(f)
		}},
	}
}
