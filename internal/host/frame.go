package host

import (
	"context"
	"fmt"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/store"
)

// run is the state shared by every frame of one external call.
type run struct {
	ctx    context.Context
	host   *Host
	tx     *store.Tx
	txID   string
	origin ir.Address
	quota  *QuotaEnforcer
	static bool
	events []ir.Event
	sp     int

	// created is the account made by a top-level deployment.
	created ir.Address
}

// fault marks a failure of the substrate itself (store, context). Faults
// abort the external call instead of producing a reverted receipt.
type fault struct {
	err error
}

func (e *fault) Error() string { return e.err.Error() }
func (e *fault) Unwrap() error { return e.err }

// Frame is the execution context of one code invocation.
//
// Storage and balance operations act on Self, the storage context. Under a
// delegated call Self stays the delegating account while CodeAddress names the
// module whose code runs; Caller and Value carry over unchanged.
type Frame struct {
	run        *run
	caller     ir.Address
	self       ir.Address
	codeAddr   ir.Address
	value      int64
	selector   ir.Selector
	depth      int
	entry      *codeEntry
	immutables ir.Object
}

// Context returns the context of the external call.
func (f *Frame) Context() context.Context { return f.run.ctx }

// Caller returns the immediate caller.
func (f *Frame) Caller() ir.Address { return f.caller }

// Self returns the account whose storage the frame runs against.
func (f *Frame) Self() ir.Address { return f.self }

// CodeAddress returns the account whose code is executing.
func (f *Frame) CodeAddress() ir.Address { return f.codeAddr }

// Delegated reports whether the frame runs code in a foreign storage context.
func (f *Frame) Delegated() bool { return f.self != f.codeAddr }

// Value returns the native value attached to the call.
func (f *Frame) Value() int64 { return f.value }

// Origin returns the external caller that started the call.
func (f *Frame) Origin() ir.Address { return f.run.origin }

// TxID returns the identifier of the external call.
func (f *Frame) TxID() string { return f.run.txID }

// Selector returns the selector the frame was entered with.
func (f *Frame) Selector() ir.Selector { return f.selector }

// Depth returns the nesting depth; the external call runs at depth 0.
func (f *Frame) Depth() int { return f.depth }

// Kind returns the code kind executing in the frame.
func (f *Frame) Kind() string { return f.entry.code.Kind() }

// Immutables returns the constructor-time constants of the executing code's
// own account, also under delegated calls.
func (f *Frame) Immutables() ir.Object { return f.immutables }

// Load reads a slot of the storage context. Implements storage.Storage.
func (f *Frame) Load(slot ir.Slot) (ir.Value, error) {
	v, err := f.run.tx.GetSlot(f.run.ctx, f.self, slot)
	if err != nil {
		return nil, &fault{err}
	}
	return v, nil
}

// Store writes a slot of the storage context. Implements storage.Storage.
// Writes into a namespace the executing code did not declare fail with
// STORAGE_COLLISION when the host runs with strict storage.
func (f *Frame) Store(slot ir.Slot, v ir.Value) error {
	if err := f.run.requireMutable("store"); err != nil {
		return err
	}
	if f.run.host.strict {
		if err := f.run.host.book.guard.Check(f.Kind(), f.entry.namespaces, slot); err != nil {
			return err
		}
	}
	if err := f.run.tx.SetSlot(f.run.ctx, f.self, slot, v); err != nil {
		return &fault{err}
	}
	return nil
}

// Call performs a regular call: the callee runs in its own storage context
// with this frame's Self as caller.
func (f *Frame) Call(to ir.Address, value int64, sel ir.Selector, args ir.Object) (ir.Object, error) {
	if value != 0 {
		if err := f.run.requireMutable("value transfer"); err != nil {
			return nil, err
		}
	}
	return f.run.call(f.self, to, value, sel, args, f.depth+1)
}

// DelegateCall runs the code of account code against this frame's storage,
// preserving caller and value.
func (f *Frame) DelegateCall(code ir.Address, sel ir.Selector, args ir.Object) (ir.Object, error) {
	return f.run.enter(f.depth+1, func() (ir.Object, error) {
		acct, err := f.run.account(code)
		if err != nil {
			return nil, err
		}
		if !acct.HasCode() {
			return nil, revert.New(revert.CodeNoCode, "delegate target %s has no code", code)
		}
		entry, err := f.run.host.book.mustEntry(acct.Kind)
		if err != nil {
			return nil, err
		}
		child := &Frame{
			run:        f.run,
			caller:     f.caller,
			self:       f.self,
			codeAddr:   code,
			value:      f.value,
			selector:   sel,
			depth:      f.depth + 1,
			entry:      entry,
			immutables: acct.Immutables,
		}
		return dispatch(child, sel, args)
	})
}

// Deploy creates a new account running kind, with this frame's Self as
// creator. The address derives from the creator's nonce.
func (f *Frame) Deploy(kind string, immutables, args ir.Object) (ir.Address, error) {
	if err := f.run.requireMutable("deploy"); err != nil {
		return ir.ZeroAddress, err
	}
	return f.run.deploy(f.self, kind, immutables, args, f.depth+1)
}

// SelfDestruct removes the executing account, moving its balance to
// beneficiary. Only code running in its own storage context may do this.
func (f *Frame) SelfDestruct(beneficiary ir.Address) error {
	if err := f.run.requireMutable("selfdestruct"); err != nil {
		return err
	}
	if f.Delegated() {
		return revert.New(revert.CodeNotAuthorized, "selfdestruct of %s from delegated code %s", f.self, f.codeAddr)
	}
	acct, err := f.run.account(f.self)
	if err != nil {
		return err
	}
	if acct.Balance > 0 && beneficiary != f.self {
		if err := f.run.transfer(f.self, beneficiary, acct.Balance); err != nil {
			return err
		}
		if acct, err = f.run.account(f.self); err != nil {
			return err
		}
	}
	acct.Destroyed = true
	acct.Balance = 0
	if err := f.run.tx.PutAccount(f.run.ctx, acct); err != nil {
		return &fault{err}
	}
	if err := f.run.tx.ClearSlots(f.run.ctx, f.self); err != nil {
		return &fault{err}
	}
	f.run.host.logger.Debug("account destroyed",
		"tx", f.run.txID,
		"account", f.self.Hex(),
		"beneficiary", beneficiary.Hex())
	return nil
}

// Emit appends an audit event attributed to the storage context.
func (f *Frame) Emit(name string, fields ir.Object) error {
	if err := f.run.requireMutable("emit"); err != nil {
		return err
	}
	if fields == nil {
		fields = ir.Object{}
	}
	seq := f.run.host.clock.Next()
	id, err := ir.EventID(f.run.txID, seq, f.self, name, fields)
	if err != nil {
		return revert.Wrap(revert.CodeInternal, err, "emit %s", name)
	}
	ev := ir.Event{
		Seq:     seq,
		ID:      id,
		TxID:    f.run.txID,
		Emitter: f.self,
		Name:    name,
		Fields:  fields,
	}
	if err := f.run.tx.AppendEvent(f.run.ctx, ev); err != nil {
		return &fault{err}
	}
	f.run.events = append(f.run.events, ev)
	return nil
}

// Balance returns the native balance of addr.
func (f *Frame) Balance(addr ir.Address) (int64, error) {
	acct, err := f.run.account(addr)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// enter opens a frame: it enforces depth and quota, and runs body under a
// savepoint. A failing body leaves no state and no events behind.
func (r *run) enter(depth int, body func() (ir.Object, error)) (ir.Object, error) {
	if depth > r.host.maxDepth {
		return nil, revert.New(revert.CodeCallDepthExceeded, "call depth %d exceeds %d", depth, r.host.maxDepth)
	}
	if err := r.quota.Check(r.txID); err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, &fault{err}
	}

	r.sp++
	name := fmt.Sprintf("frame_%d", r.sp)
	if err := r.tx.Savepoint(r.ctx, name); err != nil {
		return nil, &fault{err}
	}
	mark := len(r.events)

	out, err := body()
	if err != nil {
		if rbErr := r.tx.RollbackTo(r.ctx, name); rbErr != nil {
			return nil, &fault{rbErr}
		}
		r.events = r.events[:mark]
		return nil, err
	}
	if err := r.tx.Release(r.ctx, name); err != nil {
		return nil, &fault{err}
	}
	if out == nil {
		out = ir.Object{}
	}
	return out, nil
}

// call executes a regular call frame.
func (r *run) call(caller, to ir.Address, value int64, sel ir.Selector, args ir.Object, depth int) (ir.Object, error) {
	return r.enter(depth, func() (ir.Object, error) {
		if value < 0 {
			return nil, revert.New(revert.CodeInvalidArgument, "negative value %d", value)
		}
		if value > 0 {
			if err := r.transfer(caller, to, value); err != nil {
				return nil, err
			}
		}
		acct, err := r.account(to)
		if err != nil {
			return nil, err
		}
		if !acct.HasCode() {
			if sel.IsZero() {
				return ir.Object{}, nil
			}
			return nil, revert.New(revert.CodeNoCode, "call %s on %s: no code", sel, to)
		}
		entry, err := r.host.book.mustEntry(acct.Kind)
		if err != nil {
			return nil, err
		}
		f := &Frame{
			run:        r,
			caller:     caller,
			self:       to,
			codeAddr:   to,
			value:      value,
			selector:   sel,
			depth:      depth,
			entry:      entry,
			immutables: acct.Immutables,
		}
		return dispatch(f, sel, args)
	})
}

// deploy creates an account for kind and runs its constructor.
func (r *run) deploy(creator ir.Address, kind string, immutables, args ir.Object, depth int) (ir.Address, error) {
	entry, ok := r.host.book.entry(kind)
	if !ok {
		return ir.ZeroAddress, revert.New(revert.CodeInvalidArgument, "unknown code kind %q", kind)
	}
	var addr ir.Address
	_, err := r.enter(depth, func() (ir.Object, error) {
		from, err := r.account(creator)
		if err != nil {
			return nil, err
		}
		addr = ir.CreateAddress(creator, from.Nonce)
		from.Nonce++
		if err := r.tx.PutAccount(r.ctx, from); err != nil {
			return nil, &fault{err}
		}

		existing, err := r.account(addr)
		if err != nil {
			return nil, err
		}
		if existing.Kind != "" {
			return nil, revert.New(revert.CodeInternal, "deploy %s: address %s already used", kind, addr)
		}
		consts := ir.Object{}
		for k, v := range immutables {
			consts[k] = v
		}
		acct := store.Account{
			Address:    addr,
			Kind:       kind,
			Immutables: consts,
			Balance:    existing.Balance,
		}
		if err := r.tx.PutAccount(r.ctx, acct); err != nil {
			return nil, &fault{err}
		}

		ctor, ok := entry.code.(Constructor)
		if !ok {
			return nil, nil
		}
		f := &Frame{
			run:        r,
			caller:     creator,
			self:       addr,
			codeAddr:   addr,
			depth:      depth,
			entry:      entry,
			immutables: consts,
		}
		if args == nil {
			args = ir.Object{}
		}
		return protect(f, func() (ir.Object, error) {
			return nil, ctor.Construct(f, args)
		})
	})
	if err != nil {
		return ir.ZeroAddress, err
	}
	r.host.logger.Debug("account deployed",
		"tx", r.txID,
		"kind", kind,
		"creator", creator.Hex(),
		"address", addr.Hex())
	return addr, nil
}

// transfer moves native value between accounts.
func (r *run) transfer(from, to ir.Address, amount int64) error {
	src, err := r.account(from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return revert.New(revert.CodeInsufficientBalance,
			"%s holds %d, needs %d", from, src.Balance, amount)
	}
	if from == to {
		return nil
	}
	dst, err := r.account(to)
	if err != nil {
		return err
	}
	credited, ok := ir.AddAmount(dst.Balance, amount)
	if !ok {
		return revert.New(revert.CodeArithmeticOverflow,
			"balance of %s overflows: %d + %d", to, dst.Balance, amount)
	}
	src.Balance -= amount
	if err := r.tx.PutAccount(r.ctx, src); err != nil {
		return &fault{err}
	}
	dst.Balance = credited
	if err := r.tx.PutAccount(r.ctx, dst); err != nil {
		return &fault{err}
	}
	return nil
}

func (r *run) account(addr ir.Address) (store.Account, error) {
	acct, _, err := r.tx.GetAccount(r.ctx, addr)
	if err != nil {
		return acct, &fault{err}
	}
	return acct, nil
}

func (r *run) requireMutable(op string) error {
	if r.static {
		return revert.New(revert.CodeNotAuthorized, "%s in read-only call", op)
	}
	return nil
}

// dispatch routes a selector to the frame's code.
func dispatch(f *Frame, sel ir.Selector, args ir.Object) (ir.Object, error) {
	if args == nil {
		args = ir.Object{}
	}
	code := f.entry.code

	if sel.IsZero() {
		if recv, ok := code.(Receiver); ok {
			return protect(f, func() (ir.Object, error) {
				return nil, recv.Receive(f)
			})
		}
	} else if m, ok := f.entry.methods[sel]; ok {
		if f.value > 0 && !m.Sig.Payable {
			return nil, revert.New(revert.CodeNonPayable, "%s.%s is not payable", code.Kind(), m.Sig.Name)
		}
		return protect(f, func() (ir.Object, error) {
			return m.Handle(f, args)
		})
	}

	if fb, ok := code.(Fallback); ok {
		return protect(f, func() (ir.Object, error) {
			return fb.Fallback(f, sel, args)
		})
	}
	if sel.IsZero() {
		if f.value > 0 {
			return nil, revert.New(revert.CodeNonPayable, "%s does not accept value", code.Kind())
		}
		return ir.Object{}, nil
	}
	return nil, revert.New(revert.CodeUnknownSelector, "%s has no function %s", code.Kind(), sel)
}

// protect converts a panic in module code into an INTERNAL revert.
func protect(f *Frame, fn func() (ir.Object, error)) (out ir.Object, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = revert.New(revert.CodeInternal, "panic in %s: %v", f.Kind(), p)
		}
	}()
	return fn()
}
