package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// Handler executes one function of a module inside a frame.
// A nil result is reported as an empty object.
type Handler func(f *Frame, args ir.Object) (ir.Object, error)

// Method binds a function signature to its handler.
type Method struct {
	Sig    ir.FunctionSig
	Handle Handler
}

// Code is the behavior behind a code kind.
//
// Code is stateless: anything it remembers lives in slots of the account it
// runs against, or in the immutables of its own account. Methods() is the
// module's introspectable interface definition; Namespaces() lists every
// storage namespace the code may write.
type Code interface {
	Kind() string
	Methods() []Method
	Namespaces() []storage.Namespace
}

// Constructor is implemented by code that initializes state on deployment.
type Constructor interface {
	Construct(f *Frame, args ir.Object) error
}

// Fallback is implemented by code that handles selectors it does not define.
type Fallback interface {
	Fallback(f *Frame, sel ir.Selector, args ir.Object) (ir.Object, error)
}

// Receiver is implemented by code that accepts plain value transfers.
type Receiver interface {
	Receive(f *Frame) error
}

// codeEntry is a registered Code with its selector index.
type codeEntry struct {
	code       Code
	methods    map[ir.Selector]Method
	namespaces []storage.Namespace
}

// Codebook resolves code kinds to implementations.
//
// Thread-safety: safe for concurrent use; registration normally happens once
// at startup.
type Codebook struct {
	mu    sync.RWMutex
	kinds map[string]*codeEntry
	guard *storage.Guard
}

// NewCodebook creates an empty codebook with its own storage guard.
func NewCodebook() *Codebook {
	return &Codebook{
		kinds: make(map[string]*codeEntry),
		guard: storage.NewGuard(),
	}
}

// Register adds code kinds. Fails on duplicate kinds, on two functions of one
// kind sharing a selector, and (STORAGE_COLLISION) on namespace prefix clashes.
func (b *Codebook) Register(codes ...Code) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range codes {
		kind := c.Kind()
		if kind == "" {
			return fmt.Errorf("register code: empty kind")
		}
		if _, dup := b.kinds[kind]; dup {
			return fmt.Errorf("register code: duplicate kind %q", kind)
		}
		entry := &codeEntry{
			code:       c,
			methods:    make(map[ir.Selector]Method),
			namespaces: c.Namespaces(),
		}
		for _, m := range c.Methods() {
			sel := m.Sig.Selector()
			if prev, dup := entry.methods[sel]; dup {
				return fmt.Errorf("register code %q: selector %s shared by %s and %s",
					kind, sel, prev.Sig.Signature(), m.Sig.Signature())
			}
			entry.methods[sel] = m
		}
		if err := b.guard.Register(entry.namespaces...); err != nil {
			return fmt.Errorf("register code %q: %w", kind, err)
		}
		b.kinds[kind] = entry
	}
	return nil
}

// Lookup returns the code registered under kind.
func (b *Codebook) Lookup(kind string) (Code, bool) {
	e, ok := b.entry(kind)
	if !ok {
		return nil, false
	}
	return e.code, true
}

func (b *Codebook) entry(kind string) (*codeEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.kinds[kind]
	return e, ok
}

// Kinds returns the registered kinds in sorted order.
func (b *Codebook) Kinds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	kinds := make([]string, 0, len(b.kinds))
	for k := range b.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Guard returns the storage guard fed by registration.
func (b *Codebook) Guard() *storage.Guard {
	return b.guard
}

// Interface returns the function signatures of kind sorted by name, the
// stable definition binding tools generate clients from.
func (b *Codebook) Interface(kind string) ([]ir.FunctionSig, error) {
	e, ok := b.entry(kind)
	if !ok {
		return nil, revert.New(revert.CodeInvalidArgument, "unknown code kind %q", kind)
	}
	sigs := make([]ir.FunctionSig, 0, len(e.methods))
	for _, m := range e.methods {
		sigs = append(sigs, m.Sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		return sigs[i].Signature() < sigs[j].Signature()
	})
	return sigs, nil
}

// Functions returns the distinct signatures named name across every kind,
// ordered by kind.
func (b *Codebook) Functions(name string) []ir.FunctionSig {
	var out []ir.FunctionSig
	seen := map[string]bool{}
	for _, kind := range b.Kinds() {
		sigs, err := b.Interface(kind)
		if err != nil {
			continue
		}
		for _, sig := range sigs {
			if sig.Name != name || seen[sig.Signature()] {
				continue
			}
			seen[sig.Signature()] = true
			out = append(out, sig)
		}
	}
	return out
}

// ResolveFunction maps a function name or full signature to its selector and
// canonical signature. A bare name must identify exactly one signature.
func (b *Codebook) ResolveFunction(call string) (ir.Selector, string, error) {
	if strings.Contains(call, "(") {
		return ir.SelectorOf(call), call, nil
	}
	sigs := b.Functions(call)
	switch len(sigs) {
	case 0:
		return ir.Selector{}, "", fmt.Errorf("unknown function %q", call)
	case 1:
		return sigs[0].Selector(), sigs[0].Signature(), nil
	}
	alts := make([]string, len(sigs))
	for i, s := range sigs {
		alts[i] = s.Signature()
	}
	return ir.Selector{}, "", fmt.Errorf("function %q is ambiguous, use one of %s", call, strings.Join(alts, ", "))
}

func (b *Codebook) mustEntry(kind string) (*codeEntry, error) {
	e, ok := b.entry(kind)
	if !ok {
		return nil, revert.New(revert.CodeInternal, "code kind %q is not registered", kind)
	}
	return e, nil
}
