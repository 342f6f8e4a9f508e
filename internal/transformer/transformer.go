// Package transformer defines the transform-step contract and the stock
// transformers.
//
// A transformer is deployed by the configured transformer deployer and is
// only ever run through the Vault's delegated execution: its code acts on the
// Vault's balances, never its own. A step succeeds only by returning the
// TRANSFORMER_SUCCESS magic.
package transformer

import (
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
)

// Namespace holds the deployer of a transformer account.
var Namespace = storage.NamespaceFor("exproxy.transformer")

const fieldDeployer = 0

// SigTransform is the step entry point.
var SigTransform = ir.FunctionSig{Name: "transform", Inputs: []ir.NamedArg{
	{Name: "sender", Type: "address"},
	{Name: "recipient", Type: "address"},
	{Name: "data", Type: "tuple"},
}}

// SigDie lets the deployer retire a transformer.
var SigDie = ir.FunctionSig{Name: "die", Inputs: []ir.NamedArg{
	{Name: "beneficiary", Type: "address"},
}}

// Context is what a step learns about the pipeline it runs in.
type Context struct {
	Sender    ir.Address // Taker who started the pipeline
	Recipient ir.Address // Receives the output
	Data      ir.Object  // Step-specific parameters
}

// Args renders c as transform arguments.
func (c Context) Args() ir.Object {
	return ir.Object{
		"sender":    c.Sender.Value(),
		"recipient": c.Recipient.Value(),
		"data":      c.Data,
	}
}

// ParseContext decodes transform arguments.
func ParseContext(args ir.Object) (Context, error) {
	var c Context
	var err error
	if c.Sender, err = host.ArgAddress(args, "sender"); err != nil {
		return c, err
	}
	if c.Recipient, err = host.ArgAddress(args, "recipient"); err != nil {
		return c, err
	}
	if c.Data, err = host.ArgObject(args, "data"); err != nil {
		return c, err
	}
	return c, nil
}

// Result is the outcome a step reports: how much input it used up and how
// much output it left in the vault. Paid lists amounts a step sent out of the
// vault, one per token it was asked to pay.
type Result struct {
	Consumed int64
	Produced int64
	Paid     []int64
}

// Success returns the magic result of a completed step.
func (r Result) Success() ir.Object {
	out := ir.Object{
		"magic":    ir.String(ir.TransformerSuccess),
		"consumed": ir.Int(r.Consumed),
		"produced": ir.Int(r.Produced),
	}
	if r.Paid != nil {
		paid := make(ir.Array, len(r.Paid))
		for i, n := range r.Paid {
			paid[i] = ir.Int(n)
		}
		out["paid"] = paid
	}
	return out
}

// Report renders what a step reported for the pipeline's audit record.
// Missing or malformed amounts read as zero.
func Report(out ir.Object) ir.Object {
	rep := ir.Object{"consumed": ir.Int(0), "produced": ir.Int(0)}
	for _, key := range []string{"consumed", "produced"} {
		if n, ok := out[key].(ir.Int); ok {
			rep[key] = n
		}
	}
	if paid, ok := out["paid"].(ir.Array); ok {
		rep["paid"] = paid
	}
	return rep
}

// Succeeded reports whether out carries the success magic.
func Succeeded(out ir.Object) bool {
	magic, ok := out["magic"].(ir.String)
	return ok && string(magic) == ir.TransformerSuccess
}

// StepFunc is the body of one transformer.
type StepFunc func(f *host.Frame, c Context) (Result, error)

// New returns a transformer code of kind running step. The result has the
// same delegated-only guard and retirement as the stock transformers.
func New(kind string, step StepFunc) host.Code {
	return base{kind: kind, step: step}
}

// base carries what every transformer shares: the delegated-only guard, the
// recorded deployer and retirement.
type base struct {
	kind string
	step StepFunc
}

func (b base) Kind() string { return b.kind }

func (b base) Namespaces() []storage.Namespace { return []storage.Namespace{Namespace} }

func (b base) Methods() []host.Method {
	return []host.Method{
		{Sig: SigTransform, Handle: b.transform},
		{Sig: SigDie, Handle: die},
	}
}

// Construct records the deployer.
func (b base) Construct(f *host.Frame, _ ir.Object) error {
	return storage.StoreAddress(f, Namespace.Field(fieldDeployer), f.Caller())
}

func (b base) transform(f *host.Frame, args ir.Object) (ir.Object, error) {
	if !f.Delegated() {
		return nil, revert.New(revert.CodeNotAuthorized, "%s must be delegate-called", b.kind)
	}
	c, err := ParseContext(args)
	if err != nil {
		return nil, err
	}
	res, err := b.step(f, c)
	if err != nil {
		return nil, err
	}
	return res.Success(), nil
}

func die(f *host.Frame, args ir.Object) (ir.Object, error) {
	if f.Delegated() {
		return nil, revert.New(revert.CodeNotAuthorized, "die must not be delegate-called")
	}
	deployer, err := storage.LoadAddress(f, Namespace.Field(fieldDeployer))
	if err != nil {
		return nil, err
	}
	if f.Caller() != deployer {
		return nil, revert.New(revert.CodeNotAuthorized, "only the deployer %s may retire %s", deployer, f.Self())
	}
	beneficiary, err := host.ArgOptionalAddress(args, "beneficiary")
	if err != nil {
		return nil, err
	}
	if beneficiary.IsZero() {
		beneficiary = deployer
	}
	return nil, f.SelfDestruct(beneficiary)
}
