// Package deploy assembles the standard codebook and performs a complete
// deployment from a manifest: migrator, Dispatcher, features, allowance
// target, tokens and transformers, bootstrapped in one initialize call.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/exproxy/internal/custody"
	"github.com/roach88/exproxy/internal/feature"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/manifest"
	"github.com/roach88/exproxy/internal/migration"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/token"
	"github.com/roach88/exproxy/internal/transformer"
)

// Codes returns every code kind of a standard deployment.
func Codes() []host.Code {
	codes := []host.Code{
		proxy.Dispatcher{},
		custody.Vault{},
		custody.AllowanceTarget{},
		token.Token{},
		transformer.NewPayTaker(),
		transformer.NewMint(),
	}
	codes = append(codes, feature.Codes()...)
	return append(codes, migration.Codes()...)
}

// NewCodebook returns a codebook holding Codes.
func NewCodebook() (*host.Codebook, error) {
	book := host.NewCodebook()
	if err := book.Register(Codes()...); err != nil {
		return nil, fmt.Errorf("standard codebook: %w", err)
	}
	return book, nil
}

// TransformerKind maps a manifest transformer name to its code kind.
func TransformerKind(name string) (string, bool) {
	switch name {
	case manifest.TransformerPayTaker:
		return transformer.PayTakerKind, true
	case manifest.TransformerMint:
		return transformer.MintKind, true
	}
	return "", false
}

// Transformer is a deployed transformer and the deployer nonce that
// addresses it in a pipeline.
type Transformer struct {
	Name    string     `json:"name"`
	Address ir.Address `json:"address"`
	Nonce   uint64     `json:"nonce"`
}

// Deployment lists the accounts created by Run.
type Deployment struct {
	Dispatcher      ir.Address            `json:"dispatcher"`
	Migrator        ir.Address            `json:"migrator"`
	Registry        ir.Address            `json:"registry"`
	Ownable         ir.Address            `json:"ownable"`
	TokenSpender    ir.Address            `json:"tokenSpender,omitempty"`
	TransformERC20  ir.Address            `json:"transformERC20,omitempty"`
	AllowanceTarget ir.Address            `json:"allowanceTarget,omitempty"`
	Tokens          map[string]ir.Address `json:"tokens,omitempty"`
	Transformers    []Transformer         `json:"transformers,omitempty"`
	Receipt         *ir.Receipt           `json:"receipt"`
}

// Transformer returns the first deployed transformer called name.
func (d *Deployment) Transformer(name string) (Transformer, bool) {
	for _, t := range d.Transformers {
		if t.Name == name {
			return t, true
		}
	}
	return Transformer{}, false
}

// ReceiptError reports a reverted deployment step.
type ReceiptError struct {
	Step    string
	Receipt *ir.Receipt
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("%s reverted: %s: %s", e.Step, e.Receipt.ErrorCode, e.Receipt.ErrorMessage)
}

// deployer runs the individual steps and stops at the first failure.
type deployer struct {
	ctx    context.Context
	host   *host.Host
	logger *slog.Logger
	err    error
}

func (d *deployer) deploy(step string, from ir.Address, kind string, immutables, args ir.Object) ir.Address {
	if d.err != nil {
		return ir.ZeroAddress
	}
	addr, receipt, err := d.host.Deploy(d.ctx, from, kind, immutables, args)
	if err != nil {
		d.err = fmt.Errorf("%s: %w", step, err)
		return ir.ZeroAddress
	}
	if receipt.Status != ir.StatusSuccess {
		d.err = &ReceiptError{Step: step, Receipt: receipt}
		return ir.ZeroAddress
	}
	d.logger.Debug("deployed", "step", step, "kind", kind, "address", addr.Hex(), "tx", receipt.TxID)
	return addr
}

func (d *deployer) call(step string, from, to ir.Address, sig ir.FunctionSig, args ir.Object) *ir.Receipt {
	if d.err != nil {
		return nil
	}
	receipt, err := d.host.Call(d.ctx, ir.Msg{From: from, To: to, Selector: sig.Selector(), Args: args})
	if err != nil {
		d.err = fmt.Errorf("%s: %w", step, err)
		return nil
	}
	if receipt.Status != ir.StatusSuccess {
		d.err = &ReceiptError{Step: step, Receipt: receipt}
		return nil
	}
	return receipt
}

func (d *deployer) nonce(addr ir.Address) uint64 {
	if d.err != nil {
		return 0
	}
	acct, _, err := d.host.Account(d.ctx, addr)
	if err != nil {
		d.err = fmt.Errorf("nonce of %s: %w", addr, err)
		return 0
	}
	return acct.Nonce
}

// Run deploys and bootstraps a Dispatcher as m describes. Every step is its
// own external call; a failure leaves the earlier steps in place and is
// returned as a *ReceiptError when a call reverted.
func Run(ctx context.Context, h *host.Host, m *manifest.Manifest, logger *slog.Logger) (*Deployment, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &deployer{ctx: ctx, host: h, logger: logger}
	out := &Deployment{Tokens: map[string]ir.Address{}}

	for _, a := range m.Funding {
		if err := h.Fund(ctx, a.To, a.Amount); err != nil {
			return nil, fmt.Errorf("fund %s: %w", a.To, err)
		}
	}

	for _, t := range m.Tokens {
		addr := d.deploy("token "+t.Label, m.Deployer, token.Kind, nil, ir.Object{
			"name":   ir.String(t.Name),
			"symbol": ir.String(t.Symbol),
		})
		for _, a := range t.Mint {
			d.call("mint "+t.Label, m.Deployer, addr, token.SigMint, ir.Object{
				"to":     a.To.Value(),
				"amount": ir.Int(a.Amount),
			})
		}
		out.Tokens[t.Label] = addr
	}

	kind := migration.FullKind
	if m.Migration == manifest.MigrationInitial {
		kind = migration.InitialKind
	}
	out.Migrator = d.deploy("migrator", m.Deployer, kind, ir.Object{
		"initializeCaller": m.Deployer.Value(),
	}, nil)
	out.Dispatcher = d.deploy("dispatcher", m.Deployer, proxy.Kind, nil, ir.Object{
		"bootstrapCaller": out.Migrator.Value(),
	})
	out.Registry = d.deploy("registry", m.Deployer, feature.RegistryKind, nil, nil)
	out.Ownable = d.deploy("ownable", m.Deployer, feature.OwnableKind, nil, nil)

	features := migration.Features{Registry: out.Registry, Ownable: out.Ownable}
	var config migration.Config
	if m.Migration == manifest.MigrationFull {
		out.TokenSpender = d.deploy("token spender", m.Deployer, feature.TokenSpenderKind, nil, nil)
		out.TransformERC20 = d.deploy("transform", m.Deployer, feature.TransformERC20Kind, nil, nil)
		out.AllowanceTarget = d.deploy("allowance target", m.Deployer, custody.AllowanceTargetKind, nil, ir.Object{
			"owner":   m.Owner.Value(),
			"spender": out.Dispatcher.Value(),
		})
		features.TokenSpender = out.TokenSpender
		features.TransformERC20 = out.TransformERC20
		config = migration.Config{
			AllowanceTarget:     out.AllowanceTarget,
			TransformerDeployer: m.TransformerDeployer,
		}
	}

	for _, name := range m.Transformers {
		kind, ok := TransformerKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown transformer %q", name)
		}
		nonce := d.nonce(m.TransformerDeployer)
		addr := d.deploy("transformer "+name, m.TransformerDeployer, kind, nil, nil)
		out.Transformers = append(out.Transformers, Transformer{Name: name, Address: addr, Nonce: nonce})
	}

	out.Receipt = d.call("initialize", m.Deployer, out.Migrator, migration.SigInitialize,
		migration.InitializeArgs(out.Dispatcher, m.Owner, features, config))
	if d.err != nil {
		return nil, d.err
	}
	logger.Info("dispatcher bootstrapped",
		"dispatcher", out.Dispatcher.Hex(),
		"migration", m.Migration,
		"owner", m.Owner.Hex(),
		"tx", out.Receipt.TxID)
	return out, nil
}
