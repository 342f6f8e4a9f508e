package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/exproxy/internal/deploy"
	"github.com/roach88/exproxy/internal/feature"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/manifest"
)

const refWallet = "@wallet"

// resolver turns "@" references into values and addresses back into labels.
type resolver struct {
	ctx        context.Context
	host       *host.Host
	dispatcher ir.Address
	addrs      map[string]ir.Address
	nonces     map[string]int64
	labels     map[ir.Address]string
}

func newResolver(ctx context.Context, h *host.Host, s *Scenario, m *manifest.Manifest, d *deploy.Deployment) (*resolver, error) {
	r := &resolver{
		ctx:        ctx,
		host:       h,
		dispatcher: d.Dispatcher,
		addrs:      map[string]ir.Address{},
		nonces:     map[string]int64{},
		labels:     map[ir.Address]string{},
	}

	names := make([]string, 0, len(s.Accounts))
	for name := range s.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr, err := ir.ParseAddress(s.Accounts[name])
		if err != nil {
			return nil, fmt.Errorf("accounts.%s: %w", name, err)
		}
		r.bind(name, addr)
	}

	r.bind("native", ir.ZeroAddress)
	r.bind("deployer", m.Deployer)
	r.bind("owner", m.Owner)
	r.bind("transformerDeployer", m.TransformerDeployer)
	r.bind("dispatcher", d.Dispatcher)
	r.bind("migrator", d.Migrator)
	r.bind("registry", d.Registry)
	r.bind("ownable", d.Ownable)
	if !d.TokenSpender.IsZero() {
		r.bind("tokenSpender", d.TokenSpender)
		r.bind("transformERC20", d.TransformERC20)
		r.bind("allowanceTarget", d.AllowanceTarget)
	}
	for _, t := range m.Tokens {
		r.bind(t.Label, d.Tokens[t.Label])
	}
	for _, t := range d.Transformers {
		r.bind("transformer."+t.Name, t.Address)
		r.nonces[t.Name] = int64(t.Nonce)
	}
	return r, nil
}

// bind registers name; the first name bound to an address labels it.
func (r *resolver) bind(name string, addr ir.Address) {
	r.addrs[name] = addr
	if _, ok := r.labels[addr]; !ok {
		r.labels[addr] = "@" + name
	}
}

// address resolves a reference or a literal 0x address.
func (r *resolver) address(s string) (ir.Address, error) {
	v, err := r.resolveString(s)
	if err != nil {
		return ir.ZeroAddress, err
	}
	str, ok := v.(string)
	if !ok {
		return ir.ZeroAddress, fmt.Errorf("%s is not an address", s)
	}
	return ir.ParseAddress(str)
}

func (r *resolver) resolveString(s string) (any, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	if s == refWallet {
		w, err := r.wallet()
		if err != nil {
			return nil, err
		}
		return w.Hex(), nil
	}
	name := strings.TrimPrefix(s, "@")
	if n, ok := strings.CutPrefix(name, "nonce."); ok {
		nonce, ok := r.nonces[n]
		if !ok {
			return nil, fmt.Errorf("unknown transformer %q in %s", n, s)
		}
		return nonce, nil
	}
	addr, ok := r.addrs[name]
	if !ok {
		return nil, fmt.Errorf("unknown reference %s", s)
	}
	return addr.Hex(), nil
}

// value resolves references anywhere inside a decoded YAML value and
// converts the result to IR.
func (r *resolver) value(v any) (ir.Value, error) {
	resolved, err := r.walk(v)
	if err != nil {
		return nil, err
	}
	return ir.FromGo(resolved)
}

// object is value for an argument map. Nil maps become empty objects.
func (r *resolver) object(m map[string]any) (ir.Object, error) {
	if m == nil {
		return ir.Object{}, nil
	}
	v, err := r.value(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.Object), nil
}

func (r *resolver) walk(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.resolveString(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			w, err := r.walk(e)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			w, err := r.walk(e)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *resolver) wallet() (ir.Address, error) {
	out, err := r.host.View(r.ctx, ir.Msg{
		To:       r.dispatcher,
		Selector: feature.SigGetTransformWallet.Selector(),
	})
	if err != nil {
		return ir.ZeroAddress, fmt.Errorf("resolve %s: %w", refWallet, err)
	}
	s, ok := out["wallet"].(ir.String)
	if !ok {
		return ir.ZeroAddress, fmt.Errorf("resolve %s: no wallet", refWallet)
	}
	return ir.ParseAddress(string(s))
}

// label replaces known addresses inside v with their reference labels and
// drops null fields.
func (r *resolver) label(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.String:
		if addr, err := ir.ParseAddress(string(val)); err == nil {
			if l, ok := r.labels[addr]; ok {
				return ir.String(l)
			}
		}
		return val
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, e := range val {
			out[i] = r.label(e)
		}
		return out
	case ir.Object:
		out := make(ir.Object, len(val))
		for k, e := range val {
			switch e.(type) {
			case nil, ir.Null:
				continue
			}
			out[k] = r.label(e)
		}
		return out
	default:
		return v
	}
}

func (r *resolver) labelAddress(addr ir.Address) string {
	if l, ok := r.labels[addr]; ok {
		return l
	}
	return addr.Hex()
}

// selector maps a call to its selector and canonical signature.
func (r *resolver) selector(call string) (ir.Selector, string, error) {
	return r.host.Codebook().ResolveFunction(call)
}
