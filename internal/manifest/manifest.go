// Package manifest reads CUE deployment manifests.
//
// A manifest describes one standard deployment: who deploys and owns the
// Dispatcher, which migration bootstraps it, the tokens and transformers to
// deploy alongside, and initial native balances.
//
//	deployment: {
//		deployer:  "0x00000000000000000000000000000000000de910"
//		owner:     "0x000000000000000000000000000000000000041e"
//		migration: "full"
//		tokens: USD: {name: "Test Dollar", symbol: "USD", mint: {"0x…a11ce": 1000}}
//		transformers: ["pay-taker", "mint"]
//		funding: {"0x…a11ce": 50}
//	}
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/exproxy/internal/ir"
)

// Migration names.
const (
	MigrationInitial = "initial"
	MigrationFull    = "full"
)

// Transformer names.
const (
	TransformerPayTaker = "pay-taker"
	TransformerMint     = "mint"
)

// Allocation is an amount credited to an address.
type Allocation struct {
	To     ir.Address `json:"to"`
	Amount int64      `json:"amount"`
}

// Token is one token deployed with the Dispatcher.
type Token struct {
	Label  string       `json:"label"`
	Name   string       `json:"name"`
	Symbol string       `json:"symbol"`
	Mint   []Allocation `json:"mint,omitempty"`
}

// Manifest is a compiled deployment manifest.
type Manifest struct {
	Deployer            ir.Address   `json:"deployer"`
	Owner               ir.Address   `json:"owner"`
	TransformerDeployer ir.Address   `json:"transformerDeployer"`
	Migration           string       `json:"migration"`
	Tokens              []Token      `json:"tokens,omitempty"`
	Transformers        []string     `json:"transformers,omitempty"`
	Funding             []Allocation `json:"funding,omitempty"`
}

// Error is a manifest error with its CUE source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadDir loads every .cue file of dir as one instance and compiles its
// deployment value.
func LoadDir(dir string) (*Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("manifest directory: not a directory: %s", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", err)
	}
	v := cuecontext.New().BuildInstance(instances[0])
	return Compile(v)
}

// LoadFile compiles a single CUE file.
func LoadFile(path string) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	v := cuecontext.New().CompileBytes(src, cue.Filename(path))
	return Compile(v)
}

// Load compiles a manifest file or directory.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// Compile extracts the manifest from the "deployment" field of v.
func Compile(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	d := v.LookupPath(cue.ParsePath("deployment"))
	if !d.Exists() {
		return nil, &Error{Field: "deployment", Message: "deployment is required", Pos: v.Pos()}
	}
	if err := d.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Manifest{Migration: MigrationFull}
	var err error
	if m.Deployer, err = address(d, "deployer", true); err != nil {
		return nil, err
	}
	if m.Owner, err = address(d, "owner", true); err != nil {
		return nil, err
	}
	if m.TransformerDeployer, err = address(d, "transformerDeployer", false); err != nil {
		return nil, err
	}
	if m.TransformerDeployer.IsZero() {
		m.TransformerDeployer = m.Deployer
	}

	if mv := d.LookupPath(cue.ParsePath("migration")); mv.Exists() {
		s, err := mv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if s != MigrationInitial && s != MigrationFull {
			return nil, &Error{Field: "migration", Message: fmt.Sprintf("unknown migration %q (want initial or full)", s), Pos: mv.Pos()}
		}
		m.Migration = s
	}

	if m.Tokens, err = parseTokens(d); err != nil {
		return nil, err
	}
	if m.Transformers, err = parseTransformers(d); err != nil {
		return nil, err
	}
	if m.Funding, err = allocations(d.LookupPath(cue.ParsePath("funding")), "funding"); err != nil {
		return nil, err
	}
	if len(m.Transformers) > 0 && m.Migration != MigrationFull {
		return nil, &Error{Field: "transformers", Message: "transformers need the full migration", Pos: d.Pos()}
	}
	return m, nil
}

func address(v cue.Value, field string, required bool) (ir.Address, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		if required {
			return ir.ZeroAddress, &Error{Field: field, Message: field + " is required", Pos: v.Pos()}
		}
		return ir.ZeroAddress, nil
	}
	s, err := fv.String()
	if err != nil {
		return ir.ZeroAddress, formatCUEError(err)
	}
	a, err := ir.ParseAddress(s)
	if err != nil {
		return ir.ZeroAddress, &Error{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return a, nil
}

// parseTokens reads the tokens struct, ordered by label.
func parseTokens(d cue.Value) ([]Token, error) {
	tv := d.LookupPath(cue.ParsePath("tokens"))
	if !tv.Exists() {
		return nil, nil
	}
	iter, err := tv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var tokens []Token
	for iter.Next() {
		label := iter.Selector().Unquoted()
		v := iter.Value()
		tok := Token{Label: label}
		if tok.Name, err = str(v, "name", "tokens."+label); err != nil {
			return nil, err
		}
		if tok.Symbol, err = str(v, "symbol", "tokens."+label); err != nil {
			return nil, err
		}
		if tok.Mint, err = allocations(v.LookupPath(cue.ParsePath("mint")), "tokens."+label+".mint"); err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Label < tokens[j].Label })
	return tokens, nil
}

func str(v cue.Value, field, ctx string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &Error{Field: ctx + "." + field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseTransformers keeps list order: it decides deployment nonces.
func parseTransformers(d cue.Value) ([]string, error) {
	tv := d.LookupPath(cue.ParsePath("transformers"))
	if !tv.Exists() {
		return nil, nil
	}
	iter, err := tv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if s != TransformerPayTaker && s != TransformerMint {
			return nil, &Error{Field: "transformers", Message: fmt.Sprintf("unknown transformer %q", s), Pos: iter.Value().Pos()}
		}
		names = append(names, s)
	}
	return names, nil
}

// allocations reads an address -> amount struct, ordered by address.
func allocations(v cue.Value, field string) ([]Allocation, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []Allocation
	for iter.Next() {
		label := iter.Selector().Unquoted()
		to, err := ir.ParseAddress(label)
		if err != nil {
			return nil, &Error{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		amount, err := amountOf(iter.Value(), field+"."+label)
		if err != nil {
			return nil, err
		}
		out = append(out, Allocation{To: to, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To.Hex() < out[j].To.Hex() })
	return out, nil
}

// amountOf reads a non-negative integer. Floats are rejected: amounts are
// integral.
func amountOf(v cue.Value, field string) (int64, error) {
	if k := v.IncompleteKind(); k != cue.IntKind {
		return 0, &Error{Field: field, Message: fmt.Sprintf("amount must be an integer, got %v", k), Pos: v.Pos()}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 {
		return 0, &Error{Field: field, Message: fmt.Sprintf("amount must not be negative, got %d", n), Pos: v.Pos()}
	}
	return n, nil
}

// formatCUEError keeps the position of the first CUE error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
