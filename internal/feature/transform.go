package feature

import (
	"strconv"

	"github.com/roach88/exproxy/internal/custody"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/proxy"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/storage"
	"github.com/roach88/exproxy/internal/token"
	"github.com/roach88/exproxy/internal/transformer"
)

// TransformERC20Kind is the code kind of the transform pipeline feature.
const TransformERC20Kind = "exproxy.feature.transform-erc20"

// TransformNamespace holds the vault and the transformer deployer.
var TransformNamespace = storage.NamespaceFor("exproxy.transform-erc20")

const (
	fieldWallet   = 0
	fieldDeployer = 1
)

// Pipeline events.
const (
	EventTransformedERC20           = "TransformedERC20"
	EventTransformerDeployerUpdated = "TransformerDeployerUpdated"
)

// TransformERC20 function signatures.
var (
	SigTransformERC20 = ir.FunctionSig{Name: "transformERC20", Inputs: []ir.NamedArg{
		{Name: "inputToken", Type: "address"},
		{Name: "outputToken", Type: "address"},
		{Name: "inputTokenAmount", Type: "uint256"},
		{Name: "minOutputTokenAmount", Type: "uint256"},
		{Name: "transformations", Type: "tuple[]"},
		{Name: "recipient", Type: "address"},
	}, Payable: true}
	SigCreateTransformWallet = ir.FunctionSig{Name: "createTransformWallet"}
	SigGetTransformWallet    = ir.FunctionSig{Name: "getTransformWallet", View: true}
	SigSetTransformerDeployer = ir.FunctionSig{Name: "setTransformerDeployer", Inputs: []ir.NamedArg{
		{Name: "transformerDeployer", Type: "address"},
	}}
	SigGetTransformerDeployer = ir.FunctionSig{Name: "getTransformerDeployer", View: true}
)

// Transformation is one step of a pipeline: the transformer deployed at the
// deployer's nonce DeploymentNonce, and its step data.
type Transformation struct {
	DeploymentNonce uint64
	Data            ir.Object
}

// TransformationsValue renders steps as transformERC20 arguments.
func TransformationsValue(steps []Transformation) ir.Array {
	arr := make(ir.Array, 0, len(steps))
	for _, s := range steps {
		data := s.Data
		if data == nil {
			data = ir.Object{}
		}
		arr = append(arr, ir.Object{
			"deploymentNonce": ir.Int(int64(s.DeploymentNonce)),
			"data":            data,
		})
	}
	return arr
}

func parseTransformations(args ir.Object) ([]Transformation, error) {
	raw, err := host.ArgArray(args, "transformations")
	if err != nil {
		return nil, err
	}
	steps := make([]Transformation, 0, len(raw))
	for i, v := range raw {
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, revert.New(revert.CodeInvalidArgument, "transformations[%d]: want tuple, got %T", i, v)
		}
		nonce, err := host.ArgAmount(obj, "deploymentNonce")
		if err != nil {
			return nil, revert.Wrap(revert.CodeInvalidArgument, err, "transformations[%d]", i)
		}
		data, err := host.ArgObject(obj, "data")
		if err != nil {
			return nil, revert.Wrap(revert.CodeInvalidArgument, err, "transformations[%d]", i)
		}
		steps = append(steps, Transformation{DeploymentNonce: uint64(nonce), Data: data})
	}
	return steps, nil
}

// TransformERC20 runs token pipelines inside a vault.
type TransformERC20 struct{}

// Kind implements host.Code.
func (TransformERC20) Kind() string { return TransformERC20Kind }

// Namespaces implements host.Code.
func (TransformERC20) Namespaces() []storage.Namespace {
	return []storage.Namespace{TransformNamespace, OwnableNamespace, proxy.TableNamespace}
}

// Methods implements host.Code.
func (TransformERC20) Methods() []host.Method {
	return []host.Method{
		{Sig: SigMigrate, Handle: migrateTransform},
		{Sig: SigTransformERC20, Handle: transformERC20},
		{Sig: SigCreateTransformWallet, Handle: createTransformWallet},
		{Sig: SigGetTransformWallet, Handle: getTransformWallet},
		{Sig: SigSetTransformerDeployer, Handle: setTransformerDeployer},
		{Sig: SigGetTransformerDeployer, Handle: getTransformerDeployer},
	}
}

func migrateTransform(f *host.Frame, args ir.Object) (ir.Object, error) {
	config, err := migrateConfig(f, args)
	if err != nil {
		return nil, err
	}
	deployer, err := host.ArgAddress(config, "transformerDeployer")
	if err != nil {
		return nil, err
	}
	if err := storage.StoreAddress(f, TransformNamespace.Field(fieldDeployer), deployer); err != nil {
		return nil, err
	}
	if _, err := newWallet(f); err != nil {
		return nil, err
	}
	err = registerFunctions(f,
		SigTransformERC20,
		SigCreateTransformWallet,
		SigGetTransformWallet,
		SigSetTransformerDeployer,
		SigGetTransformerDeployer,
	)
	if err != nil {
		return nil, err
	}
	return MigrateSuccess(), nil
}

// newWallet deploys a vault controlled by the Dispatcher and makes it the
// pipeline wallet.
func newWallet(f *host.Frame) (ir.Address, error) {
	wallet, err := f.Deploy(custody.VaultKind, nil, nil)
	if err != nil {
		return ir.ZeroAddress, err
	}
	if err := storage.StoreAddress(f, TransformNamespace.Field(fieldWallet), wallet); err != nil {
		return ir.ZeroAddress, err
	}
	return wallet, nil
}

func createTransformWallet(f *host.Frame, _ ir.Object) (ir.Object, error) {
	if err := onlyOwner(f); err != nil {
		return nil, err
	}
	wallet, err := newWallet(f)
	if err != nil {
		return nil, err
	}
	return ir.Object{"wallet": wallet.Value()}, nil
}

func getTransformWallet(f *host.Frame, _ ir.Object) (ir.Object, error) {
	wallet, err := storage.LoadAddress(f, TransformNamespace.Field(fieldWallet))
	if err != nil {
		return nil, err
	}
	return ir.Object{"wallet": wallet.Value()}, nil
}

func setTransformerDeployer(f *host.Frame, args ir.Object) (ir.Object, error) {
	if err := onlyOwner(f); err != nil {
		return nil, err
	}
	deployer, err := host.ArgAddress(args, "transformerDeployer")
	if err != nil {
		return nil, err
	}
	if err := storage.StoreAddress(f, TransformNamespace.Field(fieldDeployer), deployer); err != nil {
		return nil, err
	}
	return nil, f.Emit(EventTransformerDeployerUpdated, ir.Object{
		"transformerDeployer": deployer.Value(),
	})
}

func getTransformerDeployer(f *host.Frame, _ ir.Object) (ir.Object, error) {
	deployer, err := storage.LoadAddress(f, TransformNamespace.Field(fieldDeployer))
	if err != nil {
		return nil, err
	}
	return ir.Object{"transformerDeployer": deployer.Value()}, nil
}

// pipeline is one decoded transformERC20 request.
type pipeline struct {
	taker     ir.Address
	recipient ir.Address
	input     ir.Address
	output    ir.Address
	amount    int64
	minOutput int64
	steps     []Transformation
}

func parsePipeline(f *host.Frame, args ir.Object) (pipeline, error) {
	p := pipeline{taker: f.Caller()}
	var err error
	if p.input, err = host.ArgOptionalAddress(args, "inputToken"); err != nil {
		return p, err
	}
	if p.output, err = host.ArgOptionalAddress(args, "outputToken"); err != nil {
		return p, err
	}
	if p.amount, err = host.ArgAmount(args, "inputTokenAmount"); err != nil {
		return p, err
	}
	if p.minOutput, err = host.ArgAmount(args, "minOutputTokenAmount"); err != nil {
		return p, err
	}
	if p.steps, err = parseTransformations(args); err != nil {
		return p, err
	}
	if p.recipient, err = host.ArgOptionalAddress(args, "recipient"); err != nil {
		return p, err
	}
	if p.recipient.IsZero() {
		p.recipient = p.taker
	}
	return p, nil
}

// transformERC20 moves the taker's input into the vault, runs every step
// against the vault, pays the output to the recipient and refunds unspent
// input to the taker. Any failure reverts the whole pipeline.
func transformERC20(f *host.Frame, args ir.Object) (ir.Object, error) {
	p, err := parsePipeline(f, args)
	if err != nil {
		return nil, err
	}
	wallet, err := storage.LoadAddress(f, TransformNamespace.Field(fieldWallet))
	if err != nil {
		return nil, err
	}
	if wallet.IsZero() {
		return nil, revert.New(revert.CodeNotMigrated, "no transform wallet")
	}
	deployer, err := storage.LoadAddress(f, TransformNamespace.Field(fieldDeployer))
	if err != nil {
		return nil, err
	}

	before, err := token.BalanceOf(f, p.output, p.recipient)
	if err != nil {
		return nil, err
	}

	if err := fund(f, p, wallet); err != nil {
		return nil, err
	}

	reports := make(ir.Array, 0, len(p.steps))
	for i, step := range p.steps {
		target := ir.CreateAddress(deployer, step.DeploymentNonce)
		ctx := transformer.Context{Sender: p.taker, Recipient: p.recipient, Data: step.Data}
		out, err := f.Call(wallet, 0, custody.SigExecuteDelegate.Selector(), ir.Object{
			"target":   target.Value(),
			"selector": transformer.SigTransform.Selector().Value(),
			"args":     ctx.Args(),
		})
		if err != nil {
			return nil, revert.Wrap(revert.CodeTransformerFailed, err, "transformation %d (%s)", i, target)
		}
		if !transformer.Succeeded(out) {
			return nil, revert.New(revert.CodeTransformerFailed, "transformation %d (%s) did not confirm success", i, target)
		}
		rep := transformer.Report(out)
		rep["transformer"] = target.Value()
		reports = append(reports, rep)
	}

	if err := sweep(f, wallet, p.output, p.recipient); err != nil {
		return nil, err
	}
	if p.input != p.output {
		if err := sweep(f, wallet, p.input, p.taker); err != nil {
			return nil, err
		}
	}

	after, err := token.BalanceOf(f, p.output, p.recipient)
	if err != nil {
		return nil, err
	}
	received := after - before
	if received < p.minOutput {
		return nil, revert.New(revert.CodeInsufficientOutput,
			"received %d of %s, want at least %d", received, p.output, p.minOutput).
			With("received", strconv.FormatInt(received, 10)).
			With("minimum", strconv.FormatInt(p.minOutput, 10))
	}

	err = f.Emit(EventTransformedERC20, ir.Object{
		"taker":             p.taker.Value(),
		"inputToken":        p.input.Value(),
		"outputToken":       p.output.Value(),
		"inputTokenAmount":  ir.Int(p.amount),
		"outputTokenAmount": ir.Int(received),
		"steps":             reports,
	})
	if err != nil {
		return nil, err
	}
	return ir.Object{"outputTokenAmount": ir.Int(received)}, nil
}

// fund moves the pipeline input into the vault: attached native value is
// forwarded, tokens are pulled from the taker through the token spender.
func fund(f *host.Frame, p pipeline, wallet ir.Address) error {
	if p.input == token.Native {
		if f.Value() != p.amount {
			return revert.New(revert.CodeInvalidArgument,
				"attached value %d does not match input amount %d", f.Value(), p.amount)
		}
		return token.Transfer(f, token.Native, wallet, p.amount)
	}
	if f.Value() != 0 {
		return revert.New(revert.CodeNonPayable, "value attached to a token pipeline")
	}
	if p.amount == 0 {
		return nil
	}
	_, err := f.Call(f.Self(), 0, SigSpendTokens.Selector(), ir.Object{
		"token":  p.input.Value(),
		"owner":  p.taker.Value(),
		"to":     wallet.Value(),
		"amount": ir.Int(p.amount),
	})
	return err
}

// sweep pays the vault's whole balance of tok to to.
func sweep(f *host.Frame, wallet, tok, to ir.Address) error {
	bal, err := token.BalanceOf(f, tok, wallet)
	if err != nil {
		return err
	}
	if bal == 0 {
		return nil
	}
	call := ir.Object{
		"target":   tok.Value(),
		"value":    ir.Int(0),
		"selector": token.SigTransfer.Selector().Value(),
		"args":     ir.Object{"to": to.Value(), "amount": ir.Int(bal)},
	}
	if tok == token.Native {
		call = ir.Object{
			"target":   to.Value(),
			"value":    ir.Int(bal),
			"selector": ir.Selector{}.Value(),
			"args":     ir.Object{},
		}
	}
	_, err = f.Call(wallet, 0, custody.SigExecute.Selector(), call)
	return err
}
