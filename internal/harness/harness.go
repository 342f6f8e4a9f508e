package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/exproxy/internal/deploy"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/manifest"
	"github.com/roach88/exproxy/internal/store"
)

// Option configures a scenario run.
type Option func(*runner)

// WithLogger routes host and deployment logs to l. Runs are silent by
// default; a nil logger keeps them silent.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHostOptions passes extra options to the host, after the
// deterministic defaults.
func WithHostOptions(opts ...host.Option) Option {
	return func(r *runner) { r.hostOpts = append(r.hostOpts, opts...) }
}

type runner struct {
	logger   *slog.Logger
	hostOpts []host.Option
	host     *host.Host
	refs     *resolver
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential tx ids,
// so two runs of the same scenario produce the same trace.
//
// Execution flow:
//  1. Load the manifest and deploy it
//  2. Execute setup steps (each must succeed)
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions against the final state
//
// Mismatches are reported in the result; the error return is reserved for
// scenarios that cannot run at all.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	r := &runner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(r)
	}

	m, err := manifest.Load(scenario.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	book, err := deploy.NewCodebook()
	if err != nil {
		return nil, err
	}
	hostOpts := append([]host.Option{
		host.WithTxIDGenerator(host.NewSequentialGenerator("tx")),
		host.WithLogger(r.logger),
	}, r.hostOpts...)
	r.host, err = host.New(ctx, st, book, hostOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	d, err := deploy.Run(ctx, r.host, m, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy manifest: %w", err)
	}
	r.refs, err = newResolver(ctx, r.host, scenario, m, d)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Deployment = d

	for i, step := range scenario.Setup {
		receipt, _, err := r.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if receipt.Status != ir.StatusSuccess {
			return nil, fmt.Errorf("setup[%d]: %s reverted: %s: %s", i, step.Call, receipt.ErrorCode, receipt.ErrorMessage)
		}
	}

	for i, step := range scenario.Flow {
		receipt, sig, err := r.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, r.trace(step, sig, receipt))
		for _, msg := range r.checkExpect(step.Expect, receipt) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Call, msg))
		}
	}

	for i, a := range scenario.Assertions {
		if err := r.evaluate(ctx, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return result, nil
}

// execute resolves and submits one step.
func (r *runner) execute(ctx context.Context, step Step) (*ir.Receipt, string, error) {
	from, err := r.refs.address(step.From)
	if err != nil {
		return nil, "", fmt.Errorf("from: %w", err)
	}
	to, err := r.refs.address(step.To)
	if err != nil {
		return nil, "", fmt.Errorf("to: %w", err)
	}
	sel, sig, err := r.refs.selector(step.Call)
	if err != nil {
		return nil, "", err
	}
	args, err := r.refs.object(step.Args)
	if err != nil {
		return nil, "", fmt.Errorf("args: %w", err)
	}

	receipt, err := r.host.Call(ctx, ir.Msg{From: from, To: to, Value: step.Value, Selector: sel, Args: args})
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", sig, err)
	}
	return receipt, sig, nil
}

func (r *runner) trace(step Step, sig string, receipt *ir.Receipt) StepTrace {
	t := StepTrace{
		Call:   sig,
		From:   r.refs.labelAddress(receipt.From),
		To:     r.refs.labelAddress(receipt.To),
		Value:  step.Value,
		Status: string(receipt.Status),
		Error:  receipt.ErrorCode,
	}
	if len(receipt.Result) > 0 {
		t.Result = ir.ToGo(r.refs.label(receipt.Result))
	}
	for _, ev := range receipt.Events {
		et := EventTrace{Name: ev.Name, Emitter: r.refs.labelAddress(ev.Emitter)}
		if len(ev.Fields) > 0 {
			et.Fields = ir.ToGo(r.refs.label(ev.Fields))
		}
		t.Events = append(t.Events, et)
	}
	return t
}

// checkExpect compares a receipt with its expect clause.
func (r *runner) checkExpect(e *Expect, receipt *ir.Receipt) []string {
	if e == nil {
		e = &Expect{}
	}
	var errs []string

	want := StatusSuccess
	if e.Status == StatusReverted || e.Error != "" {
		want = StatusReverted
	}
	if string(receipt.Status) != want {
		msg := fmt.Sprintf("expected status %s, got %s", want, receipt.Status)
		if receipt.ErrorCode != "" {
			msg += fmt.Sprintf(" (%s: %s)", receipt.ErrorCode, receipt.ErrorMessage)
		}
		return append(errs, msg)
	}
	if e.Error != "" && receipt.ErrorCode != e.Error {
		errs = append(errs, fmt.Sprintf("expected error %s, got %s (%s)", e.Error, receipt.ErrorCode, receipt.ErrorMessage))
	}

	if len(e.Result) > 0 {
		if msg := r.matchSubset(e.Result, receipt.Result); msg != "" {
			errs = append(errs, "result "+msg)
		}
	}

	if e.Events != nil {
		got := make([]string, len(receipt.Events))
		for i, ev := range receipt.Events {
			got[i] = ev.Name
		}
		if diff := cmp.Diff(e.Events, got); diff != "" {
			errs = append(errs, fmt.Sprintf("events mismatch (-want +got):\n%s", diff))
		}
	}
	return errs
}

// matchSubset checks every expected key against actual. Returns "" on a
// match.
func (r *runner) matchSubset(expected map[string]any, actual ir.Object) string {
	want, err := r.refs.object(expected)
	if err != nil {
		return err.Error()
	}
	for _, k := range want.SortedKeys() {
		got, ok := actual[k]
		if !ok {
			return fmt.Sprintf("missing field %q", k)
		}
		if diff := cmp.Diff(want[k], got); diff != "" {
			return fmt.Sprintf("field %q mismatch (-want +got):\n%s", k, diff)
		}
	}
	return ""
}
