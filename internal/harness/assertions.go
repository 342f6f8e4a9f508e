package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/store"
	"github.com/roach88/exproxy/internal/token"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (r *runner) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertBalance:
		return r.assertBalance(ctx, a)
	case AssertEventCount:
		return r.assertEventCount(ctx, a)
	case AssertEventOrder:
		return r.assertEventOrder(ctx, a)
	case AssertView:
		return r.assertView(ctx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertBalance checks a token balance. A missing token or @native checks
// native value.
func (r *runner) assertBalance(ctx context.Context, a Assertion) error {
	who, err := r.refs.address(a.Account)
	if err != nil {
		return err
	}
	tok := token.Native
	if a.Token != "" {
		if tok, err = r.refs.address(a.Token); err != nil {
			return err
		}
	}

	var got int64
	if tok == token.Native {
		if got, err = r.host.Balance(ctx, who); err != nil {
			return err
		}
	} else {
		out, err := r.host.View(ctx, ir.Msg{
			To:       tok,
			Selector: token.SigBalanceOf.Selector(),
			Args:     ir.Object{"owner": who.Value()},
		})
		if err != nil {
			return fmt.Errorf("balanceOf %s: %w", a.Account, err)
		}
		n, ok := out["balance"].(ir.Int)
		if !ok {
			return fmt.Errorf("balanceOf %s: no balance", a.Account)
		}
		got = int64(n)
	}

	if got != *a.Amount {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s to hold %d of %s", a.Account, *a.Amount, r.refs.labelAddress(tok)),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func (r *runner) assertEventCount(ctx context.Context, a Assertion) error {
	filter := store.EventFilter{Name: a.Event}
	if a.Emitter != "" {
		emitter, err := r.refs.address(a.Emitter)
		if err != nil {
			return err
		}
		filter.Emitter = emitter
	}
	events, err := r.host.Store().Events(ctx, filter)
	if err != nil {
		return err
	}
	if len(events) != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", *a.Count, a.Event),
			Actual:   fmt.Sprintf("%d", len(events)),
		}
	}
	return nil
}

// assertEventOrder checks that the listed names occur in the log in this
// relative order. Other events may sit in between.
func (r *runner) assertEventOrder(ctx context.Context, a Assertion) error {
	events, err := r.host.Store().Events(ctx, store.EventFilter{})
	if err != nil {
		return err
	}
	next := 0
	for _, ev := range events {
		if next < len(a.Events) && ev.Name == a.Events[next] {
			next++
		}
	}
	if next < len(a.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: strings.Join(a.Events, " -> "),
			Actual:   fmt.Sprintf("order broken at %s (matched %d of %d)", a.Events[next], next, len(a.Events)),
		}
	}
	return nil
}

func (r *runner) assertView(ctx context.Context, a Assertion) error {
	to, err := r.refs.address(a.To)
	if err != nil {
		return err
	}
	sel, sig, err := r.refs.selector(a.Call)
	if err != nil {
		return err
	}
	args, err := r.refs.object(a.Args)
	if err != nil {
		return err
	}
	out, err := r.host.View(ctx, ir.Msg{To: to, Selector: sel, Args: args})
	if err != nil {
		return fmt.Errorf("view %s: %w", sig, err)
	}
	if msg := r.matchSubset(a.Result, out); msg != "" {
		return &AssertionError{Type: AssertView, Expected: sig + " to match", Actual: msg}
	}
	return nil
}
