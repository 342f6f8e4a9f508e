package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
	"github.com/roach88/exproxy/internal/store"
)

// Host executes external calls against persisted accounts.
//
// Every external call runs in one store transaction. Each frame opens a
// savepoint, so a failing frame rolls back its own writes and events while
// the caller decides how to continue. A call that fails at the top leaves only
// its receipt behind.
//
// Thread-safety model:
//   - Call/Deploy/View/Fund: safe from any goroutine, executed one at a time
//   - Frames: confined to the goroutine of their external call
type Host struct {
	mu     sync.Mutex
	store  *store.Store
	book   *Codebook
	clock  *Clock
	txids  TxIDGenerator
	logger *slog.Logger

	maxDepth int
	maxCalls int
	strict   bool
}

// Option configures a Host.
type Option func(*Host)

// WithMaxDepth sets the call nesting limit.
//
// Default: 64 (DefaultMaxDepth)
func WithMaxDepth(depth int) Option {
	return func(h *Host) {
		h.maxDepth = depth
	}
}

// WithMaxCallsPerTx sets the frame quota of one external call.
//
// Default: 4096 (DefaultMaxCallsPerTx)
// Use WithMaxCallsPerTx(3) for testing quota enforcement.
func WithMaxCallsPerTx(n int) Option {
	return func(h *Host) {
		h.maxCalls = n
	}
}

// WithStrictStorage toggles the namespace write assertion (default on).
func WithStrictStorage(strict bool) Option {
	return func(h *Host) {
		h.strict = strict
	}
}

// WithTxIDGenerator replaces the UUIDv7 transaction id generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(h *Host) {
		h.txids = g
	}
}

// WithLogger sets the structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithClock replaces the clock restored from the store.
func WithClock(c *Clock) Option {
	return func(h *Host) {
		h.clock = c
	}
}

// New creates a Host over st. The logical clock resumes after the highest
// sequence number recorded in st.
func New(ctx context.Context, st *store.Store, book *Codebook, opts ...Option) (*Host, error) {
	if st == nil {
		return nil, fmt.Errorf("new host: nil store")
	}
	if book == nil {
		return nil, fmt.Errorf("new host: nil codebook")
	}
	h := &Host{
		store:    st,
		book:     book,
		txids:    UUIDv7Generator{},
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
		maxCalls: DefaultMaxCallsPerTx,
		strict:   true,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.clock == nil {
		last, err := st.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("new host: %w", err)
		}
		h.clock = NewClockAt(last)
	}
	return h, nil
}

// Store returns the underlying store, for audit queries.
func (h *Host) Store() *store.Store { return h.store }

// Codebook returns the registered code kinds.
func (h *Host) Codebook() *Codebook { return h.book }

// Clock returns the logical clock.
func (h *Host) Clock() *Clock { return h.clock }

// Call executes one external call and returns its receipt.
//
// Reverts are not errors: a reverted call returns a receipt with
// StatusReverted and the revert code. The error result is reserved for
// failures of the substrate (store, cancelled context), after which nothing of
// the call persists.
func (h *Host) Call(ctx context.Context, msg ir.Msg) (*ir.Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	receipt, err := h.execute(ctx, msg.From, msg.To, msg.Selector, func(r *run) (ir.Object, error) {
		return r.call(msg.From, msg.To, msg.Value, msg.Selector, msg.Args, 0)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Deploy creates an account running kind on behalf of from.
func (h *Host) Deploy(ctx context.Context, from ir.Address, kind string, immutables, args ir.Object) (ir.Address, *ir.Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var addr ir.Address
	receipt, err := h.execute(ctx, from, ir.ZeroAddress, ir.Selector{}, func(r *run) (ir.Object, error) {
		a, err := r.deploy(from, kind, immutables, args, 0)
		if err != nil {
			return nil, err
		}
		addr = a
		r.created = a
		return ir.Object{"address": a.Value()}, nil
	})
	if err != nil {
		return ir.ZeroAddress, nil, err
	}
	if receipt.Status != ir.StatusSuccess {
		return ir.ZeroAddress, receipt, nil
	}
	return addr, receipt, nil
}

// View executes a read-only call. Nothing persists; state changes, value
// transfers and events fail the call.
func (h *Host) View(ctx context.Context, msg ir.Msg) (ir.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r := &run{
		ctx:    ctx,
		host:   h,
		tx:     tx,
		txID:   "view",
		origin: msg.From,
		quota:  NewQuotaEnforcer(h.maxCalls),
		static: true,
	}
	if msg.Value != 0 {
		return nil, revert.New(revert.CodeNotAuthorized, "value transfer in read-only call")
	}
	return r.call(msg.From, msg.To, 0, msg.Selector, msg.Args, 0)
}

// Fund credits native value to addr outside of any call. Used for genesis
// balances and test setup.
func (h *Host) Fund(ctx context.Context, addr ir.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("fund %s: negative amount %d", addr, amount)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	acct, _, err := tx.GetAccount(ctx, addr)
	if err != nil {
		return err
	}
	bal, ok := ir.AddAmount(acct.Balance, amount)
	if !ok {
		return revert.New(revert.CodeArithmeticOverflow,
			"fund %s: balance %d + %d overflows", addr, acct.Balance, amount)
	}
	acct.Balance = bal
	if err := tx.PutAccount(ctx, acct); err != nil {
		return err
	}
	return tx.Commit()
}

// Account returns the persisted account at addr.
func (h *Host) Account(ctx context.Context, addr ir.Address) (store.Account, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.store.Begin(ctx)
	if err != nil {
		return store.Account{}, false, err
	}
	defer tx.Rollback()
	return tx.GetAccount(ctx, addr)
}

// Balance returns the native balance of addr.
func (h *Host) Balance(ctx context.Context, addr ir.Address) (int64, error) {
	acct, _, err := h.Account(ctx, addr)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Code returns the code running at addr, if any.
func (h *Host) Code(ctx context.Context, addr ir.Address) (Code, bool, error) {
	acct, _, err := h.Account(ctx, addr)
	if err != nil {
		return nil, false, err
	}
	if !acct.HasCode() {
		return nil, false, nil
	}
	c, ok := h.book.Lookup(acct.Kind)
	return c, ok, nil
}

// execute runs body as one transaction and records its receipt.
// Callers hold h.mu.
func (h *Host) execute(ctx context.Context, from, to ir.Address, sel ir.Selector, body func(*run) (ir.Object, error)) (*ir.Receipt, error) {
	tx, err := h.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r := &run{
		ctx:    ctx,
		host:   h,
		tx:     tx,
		txID:   h.txids.Generate(),
		origin: from,
		quota:  NewQuotaEnforcer(h.maxCalls),
	}

	result, callErr := body(r)
	var f *fault
	if errors.As(callErr, &f) {
		h.logger.Error("call aborted",
			"tx", r.txID,
			"to", to.Hex(),
			"selector", sel.Hex(),
			"error", callErr)
		return nil, fmt.Errorf("call %s: %w", r.txID, f.err)
	}

	receipt := &ir.Receipt{
		TxID:     r.txID,
		Seq:      h.clock.Next(),
		From:     from,
		To:       to,
		Selector: sel,
		Status:   ir.StatusSuccess,
		Result:   result,
		Events:   r.events,
	}
	if callErr != nil {
		rev := revert.Normalize(callErr)
		receipt.Status = ir.StatusReverted
		receipt.ErrorCode = string(rev.Code)
		receipt.ErrorMessage = rev.Error()
		receipt.Result = ir.Object{}
		receipt.Events = nil
	}
	if receipt.Result == nil {
		receipt.Result = ir.Object{}
	}
	if callErr == nil && !r.created.IsZero() {
		receipt.To = r.created
	}

	if err := tx.WriteReceipt(ctx, *receipt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if callErr != nil {
		h.logger.Info("call reverted",
			"tx", receipt.TxID,
			"to", receipt.To.Hex(),
			"selector", sel.Hex(),
			"code", receipt.ErrorCode,
			"error", receipt.ErrorMessage)
	} else {
		h.logger.Debug("call succeeded",
			"tx", receipt.TxID,
			"to", receipt.To.Hex(),
			"selector", sel.Hex(),
			"events", len(receipt.Events))
	}
	return receipt, nil
}
