package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/exproxy/internal/ir"
)

// Account is the persisted state of one address apart from its slots.
type Account struct {
	Address    ir.Address
	Kind       string    // Code kind; "" for accounts without code
	Immutables ir.Object // Constructor-time constants readable by the code
	Nonce      uint64
	Balance    int64 // Native value
	Destroyed  bool
}

// HasCode reports whether the account carries live code.
func (a Account) HasCode() bool { return a.Kind != "" && !a.Destroyed }

// Tx is the unit of atomicity for one external call.
type Tx struct {
	tx *sql.Tx
}

// Commit makes every change of the call durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards every change of the call. Safe after Commit (no-op).
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Savepoint opens a nested rollback point for one call frame.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	return nil
}

// RollbackTo undoes everything since the savepoint and releases it.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return fmt.Errorf("rollback to %s: %w", name, err)
	}
	return t.Release(ctx, name)
}

// Release folds the savepoint's changes into the enclosing scope.
func (t *Tx) Release(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// GetAccount loads an account. Unknown addresses return an empty account
// with ok=false.
func (t *Tx) GetAccount(ctx context.Context, addr ir.Address) (acct Account, ok bool, err error) {
	var immutables string
	var destroyed int
	var nonce int64
	err = t.tx.QueryRowContext(ctx, `
		SELECT code_kind, immutables, nonce, balance, destroyed
		FROM accounts WHERE address = ?
	`, addr.Hex()).Scan(&acct.Kind, &immutables, &nonce, &acct.Balance, &destroyed)
	acct.Address = addr
	if errors.Is(err, sql.ErrNoRows) {
		acct.Immutables = ir.Object{}
		return acct, false, nil
	}
	if err != nil {
		return acct, false, fmt.Errorf("get account %s: %w", addr, err)
	}
	acct.Nonce = uint64(nonce)
	acct.Destroyed = destroyed != 0
	acct.Immutables, err = unmarshalObject(immutables)
	if err != nil {
		return acct, false, fmt.Errorf("get account %s: %w", addr, err)
	}
	return acct, true, nil
}

// PutAccount inserts or replaces an account row.
func (t *Tx) PutAccount(ctx context.Context, acct Account) error {
	immutables, err := marshalObject(acct.Immutables)
	if err != nil {
		return fmt.Errorf("put account %s: %w", acct.Address, err)
	}
	destroyed := 0
	if acct.Destroyed {
		destroyed = 1
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, code_kind, immutables, nonce, balance, destroyed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			code_kind = excluded.code_kind,
			immutables = excluded.immutables,
			nonce = excluded.nonce,
			balance = excluded.balance,
			destroyed = excluded.destroyed
	`, acct.Address.Hex(), acct.Kind, immutables, int64(acct.Nonce), acct.Balance, destroyed)
	if err != nil {
		return fmt.Errorf("put account %s: %w", acct.Address, err)
	}
	return nil
}

// GetSlot reads one storage slot. Missing slots read as ir.Null{}.
func (t *Tx) GetSlot(ctx context.Context, addr ir.Address, slot ir.Slot) (ir.Value, error) {
	var raw string
	err := t.tx.QueryRowContext(ctx, `
		SELECT value FROM slots WHERE address = ? AND slot = ?
	`, addr.Hex(), slot.Hex()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Null{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s/%s: %w", addr, slot, err)
	}
	return unmarshalValue(raw)
}

// SetSlot writes one storage slot. Zero values delete the slot, so absent and
// zero are indistinguishable, as on the EVM.
func (t *Tx) SetSlot(ctx context.Context, addr ir.Address, slot ir.Slot, v ir.Value) error {
	if ir.IsZero(v) {
		_, err := t.tx.ExecContext(ctx, `
			DELETE FROM slots WHERE address = ? AND slot = ?
		`, addr.Hex(), slot.Hex())
		if err != nil {
			return fmt.Errorf("clear slot %s/%s: %w", addr, slot, err)
		}
		return nil
	}
	raw, err := marshalValue(v)
	if err != nil {
		return fmt.Errorf("set slot %s/%s: %w", addr, slot, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO slots (address, slot, value) VALUES (?, ?, ?)
		ON CONFLICT(address, slot) DO UPDATE SET value = excluded.value
	`, addr.Hex(), slot.Hex(), raw)
	if err != nil {
		return fmt.Errorf("set slot %s/%s: %w", addr, slot, err)
	}
	return nil
}

// ClearSlots deletes all storage of an account (self-destruct).
func (t *Tx) ClearSlots(ctx context.Context, addr ir.Address) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM slots WHERE address = ?`, addr.Hex()); err != nil {
		return fmt.Errorf("clear slots %s: %w", addr, err)
	}
	return nil
}

// AppendEvent adds an event to the audit log.
// Events are never updated; a rolled-back call takes its events with it.
func (t *Tx) AppendEvent(ctx context.Context, ev ir.Event) error {
	fields, err := marshalObject(ev.Fields)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.Name, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO events (seq, id, tx_id, emitter, name, fields)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Seq, ev.ID, ev.TxID, ev.Emitter.Hex(), ev.Name, fields)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.Name, err)
	}
	return nil
}

// WriteReceipt records the outcome of an external call.
// Written inside the call transaction so state, events and receipt commit
// together. Uses ON CONFLICT DO NOTHING: a tx id has exactly one receipt.
func (t *Tx) WriteReceipt(ctx context.Context, r ir.Receipt) error {
	result, err := marshalObject(r.Result)
	if err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO receipts
		(tx_id, seq, from_address, to_address, selector, status, error_code, error_message, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id) DO NOTHING
	`,
		r.TxID,
		r.Seq,
		r.From.Hex(),
		r.To.Hex(),
		r.Selector.Hex(),
		string(r.Status),
		r.ErrorCode,
		r.ErrorMessage,
		result,
	)
	if err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}
