package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/queryir"
	"github.com/roach88/exproxy/internal/querysql"
)

// EventFilter narrows an event listing. Zero fields match everything;
// Where adds arbitrary predicates, payload fields included.
type EventFilter struct {
	TxID    string
	Name    string
	Emitter ir.Address
	Where   []queryir.Predicate
	Limit   int
}

func (f EventFilter) query() queryir.Select {
	preds := append([]queryir.Predicate(nil), f.Where...)
	if f.TxID != "" {
		preds = append(preds, queryir.Equals{Field: "tx_id", Value: ir.String(f.TxID)})
	}
	if f.Name != "" {
		preds = append(preds, queryir.Equals{Field: "name", Value: ir.String(f.Name)})
	}
	if !f.Emitter.IsZero() {
		preds = append(preds, queryir.Equals{Field: "emitter", Value: f.Emitter.Value()})
	}
	q := queryir.Select{From: queryir.Events, Limit: f.Limit}
	if len(preds) > 0 {
		q.Filter = queryir.And{Predicates: preds}
	}
	return q
}

// Events returns audit events in log order (ORDER BY seq ASC, id ASC).
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]ir.Event, error) {
	query, args, err := querysql.NewSQLCompiler().Compile(f.query())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var ev ir.Event
		var emitter, fields string
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.TxID, &emitter, &ev.Name, &fields); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Emitter, err = ir.ParseAddress(emitter); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Fields, err = unmarshalObject(fields); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Receipt loads the receipt of txID (without events).
func (s *Store) Receipt(ctx context.Context, txID string) (ir.Receipt, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tx_id, seq, from_address, to_address, selector, status, error_code, error_message, result
		FROM receipts WHERE tx_id = ?
	`, txID)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Receipt{}, false, nil
	}
	if err != nil {
		return ir.Receipt{}, false, err
	}
	return r, true, nil
}

// Receipts returns the receipts matching every predicate in seq order.
func (s *Store) Receipts(ctx context.Context, where ...queryir.Predicate) ([]ir.Receipt, error) {
	q := queryir.Select{From: queryir.Receipts}
	if len(where) > 0 {
		q.Filter = queryir.And{Predicates: where}
	}
	query, args, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	receipts := []ir.Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (ir.Receipt, error) {
	var r ir.Receipt
	var from, to, sel, status, result string
	err := row.Scan(&r.TxID, &r.Seq, &from, &to, &sel, &status, &r.ErrorCode, &r.ErrorMessage, &result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan receipt: %w", err)
	}
	r.Status = ir.Status(status)
	if r.From, err = ir.ParseAddress(from); err != nil {
		return r, fmt.Errorf("scan receipt: %w", err)
	}
	if r.To, err = ir.ParseAddress(to); err != nil {
		return r, fmt.Errorf("scan receipt: %w", err)
	}
	if r.Selector, err = ir.ParseSelector(sel); err != nil {
		return r, fmt.Errorf("scan receipt: %w", err)
	}
	if r.Result, err = unmarshalObject(result); err != nil {
		return r, fmt.Errorf("scan receipt: %w", err)
	}
	return r, nil
}

// LastSeq returns the highest logical clock value recorded by events or
// receipts, so a reopened host resumes its clock after it.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(COALESCE((SELECT MAX(seq) FROM events), 0),
		           COALESCE((SELECT MAX(seq) FROM receipts), 0))
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// SlotEntry is one stored slot of an account.
type SlotEntry struct {
	Slot  ir.Slot
	Value ir.Value
}

// Slots lists the storage of an account ordered by slot.
func (s *Store) Slots(ctx context.Context, addr ir.Address) ([]SlotEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, value FROM slots WHERE address = ? ORDER BY slot COLLATE BINARY ASC
	`, addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	entries := []SlotEntry{}
	for rows.Next() {
		var slot, raw string
		if err := rows.Scan(&slot, &raw); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		var e SlotEntry
		if e.Slot, err = ir.ParseSlot(slot); err != nil {
			return nil, err
		}
		if e.Value, err = unmarshalValue(raw); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return entries, nil
}

// Accounts lists all known accounts ordered by address.
func (s *Store) Accounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, code_kind, immutables, nonce, balance, destroyed
		FROM accounts ORDER BY address COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		var a Account
		var addr, immutables string
		var nonce int64
		var destroyed int
		if err := rows.Scan(&addr, &a.Kind, &immutables, &nonce, &a.Balance, &destroyed); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.Address, err = ir.ParseAddress(addr); err != nil {
			return nil, err
		}
		if a.Immutables, err = unmarshalObject(immutables); err != nil {
			return nil, err
		}
		a.Nonce = uint64(nonce)
		a.Destroyed = destroyed != 0
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}
