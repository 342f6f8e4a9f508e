// Package store provides SQLite-backed durable state for the exproxy host.
//
// The store holds:
//   - Accounts: code kind, immutables, nonce and native balance per address
//   - Slots: persistent keyed storage, one key space per account
//   - Events: the append-only audit log emitted by module code
//   - Receipts: one outcome record per external call, including reverted ones
//
// # Atomicity
//
// The host runs every external call inside one Tx. Success commits all state
// changes and events; any failure rolls back everything. Nested frames use
// SAVEPOINTs so a failed inner call leaves no trace even when its caller
// recovers from the failure.
//
// # Determinism
//
//   - Ordering uses the seq INTEGER (logical clock), never timestamps
//   - Event queries always ORDER BY seq ASC, id ASC COLLATE BINARY
//   - Values are stored as canonical JSON text
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
