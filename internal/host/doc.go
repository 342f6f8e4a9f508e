// Package host implements the deterministic execution substrate that the
// dispatcher, its feature modules and the custody contracts run on.
//
// The host provides exactly three things to module code:
//
//  1. Atomic external calls. Host.Call runs one call inside one store
//     transaction; it commits all state changes and events on success and
//     nothing on failure. Every nested frame opens a SAVEPOINT, so a failed
//     inner call is rolled back even when its caller recovers.
//  2. Persistent keyed storage addressed by identity. A Frame's Load and
//     Store act on the account whose storage context the frame runs in.
//  3. Delegated execution. Frame.DelegateCall runs another account's code
//     against the current storage context, preserving caller and value.
//
// ARCHITECTURE:
//
// Serial execution:
// External calls are serialized (Host holds a mutex; the Sequencer runs a
// single-writer loop). There is no preemption inside a call.
//
// Code:
// Code is Go: each account records a code kind that resolves through the
// Codebook to a Code implementation. Code is stateless; everything it keeps
// lives in slots or in the account's immutables.
//
// Limits:
// Call depth and frames per external call are bounded, which guarantees
// termination of reentrant call chains.
//
// Failures:
// Module failures are *revert.Error values. Panics and non-revert errors
// surface as revert.CodeInternal; a failed call never reports success.
package host
