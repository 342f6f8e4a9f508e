// Package ir provides the canonical value and identity types shared by every
// exproxy package.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - amounts and counters are int64
//   - Addresses are 20 bytes, selectors 4 bytes, storage slots 32 bytes
//   - Selectors are Keccak-256 based so they match the EVM function selectors
//     that external binding tools compute from the same signatures
//   - Every content-addressed identity is SHA-256 with domain separation
//   - All JSON tags use snake_case
package ir
