package host

import (
	"fmt"

	"github.com/roach88/exproxy/internal/revert"
)

// DefaultMaxCallsPerTx bounds the frames one external call may open.
const DefaultMaxCallsPerTx = 4096

// DefaultMaxDepth bounds call nesting.
const DefaultMaxDepth = 64

// QuotaEnforcer counts the frames opened by one external call.
//
// CRITICAL DISTINCTION from the depth limit:
//   - Depth limit: catches deep recursion (A -> B -> A -> ...)
//   - Frame quota: catches wide fan-out (A -> B, A -> C, ... A -> Z)
//
// Together they guarantee that every external call terminates.
type QuotaEnforcer struct {
	maxCalls int
	current  int
}

// NewQuotaEnforcer creates an enforcer with the given limit.
func NewQuotaEnforcer(maxCalls int) *QuotaEnforcer {
	return &QuotaEnforcer{maxCalls: maxCalls}
}

// Check counts one more frame and fails once the limit is passed.
func (q *QuotaEnforcer) Check(txID string) error {
	q.current++
	if q.current > q.maxCalls {
		return revert.New(revert.CodeQuotaExceeded,
			"call opened more than %d frames", q.maxCalls).
			With("tx", txID).
			With("frames", fmt.Sprintf("%d", q.current))
	}
	return nil
}

// Current returns the frames counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxCalls returns the limit.
func (q *QuotaEnforcer) MaxCalls() int {
	return q.maxCalls
}
