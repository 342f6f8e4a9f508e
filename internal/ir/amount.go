package ir

import (
	"math"
	"math/bits"
)

// AddAmount returns a+b and whether the sum fits in int64.
func AddAmount(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// MulDiv returns amount*num/den rounded down, computed with a 128-bit
// intermediate. It reports false when any operand is negative, den is zero
// or the quotient does not fit in int64.
func MulDiv(amount, num, den int64) (int64, bool) {
	if amount < 0 || num < 0 || den <= 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(amount), uint64(num))
	if hi >= uint64(den) {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	if q > math.MaxInt64 {
		return 0, false
	}
	return int64(q), true
}
