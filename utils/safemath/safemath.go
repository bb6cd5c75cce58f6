// Package safemath provides the overflow-checked uint64 arithmetic the engine
// uses for every price, fee and quantity computation. The contract reverts on
// overflow (Solidity >=0.8 checked math); these helpers fail closed the same
// way by returning inter.ErrArithmeticOverflow instead of wrapping.
package safemath

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// Add returns a+b.
func Add(a, b uint64) (uint64, error) {
	v, overflow := math.SafeAdd(a, b)
	if overflow {
		return 0, fmt.Errorf("%w: %d + %d", inter.ErrArithmeticOverflow, a, b)
	}
	return v, nil
}

// Sub returns a-b. Underflow is reported as overflow.
func Sub(a, b uint64) (uint64, error) {
	v, overflow := math.SafeSub(a, b)
	if overflow {
		return 0, fmt.Errorf("%w: %d - %d", inter.ErrArithmeticOverflow, a, b)
	}
	return v, nil
}

// Mul returns a*b.
func Mul(a, b uint64) (uint64, error) {
	v, overflow := math.SafeMul(a, b)
	if overflow {
		return 0, fmt.Errorf("%w: %d * %d", inter.ErrArithmeticOverflow, a, b)
	}
	return v, nil
}

// MulDiv returns a*b/c with a 128-bit intermediate, truncating like Solidity
// integer division. The quotient must fit into uint64.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, fmt.Errorf("%w: division by zero", inter.ErrArithmeticOverflow)
	}
	if v, overflow := math.SafeMul(a, b); !overflow {
		return v / c, nil
	}
	q := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	q.Quo(q, new(big.Int).SetUint64(c))
	if !q.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d / %d", inter.ErrArithmeticOverflow, a, b, c)
	}
	return q.Uint64(), nil
}

// Bps applies a basis-point rate: v * bps / 10000.
func Bps(v, bps uint64) (uint64, error) {
	return MulDiv(v, bps, inter.BpsDenominator)
}
