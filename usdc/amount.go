// Package usdc is the payment collaborator of the engine: an in-process USDC
// ledger with balances and allowances towards the FlagWarsCore contract, plus
// decimal formatting of the fixed-point amounts the engine works with.
package usdc

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// Format renders a USDC6 amount as a decimal string, e.g. 1500000 -> "1.500000".
func Format(amount6 uint64) string {
	return fixed(amount6, inter.USDC6Decimals).StringFixed(inter.USDC6Decimals)
}

// FormatPrice8 renders a price8 value, e.g. 500000000 -> "5.00000000".
func FormatPrice8(price8 uint64) string {
	return fixed(price8, inter.Price8Decimals).StringFixed(inter.Price8Decimals)
}

// Parse reads a decimal USDC amount ("1.5", "0.30") into USDC6. More than six
// fractional digits, negative values and values beyond uint64 are rejected.
func Parse(s string) (uint64, error) {
	return parseFixed(s, inter.USDC6Decimals)
}

// ParsePrice8 reads a decimal price into price8.
func ParsePrice8(s string) (uint64, error) {
	return parseFixed(s, inter.Price8Decimals)
}

func fixed(v uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -decimals)
}

func parseFixed(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", inter.ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", inter.ErrInvalidAmount, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", inter.ErrInvalidAmount, s, decimals)
	}
	v := scaled.BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %q out of range", inter.ErrArithmeticOverflow, s)
	}
	return v.Uint64(), nil
}
