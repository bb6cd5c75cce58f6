package inter

import "math/big"

// Fixed-point conventions shared with the FlagWarsCore ABI.
const (
	// Price8Decimals is the precision of prices, slopes and floors (price8).
	Price8Decimals = 8

	// USDC6Decimals is the precision of USDC amounts (fees, costs, proceeds).
	USDC6Decimals = 6

	// Token18Decimals is the precision of country token amounts on the wire.
	Token18Decimals = 18

	// Price8PerUSDC6 converts an 8-decimal accumulation into USDC6 by division.
	Price8PerUSDC6 = 100

	// BpsDenominator is 100% expressed in basis points.
	BpsDenominator = 10000
)

// OneToken18 is one whole country token in TOKEN18 units.
var OneToken18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(Token18Decimals), nil)

// WholeTokensToToken18 expands a whole-token amount into TOKEN18 units.
func WholeTokensToToken18(n uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(n), OneToken18)
}

// Token18ToWholeTokens reduces a TOKEN18 amount to whole tokens. Amounts that
// are negative, fractional or that do not fit into uint64 whole tokens are
// rejected with ErrInvalidAmount.
func Token18ToWholeTokens(v *big.Int) (uint64, error) {
	if v == nil || v.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	q, r := new(big.Int).QuoRem(v, OneToken18, new(big.Int))
	if r.Sign() != 0 || !q.IsUint64() {
		return 0, ErrInvalidAmount
	}
	return q.Uint64(), nil
}
