// Package pricing implements the FlagWars bonding curve.
//
// Each whole token moves the marginal price linearly: buying the k-th token
// (0-indexed) of an order costs price8 + kappa8*k, selling it returns
// price8 - lambda8*k. Summing k = 0..n-1 gives the closed forms
//
//	buy:  n*price8 + kappa8*n*(n-1)/2
//	sell: n*price8 - lambda8*n*(n-1)/2   (clamped at zero)
//
// The 8-decimal total is converted to USDC6 by integer division by 100, then
// the fee is applied in basis points: added on buys, subtracted on sells.
//
// All arithmetic is exact uint64 fixed point and fails closed on overflow,
// matching the contract bit for bit.
package pricing

import (
	"fmt"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
)

// Quote is the USDC6 cost (buy) or proceeds (sell) of an order.
type Quote struct {
	// Gross6 is the curve amount before fees.
	Gross6 uint64 `json:"gross6"`
	// Fee6 is the fee in USDC6.
	Fee6 uint64 `json:"fee6"`
	// Net6 is what the buyer pays (Gross6+Fee6) or the seller receives
	// (Gross6-Fee6).
	Net6 uint64 `json:"net6"`
}

// QuoteBuy returns the cost of buying n whole tokens at price8 with up-slope
// kappa8 and an additive buy fee.
func QuoteBuy(price8, kappa8, n, buyFeeBps uint64) (Quote, error) {
	if n == 0 {
		return Quote{}, inter.ErrInvalidAmount
	}
	linear, quadratic, err := terms(price8, kappa8, n)
	if err != nil {
		return Quote{}, err
	}
	total8, err := safemath.Add(linear, quadratic)
	if err != nil {
		return Quote{}, err
	}
	gross6 := total8 / inter.Price8PerUSDC6
	fee6, err := safemath.Bps(gross6, buyFeeBps)
	if err != nil {
		return Quote{}, err
	}
	net6, err := safemath.Add(gross6, fee6)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Gross6: gross6, Fee6: fee6, Net6: net6}, nil
}

// QuoteSell returns the proceeds of selling n whole tokens at price8 with
// down-slope lambda8 and a subtractive sell fee. sellFeeBps is the total rate,
// base fee plus any anti-dump surcharge.
func QuoteSell(price8, lambda8, n, sellFeeBps uint64) (Quote, error) {
	if n == 0 {
		return Quote{}, inter.ErrInvalidAmount
	}
	if sellFeeBps > inter.BpsDenominator {
		return Quote{}, fmt.Errorf("%w: sell fee %d bps above 100%%", inter.ErrInvalidRules, sellFeeBps)
	}
	linear, quadratic, err := terms(price8, lambda8, n)
	if err != nil {
		return Quote{}, err
	}
	var total8 uint64
	if linear > quadratic {
		total8 = linear - quadratic
	}
	gross6 := total8 / inter.Price8PerUSDC6
	fee6, err := safemath.Bps(gross6, sellFeeBps)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Gross6: gross6, Fee6: fee6, Net6: gross6 - fee6}, nil
}

// terms returns n*price8 and slope8*n*(n-1)/2. n*(n-1) is always even, so
// halving before multiplying by the slope is exact.
func terms(price8, slope8, n uint64) (linear, quadratic uint64, err error) {
	linear, err = safemath.Mul(n, price8)
	if err != nil {
		return 0, 0, err
	}
	pairs, err := safemath.Mul(n, n-1)
	if err != nil {
		return 0, 0, err
	}
	quadratic, err = safemath.Mul(slope8, pairs/2)
	if err != nil {
		return 0, 0, err
	}
	return linear, quadratic, nil
}

// PriceAfterBuy returns the marginal price after n tokens were bought:
// price8 + kappa8*n.
func PriceAfterBuy(price8, kappa8, n uint64) (uint64, error) {
	step, err := safemath.Mul(kappa8, n)
	if err != nil {
		return 0, err
	}
	return safemath.Add(price8, step)
}

// PriceAfterSell returns the marginal price after n tokens were sold:
// price8 - lambda8*n. A result at or below priceMin8 is a floor breach and the
// whole sell must be rejected; the price is never clamped.
func PriceAfterSell(price8, lambda8, n, priceMin8 uint64) (uint64, error) {
	step, err := safemath.Mul(lambda8, n)
	if err != nil {
		return 0, err
	}
	return Lower(price8, step, priceMin8)
}

// Lower decreases price8 by delta8 and enforces the floor. It is shared by
// sells and by attacks against a target country.
func Lower(price8, delta8, priceMin8 uint64) (uint64, error) {
	if delta8 >= price8 || price8-delta8 <= priceMin8 {
		return 0, fmt.Errorf("%w: price8 %d - %d would not stay above floor %d", inter.ErrFloorPriceBreach, price8, delta8, priceMin8)
	}
	return price8 - delta8, nil
}

// Raise increases price8 by delta8.
func Raise(price8, delta8 uint64) (uint64, error) {
	return safemath.Add(price8, delta8)
}
