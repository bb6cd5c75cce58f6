// Package attackfee maps an attacker country's price to the flat USDC fee and
// the price delta of one attack.
package attackfee

import (
	"fmt"
	"math"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// Unbounded is the upper bound of the overflow tier.
const Unbounded uint64 = math.MaxUint64

// Tier is one price band of the attack fee schedule.
type Tier struct {
	// UpperBound8 is the inclusive upper price bound of the band.
	UpperBound8 uint64 `json:"upperBound8" yaml:"upper_bound8" toml:"upper_bound8"`
	// Fee6 is the flat USDC fee charged per attack.
	Fee6 uint64 `json:"fee6" yaml:"fee6" toml:"fee6"`
	// Delta8 is the price moved by one attack.
	Delta8 uint64 `json:"delta8" yaml:"delta8" toml:"delta8"`
}

// Tiers is an attack fee schedule ordered by ascending UpperBound8. The last
// tier catches every price above the other bounds.
type Tiers []Tier

// DefaultTiers returns the production schedule:
//
//	price <= 5.00 USDC  -> fee 0.30 USDC, delta 0.0013
//	price <= 10.00 USDC -> fee 0.35 USDC, delta 0.0011
//	above               -> fee 0.40 USDC, delta 0.0009
func DefaultTiers() Tiers {
	return Tiers{
		{UpperBound8: 500000000, Fee6: 300000, Delta8: 130000},
		{UpperBound8: 1000000000, Fee6: 350000, Delta8: 110000},
		{UpperBound8: Unbounded, Fee6: 400000, Delta8: 90000},
	}
}

// Validate rejects empty schedules and bounds that are not strictly ascending.
func (ts Tiers) Validate() error {
	if len(ts) == 0 {
		return fmt.Errorf("%w: empty attack fee schedule", inter.ErrInvalidRules)
	}
	for i := 1; i < len(ts); i++ {
		if ts[i].UpperBound8 <= ts[i-1].UpperBound8 {
			return fmt.Errorf("%w: attack tier %d bound %d not above tier %d bound %d",
				inter.ErrInvalidRules, i, ts[i].UpperBound8, i-1, ts[i-1].UpperBound8)
		}
	}
	return nil
}

// Resolve returns the tier for price8 and its index: the first tier whose
// UpperBound8 is >= price8, or the last tier when the price is above every
// bound. A price exactly on a bound belongs to the lower tier.
//
// Resolve must be called on every quote; the result depends on the current
// price and is never cached. ts must be non-empty.
func Resolve(price8 uint64, ts Tiers) (Tier, int) {
	for i, t := range ts {
		if price8 <= t.UpperBound8 {
			return t, i
		}
	}
	last := len(ts) - 1
	return ts[last], last
}

// Copy returns an independent copy of the schedule.
func (ts Tiers) Copy() Tiers {
	if ts == nil {
		return nil
	}
	cp := make(Tiers, len(ts))
	copy(cp, ts)
	return cp
}
