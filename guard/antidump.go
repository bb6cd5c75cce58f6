// Package guard enforces the sell-side anti-dump cooldowns and the
// free-attack quota.
package guard

import (
	"fmt"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
)

// AntiDumpTier is one sell-size band. A sell of at least ThresholdBps of the
// current reserve pays ExtraFeeBps on top of the base sell fee and locks
// further sells of the same country for CooldownSec seconds.
type AntiDumpTier struct {
	ThresholdBps uint64 `json:"thresholdBps" yaml:"threshold_bps" toml:"threshold_bps"`
	ExtraFeeBps  uint64 `json:"extraFeeBps" yaml:"extra_fee_bps" toml:"extra_fee_bps"`
	CooldownSec  uint64 `json:"cooldownSec" yaml:"cooldown_sec" toml:"cooldown_sec"`
}

// AntiDumpTiers is ordered by ascending ThresholdBps.
type AntiDumpTiers []AntiDumpTier

// DefaultAntiDumpTiers returns the production bands: 10%, 15%, 20% and 25% of
// the reserve.
func DefaultAntiDumpTiers() AntiDumpTiers {
	return AntiDumpTiers{
		{ThresholdBps: 1000, ExtraFeeBps: 200, CooldownSec: 60},
		{ThresholdBps: 1500, ExtraFeeBps: 400, CooldownSec: 300},
		{ThresholdBps: 2000, ExtraFeeBps: 600, CooldownSec: 900},
		{ThresholdBps: 2500, ExtraFeeBps: 800, CooldownSec: 3600},
	}
}

// Validate rejects unordered thresholds and surcharges above 100%. An empty
// table disables anti-dump.
func (ts AntiDumpTiers) Validate() error {
	for i, t := range ts {
		if t.ThresholdBps == 0 {
			return fmt.Errorf("%w: anti-dump tier %d has a zero threshold", inter.ErrInvalidRules, i)
		}
		if t.ExtraFeeBps > inter.BpsDenominator {
			return fmt.Errorf("%w: anti-dump tier %d extra fee %d bps above 100%%", inter.ErrInvalidRules, i, t.ExtraFeeBps)
		}
		if i > 0 && t.ThresholdBps <= ts[i-1].ThresholdBps {
			return fmt.Errorf("%w: anti-dump tier %d threshold %d not above %d", inter.ErrInvalidRules, i, t.ThresholdBps, ts[i-1].ThresholdBps)
		}
	}
	return nil
}

// Copy returns an independent copy of the table.
func (ts AntiDumpTiers) Copy() AntiDumpTiers {
	if ts == nil {
		return nil
	}
	cp := make(AntiDumpTiers, len(ts))
	copy(cp, ts)
	return cp
}

// AntiDumpResult is the outcome of the anti-dump check of one sell.
type AntiDumpResult struct {
	// SellPctBps is the sell size relative to the reserve.
	SellPctBps uint64
	// ExtraFeeBps is the surcharge on top of the base sell fee.
	ExtraFeeBps uint64
	// CooldownUntil is the cooldown to record for the (user, country) pair.
	// It keeps the previous value when no tier applied.
	CooldownUntil inter.Timestamp
	// Tier is the index of the applied tier, or -1.
	Tier int
}

// Applied reports whether a tier matched.
func (r AntiDumpResult) Applied() bool {
	return r.Tier >= 0
}

// SellPctBps returns sellAmount relative to reserve in basis points. An empty
// reserve counts as a sell of the whole market.
func SellPctBps(sellAmount, reserve uint64) (uint64, error) {
	if reserve == 0 {
		return inter.BpsDenominator, nil
	}
	return safemath.MulDiv(sellAmount, inter.BpsDenominator, reserve)
}

// CheckAndApplyCooldown validates a sell against the cooldown of its (user,
// country) pair and selects the anti-dump tier it falls into. A sell before
// lastCooldownUntil is rejected as a whole.
func CheckAndApplyCooldown(sellAmount, reserve uint64, tiers AntiDumpTiers, lastCooldownUntil, now inter.Timestamp) (AntiDumpResult, error) {
	if now < lastCooldownUntil {
		return AntiDumpResult{}, fmt.Errorf("%w: %ds left", inter.ErrSellCooldownActive, lastCooldownUntil.Since(now))
	}
	pct, err := SellPctBps(sellAmount, reserve)
	if err != nil {
		return AntiDumpResult{}, err
	}
	res := AntiDumpResult{SellPctBps: pct, CooldownUntil: lastCooldownUntil, Tier: -1}
	for i := len(tiers) - 1; i >= 0; i-- {
		if tiers[i].ThresholdBps <= pct {
			res.Tier = i
			res.ExtraFeeBps = tiers[i].ExtraFeeBps
			res.CooldownUntil = now.Add(tiers[i].CooldownSec)
			break
		}
	}
	return res, nil
}
