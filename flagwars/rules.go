// Package flagwars defines the economic rules of a FlagWars deployment.
//
// This package provides:
//   - Deployment identification (MainChainID, TestChainID, FakeChainID)
//   - Trade fee rates
//   - The attack fee tier schedule
//   - War-balance windows
//   - Anti-dump tiers
//   - Free-attack and batch limits
//
// The Rules type is the single configuration structure the engine is built
// from. Rules are loaded once and never change while an engine runs.
package flagwars

import (
	"encoding/json"
	"fmt"

	"github.com/archslayer/flagbase111-sub000/attackfee"
	"github.com/archslayer/flagbase111-sub000/guard"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// Chain identification constants
const (
	// MainChainID is the chain the production contract is deployed on (Base, 8453).
	MainChainID uint64 = 8453

	// TestChainID is the public test deployment (Base Sepolia, 84532).
	TestChainID uint64 = 84532

	// FakeChainID is used by local simulations and tests.
	FakeChainID uint64 = 1337

	// DefaultBatchMaxItems is the largest accepted attackBatch.
	DefaultBatchMaxItems = 5
)

// Rules describes every tunable parameter of the economic engine.
type Rules struct {
	// Name identifies the rule set ("main", "test", "fake" or a file name).
	Name string `json:"name" yaml:"name" toml:"name"`

	// ChainID is mixed into transaction hashes so receipts of different
	// deployments never collide.
	ChainID uint64 `json:"chainId" yaml:"chain_id" toml:"chain_id"`

	// Fees are the base trade fees.
	Fees FeeRules `json:"fees" yaml:"fees" toml:"fees"`

	// AttackTiers map the attacker country's price to fee and delta.
	AttackTiers attackfee.Tiers `json:"attackTiers" yaml:"attack_tiers" toml:"attack_tiers"`

	// WarBalance configures the attack-velocity dampener.
	WarBalance warbalance.Config `json:"warBalance" yaml:"war_balance" toml:"war_balance"`

	// AntiDump lists the sell-size tiers.
	AntiDump guard.AntiDumpTiers `json:"antiDump" yaml:"anti_dump" toml:"anti_dump"`

	// FreeAttack limits the free-attack quota.
	FreeAttack FreeAttackRules `json:"freeAttack" yaml:"free_attack" toml:"free_attack"`

	// Batch limits attackBatch.
	Batch BatchRules `json:"batch" yaml:"batch" toml:"batch"`
}

// FeeRules are the base fee rates of buys and sells in basis points.
// The buy fee is paid on top of the curve cost; the sell fee is withheld from
// the proceeds.
type FeeRules struct {
	BuyFeeBps  uint64 `json:"buyFeeBps" yaml:"buy_fee_bps" toml:"buy_fee_bps"`
	SellFeeBps uint64 `json:"sellFeeBps" yaml:"sell_fee_bps" toml:"sell_fee_bps"`
}

// FreeAttackRules caps the free attacks a user can ever be awarded.
type FreeAttackRules struct {
	Limit uint64 `json:"limit" yaml:"limit" toml:"limit"`
}

// BatchRules caps the number of items of one attackBatch.
type BatchRules struct {
	MaxItems uint64 `json:"maxItems" yaml:"max_items" toml:"max_items"`
}

// MainRules returns the production rules.
func MainRules() Rules {
	return Rules{
		Name:        "main",
		ChainID:     MainChainID,
		Fees:        DefaultFeeRules(),
		AttackTiers: attackfee.DefaultTiers(),
		WarBalance:  warbalance.DefaultConfig(),
		AntiDump:    guard.DefaultAntiDumpTiers(),
		FreeAttack:  FreeAttackRules{Limit: guard.DefaultFreeAttackLimit},
		Batch:       BatchRules{MaxItems: DefaultBatchMaxItems},
	}
}

// TestRules returns the public test deployment rules. They match production.
func TestRules() Rules {
	r := MainRules()
	r.Name = "test"
	r.ChainID = TestChainID
	return r
}

// FakeRules returns rules for local simulations: the same prices and fees,
// but war-balance windows and cooldowns short enough to play through in
// minutes.
func FakeRules() Rules {
	r := MainRules()
	r.Name = "fake"
	r.ChainID = FakeChainID
	r.WarBalance = FakeWarBalanceConfig()
	r.AntiDump = FakeAntiDumpTiers()
	return r
}

// DefaultFeeRules returns the production fee rates: free buys, 5% sell fee.
func DefaultFeeRules() FeeRules {
	return FeeRules{
		BuyFeeBps:  0,
		SellFeeBps: 500,
	}
}

// FakeWarBalanceConfig returns the production thresholds over windows a
// tenth as long.
func FakeWarBalanceConfig() warbalance.Config {
	cfg := warbalance.DefaultConfig()
	cfg.WB1.WindowSec /= 10
	cfg.WB2.WindowSec /= 10
	return cfg
}

// FakeAntiDumpTiers returns the production anti-dump tiers with cooldowns a
// tenth as long.
func FakeAntiDumpTiers() guard.AntiDumpTiers {
	tiers := guard.DefaultAntiDumpTiers()
	for i := range tiers {
		tiers[i].CooldownSec /= 10
	}
	return tiers
}

// RulesByName returns the named preset.
func RulesByName(name string) (Rules, error) {
	switch name {
	case "main":
		return MainRules(), nil
	case "test":
		return TestRules(), nil
	case "fake":
		return FakeRules(), nil
	default:
		return Rules{}, fmt.Errorf("%w: unknown rules preset %q", inter.ErrInvalidRules, name)
	}
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	if r.Fees.BuyFeeBps > inter.BpsDenominator {
		return fmt.Errorf("%w: buy fee %d bps above 100%%", inter.ErrInvalidRules, r.Fees.BuyFeeBps)
	}
	if err := r.AttackTiers.Validate(); err != nil {
		return err
	}
	if err := r.WarBalance.Validate(); err != nil {
		return err
	}
	if err := r.AntiDump.Validate(); err != nil {
		return err
	}
	// the base sell fee plus any tier's surcharge must not exceed the proceeds
	if r.Fees.SellFeeBps > inter.BpsDenominator {
		return fmt.Errorf("%w: sell fee %d bps above 100%%", inter.ErrInvalidRules, r.Fees.SellFeeBps)
	}
	for i, t := range r.AntiDump {
		if t.ExtraFeeBps > inter.BpsDenominator-r.Fees.SellFeeBps {
			return fmt.Errorf("%w: sell fee %d bps plus anti-dump tier %d surcharge %d bps above 100%%",
				inter.ErrInvalidRules, r.Fees.SellFeeBps, i, t.ExtraFeeBps)
		}
	}
	if r.Batch.MaxItems == 0 {
		return fmt.Errorf("%w: batch limit must be positive", inter.ErrInvalidRules)
	}
	return nil
}

// Copy returns a deep copy of the rules. The tier tables are slices and would
// otherwise be shared.
func (r Rules) Copy() Rules {
	cp := r
	cp.AttackTiers = r.AttackTiers.Copy()
	cp.AntiDump = r.AntiDump.Copy()
	return cp
}

// String returns the JSON representation of the rules.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
