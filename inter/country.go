// Package inter defines the data structures shared by every layer of the
// FlagWars engine: the per-country market record, user quotas, the events a
// successful transaction emits and the receipt that wraps them.
//
// All economic quantities are unsigned fixed-point integers:
//   - price8:  8 decimals (Price8 / 1e8 = USD per token)
//   - USDC6:   6 decimals (fees, costs, proceeds)
//   - TOKEN18: 18 decimals, used only at the ABI boundary
//
// Inside the engine token quantities are whole tokens; fractional purchases
// are not supported by the contract.
package inter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Country is the on-chain market record of one tradeable flag.
//
// The contract exposes it as a positional tuple (getCountryInfo); this struct
// is the named form used everywhere above the ABI codec.
type Country struct {
	// ID is the externally assigned, stable identifier of the country.
	ID uint64 `json:"id" yaml:"id" toml:"id"`

	// Name is the display name.
	Name string `json:"name" yaml:"name" toml:"name"`

	// Token is the ERC-20 ownership token of the country. The engine only
	// carries the reference.
	Token common.Address `json:"token" yaml:"token" toml:"token"`

	// Exists is set when the country is deployed and never cleared.
	Exists bool `json:"exists" yaml:"exists" toml:"exists"`

	// Price8 is the current marginal unit price.
	Price8 uint64 `json:"price8" yaml:"price8" toml:"price8"`

	// Kappa8 is the price increase per whole token bought.
	Kappa8 uint64 `json:"kappa8" yaml:"kappa8" toml:"kappa8"`

	// Lambda8 is the price decrease per whole token sold.
	Lambda8 uint64 `json:"lambda8" yaml:"lambda8" toml:"lambda8"`

	// PriceMin8 is the floor. Sells and attacks that would leave the price
	// at or below it are rejected.
	PriceMin8 uint64 `json:"priceMin8" yaml:"price_min8" toml:"price_min8"`

	// Reserve is the number of whole tokens held by the market maker
	// (the contract's inventory). Buys draw from it, sells return to it.
	Reserve uint64 `json:"reserve" yaml:"reserve" toml:"reserve"`
}

// Validate checks the parameters a country must satisfy before it can be
// deployed.
func (c Country) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: country %d has no name", ErrInvalidRules, c.ID)
	}
	if c.Price8 <= c.PriceMin8 {
		return fmt.Errorf("%w: country %d price8 %d must be above floor %d", ErrFloorPriceBreach, c.ID, c.Price8, c.PriceMin8)
	}
	return nil
}

// AboveFloor reports whether the current price is strictly above the floor.
func (c Country) AboveFloor() bool {
	return c.Price8 > c.PriceMin8
}

func (c Country) String() string {
	return fmt.Sprintf("{id=%d, name=%s, price8=%d, reserve=%d}", c.ID, c.Name, c.Price8, c.Reserve)
}
