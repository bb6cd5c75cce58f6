package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archslayer/flagbase111-sub000/guard"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/pricing"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
)

// SellQuote is the quote of a sell including the anti-dump surcharge it
// would trigger.
type SellQuote struct {
	pricing.Quote
	SellPctBps  uint64 `json:"sellPctBps"`
	ExtraFeeBps uint64 `json:"extraFeeBps"`
	NewPrice8   uint64 `json:"newPrice8"`
}

// QuoteBuy returns the cost of buying amount whole tokens of country id.
func (e *Engine) QuoteBuy(id, amount uint64) (pricing.Quote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, err := newTx(e).country(id)
	if err != nil {
		return pricing.Quote{}, err
	}
	if err := checkReserve(c, amount); err != nil {
		return pricing.Quote{}, err
	}
	return pricing.QuoteBuy(c.Price8, c.Kappa8, amount, e.rules.Fees.BuyFeeBps)
}

// QuoteSell returns the proceeds of selling amount whole tokens of country
// id. The quote ignores cooldowns, which depend on the seller.
func (e *Engine) QuoteSell(id, amount uint64) (SellQuote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, err := newTx(e).country(id)
	if err != nil {
		return SellQuote{}, err
	}
	sq, _, err := e.quoteSell(c, amount, 0, e.clock.Now())
	return sq, err
}

func (e *Engine) quoteSell(c inter.Country, amount uint64, lastCooldown, now inter.Timestamp) (SellQuote, guard.AntiDumpResult, error) {
	if amount == 0 {
		return SellQuote{}, guard.AntiDumpResult{}, inter.ErrInvalidAmount
	}
	ad, err := guard.CheckAndApplyCooldown(amount, c.Reserve, e.rules.AntiDump, lastCooldown, now)
	if err != nil {
		return SellQuote{}, ad, err
	}
	feeBps, err := safemath.Add(e.rules.Fees.SellFeeBps, ad.ExtraFeeBps)
	if err != nil {
		return SellQuote{}, ad, err
	}
	q, err := pricing.QuoteSell(c.Price8, c.Lambda8, amount, feeBps)
	if err != nil {
		return SellQuote{}, ad, err
	}
	price, err := pricing.PriceAfterSell(c.Price8, c.Lambda8, amount, c.PriceMin8)
	if err != nil {
		return SellQuote{}, ad, err
	}
	return SellQuote{Quote: q, SellPctBps: ad.SellPctBps, ExtraFeeBps: ad.ExtraFeeBps, NewPrice8: price}, ad, nil
}

func checkReserve(c inter.Country, amount uint64) error {
	if amount == 0 {
		return inter.ErrInvalidAmount
	}
	if amount > c.Reserve {
		return fmt.Errorf("%w: country %d has %d tokens, want %d", inter.ErrInsufficientReserve, c.ID, c.Reserve, amount)
	}
	return nil
}

// Buy buys amount whole tokens of country id for at most maxCost6 USDC.
func (e *Engine) Buy(user common.Address, id, amount, maxCost6 uint64, deadline inter.Timestamp) (*inter.Receipt, error) {
	return e.execute(user, OpBuy, deadline, func(tx *txState, _ inter.Timestamp) (payment, error) {
		c, err := tx.country(id)
		if err != nil {
			return payment{}, err
		}
		if err := checkReserve(c, amount); err != nil {
			return payment{}, err
		}
		q, err := pricing.QuoteBuy(c.Price8, c.Kappa8, amount, e.rules.Fees.BuyFeeBps)
		if err != nil {
			return payment{}, err
		}
		if q.Net6 > maxCost6 {
			return payment{}, fmt.Errorf("%w: cost %d above max %d", inter.ErrSlippageExceeded, q.Net6, maxCost6)
		}
		price, err := pricing.PriceAfterBuy(c.Price8, c.Kappa8, amount)
		if err != nil {
			return payment{}, err
		}
		key := PairKey{User: user, Country: id}
		held, err := safemath.Add(tx.holding(key), amount)
		if err != nil {
			return payment{}, err
		}

		c.Price8 = price
		c.Reserve -= amount
		tx.setCountry(c)
		tx.setHolding(key, held)
		tx.emit(inter.Bought{
			User:      user,
			CountryID: id,
			Amount:    amount,
			Gross6:    q.Gross6,
			Fee6:      q.Fee6,
			Net6:      q.Net6,
			NewPrice8: price,
		})
		return payment{collect6: q.Net6}, nil
	})
}

// Sell sells amount whole tokens of country id for at least minProceeds6
// USDC. Large sells pay the anti-dump surcharge and start a cooldown for the
// (user, country) pair.
func (e *Engine) Sell(user common.Address, id, amount, minProceeds6 uint64, deadline inter.Timestamp) (*inter.Receipt, error) {
	return e.execute(user, OpSell, deadline, func(tx *txState, now inter.Timestamp) (payment, error) {
		if amount == 0 {
			return payment{}, inter.ErrInvalidAmount
		}
		c, err := tx.country(id)
		if err != nil {
			return payment{}, err
		}
		key := PairKey{User: user, Country: id}
		held := tx.holding(key)
		if held < amount {
			return payment{}, fmt.Errorf("%w: holds %d tokens of country %d, sells %d", inter.ErrInsufficientBalance, held, id, amount)
		}
		last := tx.cooldown(key)
		sq, ad, err := e.quoteSell(c, amount, last, now)
		if err != nil {
			return payment{}, err
		}
		if sq.Net6 < minProceeds6 {
			return payment{}, fmt.Errorf("%w: proceeds %d below min %d", inter.ErrSlippageExceeded, sq.Net6, minProceeds6)
		}
		reserve, err := safemath.Add(c.Reserve, amount)
		if err != nil {
			return payment{}, err
		}

		c.Price8 = sq.NewPrice8
		c.Reserve = reserve
		tx.setCountry(c)
		tx.setHolding(key, held-amount)
		if ad.Applied() {
			tx.setCooldown(key, ad.CooldownUntil)
			tx.emit(inter.AntiDumpApplied{
				User:          user,
				CountryID:     id,
				SellPctBps:    ad.SellPctBps,
				ExtraFeeBps:   ad.ExtraFeeBps,
				CooldownUntil: ad.CooldownUntil,
			})
		}
		tx.emit(inter.Sold{
			User:        user,
			CountryID:   id,
			Amount:      amount,
			Gross6:      sq.Gross6,
			Fee6:        sq.Fee6,
			Net6:        sq.Net6,
			NewPrice8:   sq.NewPrice8,
			ExtraFeeBps: sq.ExtraFeeBps,
		})
		return payment{disburse6: sq.Net6}, nil
	})
}
