package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/archslayer/flagbase111-sub000/guard"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/pricing"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
)

// CreateCountry deploys a new country. The id must be unused.
func (e *Engine) CreateCountry(c inter.Country) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.st.Countries.Get(c.ID); ok {
		return fmt.Errorf("%w: %d", inter.ErrCountryExists, c.ID)
	}
	c.Exists = true
	e.st.Countries.Set(c.ID, c)
	e.log.WithFields(logrus.Fields{
		"id":      c.ID,
		"name":    c.Name,
		"price8":  c.Price8,
		"reserve": c.Reserve,
	}).Info("Country deployed")
	return nil
}

// AwardFreeAttacks is the entry point of the quest subsystem: it raises the
// free attacks awarded to user by n, capped at the free-attack limit.
func (e *Engine) AwardFreeAttacks(user common.Address, n uint64) inter.UserQuota {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, _ := e.st.Quotas.Get(user)
	q = guard.AwardFreeAttacks(q, n, e.rules.FreeAttack.Limit)
	e.st.Quotas.Set(user, q)
	e.log.WithFields(logrus.Fields{"user": user, "awarded": q.FreeAttacksAwarded}).Debug("Free attacks awarded")
	return q
}

// FundHoldings credits amount tokens of country id to user from the country
// reserve, without payment. It seeds scenarios and airdrops. The treasury is
// funded with what the tokens would cost to buy at the current price, so
// seeded tokens can be sold back.
func (e *Engine) FundHoldings(user common.Address, id, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := newTx(e)
	c, err := tx.country(id)
	if err != nil {
		return err
	}
	if err := checkReserve(c, amount); err != nil {
		return err
	}
	key := PairKey{User: user, Country: id}
	held, err := safemath.Add(tx.holding(key), amount)
	if err != nil {
		return err
	}
	backing, err := pricing.QuoteBuy(c.Price8, c.Kappa8, amount, 0)
	if err != nil {
		return err
	}
	if err := e.pay.FundTreasury(backing.Gross6); err != nil {
		return err
	}
	c.Reserve -= amount
	tx.setCountry(c)
	tx.setHolding(key, held)
	tx.commit()
	return nil
}
