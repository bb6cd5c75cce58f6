package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archslayer/flagbase111-sub000/attackfee"
	"github.com/archslayer/flagbase111-sub000/guard"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/pricing"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// AttackItem is one attack: the attacker's country FromID pushes the price of
// ToID down. The attacker must hold Amount tokens of FromID.
type AttackItem struct {
	FromID uint64 `json:"fromId" yaml:"from"`
	ToID   uint64 `json:"toId" yaml:"to"`
	Amount uint64 `json:"amount" yaml:"amount"`
}

// AttackFeePreview is the fee a user would pay for the next single attack
// from a country.
type AttackFeePreview struct {
	BaseFee6             uint64 `json:"baseFee6"`
	FinalFee6            uint64 `json:"finalFee6"`
	IsFreeAttack         bool   `json:"isFreeAttack"`
	FreeAttacksRemaining uint64 `json:"freeAttacksRemaining"`
	Tier                 int    `json:"tier"`
	Delta8               uint64 `json:"delta8"`
}

// PreviewAttackFee resolves the attack tier of the attacker country and the
// free-attack status of user. War-balance multipliers depend on the target
// and are not part of the preview.
func (e *Engine) PreviewAttackFee(attackerID uint64, user common.Address) (AttackFeePreview, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, err := newTx(e).country(attackerID)
	if err != nil {
		return AttackFeePreview{}, err
	}
	tier, i := attackfee.Resolve(c.Price8, e.rules.AttackTiers)
	q, _ := e.st.Quotas.Get(user)
	remaining := q.Remaining(e.rules.FreeAttack.Limit)
	p := AttackFeePreview{
		BaseFee6:             tier.Fee6,
		FinalFee6:            tier.Fee6,
		FreeAttacksRemaining: remaining,
		Tier:                 i,
		Delta8:               tier.Delta8,
	}
	if remaining > 0 {
		p.IsFreeAttack = true
		p.FinalFee6 = 0
	}
	return p, nil
}

// Attack executes a single attack for at most maxFee6 USDC. A remaining free
// attack makes it free of charge.
func (e *Engine) Attack(user common.Address, item AttackItem, maxFee6 uint64, deadline inter.Timestamp) (*inter.Receipt, error) {
	return e.execute(user, OpAttack, deadline, func(tx *txState, now inter.Timestamp) (payment, error) {
		fee6, err := e.attack(tx, user, item, now, false)
		if err != nil {
			return payment{}, err
		}
		if fee6 > maxFee6 {
			return payment{}, fmt.Errorf("%w: fee %d above max %d", inter.ErrSlippageExceeded, fee6, maxFee6)
		}
		return payment{collect6: fee6}, nil
	})
}

// AttackBatch executes items in order as one transaction for at most
// maxTotalFee6 USDC. Each item resolves its tier against the prices left by
// the previous ones. Batches never use free attacks. If any item fails the
// whole batch is rejected.
func (e *Engine) AttackBatch(user common.Address, items []AttackItem, maxTotalFee6 uint64, deadline inter.Timestamp) (*inter.Receipt, error) {
	return e.execute(user, OpAttackBatch, deadline, func(tx *txState, now inter.Timestamp) (payment, error) {
		if len(items) == 0 {
			return payment{}, fmt.Errorf("%w: empty attack batch", inter.ErrInvalidAmount)
		}
		if uint64(len(items)) > e.rules.Batch.MaxItems {
			return payment{}, fmt.Errorf("%w: %d items, max %d", inter.ErrBatchTooLarge, len(items), e.rules.Batch.MaxItems)
		}
		var total6 uint64
		for i, item := range items {
			fee6, err := e.attack(tx, user, item, now, true)
			if err != nil {
				return payment{}, fmt.Errorf("batch item %d: %w", i, err)
			}
			if total6, err = safemath.Add(total6, fee6); err != nil {
				return payment{}, err
			}
		}
		if total6 > maxTotalFee6 {
			return payment{}, fmt.Errorf("%w: total fee %d above max %d", inter.ErrSlippageExceeded, total6, maxTotalFee6)
		}
		return payment{collect6: total6}, nil
	})
}

// attack applies one attack item to tx and returns its fee.
func (e *Engine) attack(tx *txState, user common.Address, item AttackItem, now inter.Timestamp, batch bool) (uint64, error) {
	if item.FromID == item.ToID {
		return 0, fmt.Errorf("%w: country %d", inter.ErrSelfAttackRejected, item.FromID)
	}
	if item.Amount == 0 {
		return 0, inter.ErrInvalidAmount
	}
	from, err := tx.country(item.FromID)
	if err != nil {
		return 0, err
	}
	to, err := tx.country(item.ToID)
	if err != nil {
		return 0, err
	}
	if held := tx.holding(PairKey{User: user, Country: item.FromID}); held < item.Amount {
		return 0, fmt.Errorf("%w: holds %d tokens of country %d, attacks with %d", inter.ErrInsufficientBalance, held, item.FromID, item.Amount)
	}
	if !to.AboveFloor() {
		return 0, fmt.Errorf("%w: target %d already at floor", inter.ErrFloorPriceBreach, to.ID)
	}

	tier, _ := attackfee.Resolve(from.Price8, e.rules.AttackTiers)

	wbCfg := e.rules.WarBalance
	key := wbCfg.Scope.KeyFor(user, item.ToID)
	wb := warbalance.Observe(wbCfg, tx.war(key), now)
	level := warbalance.LevelAt(wbCfg, wb, now)
	delta8, fee6, err := wbCfg.Apply(level, tier.Delta8, tier.Fee6)
	if err != nil {
		return 0, err
	}

	newTo, err := pricing.Lower(to.Price8, delta8, to.PriceMin8)
	if err != nil {
		return 0, err
	}
	newFrom, err := pricing.Raise(from.Price8, delta8)
	if err != nil {
		return 0, err
	}

	var free bool
	quota := tx.quota(user)
	quota, free = guard.TryConsumeFreeAttack(quota, e.rules.FreeAttack.Limit, batch)
	if free {
		fee6 = 0
		tx.setQuota(user, quota)
	}

	from.Price8 = newFrom
	to.Price8 = newTo
	tx.setCountry(from)
	tx.setCountry(to)
	tx.setWar(key, wb)
	tx.emit(inter.Attack{
		User:          user,
		FromID:        item.FromID,
		ToID:          item.ToID,
		Amount:        item.Amount,
		Fee6:          fee6,
		Delta8:        delta8,
		NewFromPrice8: newFrom,
		NewToPrice8:   newTo,
		MultiplierBps: wbCfg.MultiplierBps(level),
		Free:          free,
		Batch:         batch,
	})
	if free {
		tx.emit(inter.FreeAttackUsed{
			User:      user,
			FromID:    item.FromID,
			ToID:      item.ToID,
			Remaining: quota.Remaining(e.rules.FreeAttack.Limit),
		})
	}
	return fee6, nil
}
