package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// txState buffers the writes of one transaction. Reads fall through to the
// engine stores; nothing reaches them before commit.
type txState struct {
	e *Engine

	countries map[uint64]inter.Country
	holdings  map[PairKey]uint64
	quotas    map[common.Address]inter.UserQuota
	cooldowns map[PairKey]inter.Timestamp
	wars      map[warbalance.Key]warbalance.State

	events []inter.Event
}

func newTx(e *Engine) *txState {
	return &txState{
		e:         e,
		countries: make(map[uint64]inter.Country),
		holdings:  make(map[PairKey]uint64),
		quotas:    make(map[common.Address]inter.UserQuota),
		cooldowns: make(map[PairKey]inter.Timestamp),
		wars:      make(map[warbalance.Key]warbalance.State),
	}
}

// country returns a deployed country.
func (tx *txState) country(id uint64) (inter.Country, error) {
	c, ok := tx.countries[id]
	if !ok {
		c, ok = tx.e.st.Countries.Get(id)
	}
	if !ok || !c.Exists {
		return inter.Country{}, fmt.Errorf("%w: country %d", inter.ErrCountryNotDeployed, id)
	}
	return c, nil
}

func (tx *txState) setCountry(c inter.Country) {
	tx.countries[c.ID] = c
}

func (tx *txState) holding(k PairKey) uint64 {
	if v, ok := tx.holdings[k]; ok {
		return v
	}
	v, _ := tx.e.st.Holdings.Get(k)
	return v
}

func (tx *txState) setHolding(k PairKey, v uint64) {
	tx.holdings[k] = v
}

func (tx *txState) quota(user common.Address) inter.UserQuota {
	if q, ok := tx.quotas[user]; ok {
		return q
	}
	q, _ := tx.e.st.Quotas.Get(user)
	return q
}

func (tx *txState) setQuota(user common.Address, q inter.UserQuota) {
	tx.quotas[user] = q
}

func (tx *txState) cooldown(k PairKey) inter.Timestamp {
	if v, ok := tx.cooldowns[k]; ok {
		return v
	}
	v, _ := tx.e.st.Cooldowns.Get(k)
	return v
}

func (tx *txState) setCooldown(k PairKey, until inter.Timestamp) {
	tx.cooldowns[k] = until
}

func (tx *txState) war(key warbalance.Key) warbalance.State {
	if s, ok := tx.wars[key]; ok {
		return s
	}
	return tx.e.wb.State(key)
}

func (tx *txState) setWar(key warbalance.Key, s warbalance.State) {
	tx.wars[key] = s
}

func (tx *txState) emit(ev inter.Event) {
	tx.events = append(tx.events, ev)
}

// commit writes the buffered state to the engine stores. Holdings that
// dropped to zero are deleted.
func (tx *txState) commit() {
	st := tx.e.st
	for _, c := range tx.countries {
		st.Countries.Set(c.ID, c)
	}
	for k, v := range tx.holdings {
		if v == 0 {
			st.Holdings.Del(k)
			continue
		}
		st.Holdings.Set(k, v)
	}
	for user, q := range tx.quotas {
		st.Quotas.Set(user, q)
	}
	for k, until := range tx.cooldowns {
		st.Cooldowns.Set(k, until)
	}
	for key, s := range tx.wars {
		tx.e.wb.Put(key, s)
	}
}
