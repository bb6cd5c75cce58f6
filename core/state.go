package core

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// ErrEngineNotEmpty is returned when importing into an engine that already
// holds state.
var ErrEngineNotEmpty = errors.New("engine state not empty")

// State is a complete, deterministic export of the engine state. Receipts
// are not part of it.
type State struct {
	Block      idx.Block         `json:"block"`
	Countries  []inter.Country   `json:"countries"`
	Holdings   []Holding         `json:"holdings"`
	Quotas     []Quota           `json:"quotas"`
	Cooldowns  []Cooldown        `json:"cooldowns"`
	WarBalance []WarBalanceEntry `json:"warBalance"`
	Nonces     []Nonce           `json:"nonces"`
}

type Holding struct {
	User    common.Address `json:"user"`
	Country uint64         `json:"country"`
	Amount  uint64         `json:"amount"`
}

type Quota struct {
	User  common.Address  `json:"user"`
	Quota inter.UserQuota `json:"quota"`
}

type Cooldown struct {
	User    common.Address  `json:"user"`
	Country uint64          `json:"country"`
	Until   inter.Timestamp `json:"until"`
}

type WarBalanceEntry struct {
	User   common.Address   `json:"user"`
	Target uint64           `json:"target"`
	State  warbalance.State `json:"state"`
}

type Nonce struct {
	User  common.Address `json:"user"`
	Nonce uint64         `json:"nonce"`
}

func pairLess(ua common.Address, ca uint64, ub common.Address, cb uint64) bool {
	if c := bytes.Compare(ua.Bytes(), ub.Bytes()); c != 0 {
		return c < 0
	}
	return ca < cb
}

// Export returns the engine state sorted by key, so equal states export
// byte-identical.
func (e *Engine) Export() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := State{Block: e.block, Countries: e.countries()}
	e.st.Holdings.Range(func(k PairKey, v uint64) bool {
		s.Holdings = append(s.Holdings, Holding{User: k.User, Country: k.Country, Amount: v})
		return true
	})
	sort.Slice(s.Holdings, func(i, j int) bool {
		a, b := s.Holdings[i], s.Holdings[j]
		return pairLess(a.User, a.Country, b.User, b.Country)
	})
	e.st.Quotas.Range(func(u common.Address, q inter.UserQuota) bool {
		s.Quotas = append(s.Quotas, Quota{User: u, Quota: q})
		return true
	})
	sort.Slice(s.Quotas, func(i, j int) bool {
		return bytes.Compare(s.Quotas[i].User.Bytes(), s.Quotas[j].User.Bytes()) < 0
	})
	e.st.Cooldowns.Range(func(k PairKey, until inter.Timestamp) bool {
		s.Cooldowns = append(s.Cooldowns, Cooldown{User: k.User, Country: k.Country, Until: until})
		return true
	})
	sort.Slice(s.Cooldowns, func(i, j int) bool {
		a, b := s.Cooldowns[i], s.Cooldowns[j]
		return pairLess(a.User, a.Country, b.User, b.Country)
	})
	e.st.WarBalance.Range(func(k warbalance.Key, st warbalance.State) bool {
		s.WarBalance = append(s.WarBalance, WarBalanceEntry{User: k.User, Target: k.Target, State: st})
		return true
	})
	sort.Slice(s.WarBalance, func(i, j int) bool {
		a, b := s.WarBalance[i], s.WarBalance[j]
		return pairLess(a.User, a.Target, b.User, b.Target)
	})
	e.st.Nonces.Range(func(u common.Address, n uint64) bool {
		s.Nonces = append(s.Nonces, Nonce{User: u, Nonce: n})
		return true
	})
	sort.Slice(s.Nonces, func(i, j int) bool {
		return bytes.Compare(s.Nonces[i].User.Bytes(), s.Nonces[j].User.Bytes()) < 0
	})
	return s
}

// Import loads s into an engine that has neither countries nor executed
// blocks. Entries referring to a country missing from s.Countries are
// rejected before anything is loaded.
func (e *Engine) Import(s State) error {
	if err := s.validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.block != 0 || e.st.Countries.Len() != 0 {
		return ErrEngineNotEmpty
	}
	for _, c := range s.Countries {
		c.Exists = true
		e.st.Countries.Set(c.ID, c)
	}
	for _, h := range s.Holdings {
		e.st.Holdings.Set(PairKey{User: h.User, Country: h.Country}, h.Amount)
	}
	for _, q := range s.Quotas {
		e.st.Quotas.Set(q.User, q.Quota)
	}
	for _, c := range s.Cooldowns {
		e.st.Cooldowns.Set(PairKey{User: c.User, Country: c.Country}, c.Until)
	}
	for _, w := range s.WarBalance {
		e.wb.Put(warbalance.Key{User: w.User, Target: w.Target}, w.State)
	}
	for _, n := range s.Nonces {
		e.st.Nonces.Set(n.User, n.Nonce)
	}
	e.block = s.Block
	return nil
}

func (s State) validate() error {
	ids := make(map[uint64]struct{}, len(s.Countries))
	for _, c := range s.Countries {
		if err := c.Validate(); err != nil {
			return err
		}
		ids[c.ID] = struct{}{}
	}
	for _, h := range s.Holdings {
		if _, ok := ids[h.Country]; !ok {
			return fmt.Errorf("holding of %s: %w: %d", h.User.Hex(), inter.ErrCountryNotDeployed, h.Country)
		}
	}
	for _, c := range s.Cooldowns {
		if _, ok := ids[c.Country]; !ok {
			return fmt.Errorf("cooldown of %s: %w: %d", c.User.Hex(), inter.ErrCountryNotDeployed, c.Country)
		}
	}
	for _, w := range s.WarBalance {
		// target 0 is the per-user scope key
		if w.Target == 0 {
			continue
		}
		if _, ok := ids[w.Target]; !ok {
			return fmt.Errorf("war balance of %s: %w: %d", w.User.Hex(), inter.ErrCountryNotDeployed, w.Target)
		}
	}
	return nil
}
