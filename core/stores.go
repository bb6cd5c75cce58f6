package core

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/store"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// Payments is the USDC collaborator. Collect pulls from the user's balance
// through the contract allowance, Disburse pays sell proceeds out of the
// treasury and FundTreasury backs seeded holdings.
type Payments interface {
	Balance(user common.Address) uint64
	Allowance(user common.Address) uint64
	Collect(user common.Address, amount6 uint64) error
	Disburse(user common.Address, amount6 uint64) error
	FundTreasury(amount6 uint64) error
}

// PairKey addresses per (user, country) state: holdings and cooldowns.
type PairKey struct {
	User    common.Address
	Country uint64
}

// Stores holds every piece of engine state. All stores must be empty or
// consistent with each other when the engine is built.
type Stores struct {
	Countries  store.Store[uint64, inter.Country]
	Holdings   store.Store[PairKey, uint64]
	Quotas     store.Store[common.Address, inter.UserQuota]
	Cooldowns  store.Store[PairKey, inter.Timestamp]
	WarBalance store.Store[warbalance.Key, warbalance.State]
	Nonces     store.Store[common.Address, uint64]
	// Receipts may be size-bounded; evicted receipts are simply no longer
	// retrievable by hash.
	Receipts store.Store[common.Hash, *inter.Receipt]
}

// MemoryStores returns unbounded in-memory stores.
func MemoryStores() Stores {
	return Stores{
		Countries:  store.NewMemory[uint64, inter.Country](),
		Holdings:   store.NewMemory[PairKey, uint64](),
		Quotas:     store.NewMemory[common.Address, inter.UserQuota](),
		Cooldowns:  store.NewMemory[PairKey, inter.Timestamp](),
		WarBalance: store.NewMemory[warbalance.Key, warbalance.State](),
		Nonces:     store.NewMemory[common.Address, uint64](),
		Receipts:   store.NewMemory[common.Hash, *inter.Receipt](),
	}
}

// BoundedReceipts returns in-memory stores that keep only the last n
// receipts.
func BoundedReceipts(n int) (Stores, error) {
	st := MemoryStores()
	receipts, err := store.NewLRU[common.Hash, *inter.Receipt](n)
	if err != nil {
		return Stores{}, err
	}
	st.Receipts = receipts
	return st, nil
}
