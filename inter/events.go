package inter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the concrete type of an Event.
type EventKind uint8

const (
	KindBought EventKind = iota + 1
	KindSold
	KindAttack
	KindFreeAttackUsed
	KindAntiDumpApplied
)

// String returns the contract event name of the kind.
func (k EventKind) String() string {
	switch k {
	case KindBought:
		return "Bought"
	case KindSold:
		return "Sold"
	case KindAttack:
		return "Attack"
	case KindFreeAttackUsed:
		return "FreeAttackUsed"
	case KindAntiDumpApplied:
		return "AntiDumpApplied"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is one entry in a receipt. Each event carries enough data for an
// off-chain mirror (cache invalidation, audit log) to react without
// re-reading engine state.
type Event interface {
	Kind() EventKind
	// Account is the user the event concerns.
	Account() common.Address
	// Countries lists every country whose state the event changed or
	// reported on.
	Countries() []uint64
}

// Bought is emitted after a successful buy.
type Bought struct {
	User      common.Address `json:"user"`
	CountryID uint64         `json:"countryId"`
	Amount    uint64         `json:"amount"`
	Gross6    uint64         `json:"gross6"`
	Fee6      uint64         `json:"fee6"`
	Net6      uint64         `json:"net6"`
	NewPrice8 uint64         `json:"newPrice8"`
}

// Sold is emitted after a successful sell. Fee6 includes any anti-dump
// surcharge; ExtraFeeBps reports the surcharge rate on its own.
type Sold struct {
	User        common.Address `json:"user"`
	CountryID   uint64         `json:"countryId"`
	Amount      uint64         `json:"amount"`
	Gross6      uint64         `json:"gross6"`
	Fee6        uint64         `json:"fee6"`
	Net6        uint64         `json:"net6"`
	NewPrice8   uint64         `json:"newPrice8"`
	ExtraFeeBps uint64         `json:"extraFeeBps"`
}

// Attack is emitted once per executed attack item, batch items included.
type Attack struct {
	User          common.Address `json:"user"`
	FromID        uint64         `json:"fromId"`
	ToID          uint64         `json:"toId"`
	Amount        uint64         `json:"amount"`
	Fee6          uint64         `json:"fee6"`
	Delta8        uint64         `json:"delta8"`
	NewFromPrice8 uint64         `json:"newFromPrice8"`
	NewToPrice8   uint64         `json:"newToPrice8"`
	// MultiplierBps is the war-balance multiplier applied (10000 when none).
	MultiplierBps uint64 `json:"multiplierBps"`
	Free          bool   `json:"free"`
	Batch         bool   `json:"batch"`
}

// FreeAttackUsed is emitted when a single attack consumed a free attack.
type FreeAttackUsed struct {
	User      common.Address `json:"user"`
	FromID    uint64         `json:"fromId"`
	ToID      uint64         `json:"toId"`
	Remaining uint64         `json:"remaining"`
}

// AntiDumpApplied is emitted alongside Sold when the sell crossed an
// anti-dump tier.
type AntiDumpApplied struct {
	User          common.Address `json:"user"`
	CountryID     uint64         `json:"countryId"`
	SellPctBps    uint64         `json:"sellPctBps"`
	ExtraFeeBps   uint64         `json:"extraFeeBps"`
	CooldownUntil Timestamp      `json:"cooldownUntil"`
}

func (Bought) Kind() EventKind          { return KindBought }
func (Sold) Kind() EventKind            { return KindSold }
func (Attack) Kind() EventKind          { return KindAttack }
func (FreeAttackUsed) Kind() EventKind  { return KindFreeAttackUsed }
func (AntiDumpApplied) Kind() EventKind { return KindAntiDumpApplied }

func (e Bought) Account() common.Address          { return e.User }
func (e Sold) Account() common.Address            { return e.User }
func (e Attack) Account() common.Address          { return e.User }
func (e FreeAttackUsed) Account() common.Address  { return e.User }
func (e AntiDumpApplied) Account() common.Address { return e.User }

func (e Bought) Countries() []uint64          { return []uint64{e.CountryID} }
func (e Sold) Countries() []uint64            { return []uint64{e.CountryID} }
func (e Attack) Countries() []uint64          { return []uint64{e.FromID, e.ToID} }
func (e FreeAttackUsed) Countries() []uint64  { return []uint64{e.FromID, e.ToID} }
func (e AntiDumpApplied) Countries() []uint64 { return []uint64{e.CountryID} }
