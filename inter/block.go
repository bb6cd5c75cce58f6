package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// Receipt is the result of one successfully executed transaction.
//
// The engine mines every transaction into its own block, mirroring how the
// chain orders mutations: blocks are strictly increasing and every state change
// the receipt describes is already visible to readers by the time it is
// published.
//
// The receipt contains:
//   - Identity (TxHash, Block, Time)
//   - Origin (User, Op)
//   - Effects (Events, in emission order)
type Receipt struct {
	// TxHash identifies the transaction. It is derived from the sender, the
	// sender's engine nonce and the operation, so resubmitting the same
	// request produces a different hash.
	TxHash common.Hash

	// Block is the block number the transaction was mined in.
	Block idx.Block

	// Time is the block time the transaction observed for deadlines,
	// cooldowns and war-balance windows.
	Time Timestamp

	// User is the sender.
	User common.Address

	// Op is the executed operation (buy, sell, attack, attackBatch).
	Op string

	// Events are the events emitted by the transaction, in order.
	Events []Event
}

// EventsOf returns the events of the given kind, preserving order.
func (r *Receipt) EventsOf(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

// TotalAttackFee6 sums the fee of every Attack event in the receipt.
func (r *Receipt) TotalAttackFee6() uint64 {
	var total uint64
	for _, ev := range r.Events {
		if a, ok := ev.(Attack); ok {
			total += a.Fee6
		}
	}
	return total
}

// Countries returns the distinct countries touched by the receipt's events.
func (r *Receipt) Countries() []uint64 {
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, ev := range r.Events {
		for _, id := range ev.Countries() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
