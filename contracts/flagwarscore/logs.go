package flagwarscore

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// EncodeLog encodes an engine event as the log the contract emits. Block
// and transaction fields are left to the caller; see ReceiptLogs.
func EncodeLog(ev inter.Event) (*types.Log, error) {
	var (
		topics []common.Hash
		data   []interface{}
	)
	user := common.BytesToHash(ev.Account().Bytes())
	switch e := ev.(type) {
	case inter.Bought:
		topics = []common.Hash{user, common.BigToHash(u256(e.CountryID))}
		data = []interface{}{inter.WholeTokensToToken18(e.Amount), u256(e.Gross6), u256(e.Fee6), u256(e.Net6), u256(e.NewPrice8)}
	case inter.Sold:
		topics = []common.Hash{user, common.BigToHash(u256(e.CountryID))}
		data = []interface{}{inter.WholeTokensToToken18(e.Amount), u256(e.Gross6), u256(e.Fee6), u256(e.Net6), u256(e.NewPrice8), u256(e.ExtraFeeBps)}
	case inter.Attack:
		topics = []common.Hash{user, common.BigToHash(u256(e.FromID)), common.BigToHash(u256(e.ToID))}
		data = []interface{}{inter.WholeTokensToToken18(e.Amount), u256(e.Fee6), u256(e.Delta8), u256(e.NewFromPrice8), u256(e.NewToPrice8), u256(e.MultiplierBps), e.Free, e.Batch}
	case inter.FreeAttackUsed:
		topics = []common.Hash{user, common.BigToHash(u256(e.FromID)), common.BigToHash(u256(e.ToID))}
		data = []interface{}{u256(e.Remaining)}
	case inter.AntiDumpApplied:
		topics = []common.Hash{user, common.BigToHash(u256(e.CountryID))}
		data = []interface{}{u256(e.SellPctBps), u256(e.ExtraFeeBps), u256(uint64(e.CooldownUntil))}
	default:
		return nil, fmt.Errorf("unsupported event %T", ev)
	}

	abiEv := parsed.Events[ev.Kind().String()]
	packed, err := abiEv.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: ContractAddress,
		Topics:  append([]common.Hash{abiEv.ID}, topics...),
		Data:    packed,
	}, nil
}

// ReceiptLogs encodes every event of r with its block and transaction
// position.
func ReceiptLogs(r *inter.Receipt) ([]*types.Log, error) {
	logs := make([]*types.Log, 0, len(r.Events))
	for i, ev := range r.Events {
		l, err := EncodeLog(ev)
		if err != nil {
			return nil, err
		}
		l.BlockNumber = uint64(r.Block)
		l.TxHash = r.TxHash
		l.Index = uint(i)
		logs = append(logs, l)
	}
	return logs, nil
}

// DecodeLog decodes a FlagWarsCore log back into an engine event.
func DecodeLog(l *types.Log) (inter.Event, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("anonymous log")
	}
	abiEv, err := parsed.EventByID(l.Topics[0])
	if err != nil {
		return nil, err
	}
	values, err := abiEv.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, err
	}
	indexed := len(l.Topics) - 1
	want := len(abiEv.Inputs) - len(abiEv.Inputs.NonIndexed())
	if indexed != want {
		return nil, fmt.Errorf("%s: %d indexed topics, want %d", abiEv.Name, indexed, want)
	}
	user := common.BytesToAddress(l.Topics[1].Bytes())
	topicU64 := func(i int) uint64 {
		return new(big.Int).SetBytes(l.Topics[i].Bytes()).Uint64()
	}
	num := func(i int) uint64 {
		return values[i].(*big.Int).Uint64()
	}
	tokens := func(i int) (uint64, error) {
		return inter.Token18ToWholeTokens(values[i].(*big.Int))
	}

	switch abiEv.Name {
	case "Bought":
		amount, err := tokens(0)
		if err != nil {
			return nil, err
		}
		return inter.Bought{User: user, CountryID: topicU64(2), Amount: amount,
			Gross6: num(1), Fee6: num(2), Net6: num(3), NewPrice8: num(4)}, nil
	case "Sold":
		amount, err := tokens(0)
		if err != nil {
			return nil, err
		}
		return inter.Sold{User: user, CountryID: topicU64(2), Amount: amount,
			Gross6: num(1), Fee6: num(2), Net6: num(3), NewPrice8: num(4), ExtraFeeBps: num(5)}, nil
	case "Attack":
		amount, err := tokens(0)
		if err != nil {
			return nil, err
		}
		return inter.Attack{User: user, FromID: topicU64(2), ToID: topicU64(3), Amount: amount,
			Fee6: num(1), Delta8: num(2), NewFromPrice8: num(3), NewToPrice8: num(4), MultiplierBps: num(5),
			Free: values[6].(bool), Batch: values[7].(bool)}, nil
	case "FreeAttackUsed":
		return inter.FreeAttackUsed{User: user, FromID: topicU64(2), ToID: topicU64(3), Remaining: num(0)}, nil
	case "AntiDumpApplied":
		return inter.AntiDumpApplied{User: user, CountryID: topicU64(2),
			SellPctBps: num(0), ExtraFeeBps: num(1), CooldownUntil: inter.Timestamp(num(2))}, nil
	}
	return nil, fmt.Errorf("unsupported event %s", abiEv.Name)
}
