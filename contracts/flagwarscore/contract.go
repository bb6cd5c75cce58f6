package flagwarscore

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/archslayer/flagbase111-sub000/core"
	"github.com/archslayer/flagbase111-sub000/inter"
)

// Backend is the engine surface the contract dispatches into.
// *core.Engine implements it.
type Backend interface {
	Country(id uint64) (inter.Country, error)
	Quota(user common.Address) inter.UserQuota
	FreeAttacksRemaining(user common.Address) uint64
	PreviewAttackFee(attackerID uint64, user common.Address) (core.AttackFeePreview, error)
	Buy(user common.Address, id, amount, maxCost6 uint64, deadline inter.Timestamp) (*inter.Receipt, error)
	Sell(user common.Address, id, amount, minProceeds6 uint64, deadline inter.Timestamp) (*inter.Receipt, error)
	Attack(user common.Address, item core.AttackItem, maxFee6 uint64, deadline inter.Timestamp) (*inter.Receipt, error)
	AttackBatch(user common.Address, items []core.AttackItem, maxTotalFee6 uint64, deadline inter.Timestamp) (*inter.Receipt, error)
}

// ErrUnknownMethod reverts calls with a selector the contract does not have.
var ErrUnknownMethod = errors.New("unknown method")

// RevertError is a reverted call. Reason is the error taxonomy name.
type RevertError struct {
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// Data returns the revert reason encoded as Error(string).
func (e *RevertError) Data() []byte {
	return EncodeRevert(e.Reason)
}

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// EncodeRevert encodes reason the way Solidity's revert(string) does.
func EncodeRevert(reason string) []byte {
	strType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: strType}}.Pack(reason)
	return append(common.CopyBytes(revertSelector), packed...)
}

func revert(err error) error {
	if errors.Is(err, ErrUnknownMethod) {
		return &RevertError{Reason: "UnknownMethod", Err: err}
	}
	return &RevertError{Reason: inter.ErrorKind(err), Err: err}
}

// Contract serves FlagWarsCore calldata from a Backend.
type Contract struct {
	backend Backend
}

// New returns a contract over backend.
func New(backend Backend) *Contract {
	return &Contract{backend: backend}
}

// Run executes calldata sent by caller. View methods return ABI-encoded
// output; transactions return their receipt. Every failure is a
// *RevertError.
func (c *Contract) Run(caller common.Address, input []byte) ([]byte, *inter.Receipt, error) {
	ret, receipt, err := c.run(caller, input)
	if err != nil {
		return nil, nil, revert(err)
	}
	return ret, receipt, nil
}

func (c *Contract) run(caller common.Address, input []byte) ([]byte, *inter.Receipt, error) {
	if len(input) < 4 {
		return nil, nil, ErrUnknownMethod
	}
	id, data := input[:4], input[4:]

	if bytes.Equal(id, getCountryInfoMethodID) {
		args, err := unpack("getCountryInfo", data)
		if err != nil {
			return nil, nil, err
		}
		countryID, err := toUint64(args[0])
		if err != nil {
			return nil, nil, err
		}
		country, err := c.backend.Country(countryID)
		if errors.Is(err, inter.ErrCountryNotDeployed) {
			// the contract returns the zero tuple for unknown ids
			country, err = inter.Country{ID: countryID}, nil
		}
		if err != nil {
			return nil, nil, err
		}
		ret, err := EncodeCountryInfo(country)
		return ret, nil, err

	} else if bytes.Equal(id, buyMethodID) {
		args, err := unpack("buy", data)
		if err != nil {
			return nil, nil, err
		}
		v, err := uint64Args(args, 0, 2, 3)
		if err != nil {
			return nil, nil, err
		}
		amount, err := inter.Token18ToWholeTokens(args[1].(*big.Int))
		if err != nil {
			return nil, nil, err
		}
		r, err := c.backend.Buy(caller, v[0], amount, v[1], inter.Timestamp(v[2]))
		return nil, r, err

	} else if bytes.Equal(id, sellMethodID) {
		args, err := unpack("sell", data)
		if err != nil {
			return nil, nil, err
		}
		v, err := uint64Args(args, 0, 2, 3)
		if err != nil {
			return nil, nil, err
		}
		amount, err := inter.Token18ToWholeTokens(args[1].(*big.Int))
		if err != nil {
			return nil, nil, err
		}
		r, err := c.backend.Sell(caller, v[0], amount, v[1], inter.Timestamp(v[2]))
		return nil, r, err

	} else if bytes.Equal(id, attackMethodID) {
		args, err := unpack("attack", data)
		if err != nil {
			return nil, nil, err
		}
		v, err := uint64Args(args, 0, 1, 3, 4)
		if err != nil {
			return nil, nil, err
		}
		amount, err := inter.Token18ToWholeTokens(args[2].(*big.Int))
		if err != nil {
			return nil, nil, err
		}
		item := core.AttackItem{FromID: v[0], ToID: v[1], Amount: amount}
		r, err := c.backend.Attack(caller, item, v[2], inter.Timestamp(v[3]))
		return nil, r, err

	} else if bytes.Equal(id, attackBatchMethodID) {
		args, err := unpack("attackBatch", data)
		if err != nil {
			return nil, nil, err
		}
		items, err := batchItems(args[0].([]*big.Int), args[1].([]*big.Int), args[2].([]*big.Int))
		if err != nil {
			return nil, nil, err
		}
		v, err := uint64Args(args, 3, 4)
		if err != nil {
			return nil, nil, err
		}
		r, err := c.backend.AttackBatch(caller, items, v[0], inter.Timestamp(v[1]))
		return nil, r, err

	} else if bytes.Equal(id, previewAttackFeeMethodID) {
		args, err := unpack("previewAttackFee", data)
		if err != nil {
			return nil, nil, err
		}
		attackerID, err := toUint64(args[0])
		if err != nil {
			return nil, nil, err
		}
		p, err := c.backend.PreviewAttackFee(attackerID, args[1].(common.Address))
		if err != nil {
			return nil, nil, err
		}
		ret, err := parsed.Methods["previewAttackFee"].Outputs.Pack(
			u256(p.BaseFee6), u256(p.FinalFee6), p.IsFreeAttack, u256(p.FreeAttacksRemaining), uint8(p.Tier), u256(p.Delta8))
		return ret, nil, err

	} else if bytes.Equal(id, getUserQuotaMethodID) {
		args, err := unpack("getUserQuota", data)
		if err != nil {
			return nil, nil, err
		}
		user := args[0].(common.Address)
		q := c.backend.Quota(user)
		ret, err := parsed.Methods["getUserQuota"].Outputs.Pack(
			u256(q.FreeAttacksUsed), u256(q.FreeAttacksAwarded), u256(c.backend.FreeAttacksRemaining(user)))
		return ret, nil, err
	}

	return nil, nil, ErrUnknownMethod
}

func unpack(method string, data []byte) ([]interface{}, error) {
	args, err := parsed.Methods[method].Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s calldata: %v", inter.ErrInvalidAmount, method, err)
	}
	return args, nil
}

func toUint64(v interface{}) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok || b.Sign() < 0 || !b.IsUint64() {
		return 0, fmt.Errorf("%w: %v does not fit uint64", inter.ErrInvalidAmount, v)
	}
	return b.Uint64(), nil
}

func uint64Args(args []interface{}, idx ...int) ([]uint64, error) {
	out := make([]uint64, len(idx))
	for i, j := range idx {
		v, err := toUint64(args[j])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func batchItems(fromIDs, toIDs, amounts []*big.Int) ([]core.AttackItem, error) {
	if len(fromIDs) != len(toIDs) || len(fromIDs) != len(amounts) {
		return nil, fmt.Errorf("%w: batch arrays of length %d, %d, %d", inter.ErrInvalidAmount, len(fromIDs), len(toIDs), len(amounts))
	}
	items := make([]core.AttackItem, len(fromIDs))
	for i := range fromIDs {
		from, err := toUint64(fromIDs[i])
		if err != nil {
			return nil, err
		}
		to, err := toUint64(toIDs[i])
		if err != nil {
			return nil, err
		}
		amount, err := inter.Token18ToWholeTokens(amounts[i])
		if err != nil {
			return nil, err
		}
		items[i] = core.AttackItem{FromID: from, ToID: to, Amount: amount}
	}
	return items, nil
}

// EncodeCountryInfo encodes c as the getCountryInfo return tuple.
func EncodeCountryInfo(c inter.Country) ([]byte, error) {
	return parsed.Methods["getCountryInfo"].Outputs.Pack(
		c.Name,
		c.Token,
		c.Exists,
		u256(c.Price8),
		u256(c.Kappa8),
		u256(c.Lambda8),
		u256(c.PriceMin8),
		inter.WholeTokensToToken18(c.Reserve),
	)
}

// DecodeCountryInfo decodes the getCountryInfo return tuple of country id
// into named fields.
func DecodeCountryInfo(id uint64, data []byte) (inter.Country, error) {
	out, err := parsed.Unpack("getCountryInfo", data)
	if err != nil {
		return inter.Country{}, err
	}
	if len(out) != 8 {
		return inter.Country{}, fmt.Errorf("getCountryInfo: %d values, want 8", len(out))
	}
	nums, err := uint64Args(out, 3, 4, 5, 6)
	if err != nil {
		return inter.Country{}, err
	}
	c := inter.Country{
		ID:        id,
		Name:      out[0].(string),
		Token:     out[1].(common.Address),
		Exists:    out[2].(bool),
		Price8:    nums[0],
		Kappa8:    nums[1],
		Lambda8:   nums[2],
		PriceMin8: nums[3],
	}
	if supply := out[7].(*big.Int); supply.Sign() > 0 {
		if c.Reserve, err = inter.Token18ToWholeTokens(supply); err != nil {
			return inter.Country{}, err
		}
	}
	return c, nil
}
