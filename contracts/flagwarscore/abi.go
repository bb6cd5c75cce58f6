// Package flagwarscore is the ABI boundary of the FlagWarsCore contract.
//
// Overview:
//
//	Clients talk to the economic engine the way they talk to the deployed
//	contract: ABI-encoded calldata in, ABI-encoded return data and event logs
//	out. This package decodes calldata, dispatches it into the engine and
//	encodes results, so the same client code can target the chain or the
//	simulator.
//
// Units:
//   - token amounts are TOKEN18 on the wire and must be whole tokens
//   - prices and slopes are price8
//   - costs, fees and proceeds are USDC6
//
// Failures:
//
//	Engine errors revert with the taxonomy name as reason string, encoded as
//	Solidity's Error(string).
package flagwarscore

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ContractAddress is the address logs of the simulated contract carry.
	ContractAddress = common.HexToAddress("0xf1a9000000000000000000000000000000000001")

	// ContractABI is the JSON ABI of the FlagWarsCore methods and events the
	// engine serves:
	//   - getCountryInfo(uint256 id): the country tuple
	//   - buy / sell: bonding-curve trades with slippage bound and deadline
	//   - attack / attackBatch: single and batched attacks
	//   - previewAttackFee(uint256 attackerId, address user): the next attack fee
	//   - getUserQuota(address user): the free-attack quota
	ContractABI = `[
	{"type":"function","name":"getCountryInfo","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"name","type":"string"},{"name":"token","type":"address"},{"name":"exists","type":"bool"},
	            {"name":"price8","type":"uint256"},{"name":"kappa8","type":"uint256"},{"name":"lambda8","type":"uint256"},
	            {"name":"priceMin8","type":"uint256"},{"name":"totalSupply18","type":"uint256"}]},
	{"type":"function","name":"buy","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"},{"name":"amountToken18","type":"uint256"},
	           {"name":"maxInUSDC6","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"sell","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"},{"name":"amountToken18","type":"uint256"},
	           {"name":"minOutUSDC6","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"attack","stateMutability":"nonpayable",
	 "inputs":[{"name":"fromId","type":"uint256"},{"name":"toId","type":"uint256"},{"name":"amountToken18","type":"uint256"},
	           {"name":"maxFeeUSDC6","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"attackBatch","stateMutability":"nonpayable",
	 "inputs":[{"name":"fromIds","type":"uint256[]"},{"name":"toIds","type":"uint256[]"},{"name":"amountsToken18","type":"uint256[]"},
	           {"name":"maxTotalFeeUSDC6","type":"uint256"},{"name":"deadline","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"previewAttackFee","stateMutability":"view",
	 "inputs":[{"name":"attackerId","type":"uint256"},{"name":"user","type":"address"}],
	 "outputs":[{"name":"baseFeeUSDC6","type":"uint256"},{"name":"finalFeeUSDC6","type":"uint256"},
	            {"name":"isFreeAttack","type":"bool"},{"name":"freeAttacksRemaining","type":"uint256"},
	            {"name":"tier","type":"uint8"},{"name":"delta8","type":"uint256"}]},
	{"type":"function","name":"getUserQuota","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"freeAttacksUsed","type":"uint256"},{"name":"freeAttacksAwarded","type":"uint256"},
	            {"name":"freeAttacksRemaining","type":"uint256"}]},
	{"type":"event","name":"Bought","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"countryId","type":"uint256","indexed":true},
	           {"name":"amountToken18","type":"uint256","indexed":false},{"name":"grossUSDC6","type":"uint256","indexed":false},
	           {"name":"feeUSDC6","type":"uint256","indexed":false},{"name":"netUSDC6","type":"uint256","indexed":false},
	           {"name":"newPrice8","type":"uint256","indexed":false}]},
	{"type":"event","name":"Sold","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"countryId","type":"uint256","indexed":true},
	           {"name":"amountToken18","type":"uint256","indexed":false},{"name":"grossUSDC6","type":"uint256","indexed":false},
	           {"name":"feeUSDC6","type":"uint256","indexed":false},{"name":"netUSDC6","type":"uint256","indexed":false},
	           {"name":"newPrice8","type":"uint256","indexed":false},{"name":"extraFeeBps","type":"uint256","indexed":false}]},
	{"type":"event","name":"Attack","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"fromId","type":"uint256","indexed":true},
	           {"name":"toId","type":"uint256","indexed":true},{"name":"amountToken18","type":"uint256","indexed":false},
	           {"name":"feeUSDC6","type":"uint256","indexed":false},{"name":"delta8","type":"uint256","indexed":false},
	           {"name":"newFromPrice8","type":"uint256","indexed":false},{"name":"newToPrice8","type":"uint256","indexed":false},
	           {"name":"multiplierBps","type":"uint256","indexed":false},{"name":"free","type":"bool","indexed":false},
	           {"name":"batch","type":"bool","indexed":false}]},
	{"type":"event","name":"FreeAttackUsed","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"fromId","type":"uint256","indexed":true},
	           {"name":"toId","type":"uint256","indexed":true},{"name":"remaining","type":"uint256","indexed":false}]},
	{"type":"event","name":"AntiDumpApplied","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"countryId","type":"uint256","indexed":true},
	           {"name":"sellPctBps","type":"uint256","indexed":false},{"name":"extraFeeBps","type":"uint256","indexed":false},
	           {"name":"cooldownUntil","type":"uint256","indexed":false}]}
]`
)

var (
	// parsed is the decoded ContractABI.
	parsed abi.ABI

	// Method IDs are the first 4 bytes of the keccak256 hash of the function signature.
	getCountryInfoMethodID   []byte // getCountryInfo(uint256)
	buyMethodID              []byte // buy(uint256,uint256,uint256,uint256)
	sellMethodID             []byte // sell(uint256,uint256,uint256,uint256)
	attackMethodID           []byte // attack(uint256,uint256,uint256,uint256,uint256)
	attackBatchMethodID      []byte // attackBatch(uint256[],uint256[],uint256[],uint256,uint256)
	previewAttackFeeMethodID []byte // previewAttackFee(uint256,address)
	getUserQuotaMethodID     []byte // getUserQuota(address)
)

// init parses the ABI and extracts the method selectors.
func init() {
	var err error
	parsed, err = abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}

	for name, constID := range map[string]*[]byte{
		"getCountryInfo":   &getCountryInfoMethodID,
		"buy":              &buyMethodID,
		"sell":             &sellMethodID,
		"attack":           &attackMethodID,
		"attackBatch":      &attackBatchMethodID,
		"previewAttackFee": &previewAttackFeeMethodID,
		"getUserQuota":     &getUserQuotaMethodID,
	} {
		method, exist := parsed.Methods[name]
		if !exist {
			panic("unknown FlagWarsCore method " + name)
		}
		*constID = make([]byte, len(method.ID))
		copy(*constID, method.ID)
	}
}

// ABI returns the parsed contract ABI.
func ABI() abi.ABI {
	return parsed
}

// Calldata builders, as a client would produce them.

func PackGetCountryInfo(id uint64) ([]byte, error) {
	return parsed.Pack("getCountryInfo", u256(id))
}

func PackBuy(id uint64, amountToken18 *big.Int, maxInUSDC6, deadline uint64) ([]byte, error) {
	return parsed.Pack("buy", u256(id), amountToken18, u256(maxInUSDC6), u256(deadline))
}

func PackSell(id uint64, amountToken18 *big.Int, minOutUSDC6, deadline uint64) ([]byte, error) {
	return parsed.Pack("sell", u256(id), amountToken18, u256(minOutUSDC6), u256(deadline))
}

func PackAttack(fromID, toID uint64, amountToken18 *big.Int, maxFeeUSDC6, deadline uint64) ([]byte, error) {
	return parsed.Pack("attack", u256(fromID), u256(toID), amountToken18, u256(maxFeeUSDC6), u256(deadline))
}

func PackAttackBatch(fromIDs, toIDs []uint64, amountsToken18 []*big.Int, maxTotalFeeUSDC6, deadline uint64) ([]byte, error) {
	return parsed.Pack("attackBatch", u256s(fromIDs), u256s(toIDs), amountsToken18, u256(maxTotalFeeUSDC6), u256(deadline))
}

func PackPreviewAttackFee(attackerID uint64, user common.Address) ([]byte, error) {
	return parsed.Pack("previewAttackFee", u256(attackerID), user)
}

func PackGetUserQuota(user common.Address) ([]byte, error) {
	return parsed.Pack("getUserQuota", user)
}

func u256(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func u256s(vs []uint64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = u256(v)
	}
	return out
}
