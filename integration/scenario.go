package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"github.com/archslayer/flagbase111-sub000/core"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/usdc"
)

// Scenario operations.
const (
	StepBuy    = "buy"
	StepSell   = "sell"
	StepAttack = "attack"
	StepBatch  = "batch"
	StepWait   = "wait"
	StepAward  = "award"
)

// DefaultDeadline is how far past the block time step deadlines are set.
const DefaultDeadline = 600

// ErrUnexpectedOutcome is returned when a step does not end the way its
// expect field says.
var ErrUnexpectedOutcome = errors.New("unexpected step outcome")

// Scenario is a scripted run, usually loaded from YAML:
//
//	name: cooldown
//	start: 1700000000
//	countries:
//	  - {id: 1, name: Turkey, price: "4.00", kappa8: 55000, lambda8: 55000, floor: "0.01", reserve: 1000}
//	accounts:
//	  - {name: alice, usdc: "1000", tokens: {1: 200}}
//	steps:
//	  - {op: sell, user: alice, country: 1, amount: 80}
//	  - {op: sell, user: alice, country: 1, amount: 1, expect: SellCooldownActive}
//	  - {op: wait, seconds: 60}
//	  - {op: sell, user: alice, country: 1, amount: 1}
type Scenario struct {
	Name      string        `yaml:"name"`
	Start     int64         `yaml:"start"`
	Countries []CountrySpec `yaml:"countries"`
	Accounts  []AccountSpec `yaml:"accounts"`
	Steps     []Step        `yaml:"steps"`
}

// CountrySpec declares a genesis country. Price and Floor are USDC strings.
type CountrySpec struct {
	ID      uint64 `yaml:"id"`
	Name    string `yaml:"name"`
	Token   string `yaml:"token"`
	Price   string `yaml:"price"`
	Kappa8  uint64 `yaml:"kappa8"`
	Lambda8 uint64 `yaml:"lambda8"`
	Floor   string `yaml:"floor"`
	Reserve uint64 `yaml:"reserve"`
}

// AccountSpec declares a genesis account. USDC is both balance and
// allowance unless Allowance is set.
type AccountSpec struct {
	Name        string            `yaml:"name"`
	USDC        string            `yaml:"usdc"`
	Allowance   string            `yaml:"allowance"`
	Tokens      map[uint64]uint64 `yaml:"tokens"`
	FreeAttacks uint64            `yaml:"free_attacks"`
}

// Step is one scripted operation. Limit is the USDC slippage bound: max cost
// for buy, min proceeds for sell, max fee for attack and batch. An empty
// Limit is unbounded.
type Step struct {
	Op      string      `yaml:"op"`
	User    string      `yaml:"user"`
	Country uint64      `yaml:"country"`
	From    uint64      `yaml:"from"`
	To      uint64      `yaml:"to"`
	Amount  uint64      `yaml:"amount"`
	Items   []BatchItem `yaml:"items"`
	Limit   string      `yaml:"limit"`
	Seconds uint64      `yaml:"seconds"`
	N       uint64      `yaml:"n"`
	// Expect names the error the step must fail with. Empty expects
	// success.
	Expect string `yaml:"expect"`
}

// BatchItem is one item of a batch step.
type BatchItem struct {
	From   uint64 `yaml:"from"`
	To     uint64 `yaml:"to"`
	Amount uint64 `yaml:"amount"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int
	Step    Step
	Receipt *inter.Receipt
	Err     error
}

// ParseScenario decodes a YAML scenario. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("scenario has no steps")
	}
	return &s, nil
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// UserAddress resolves a scenario user: a hex address is used as is, any
// other name maps to a stable address derived from it.
func UserAddress(name string) common.Address {
	if common.IsHexAddress(name) {
		return common.HexToAddress(name)
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

// Genesis converts the scenario countries and accounts.
func (s *Scenario) Genesis() (Genesis, error) {
	var g Genesis
	for _, cs := range s.Countries {
		price, err := usdc.ParsePrice8(cs.Price)
		if err != nil {
			return Genesis{}, fmt.Errorf("country %d price: %w", cs.ID, err)
		}
		floor, err := usdc.ParsePrice8(cs.Floor)
		if err != nil {
			return Genesis{}, fmt.Errorf("country %d floor: %w", cs.ID, err)
		}
		g.Countries = append(g.Countries, inter.Country{
			ID:        cs.ID,
			Name:      cs.Name,
			Token:     common.HexToAddress(cs.Token),
			Price8:    price,
			Kappa8:    cs.Kappa8,
			Lambda8:   cs.Lambda8,
			PriceMin8: floor,
			Reserve:   cs.Reserve,
		})
	}
	for _, as := range s.Accounts {
		balance, err := usdc.Parse(as.USDC)
		if err != nil {
			return Genesis{}, fmt.Errorf("account %s: %w", as.Name, err)
		}
		allowance := balance
		if as.Allowance != "" {
			if allowance, err = usdc.Parse(as.Allowance); err != nil {
				return Genesis{}, fmt.Errorf("account %s allowance: %w", as.Name, err)
			}
		}
		g.Accounts = append(g.Accounts, GenesisAccount{
			Address:     UserAddress(as.Name),
			Balance6:    balance,
			Allowance6:  allowance,
			Holdings:    as.Tokens,
			FreeAttacks: as.FreeAttacks,
		})
	}
	return g, nil
}

// Run seeds n with the scenario genesis and executes every step. It stops at
// the first step whose outcome differs from its expectation; the results up
// to and including that step are returned.
func (s *Scenario) Run(ctx context.Context, n *Node) ([]StepResult, error) {
	g, err := s.Genesis()
	if err != nil {
		return nil, err
	}
	if err := n.Seed(ctx, g); err != nil {
		return nil, err
	}

	results := make([]StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, err := s.exec(n, step)
		results = append(results, StepResult{Index: i, Step: step, Receipt: r, Err: err})

		got := ""
		if err != nil {
			got = inter.ErrorKind(err)
		}
		if got != step.Expect {
			if err == nil {
				return results, fmt.Errorf("%w: step %d (%s) succeeded, want %s", ErrUnexpectedOutcome, i, step.Op, step.Expect)
			}
			return results, fmt.Errorf("%w: step %d (%s): %v", ErrUnexpectedOutcome, i, step.Op, err)
		}
	}
	return results, nil
}

func (s *Scenario) exec(n *Node, step Step) (*inter.Receipt, error) {
	e := n.Engine
	user := UserAddress(step.User)
	deadline := e.Now().Add(DefaultDeadline)

	switch step.Op {
	case StepBuy:
		limit, err := parseLimit(step.Limit, ^uint64(0))
		if err != nil {
			return nil, err
		}
		return e.Buy(user, step.Country, step.Amount, limit, deadline)
	case StepSell:
		limit, err := parseLimit(step.Limit, 0)
		if err != nil {
			return nil, err
		}
		return e.Sell(user, step.Country, step.Amount, limit, deadline)
	case StepAttack:
		limit, err := parseLimit(step.Limit, ^uint64(0))
		if err != nil {
			return nil, err
		}
		return e.Attack(user, core.AttackItem{FromID: step.From, ToID: step.To, Amount: step.Amount}, limit, deadline)
	case StepBatch:
		limit, err := parseLimit(step.Limit, ^uint64(0))
		if err != nil {
			return nil, err
		}
		items := make([]core.AttackItem, len(step.Items))
		for i, it := range step.Items {
			items[i] = core.AttackItem{FromID: it.From, ToID: it.To, Amount: it.Amount}
		}
		return e.AttackBatch(user, items, limit, deadline)
	case StepWait:
		return nil, n.Advance(time.Duration(step.Seconds) * time.Second)
	case StepAward:
		e.AwardFreeAttacks(user, step.N)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown step op %q", step.Op)
}

func parseLimit(s string, unset uint64) (uint64, error) {
	if s == "" {
		return unset, nil
	}
	return usdc.Parse(s)
}
