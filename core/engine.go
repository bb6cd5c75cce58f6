// Package core is the FlagWars orchestrator. The Engine ties the bonding
// curve, the attack fee tiers, the war-balance windows and the anti-dump and
// quota guard together per transaction.
//
// The Engine plays the role of the chain: it is the only writer of country,
// holding, quota, cooldown and war-balance state and it executes transactions
// one at a time. Every transaction either applies completely or not at all.
// Quotes run concurrently against a consistent snapshot.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/archslayer/flagbase111-sub000/flagwars"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// Operation names recorded in receipts.
const (
	OpBuy         = "buy"
	OpSell        = "sell"
	OpAttack      = "attack"
	OpAttackBatch = "attackBatch"
)

// Config holds the collaborators of an Engine.
type Config struct {
	// Clock supplies block times. Defaults to WallClock.
	Clock Clock
	// Payments collects fees and costs and pays out proceeds. Required.
	Payments Payments
	// Stores holds the engine state. Defaults to MemoryStores.
	Stores *Stores
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Engine executes FlagWars transactions.
type Engine struct {
	rules flagwars.Rules
	clock Clock
	pay   Payments
	st    Stores
	wb    *warbalance.Tracker
	log   logrus.FieldLogger

	// mu serialises transactions; quotes take the read side.
	mu    sync.RWMutex
	block idx.Block

	// emitMu queues transactions and keeps receipts in block order on the
	// feed. It is taken before mu, and mu is released before sending.
	emitMu sync.Mutex
	feed   event.Feed
}

// payment is the USDC movement of a transaction.
type payment struct {
	collect6  uint64
	disburse6 uint64
}

// NewEngine validates rules and builds an engine. The rules are copied.
func NewEngine(rules flagwars.Rules, cfg Config) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.Payments == nil {
		return nil, errors.New("core: payments collaborator required")
	}
	if cfg.Clock == nil {
		cfg.Clock = WallClock{}
	}
	st := MemoryStores()
	if cfg.Stores != nil {
		st = *cfg.Stores
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	rules = rules.Copy()
	return &Engine{
		rules: rules,
		clock: cfg.Clock,
		pay:   cfg.Payments,
		st:    st,
		wb:    warbalance.NewTracker(rules.WarBalance, st.WarBalance),
		log:   cfg.Logger.WithField("module", "core"),
	}, nil
}

// Rules returns a copy of the engine rules.
func (e *Engine) Rules() flagwars.Rules {
	return e.rules.Copy()
}

// Now returns the current block time.
func (e *Engine) Now() inter.Timestamp {
	return e.clock.Now()
}

// Block returns the number of the last executed block.
func (e *Engine) Block() idx.Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.block
}

// SubscribeReceipts delivers the receipt of every executed transaction, in
// block order. Receipts are sent after the state they describe is visible, so
// subscribers may call the read API. A subscriber must not execute
// transactions from the delivering goroutine.
func (e *Engine) SubscribeReceipts(ch chan<- *inter.Receipt) event.Subscription {
	return e.feed.Subscribe(ch)
}

// Receipt returns a retained receipt by transaction hash.
func (e *Engine) Receipt(hash common.Hash) (*inter.Receipt, bool) {
	return e.st.Receipts.Get(hash)
}

// execute runs fn as one transaction of user: deadline check, body, payment,
// commit, receipt.
func (e *Engine) execute(user common.Address, op string, deadline inter.Timestamp, fn func(tx *txState, now inter.Timestamp) (payment, error)) (*inter.Receipt, error) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.mu.Lock()
	now := e.clock.Now()
	logger := e.log.WithFields(logrus.Fields{"op": op, "user": user})

	fail := func(err error) (*inter.Receipt, error) {
		e.mu.Unlock()
		logger.WithField("reason", inter.ErrorKind(err)).WithError(err).Debug("Transaction rejected")
		return nil, err
	}

	if now > deadline {
		return fail(fmt.Errorf("%w: now %s, deadline %s", inter.ErrDeadlineExpired, now, deadline))
	}
	tx := newTx(e)
	pay, err := fn(tx, now)
	if err != nil {
		return fail(err)
	}
	if err := e.settle(user, pay); err != nil {
		return fail(err)
	}
	tx.commit()

	nonce, _ := e.st.Nonces.Get(user)
	e.st.Nonces.Set(user, nonce+1)
	e.block++
	receipt := &inter.Receipt{
		TxHash: e.txHash(user, nonce, op),
		Block:  e.block,
		Time:   now,
		User:   user,
		Op:     op,
		Events: tx.events,
	}
	e.st.Receipts.Set(receipt.TxHash, receipt)

	logger.WithFields(logrus.Fields{
		"block":  receipt.Block,
		"tx":     receipt.TxHash.Hex(),
		"events": len(receipt.Events),
	}).Info("Transaction executed")

	e.mu.Unlock()
	e.feed.Send(receipt)
	return receipt, nil
}

// settle moves the USDC of a transaction. A collection that fails aborts the
// transaction before anything was committed.
func (e *Engine) settle(user common.Address, p payment) error {
	if p.collect6 > 0 {
		if err := e.pay.Collect(user, p.collect6); err != nil {
			return err
		}
	}
	if p.disburse6 > 0 {
		if err := e.pay.Disburse(user, p.disburse6); err != nil {
			return err
		}
	}
	return nil
}

// txHash derives a transaction hash from the chain, the sender, the sender's
// nonce and the operation.
func (e *Engine) txHash(user common.Address, nonce uint64, op string) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], e.rules.ChainID)
	binary.BigEndian.PutUint64(buf[8:], nonce)
	return crypto.Keccak256Hash(buf[:8], user.Bytes(), buf[8:], []byte(op))
}

// Country returns a deployed country.
func (e *Engine) Country(id uint64) (inter.Country, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return newTx(e).country(id)
}

// Countries returns every deployed country ordered by id.
func (e *Engine) Countries() []inter.Country {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.countries()
}

func (e *Engine) countries() []inter.Country {
	var out []inter.Country
	e.st.Countries.Range(func(_ uint64, c inter.Country) bool {
		if c.Exists {
			out = append(out, c)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Holdings returns the whole tokens of country id held by user.
func (e *Engine) Holdings(user common.Address, id uint64) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, _ := e.st.Holdings.Get(PairKey{User: user, Country: id})
	return v
}

// Quota returns the free-attack quota of user.
func (e *Engine) Quota(user common.Address) inter.UserQuota {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, _ := e.st.Quotas.Get(user)
	return q
}

// FreeAttacksRemaining returns how many free attacks user can still use.
func (e *Engine) FreeAttacksRemaining(user common.Address) uint64 {
	return e.Quota(user).Remaining(e.rules.FreeAttack.Limit)
}

// CooldownUntil returns the time before which user cannot sell country id.
func (e *Engine) CooldownUntil(user common.Address, id uint64) inter.Timestamp {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, _ := e.st.Cooldowns.Get(PairKey{User: user, Country: id})
	return v
}

// WarBalance returns the war-balance level in force for user against
// targetID right now, before the next attack is counted, and the stored
// window state. The next attack itself is counted first, so it may run at a
// higher level than reported here.
func (e *Engine) WarBalance(user common.Address, targetID uint64) (warbalance.Level, warbalance.State) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	key := e.rules.WarBalance.Scope.KeyFor(user, targetID)
	return e.wb.Peek(key, e.clock.Now()), e.wb.State(key)
}
