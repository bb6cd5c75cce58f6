package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/sirupsen/logrus"

	"github.com/archslayer/flagbase111-sub000/contracts/flagwarscore"
	"github.com/archslayer/flagbase111-sub000/core"
	"github.com/archslayer/flagbase111-sub000/flagwars"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/mirror"
	"github.com/archslayer/flagbase111-sub000/snapshot"
	"github.com/archslayer/flagbase111-sub000/store"
	"github.com/archslayer/flagbase111-sub000/txpoll"
	"github.com/archslayer/flagbase111-sub000/usdc"
)

// AuditFile is the audit database name inside the data directory.
const AuditFile = "audit.db"

// ErrWallClock is returned by Advance on a node that runs on wall time.
var ErrWallClock = errors.New("node runs on wall clock time")

// NodeConfig describes a runtime.
type NodeConfig struct {
	Preset PresetConfig
	// Rules overrides the preset rules when its Name is set.
	Rules flagwars.Rules
	// DataDir holds the audit database. Required when Preset.Audit is on.
	DataDir string
	// GenesisTime, when set, runs the node on a simulated clock starting at
	// that time. Otherwise the node follows wall time.
	GenesisTime inter.Timestamp
	Logger      logrus.FieldLogger
}

// Node is an assembled runtime.
type Node struct {
	Engine    *core.Engine
	Ledger    *usdc.Ledger
	Contract  *flagwarscore.Contract
	ReadModel *mirror.ReadModel
	Audit     *mirror.AuditLog
	Mirror    *mirror.Mirror
	Poller    *txpoll.Poller

	preset    PresetConfig
	sim       *mclock.Simulated
	stop      func() error
	closeOnce sync.Once
	closeErr  error
	log       logrus.FieldLogger
}

// NewNode builds and starts a runtime. Close releases it.
func NewNode(cfg NodeConfig) (*Node, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	rules := cfg.Rules
	if rules.Name == "" {
		var err error
		if rules, err = flagwars.RulesByName(cfg.Preset.Rules); err != nil {
			return nil, err
		}
	}

	stores := core.MemoryStores()
	if cfg.Preset.ReceiptCache > 0 {
		var err error
		if stores, err = core.BoundedReceipts(cfg.Preset.ReceiptCache); err != nil {
			return nil, err
		}
	}

	n := &Node{preset: cfg.Preset, log: log.WithField("module", "node")}
	var clock core.Clock = core.WallClock{}
	if cfg.GenesisTime != 0 {
		n.sim = new(mclock.Simulated)
		clock = core.NewMonotonicClock(n.sim, cfg.GenesisTime)
	}

	n.Ledger = usdc.NewLedger(store.NewMemory[common.Address, usdc.Account](), log)
	engine, err := core.NewEngine(rules, core.Config{
		Clock:    clock,
		Payments: n.Ledger,
		Stores:   &stores,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	n.Engine = engine
	n.Contract = flagwarscore.New(engine)

	if n.ReadModel, err = mirror.NewReadModel(engine, cfg.Preset.ReadModelCache); err != nil {
		return nil, err
	}
	if cfg.Preset.Audit {
		if cfg.DataDir == "" {
			return nil, errors.New("audit log needs a data directory")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create datadir %s: %w", cfg.DataDir, err)
		}
		if n.Audit, err = mirror.OpenAuditLog(filepath.Join(cfg.DataDir, AuditFile)); err != nil {
			return nil, err
		}
	}
	n.Mirror = mirror.New(mirror.Config{Audit: n.Audit, ReadModel: n.ReadModel, Logger: log})
	n.stop = n.Mirror.Start(engine)

	n.Poller = txpoll.New(engine, txpoll.Config{
		Interval:    cfg.Preset.PollInterval,
		MaxAttempts: cfg.Preset.PollAttempts,
	}, log)

	n.log.WithFields(logrus.Fields{
		"preset": cfg.Preset.Name,
		"rules":  rules.Name,
		"chain":  rules.ChainID,
		"audit":  n.Audit != nil,
	}).Info("Node started")
	return n, nil
}

// Close stops the mirror and closes the audit log. Receipts already
// published are mirrored before it returns.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.closeErr = n.stop()
		if n.Audit != nil {
			if err := n.Audit.Close(); n.closeErr == nil {
				n.closeErr = err
			}
		}
		n.log.Info("Node stopped")
	})
	return n.closeErr
}

// Advance moves a simulated node's clock forward.
func (n *Node) Advance(d time.Duration) error {
	if n.sim == nil {
		return ErrWallClock
	}
	n.sim.Run(d)
	return nil
}

// Genesis is the initial world of a run.
type Genesis struct {
	Countries []inter.Country
	Accounts  []GenesisAccount
}

// GenesisAccount funds one user.
type GenesisAccount struct {
	Address     common.Address
	Balance6    uint64
	Allowance6  uint64
	Holdings    map[uint64]uint64
	FreeAttacks uint64
}

// Seed creates the genesis countries and funds the genesis accounts, then
// warms the read model.
func (n *Node) Seed(ctx context.Context, g Genesis) error {
	ids := make([]uint64, 0, len(g.Countries))
	for _, c := range g.Countries {
		if err := n.Engine.CreateCountry(c); err != nil {
			return fmt.Errorf("country %d: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}
	for _, a := range g.Accounts {
		if err := n.Ledger.Mint(a.Address, a.Balance6); err != nil {
			return fmt.Errorf("fund %s: %w", a.Address.Hex(), err)
		}
		n.Ledger.Approve(a.Address, a.Allowance6)
		for id, amount := range a.Holdings {
			if err := n.Engine.FundHoldings(a.Address, id, amount); err != nil {
				return fmt.Errorf("fund %s with country %d: %w", a.Address.Hex(), id, err)
			}
		}
		if a.FreeAttacks > 0 {
			n.Engine.AwardFreeAttacks(a.Address, a.FreeAttacks)
		}
	}
	n.ReadModel.Purge()
	return n.ReadModel.Warm(ctx, ids, n.preset.WarmParallel)
}

// Submit runs calldata from caller through the contract and, for
// transactions, waits for the receipt to be retrievable.
func (n *Node) Submit(ctx context.Context, caller common.Address, calldata []byte) ([]byte, *inter.Receipt, error) {
	ret, r, err := n.Contract.Run(caller, calldata)
	if err != nil || r == nil {
		return ret, r, err
	}
	confirmed, err := n.Poller.Wait(ctx, r.TxHash)
	if err != nil {
		return nil, r, err
	}
	return ret, confirmed, nil
}

// SaveSnapshot writes the engine state to path.
func (n *Node) SaveSnapshot(path string) error {
	return snapshot.Save(path, snapshot.Of(n.Engine))
}

// LoadSnapshot restores the engine state from path. The node must not have
// been seeded.
func (n *Node) LoadSnapshot(path string) error {
	s, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	if err := s.Restore(n.Engine); err != nil {
		return err
	}
	n.ReadModel.Purge()
	return nil
}
