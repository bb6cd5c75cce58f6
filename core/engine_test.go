package core

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/archslayer/flagbase111-sub000/flagwars"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/store"
	"github.com/archslayer/flagbase111-sub000/usdc"
)

const genesisTime inter.Timestamp = 1_700_000_000

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

type testEnv struct {
	*Engine
	sim    *mclock.Simulated
	ledger *usdc.Ledger
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestEnv builds an engine on the main rules with three countries and
// 1000 USDC approved for alice and bob.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRules(t, flagwars.MainRules())
}

func newTestEnvWithRules(t *testing.T, rules flagwars.Rules) *testEnv {
	t.Helper()
	sim := new(mclock.Simulated)
	ledger := usdc.NewLedger(store.NewMemory[common.Address, usdc.Account](), testLogger())
	e, err := NewEngine(rules, Config{
		Clock:    NewMonotonicClock(sim, genesisTime),
		Payments: ledger,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	countries := []inter.Country{
		{ID: 1, Name: "Turkey", Price8: 400000000, Kappa8: 55000, Lambda8: 55000, PriceMin8: 1000000, Reserve: 50000},
		{ID: 2, Name: "Germany", Price8: 500000000, Kappa8: 55000, Lambda8: 55000, PriceMin8: 1000000, Reserve: 50000},
		{ID: 3, Name: "France", Price8: 1200000000, Kappa8: 55000, Lambda8: 55000, PriceMin8: 1000000, Reserve: 50000},
	}
	for _, c := range countries {
		require.NoError(t, e.CreateCountry(c))
	}
	for _, u := range []common.Address{alice, bob} {
		require.NoError(t, ledger.Mint(u, 1000_000000))
		ledger.Approve(u, 1000_000000)
	}
	return &testEnv{Engine: e, sim: sim, ledger: ledger}
}

func (env *testEnv) deadline() inter.Timestamp {
	return env.Now().Add(600)
}

func TestNewEngine_rejectsInvalidRules(t *testing.T) {
	rules := flagwars.MainRules()
	rules.AttackTiers = nil
	_, err := NewEngine(rules, Config{Payments: usdc.NewLedger(store.NewMemory[common.Address, usdc.Account](), nil)})
	require.True(t, errors.Is(err, inter.ErrInvalidRules))

	_, err = NewEngine(flagwars.MainRules(), Config{})
	require.Error(t, err)
}

func TestMonotonicClock(t *testing.T) {
	sim := new(mclock.Simulated)
	c := NewMonotonicClock(sim, genesisTime)
	require.Equal(t, genesisTime, c.Now())
	sim.Run(90*time.Second + 500*time.Millisecond)
	require.Equal(t, genesisTime+90, c.Now())
}

// TestQuoteBuy_endToEnd pins the documented curve values at 5.00 USDC.
func TestQuoteBuy_endToEnd(t *testing.T) {
	env := newTestEnv(t)

	q, err := env.QuoteBuy(2, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), q.Gross6)

	q, err = env.QuoteBuy(2, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(50_024_750), q.Gross6)
	require.Equal(t, uint64(0), q.Fee6)
	require.Equal(t, q.Gross6, q.Net6)
}

func TestBuy(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	r, err := env.Buy(alice, 2, 10, 50_024_750, env.deadline())
	require.NoError(err)
	require.Equal(OpBuy, r.Op)
	require.EqualValues(1, r.Block)
	require.Len(r.Events, 1)

	ev := r.Events[0].(inter.Bought)
	require.Equal(uint64(10), ev.Amount)
	require.Equal(uint64(50_024_750), ev.Net6)
	require.Equal(uint64(500_550_000), ev.NewPrice8)

	c, err := env.Country(2)
	require.NoError(err)
	require.Equal(uint64(500_550_000), c.Price8)
	require.Equal(uint64(49_990), c.Reserve)
	require.Equal(uint64(10), env.Holdings(alice, 2))
	require.Equal(uint64(1000_000000-50_024_750), env.ledger.Balance(alice))
	require.Equal(uint64(50_024_750), env.ledger.Treasury())
}

func TestBuy_rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(env *testEnv)
		id      uint64
		amount  uint64
		maxCost uint64
		late    bool
		want    error
	}{
		{name: "zero amount", id: 2, amount: 0, maxCost: 1 << 40, want: inter.ErrInvalidAmount},
		{name: "unknown country", id: 42, amount: 1, maxCost: 1 << 40, want: inter.ErrCountryNotDeployed},
		{name: "above reserve", id: 2, amount: 50_001, maxCost: 1 << 62, want: inter.ErrInsufficientReserve},
		{name: "slippage", id: 2, amount: 10, maxCost: 50_024_749, want: inter.ErrSlippageExceeded},
		{name: "deadline", id: 2, amount: 1, maxCost: 1 << 40, late: true, want: inter.ErrDeadlineExpired},
		{
			name:    "allowance",
			prepare: func(env *testEnv) { env.ledger.Approve(alice, 1) },
			id:      2, amount: 1, maxCost: 1 << 40,
			want: inter.ErrInsufficientAllowance,
		},
		{
			name:    "balance",
			prepare: func(env *testEnv) { env.ledger.Approve(alice, 1<<62) },
			id:      2, amount: 1000, maxCost: 1 << 62,
			want: inter.ErrInsufficientBalance,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.prepare != nil {
				tt.prepare(env)
			}
			before := env.Export()
			deadline := env.deadline()
			if tt.late {
				deadline = env.Now() - 1
			}
			_, err := env.Buy(alice, tt.id, tt.amount, tt.maxCost, deadline)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Buy() err = %v, want %v", err, tt.want)
			}
			require.Equal(t, before, env.Export(), "rejected buy must not change state")
			require.Zero(t, env.ledger.Treasury())
		})
	}
}

func TestSell_antiDumpCooldown(t *testing.T) {
	require := require.New(t)
	rules := flagwars.MainRules()
	env := newTestEnvWithRules(t, rules)
	require.NoError(env.CreateCountry(inter.Country{
		ID: 7, Name: "Japan", Price8: 500000000, Kappa8: 55000, Lambda8: 55000, PriceMin8: 1000000, Reserve: 1000,
	}))
	require.NoError(env.FundHoldings(alice, 7, 200))

	// 80 of 800 is exactly the 10% tier: +200 bps, 60s cooldown
	r, err := env.Sell(alice, 7, 80, 0, env.deadline())
	require.NoError(err)
	require.Len(r.Events, 2)
	ad := r.Events[0].(inter.AntiDumpApplied)
	require.Equal(uint64(1000), ad.SellPctBps)
	require.Equal(uint64(200), ad.ExtraFeeBps)
	require.Equal(genesisTime+60, ad.CooldownUntil)

	sold := r.Events[1].(inter.Sold)
	require.Equal(uint64(398_262_000), sold.Gross6)
	require.Equal(uint64(27_878_340), sold.Fee6)
	require.Equal(uint64(370_383_660), sold.Net6)
	require.Equal(uint64(495_600_000), sold.NewPrice8)
	require.Equal(genesisTime+60, env.CooldownUntil(alice, 7))

	_, err = env.Sell(alice, 7, 1, 0, env.deadline())
	require.True(errors.Is(err, inter.ErrSellCooldownActive), "got %v", err)

	env.sim.Run(59 * time.Second)
	_, err = env.Sell(alice, 7, 1, 0, env.deadline())
	require.True(errors.Is(err, inter.ErrSellCooldownActive), "got %v", err)

	env.sim.Run(time.Second)
	r, err = env.Sell(alice, 7, 1, 0, env.deadline())
	require.NoError(err)
	require.Empty(r.EventsOf(inter.KindAntiDumpApplied))

	// cooldowns are per (user, country)
	require.NoError(env.FundHoldings(bob, 7, 10))
	_, err = env.Sell(bob, 7, 1, 0, env.deadline())
	require.NoError(err)
}

func TestSell_floor(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.CreateCountry(inter.Country{
		ID: 8, Name: "Chile", Price8: 500000000, Kappa8: 55000, Lambda8: 55000, PriceMin8: 499000000, Reserve: 100000,
	}))
	require.NoError(env.FundHoldings(alice, 8, 100))

	// 19 tokens would leave 498955000, below the floor
	_, err := env.Sell(alice, 8, 19, 0, env.deadline())
	require.True(errors.Is(err, inter.ErrFloorPriceBreach), "got %v", err)
	require.Equal(uint64(100), env.Holdings(alice, 8))

	r, err := env.Sell(alice, 8, 18, 0, env.deadline())
	require.NoError(err)
	sold := r.EventsOf(inter.KindSold)[0].(inter.Sold)
	require.Equal(uint64(499_010_000), sold.NewPrice8)
	require.Greater(sold.NewPrice8, uint64(499000000))
}

func TestSell_rejections(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.FundHoldings(alice, 2, 5))

	_, err := env.Sell(alice, 2, 6, 0, env.deadline())
	require.True(t, errors.Is(err, inter.ErrInsufficientBalance))

	_, err = env.Sell(alice, 2, 0, 0, env.deadline())
	require.True(t, errors.Is(err, inter.ErrInvalidAmount))

	q, err := env.QuoteSell(2, 1)
	require.NoError(t, err)
	_, err = env.Sell(alice, 2, 1, q.Net6+1, env.deadline())
	require.True(t, errors.Is(err, inter.ErrSlippageExceeded))

	r, err := env.Sell(alice, 2, 1, q.Net6, env.deadline())
	require.NoError(t, err)
	require.Equal(t, q.Net6, r.Events[0].(inter.Sold).Net6)
	require.Equal(t, uint64(4), env.Holdings(alice, 2))
}

func TestFundHoldings_backsTreasury(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	// 5 tokens at 5.00 with kappa 0.00055: 25.005500 USDC
	require.NoError(env.FundHoldings(alice, 2, 5))
	require.Equal(uint64(25_005_500), env.ledger.Treasury())

	// drain the treasury behind the engine's back
	require.NoError(env.ledger.Disburse(bob, env.ledger.Treasury()))
	before := env.Export()
	balance := env.ledger.Balance(alice)
	_, err := env.Sell(alice, 2, 1, 0, env.deadline())
	require.True(errors.Is(err, inter.ErrInsufficientBalance), "got %v", err)
	require.Equal(before, env.Export(), "an unpaid sell must not change state")
	require.Equal(balance, env.ledger.Balance(alice))
}

func TestSubscribeReceipts(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	ch := make(chan *inter.Receipt, 4)
	sub := env.SubscribeReceipts(ch)
	defer sub.Unsubscribe()

	r1, err := env.Buy(alice, 1, 1, 1<<40, env.deadline())
	require.NoError(err)
	r2, err := env.Buy(alice, 1, 1, 1<<40, env.deadline())
	require.NoError(err)

	require.Equal(r1, <-ch)
	require.Equal(r2, <-ch)
	require.NotEqual(r1.TxHash, r2.TxHash)
	require.Less(uint64(r1.Block), uint64(r2.Block))

	got, ok := env.Receipt(r2.TxHash)
	require.True(ok)
	require.Equal(r2, got)
}

// TestSubscribeReceipts_readingSubscriber runs concurrent writers against a
// subscriber that reads engine state for every receipt it is handed.
func TestSubscribeReceipts_readingSubscriber(t *testing.T) {
	env := newTestEnv(t)

	ch := make(chan *inter.Receipt)
	sub := env.SubscribeReceipts(ch)
	defer sub.Unsubscribe()

	const perWriter = 50
	seen := make(chan int)
	go func() {
		n := 0
		var last uint64
		for r := range ch {
			if uint64(r.Block) <= last {
				t.Errorf("receipt block %d after %d", r.Block, last)
			}
			last = uint64(r.Block)
			if _, err := env.Country(2); err != nil {
				t.Errorf("Country: %v", err)
			}
			if n++; n == 2*perWriter {
				break
			}
		}
		seen <- n
	}()

	var wg sync.WaitGroup
	for _, u := range []common.Address{alice, bob} {
		wg.Add(1)
		go func(u common.Address) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := env.Buy(u, 2, 1, 1<<40, env.deadline()); err != nil {
					t.Errorf("Buy: %v", err)
					return
				}
			}
		}(u)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("writers blocked behind the subscriber")
	}
	select {
	case n := <-seen:
		require.Equal(t, 2*perWriter, n)
	case <-time.After(10 * time.Second):
		t.Fatal("subscriber did not receive every receipt")
	}
	require.Equal(t, uint64(perWriter), env.Holdings(alice, 2))
	require.Equal(t, uint64(perWriter), env.Holdings(bob, 2))
}

func TestBoundedReceipts(t *testing.T) {
	st, err := BoundedReceipts(1)
	require.NoError(t, err)
	ledger := usdc.NewLedger(store.NewMemory[common.Address, usdc.Account](), nil)
	e, err := NewEngine(flagwars.FakeRules(), Config{Payments: ledger, Stores: &st, Logger: testLogger()})
	require.NoError(t, err)
	require.NoError(t, e.CreateCountry(inter.Country{ID: 1, Name: "A", Price8: 100, PriceMin8: 1, Reserve: 10}))
	require.NoError(t, ledger.Mint(alice, 1000))
	ledger.Approve(alice, 1000)

	r1, err := e.Buy(alice, 1, 1, 1000, e.Now()+10)
	require.NoError(t, err)
	r2, err := e.Buy(alice, 1, 1, 1000, e.Now()+10)
	require.NoError(t, err)

	_, ok := e.Receipt(r1.TxHash)
	require.False(t, ok)
	_, ok = e.Receipt(r2.TxHash)
	require.True(t, ok)
}

func TestCreateCountry(t *testing.T) {
	env := newTestEnv(t)
	err := env.CreateCountry(inter.Country{ID: 1, Name: "Again", Price8: 10, PriceMin8: 1})
	require.True(t, errors.Is(err, inter.ErrCountryExists))

	err = env.CreateCountry(inter.Country{ID: 9, Name: "Flat", Price8: 10, PriceMin8: 10})
	require.True(t, errors.Is(err, inter.ErrFloorPriceBreach))

	ids := []uint64{}
	for _, c := range env.Countries() {
		ids = append(ids, c.ID)
		require.True(t, c.Exists)
	}
	require.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestExportImport(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.AwardFreeAttacks(alice, 1)
	_, err := env.Buy(alice, 1, 20, 1<<40, env.deadline())
	require.NoError(err)
	_, err = env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 5}, 0, env.deadline())
	require.NoError(err)

	exported := env.Export()
	require.EqualValues(2, exported.Block)

	other := newTestEnv(t)
	require.True(errors.Is(other.Import(exported), ErrEngineNotEmpty))

	fresh, err := NewEngine(flagwars.MainRules(), Config{
		Clock:    NewMonotonicClock(new(mclock.Simulated), genesisTime),
		Payments: env.ledger,
		Logger:   testLogger(),
	})
	require.NoError(err)
	require.NoError(fresh.Import(exported))
	require.Equal(exported, fresh.Export())
	require.Equal(env.Quota(alice), fresh.Quota(alice))

	// the nonce continues, so the next hash differs from the source engine's last
	r, err := fresh.Buy(alice, 1, 1, 1<<40, fresh.Now()+60)
	require.NoError(err)
	require.EqualValues(3, r.Block)
}

func TestImport_rejectsOrphanEntries(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Buy(alice, 1, 20, 1<<40, env.deadline())
	require.NoError(t, err)
	base := env.Export()

	for _, tc := range []struct {
		name   string
		mutate func(s *State)
	}{
		{name: "holding", mutate: func(s *State) {
			s.Holdings = append(append([]Holding(nil), s.Holdings...), Holding{User: bob, Country: 9, Amount: 3})
		}},
		{name: "cooldown", mutate: func(s *State) {
			s.Cooldowns = append(append([]Cooldown(nil), s.Cooldowns...), Cooldown{User: bob, Country: 9, Until: genesisTime})
		}},
		{name: "war balance target", mutate: func(s *State) {
			s.WarBalance = append(append([]WarBalanceEntry(nil), s.WarBalance...), WarBalanceEntry{User: bob, Target: 9})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)
			s := base
			tc.mutate(&s)

			fresh, err := NewEngine(flagwars.MainRules(), Config{
				Clock:    NewMonotonicClock(new(mclock.Simulated), genesisTime),
				Payments: env.ledger,
				Logger:   testLogger(),
			})
			require.NoError(err)
			err = fresh.Import(s)
			require.True(errors.Is(err, inter.ErrCountryNotDeployed), err)

			empty := fresh.Export()
			require.Zero(empty.Block)
			require.Empty(empty.Countries)
			require.Empty(empty.Holdings)

			// the rejected import left nothing behind
			require.NoError(fresh.Import(base))
			require.Equal(base, fresh.Export())
		})
	}

	// per-user scope keys carry no target
	s := base
	s.WarBalance = append(append([]WarBalanceEntry(nil), s.WarBalance...), WarBalanceEntry{User: bob})
	fresh, err := NewEngine(flagwars.MainRules(), Config{
		Clock:    NewMonotonicClock(new(mclock.Simulated), genesisTime),
		Payments: env.ledger,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, fresh.Import(s))
}

func TestConcurrentQuotesAndTrades(t *testing.T) {
	env := newTestEnv(t)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q, err := env.QuoteBuy(2, 1)
				if err != nil || q.Gross6 == 0 {
					t.Errorf("QuoteBuy: %v %+v", err, q)
					return
				}
			}
		}()
	}
	for j := 0; j < 20; j++ {
		_, err := env.Buy(bob, 2, 1, 1<<40, env.deadline())
		require.NoError(t, err)
	}
	wg.Wait()
	require.Equal(t, uint64(20), env.Holdings(bob, 2))
	require.EqualValues(t, 20, env.Block())
}
