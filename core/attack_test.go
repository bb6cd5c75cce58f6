package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/archslayer/flagbase111-sub000/flagwars"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/warbalance"
)

// TestAttackBatch_tier1Fees runs five Tier 1 attacks as one batch while free
// attacks are available: every item is charged 0.30 USDC and no free attack
// is used.
func TestAttackBatch_tier1Fees(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.FundHoldings(alice, 1, 10))
	env.AwardFreeAttacks(alice, 2)
	balance := env.ledger.Balance(alice)

	items := make([]AttackItem, 5)
	for i := range items {
		items[i] = AttackItem{FromID: 1, ToID: 2, Amount: 1}
	}
	r, err := env.AttackBatch(alice, items, 1_500_000, env.deadline())
	require.NoError(err)

	attacks := r.EventsOf(inter.KindAttack)
	require.Len(attacks, 5)
	var sum uint64
	for _, ev := range attacks {
		a := ev.(inter.Attack)
		require.Equal(uint64(300_000), a.Fee6)
		require.True(a.Batch)
		require.False(a.Free)
		sum += a.Fee6
	}
	require.Equal(uint64(1_500_000), sum)
	require.Equal(uint64(1_500_000), r.TotalAttackFee6())
	require.Empty(r.EventsOf(inter.KindFreeAttackUsed))
	require.Equal(balance-1_500_000, env.ledger.Balance(alice))
	require.Equal(uint64(2), env.FreeAttacksRemaining(alice))
	require.Zero(env.Quota(alice).FreeAttacksUsed)

	// the fifth attack reaches the WB1 threshold and keeps 60% of the delta
	last := attacks[4].(inter.Attack)
	require.Equal(uint64(6000), last.MultiplierBps)
	require.Equal(uint64(78_000), last.Delta8)
	target, err := env.Country(2)
	require.NoError(err)
	require.Equal(uint64(500_000_000-4*130_000-78_000), target.Price8)
	attacker, err := env.Country(1)
	require.NoError(err)
	require.Equal(uint64(400_000_000+4*130_000+78_000), attacker.Price8)

	lvl, st := env.WarBalance(alice, 2)
	require.Equal(warbalance.WB1Active, lvl)
	require.Equal(uint64(5), st.Windows[warbalance.WB1].Count)
}

func TestAttack_freeAttackExactness(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.FundHoldings(alice, 1, 10))
	env.AwardFreeAttacks(alice, 2)
	balance := env.ledger.Balance(alice)

	for i := uint64(1); i <= 2; i++ {
		r, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 0, env.deadline())
		require.NoError(err)
		a := r.EventsOf(inter.KindAttack)[0].(inter.Attack)
		require.True(a.Free)
		require.Zero(a.Fee6)
		used := r.EventsOf(inter.KindFreeAttackUsed)
		require.Len(used, 1)
		require.Equal(2-i, used[0].(inter.FreeAttackUsed).Remaining)
		require.Equal(i, env.Quota(alice).FreeAttacksUsed)
	}
	require.Equal(balance, env.ledger.Balance(alice))

	// quota exhausted: the full tier fee applies and nothing more is used
	_, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 0, env.deadline())
	require.True(errors.Is(err, inter.ErrSlippageExceeded), "got %v", err)

	r, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 300_000, env.deadline())
	require.NoError(err)
	require.Empty(r.EventsOf(inter.KindFreeAttackUsed))
	require.Equal(uint64(300_000), r.TotalAttackFee6())
	require.Equal(uint64(2), env.Quota(alice).FreeAttacksUsed)
	require.Equal(balance-300_000, env.ledger.Balance(alice))
}

func TestAttack_selfAttackRejected(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.FundHoldings(alice, 1, 10))
	for _, id := range []uint64{0, 1, 2, 99} {
		_, err := env.Attack(alice, AttackItem{FromID: id, ToID: id, Amount: 1}, 1<<40, env.deadline())
		if !errors.Is(err, inter.ErrSelfAttackRejected) {
			t.Errorf("attack(%d, %d) err = %v, want ErrSelfAttackRejected", id, id, err)
		}
	}
}

func TestAttack_floor(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.FundHoldings(alice, 1, 10))
	require.NoError(env.CreateCountry(inter.Country{
		ID: 10, Name: "Peru", Price8: 500_000_000, Kappa8: 55000, Lambda8: 55000, PriceMin8: 499_900_000, Reserve: 10,
	}))
	before := env.Export()

	_, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 10, Amount: 1}, 1<<40, env.deadline())
	require.True(errors.Is(err, inter.ErrFloorPriceBreach), "got %v", err)
	require.Equal(before, env.Export(), "neither country may move")
}

func TestAttack_rejections(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.FundHoldings(alice, 1, 3))

	tests := []struct {
		name string
		item AttackItem
		want error
	}{
		{"zero amount", AttackItem{FromID: 1, ToID: 2}, inter.ErrInvalidAmount},
		{"unknown attacker", AttackItem{FromID: 50, ToID: 2, Amount: 1}, inter.ErrCountryNotDeployed},
		{"unknown target", AttackItem{FromID: 1, ToID: 50, Amount: 1}, inter.ErrCountryNotDeployed},
		{"not enough tokens", AttackItem{FromID: 1, ToID: 2, Amount: 4}, inter.ErrInsufficientBalance},
		{"no tokens of attacker", AttackItem{FromID: 2, ToID: 1, Amount: 1}, inter.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Attack(alice, tt.item, 1<<40, env.deadline())
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAttackBatch_atomic(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.FundHoldings(alice, 1, 10))
	before := env.Export()
	balance := env.ledger.Balance(alice)

	items := []AttackItem{
		{FromID: 1, ToID: 2, Amount: 1},
		{FromID: 1, ToID: 3, Amount: 1},
		{FromID: 2, ToID: 2, Amount: 1},
	}
	_, err := env.AttackBatch(alice, items, 1<<40, env.deadline())
	require.True(errors.Is(err, inter.ErrSelfAttackRejected), "got %v", err)
	require.Equal(before, env.Export())
	require.Equal(balance, env.ledger.Balance(alice))
	require.EqualValues(0, env.Block())
}

func TestAttackBatch_limits(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.FundHoldings(alice, 1, 10))

	_, err := env.AttackBatch(alice, nil, 1<<40, env.deadline())
	require.True(t, errors.Is(err, inter.ErrInvalidAmount))

	items := make([]AttackItem, flagwars.DefaultBatchMaxItems+1)
	for i := range items {
		items[i] = AttackItem{FromID: 1, ToID: 2, Amount: 1}
	}
	_, err = env.AttackBatch(alice, items, 1<<40, env.deadline())
	require.True(t, errors.Is(err, inter.ErrBatchTooLarge))

	_, err = env.AttackBatch(alice, items[:2], 599_999, env.deadline())
	require.True(t, errors.Is(err, inter.ErrSlippageExceeded))
}

// TestAttackBatch_tierPerItem checks that each item resolves its tier from
// the price the previous items left behind.
func TestAttackBatch_tierPerItem(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.CreateCountry(inter.Country{
		ID: 11, Name: "Edge", Price8: 499_900_000, Kappa8: 1, Lambda8: 1, PriceMin8: 1, Reserve: 10,
	}))
	require.NoError(env.FundHoldings(alice, 11, 5))

	items := []AttackItem{{FromID: 11, ToID: 2, Amount: 1}, {FromID: 11, ToID: 3, Amount: 1}}
	r, err := env.AttackBatch(alice, items, 1<<40, env.deadline())
	require.NoError(err)
	fees := []uint64{}
	for _, ev := range r.EventsOf(inter.KindAttack) {
		fees = append(fees, ev.(inter.Attack).Fee6)
	}
	// 4.999 -> 5.0003 after the first delta moves the attacker into tier 2
	require.Equal([]uint64{300_000, 350_000}, fees)
}

func TestAttack_warBalanceWindowRestarts(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.FundHoldings(alice, 1, 10))

	for i := 0; i < 4; i++ {
		_, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 1<<40, env.deadline())
		require.NoError(err)
	}
	lvl, _ := env.WarBalance(alice, 2)
	require.Equal(warbalance.BelowWB1, lvl)

	env.sim.Run(301 * time.Second)
	r, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 1<<40, env.deadline())
	require.NoError(err)
	a := r.EventsOf(inter.KindAttack)[0].(inter.Attack)
	require.Equal(uint64(10000), a.MultiplierBps, "WB1 restarted, no multiplier")

	_, st := env.WarBalance(alice, 2)
	require.Equal(uint64(1), st.Windows[warbalance.WB1].Count)
	require.Equal(uint64(5), st.Windows[warbalance.WB2].Count)

	// other targets are tracked separately under the default scope
	lvl, _ = env.WarBalance(alice, 3)
	require.Equal(warbalance.BelowWB1, lvl)
}

// TestWarBalance_reportsLevelBeforeNextAttack pins that WarBalance reports
// the level in force now; the attack that crosses a threshold runs at the
// new level.
func TestWarBalance_reportsLevelBeforeNextAttack(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.FundHoldings(alice, 1, 10))

	for i := 0; i < 4; i++ {
		_, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 1<<40, env.deadline())
		require.NoError(err)
	}
	lvl, st := env.WarBalance(alice, 2)
	require.Equal(warbalance.BelowWB1, lvl)
	require.Equal(uint64(4), st.Windows[warbalance.WB1].Count)

	r, err := env.Attack(alice, AttackItem{FromID: 1, ToID: 2, Amount: 1}, 1<<40, env.deadline())
	require.NoError(err)
	a := r.EventsOf(inter.KindAttack)[0].(inter.Attack)
	require.Equal(uint64(6000), a.MultiplierBps, "the fifth attack is counted before it is priced")

	lvl, _ = env.WarBalance(alice, 2)
	require.Equal(warbalance.WB1Active, lvl)
}

func TestPreviewAttackFee(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	p, err := env.PreviewAttackFee(3, alice)
	require.NoError(err)
	require.Equal(AttackFeePreview{BaseFee6: 400_000, FinalFee6: 400_000, Tier: 2, Delta8: 90_000}, p)

	env.AwardFreeAttacks(alice, 1)
	p, err = env.PreviewAttackFee(1, alice)
	require.NoError(err)
	require.True(p.IsFreeAttack)
	require.Zero(p.FinalFee6)
	require.Equal(uint64(300_000), p.BaseFee6)
	require.Equal(uint64(1), p.FreeAttacksRemaining)

	_, err = env.PreviewAttackFee(99, alice)
	require.True(errors.Is(err, inter.ErrCountryNotDeployed))
}
