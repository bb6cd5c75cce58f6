package usdc

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/store"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
)

// Account is a user's USDC position towards the contract.
type Account struct {
	Balance6   uint64 `json:"balance6"`
	Allowance6 uint64 `json:"allowance6"`
}

// Ledger is an in-process USDC token. The contract pulls payments with
// transferFrom, so a collection needs both balance and allowance; payouts
// are plain transfers out of the contract's treasury.
type Ledger struct {
	mu       sync.Mutex
	accounts store.Store[common.Address, Account]
	treasury uint64
	log      logrus.FieldLogger
}

// NewLedger returns a ledger over st.
func NewLedger(st store.Store[common.Address, Account], log logrus.FieldLogger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{accounts: st, log: log.WithField("module", "usdc")}
}

// Account returns the position of user.
func (l *Ledger) Account(user common.Address) Account {
	a, _ := l.accounts.Get(user)
	return a
}

// Balance returns user's USDC6 balance.
func (l *Ledger) Balance(user common.Address) uint64 {
	return l.Account(user).Balance6
}

// Allowance returns how much the contract may still pull from user.
func (l *Ledger) Allowance(user common.Address) uint64 {
	return l.Account(user).Allowance6
}

// Treasury returns the USDC6 held by the contract.
func (l *Ledger) Treasury() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury
}

// Mint credits amount6 to user.
func (l *Ledger) Mint(user common.Address, amount6 uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.Account(user)
	bal, err := safemath.Add(a.Balance6, amount6)
	if err != nil {
		return err
	}
	a.Balance6 = bal
	l.accounts.Set(user, a)
	return nil
}

// Approve sets the allowance of the contract over user's funds.
func (l *Ledger) Approve(user common.Address, amount6 uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.Account(user)
	a.Allowance6 = amount6
	l.accounts.Set(user, a)
}

// Collect pulls amount6 from user into the treasury.
func (l *Ledger) Collect(user common.Address, amount6 uint64) error {
	if amount6 == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.Account(user)
	if a.Balance6 < amount6 {
		return fmt.Errorf("%w: have %s USDC, need %s", inter.ErrInsufficientBalance, Format(a.Balance6), Format(amount6))
	}
	if a.Allowance6 < amount6 {
		return fmt.Errorf("%w: approved %s USDC, need %s", inter.ErrInsufficientAllowance, Format(a.Allowance6), Format(amount6))
	}
	treasury, err := safemath.Add(l.treasury, amount6)
	if err != nil {
		return err
	}
	a.Balance6 -= amount6
	a.Allowance6 -= amount6
	l.accounts.Set(user, a)
	l.treasury = treasury
	l.log.WithFields(logrus.Fields{"user": user, "amount": Format(amount6)}).Debug("USDC collected")
	return nil
}

// FundTreasury adds amount6 of seeded liquidity to the treasury. It backs
// tokens handed out without a purchase so they can later be sold.
func (l *Ledger) FundTreasury(amount6 uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	treasury, err := safemath.Add(l.treasury, amount6)
	if err != nil {
		return err
	}
	l.treasury = treasury
	l.log.WithField("amount", Format(amount6)).Debug("Treasury funded")
	return nil
}

// Disburse pays amount6 from the treasury to user. A treasury that cannot
// cover the payout rejects it with ErrInsufficientBalance.
func (l *Ledger) Disburse(user common.Address, amount6 uint64) error {
	if amount6 == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.treasury < amount6 {
		return fmt.Errorf("%w: treasury holds %s USDC, owes %s", inter.ErrInsufficientBalance, Format(l.treasury), Format(amount6))
	}
	a := l.Account(user)
	bal, err := safemath.Add(a.Balance6, amount6)
	if err != nil {
		return err
	}
	a.Balance6 = bal
	l.accounts.Set(user, a)
	l.treasury -= amount6
	l.log.WithFields(logrus.Fields{"user": user, "amount": Format(amount6)}).Debug("USDC disbursed")
	return nil
}
