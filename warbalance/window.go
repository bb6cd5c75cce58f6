// Package warbalance dampens attack spam with two rolling attack-velocity
// windows.
//
// Every attack advances both windows of its tracking key. A short window
// (WB1) reacts to bursts, a long window (WB2) to sustained pressure. Once a
// window's count reaches its threshold, its multiplier scales the price delta
// of the attack (and the fee, when configured). When both thresholds are met
// WB2 wins.
//
// Windows are anchored at the first attack they counted, not at calendar
// boundaries: a window restarts when more than WindowSec seconds elapsed since
// that first attack.
package warbalance

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/utils/safemath"
)

// Indices of the two windows in State.Windows.
const (
	// WB1 is the short burst window.
	WB1 = 0

	// WB2 is the long sustained-pressure window. It supersedes WB1.
	WB2 = 1

	// Windows is the number of tracked windows.
	Windows = 2
)

// Level is the war-balance state of a tracking key.
type Level uint8

const (
	BelowWB1 Level = iota
	WB1Active
	WB2Active
)

func (l Level) String() string {
	switch l {
	case BelowWB1:
		return "BELOW_WB1"
	case WB1Active:
		return "WB1_ACTIVE"
	case WB2Active:
		return "WB2_ACTIVE"
	default:
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
}

// Window configures one rolling window.
type Window struct {
	// Threshold is the attack count at which the multiplier activates.
	Threshold uint64 `json:"threshold" yaml:"threshold" toml:"threshold"`
	// WindowSec is the window length in seconds.
	WindowSec uint64 `json:"windowSec" yaml:"window_sec" toml:"window_sec"`
	// MultiplierBps scales the delta once the threshold is met; 6000 keeps
	// 60% of the normal delta.
	MultiplierBps uint64 `json:"multiplierBps" yaml:"multiplier_bps" toml:"multiplier_bps"`
}

// Config is the war-balance section of the engine rules.
type Config struct {
	Scope Scope  `json:"scope" yaml:"scope" toml:"scope"`
	WB1   Window `json:"wb1" yaml:"wb1" toml:"wb1"`
	WB2   Window `json:"wb2" yaml:"wb2" toml:"wb2"`
	// DiscountFee applies the active multiplier to the attack fee as well.
	DiscountFee bool `json:"discountFee" yaml:"discount_fee" toml:"discount_fee"`
}

// DefaultConfig returns the production windows: 5 attacks in 5 minutes keep
// 60% of the delta, 20 attacks in an hour keep 80%.
func DefaultConfig() Config {
	return Config{
		Scope: ScopeUserTarget,
		WB1:   Window{Threshold: 5, WindowSec: 300, MultiplierBps: 6000},
		WB2:   Window{Threshold: 20, WindowSec: 3600, MultiplierBps: 8000},
	}
}

// Window returns the configuration of window i (WB1 or WB2).
func (c Config) Window(i int) Window {
	if i == WB2 {
		return c.WB2
	}
	return c.WB1
}

// Validate checks the windows and the scope.
func (c Config) Validate() error {
	if _, err := ParseScope(string(c.Scope)); err != nil {
		return err
	}
	for i := 0; i < Windows; i++ {
		w := c.Window(i)
		if w.Threshold == 0 || w.WindowSec == 0 {
			return fmt.Errorf("%w: war-balance window %d needs a threshold and a length", inter.ErrInvalidRules, i+1)
		}
		if w.MultiplierBps > inter.BpsDenominator {
			return fmt.Errorf("%w: war-balance window %d multiplier %d bps above 100%%", inter.ErrInvalidRules, i+1, w.MultiplierBps)
		}
	}
	return nil
}

// Counter is the state of one window.
type Counter struct {
	// Count is the number of attacks counted since Start.
	Count uint64 `json:"count"`
	// Start is the time of the first attack of the current window.
	Start inter.Timestamp `json:"start"`
}

// expired reports whether the window is empty or more than windowSec seconds
// passed since its first attack.
func (c Counter) expired(w Window, now inter.Timestamp) bool {
	return c.Count == 0 || now.Since(c.Start) > w.WindowSec
}

// State is the war-balance state of one tracking key.
type State struct {
	Windows [Windows]Counter `json:"windows"`
}

// Observe returns the state after one more attack at now.
func Observe(cfg Config, s State, now inter.Timestamp) State {
	next := s
	for i := range next.Windows {
		c := &next.Windows[i]
		if c.expired(cfg.Window(i), now) {
			c.Count = 1
			c.Start = now
			continue
		}
		c.Count++
	}
	return next
}

// LevelAt returns the level of s as seen at now. Windows that expired by now
// count as empty.
func LevelAt(cfg Config, s State, now inter.Timestamp) Level {
	count := func(i int) uint64 {
		c := s.Windows[i]
		if c.expired(cfg.Window(i), now) {
			return 0
		}
		return c.Count
	}
	if count(WB2) >= cfg.WB2.Threshold {
		return WB2Active
	}
	if count(WB1) >= cfg.WB1.Threshold {
		return WB1Active
	}
	return BelowWB1
}

// MultiplierBps returns the multiplier of the level. BelowWB1 leaves values
// unchanged.
func (c Config) MultiplierBps(l Level) uint64 {
	switch l {
	case WB2Active:
		return c.WB2.MultiplierBps
	case WB1Active:
		return c.WB1.MultiplierBps
	default:
		return inter.BpsDenominator
	}
}

// Apply scales an attack's delta, and its fee when DiscountFee is set, by the
// multiplier of the level.
func (c Config) Apply(l Level, delta8, fee6 uint64) (uint64, uint64, error) {
	mul := c.MultiplierBps(l)
	d, err := safemath.Bps(delta8, mul)
	if err != nil {
		return 0, 0, err
	}
	if !c.DiscountFee {
		return d, fee6, nil
	}
	f, err := safemath.Bps(fee6, mul)
	if err != nil {
		return 0, 0, err
	}
	return d, f, nil
}

// String returns a human-readable form for logs.
func (s State) String() string {
	return fmt.Sprintf("{wb1=%d@%s, wb2=%d@%s}",
		s.Windows[WB1].Count, s.Windows[WB1].Start, s.Windows[WB2].Count, s.Windows[WB2].Start)
}

// Scope selects what a war-balance window is tracked per.
type Scope string

const (
	// ScopeUser tracks one window pair per attacking user.
	ScopeUser Scope = "user"
	// ScopeTarget tracks one window pair per target country.
	ScopeTarget Scope = "target"
	// ScopeUserTarget tracks one window pair per (user, target) pair.
	ScopeUserTarget Scope = "user-target"
)

// ParseScope parses a scope name. The empty string selects ScopeUserTarget.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeUserTarget, nil
	case ScopeUser, ScopeTarget, ScopeUserTarget:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: unknown war-balance scope %q", inter.ErrInvalidRules, s)
	}
}

// Key identifies a tracked window pair.
type Key struct {
	User   common.Address
	Target uint64
}

// KeyFor derives the tracking key of an attack under the scope.
func (s Scope) KeyFor(user common.Address, targetID uint64) Key {
	switch s {
	case ScopeUser:
		return Key{User: user}
	case ScopeTarget:
		return Key{Target: targetID}
	default:
		return Key{User: user, Target: targetID}
	}
}
