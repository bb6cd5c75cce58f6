package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// Clock supplies the block time of executed transactions.
type Clock interface {
	Now() inter.Timestamp
}

// WallClock reads the system time.
type WallClock struct{}

func (WallClock) Now() inter.Timestamp {
	return inter.FromTime(time.Now())
}

// MonotonicClock projects an mclock.Clock onto unix time: it starts at base
// and advances with the wrapped clock. Wrapping an *mclock.Simulated gives
// tests full control over cooldowns and war-balance windows.
type MonotonicClock struct {
	clock mclock.Clock
	base  inter.Timestamp
	start mclock.AbsTime
}

// NewMonotonicClock returns a clock reading base now.
func NewMonotonicClock(c mclock.Clock, base inter.Timestamp) *MonotonicClock {
	return &MonotonicClock{clock: c, base: base, start: c.Now()}
}

func (m *MonotonicClock) Now() inter.Timestamp {
	elapsed := time.Duration(m.clock.Now() - m.start)
	return m.base.Add(uint64(elapsed / time.Second))
}
