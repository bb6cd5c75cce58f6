package inter

import (
	"strconv"
	"time"
)

// Timestamp is a unix time in whole seconds, the resolution the contract
// sees through block.timestamp. Cooldowns, war-balance windows and deadlines
// are all expressed in it.
type Timestamp uint64

// FromUnix converts unix seconds into a Timestamp. Negative values clamp to 0.
func FromUnix(sec int64) Timestamp {
	if sec < 0 {
		return 0
	}
	return Timestamp(sec)
}

// FromTime truncates t to whole seconds.
func FromTime(t time.Time) Timestamp {
	return FromUnix(t.Unix())
}

// Unix returns the timestamp as unix seconds.
func (t Timestamp) Unix() int64 {
	return int64(t)
}

// Time returns the timestamp as a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns t shifted forward by sec seconds.
func (t Timestamp) Add(sec uint64) Timestamp {
	return t + Timestamp(sec)
}

// Since returns the number of seconds elapsed from earlier to t, or 0 when
// earlier is in the future.
func (t Timestamp) Since(earlier Timestamp) uint64 {
	if t < earlier {
		return 0
	}
	return uint64(t - earlier)
}

func (t Timestamp) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
