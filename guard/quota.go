package guard

import "github.com/archslayer/flagbase111-sub000/inter"

// DefaultFreeAttackLimit is the lifetime cap on awarded free attacks.
const DefaultFreeAttackLimit = 2

// TryConsumeFreeAttack consumes one free attack for a single attack. Batch
// attacks never consume quota and are always charged in full.
func TryConsumeFreeAttack(q inter.UserQuota, limit uint64, isBatch bool) (inter.UserQuota, bool) {
	if isBatch || q.Remaining(limit) == 0 {
		return q, false
	}
	q.FreeAttacksUsed++
	return q, true
}

// AwardFreeAttacks raises the awarded counter by n, capped at limit. Awarding
// never lowers the counter and never touches FreeAttacksUsed.
func AwardFreeAttacks(q inter.UserQuota, n, limit uint64) inter.UserQuota {
	awarded := q.FreeAttacksAwarded + n
	if awarded < q.FreeAttacksAwarded || awarded > limit {
		awarded = limit
	}
	if awarded > q.FreeAttacksAwarded {
		q.FreeAttacksAwarded = awarded
	}
	return q
}
