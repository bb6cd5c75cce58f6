package inter

// UserQuota is the per-user free-attack counter.
//
// FreeAttacksUsed only ever increases. FreeAttacksAwarded is raised by the
// quest subsystem and capped at the global limit; the engine itself never
// awards.
type UserQuota struct {
	FreeAttacksUsed    uint64 `json:"freeAttacksUsed"`
	FreeAttacksAwarded uint64 `json:"freeAttacksAwarded"`
}

// Remaining returns min(awarded, limit) - used, floored at zero.
func (q UserQuota) Remaining(limit uint64) uint64 {
	awarded := q.FreeAttacksAwarded
	if awarded > limit {
		awarded = limit
	}
	if q.FreeAttacksUsed >= awarded {
		return 0
	}
	return awarded - q.FreeAttacksUsed
}
