package warbalance

import (
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/store"
)

// Tracker keeps the war-balance state of every key in a store.
//
// Tracker is not a transaction boundary: callers that must advance windows
// atomically with other state (the engine) use State/Put around their own
// commit, everybody else uses Advance.
type Tracker struct {
	cfg   Config
	store store.Store[Key, State]
}

// NewTracker returns a tracker over st.
func NewTracker(cfg Config, st store.Store[Key, State]) *Tracker {
	return &Tracker{cfg: cfg, store: st}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// State returns the stored state of key. Unknown keys have empty windows.
func (t *Tracker) State(key Key) State {
	s, _ := t.store.Get(key)
	return s
}

// Put replaces the state of key.
func (t *Tracker) Put(key Key, s State) {
	t.store.Set(key, s)
}

// Peek returns the level of key at now without recording an attack.
func (t *Tracker) Peek(key Key, now inter.Timestamp) Level {
	return LevelAt(t.cfg, t.State(key), now)
}

// Advance records one attack for key at now and returns the level that
// applies to it.
func (t *Tracker) Advance(key Key, now inter.Timestamp) (Level, State) {
	next := Observe(t.cfg, t.State(key), now)
	t.store.Set(key, next)
	return LevelAt(t.cfg, next, now), next
}
