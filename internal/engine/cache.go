package engine

import "github.com/arborplan/thts/internal/mdp"

// StateValueCache remembers the resolved value of a state once it has
// been recognized as a reward lock, so that a later trial reaching the
// same state can skip straight to the cached value instead of
// re-expanding it. The driver stores nothing else here: states resolved
// at the last step of the horizon are not cached. Grounded on
// THTS::currentStateIsSolved's stateValueCache lookup/insert in the
// original source.
type StateValueCache struct {
	values   map[mdp.StateKey]float64
	disabled bool
}

// NewStateValueCache returns an empty, enabled cache.
func NewStateValueCache() *StateValueCache {
	return &StateValueCache{values: make(map[mdp.StateKey]float64)}
}

// Lookup reports whether state has a cached value.
func (c *StateValueCache) Lookup(state mdp.State) (float64, bool) {
	if c.disabled {
		return 0, false
	}
	v, ok := c.values[state.Key()]
	return v, ok
}

// Store records state's resolved value. A no-op once caching has been
// disabled, since the cache may by then hold stale entries from before
// whatever triggered the disable — in this engine, exhaustion of the
// node pool (§4.5), broadcast by Driver.SelectAction.
func (c *StateValueCache) Store(state mdp.State, value float64) {
	if c.disabled {
		return
	}
	c.values[state.Key()] = value
}

// Disable broadcasts that the cache must no longer be trusted and clears
// it, so every node that would have short-circuited through a stale
// entry instead falls through to full re-expansion.
func (c *StateValueCache) Disable() {
	c.disabled = true
	c.values = make(map[mdp.StateKey]float64)
}
