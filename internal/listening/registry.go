// Package listening tracks the per-channel policy governing which non-mention
// messages are reply-eligible.
package listening

import (
	"fmt"
	"sync"
)

type Mode string

const (
	ModeDisabled     Mode = "disabled"
	ModeMentionsOnly Mode = "mentions-only"
	ModeAlwaysListen Mode = "always-listen"
	ModeSmart        Mode = "smart-listening"
)

const DefaultThreshold = 0.6

// State is a channel's current listening policy. Threshold only applies to
// smart-listening.
type State struct {
	Mode      Mode
	Threshold float64
}

// Registry holds per-channel listening state, owned by the orchestration
// layer and mutated only through Set. Channels without an entry use the
// configured default.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]State
	def      State
}

func NewRegistry() *Registry {
	return NewRegistryWithDefault(State{Mode: ModeSmart, Threshold: DefaultThreshold})
}

func NewRegistryWithDefault(def State) *Registry {
	if def.Mode == "" {
		def.Mode = ModeSmart
	}
	if def.Mode == ModeSmart && (def.Threshold <= 0 || def.Threshold > 1) {
		def.Threshold = DefaultThreshold
	}
	return &Registry{
		channels: make(map[string]State),
		def:      def,
	}
}

// ParseMode validates an administrative mode name.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case ModeDisabled, ModeMentionsOnly, ModeAlwaysListen, ModeSmart:
		return Mode(name), nil
	}
	return "", fmt.Errorf("unknown listening mode %q (valid: disabled, mentions-only, always-listen, smart-listening)", name)
}

// Set transitions a channel to a new mode. Invalid input leaves the previous
// state untouched and reports the problem to the caller.
func (r *Registry) Set(channelID, modeName string, threshold float64) error {
	mode, err := ParseMode(modeName)
	if err != nil {
		return err
	}
	if mode == ModeSmart && (threshold < 0 || threshold > 1) {
		return fmt.Errorf("smart-listening threshold %v out of range [0,1]", threshold)
	}

	st := State{Mode: mode}
	if mode == ModeSmart {
		if threshold == 0 {
			threshold = r.def.Threshold
		}
		st.Threshold = threshold
	}

	r.mu.Lock()
	r.channels[channelID] = st
	r.mu.Unlock()
	return nil
}

// Get returns the channel's current state, falling back to the default.
func (r *Registry) Get(channelID string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.channels[channelID]; ok {
		return st
	}
	return r.def
}

// Eligible answers whether a non-mention message in this channel may be
// considered for a reply at all. The registry never evaluates messages
// itself: for smart-listening the orchestrator still runs the scorer against
// the returned threshold.
func (r *Registry) Eligible(channelID string) bool {
	switch r.Get(channelID).Mode {
	case ModeDisabled, ModeMentionsOnly:
		return false
	default:
		return true
	}
}
