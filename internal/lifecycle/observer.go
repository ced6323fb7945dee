// Package lifecycle observes the host application's foreground state.
package lifecycle

import "sync"

// State represents the host application's visibility state.
type State string

const (
	StateForeground State = "foreground"
	StateBackground State = "background"
)

// Observer exposes foreground transition notifications. Callbacks fire on
// transition to foreground only; backgrounding is recorded but never
// broadcast, because it is not a sync trigger.
type Observer interface {
	Subscribe(callback func(State))
}

// Notifier is the Observer implementation the host embedding drives by
// calling Foreground and Background on platform lifecycle events.
type Notifier struct {
	mu        sync.Mutex
	state     State
	callbacks []func(State)
}

// NewNotifier creates a Notifier starting in the foreground state.
func NewNotifier() *Notifier {
	return &Notifier{state: StateForeground}
}

// Subscribe registers a callback invoked on background-to-foreground
// transitions.
func (n *Notifier) Subscribe(callback func(State)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callbacks = append(n.callbacks, callback)
}

// State returns the current lifecycle state.
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Foreground records a transition to the foreground and notifies
// subscribers. Calling it while already foregrounded is a no-op.
func (n *Notifier) Foreground() {
	n.mu.Lock()
	if n.state == StateForeground {
		n.mu.Unlock()
		return
	}
	n.state = StateForeground
	callbacks := make([]func(State), len(n.callbacks))
	copy(callbacks, n.callbacks)
	n.mu.Unlock()

	for _, cb := range callbacks {
		cb(StateForeground)
	}
}

// Background records a transition to the background. No notification is
// sent.
func (n *Notifier) Background() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StateBackground
}
