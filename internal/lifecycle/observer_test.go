// Package lifecycle tests for foreground state observation.
package lifecycle

import (
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// TestInitialState verifies a notifier starts foregrounded.
func TestInitialState(t *testing.T) {
	n := NewNotifier()
	if n.State() != StateForeground {
		t.Errorf("State() = %q, want foreground", n.State())
	}
}

// TestForegroundTransitionNotifies verifies only background-to-foreground
// transitions fire callbacks.
func TestForegroundTransitionNotifies(t *testing.T) {
	n := NewNotifier()
	r := &recorder{}
	n.Subscribe(r.record)

	// Already foregrounded: no notification.
	n.Foreground()
	if r.count() != 0 {
		t.Errorf("got %d notifications for a redundant Foreground(), want 0", r.count())
	}

	n.Background()
	if r.count() != 0 {
		t.Errorf("got %d notifications for Background(), want 0", r.count())
	}
	if n.State() != StateBackground {
		t.Errorf("State() = %q, want background", n.State())
	}

	n.Foreground()
	if r.count() != 1 {
		t.Fatalf("got %d notifications after returning to foreground, want 1", r.count())
	}
	if r.states[0] != StateForeground {
		t.Errorf("notified state = %q, want foreground", r.states[0])
	}
}

// TestMultipleSubscribers verifies all subscribers are notified.
func TestMultipleSubscribers(t *testing.T) {
	n := NewNotifier()
	a, b := &recorder{}, &recorder{}
	n.Subscribe(a.record)
	n.Subscribe(b.record)

	n.Background()
	n.Foreground()

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("subscriber counts = (%d, %d), want (1, 1)", a.count(), b.count())
	}
}

// TestRepeatedCycles verifies each round trip fires exactly once.
func TestRepeatedCycles(t *testing.T) {
	n := NewNotifier()
	r := &recorder{}
	n.Subscribe(r.record)

	for i := 0; i < 3; i++ {
		n.Background()
		n.Foreground()
	}

	if r.count() != 3 {
		t.Errorf("got %d notifications for 3 cycles, want 3", r.count())
	}
}
