// Package network provides connectivity and reachability monitoring.
//
// Holding a network link is not the same as being online: a device can keep
// a live Wi-Fi association to a captive portal with no real connectivity.
// The monitor therefore tracks link presence (fed by the host) and verified
// internet reachability (checked by an HTTP probe) separately.
package network

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Transport identifies the active network interface kind.
type Transport string

const (
	TransportNone     Transport = "none"
	TransportWiFi     Transport = "wifi"
	TransportCellular Transport = "cellular"
	TransportEthernet Transport = "ethernet"
)

// State is a snapshot of current connectivity.
type State struct {
	Connected bool      `json:"connected"` // a network interface is up
	Reachable bool      `json:"reachable"` // the internet actually answers
	Transport Transport `json:"transport"`
}

// Usable reports whether the network can carry sync traffic.
func (s State) Usable() bool {
	return s.Connected && s.Reachable
}

// Monitor exposes connectivity state and transition notifications.
type Monitor interface {
	// State returns the current network state.
	State() State

	// Subscribe registers a callback invoked on every state transition.
	Subscribe(callback func(State))
}

// ProbeMonitor implements Monitor with a periodic HTTP reachability probe.
// The host embedding feeds link-layer changes via SetLink; the probe loop
// verifies that the internet is actually reachable over that link.
type ProbeMonitor struct {
	mu        sync.RWMutex
	state     State
	callbacks []func(State)

	probeURL string
	interval time.Duration
	client   *http.Client

	cancel context.CancelFunc
}

// DefaultProbeURL answers 204 with no body, which keeps probes cheap.
const DefaultProbeURL = "http://connectivitycheck.gstatic.com/generate_204"

// DefaultProbeInterval is how often reachability is re-verified.
const DefaultProbeInterval = 30 * time.Second

// NewProbeMonitor creates a ProbeMonitor. Empty probeURL or zero interval
// select the defaults.
func NewProbeMonitor(probeURL string, interval time.Duration) *ProbeMonitor {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &ProbeMonitor{
		state:    State{Transport: TransportNone},
		probeURL: probeURL,
		interval: interval,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// State returns the current network state.
func (m *ProbeMonitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers a callback invoked on every state transition.
func (m *ProbeMonitor) Subscribe(callback func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// SetLink records a link-layer change reported by the host. Losing the link
// also clears reachability; gaining it triggers an immediate probe.
func (m *ProbeMonitor) SetLink(connected bool, transport Transport) {
	m.mu.Lock()
	next := m.state
	next.Connected = connected
	next.Transport = transport
	if !connected {
		next.Reachable = false
	}
	changed := next != m.state
	m.state = next
	m.mu.Unlock()

	if changed {
		m.notify(next)
	}
	if connected {
		go m.probeOnce()
	}
}

// Start runs the reachability probe loop until ctx is cancelled or Stop is
// called.
func (m *ProbeMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.probeOnce()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeOnce()
			}
		}
	}()
}

// Stop halts the probe loop.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// probeOnce checks reachability and updates state on change.
func (m *ProbeMonitor) probeOnce() {
	m.mu.RLock()
	connected := m.state.Connected
	m.mu.RUnlock()

	reachable := false
	if connected {
		reachable = m.probe()
	}

	m.mu.Lock()
	if m.state.Reachable == reachable {
		m.mu.Unlock()
		return
	}
	m.state.Reachable = reachable
	next := m.state
	m.mu.Unlock()

	m.notify(next)
}

// probe performs one reachability check.
func (m *ProbeMonitor) probe() bool {
	req, err := http.NewRequest(http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// A captive portal rewrites the response into a 200 login page; only
	// the exact 204 counts as real connectivity.
	return resp.StatusCode == http.StatusNoContent
}

// notify invokes subscribers with the new state.
func (m *ProbeMonitor) notify(state State) {
	m.mu.RLock()
	callbacks := make([]func(State), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for _, cb := range callbacks {
		cb(state)
	}
}
