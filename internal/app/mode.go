package app

import (
	"sync"
	"time"
)

// ModeState is the JSON view of a session's mode.
type ModeState struct {
	Degraded  bool        `json:"degraded"`
	Reason    string      `json:"reason,omitempty"`
	Since     time.Time   `json:"since"`
	LastProbe ProbeResult `json:"last_probe"`
}

// Mode tracks whether one admin session writes to the remote store or the local mirror.
// Degrade only moves reachable to degraded; a fresh probe via Apply is the only way back.
type Mode struct {
	mu    sync.Mutex
	state ModeState
}

func (m *Mode) Degraded() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Degraded
}

func (m *Mode) Degrade(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Degraded {
		return
	}
	m.state.Degraded = true
	m.state.Reason = reason
	m.state.Since = time.Now()
}

func (m *Mode) Apply(r ProbeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastProbe = r
	if m.state.Degraded != !r.Reachable {
		m.state.Since = r.CheckedAt
	}
	m.state.Degraded = !r.Reachable
	m.state.Reason = ""
	if !r.Reachable {
		m.state.Reason = r.Message
	}
}

func (m *Mode) State() ModeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Modes holds one Mode per admin session. Entries idle for longer than the session
// lifetime belong to expired sessions and are pruned.
type Modes struct {
	mu        sync.Mutex
	m         map[string]*modeEntry
	idle      time.Duration
	lastPrune time.Time
}

type modeEntry struct {
	mode *Mode
	seen time.Time
}

// NewModes keeps a session's mode until it has gone unused for idle. Zero keeps entries
// until Drop.
func NewModes(idle time.Duration) *Modes {
	return &Modes{m: map[string]*modeEntry{}, idle: idle, lastPrune: time.Now()}
}

func (ms *Modes) For(session string) *Mode {
	now := time.Now()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.idle > 0 && now.Sub(ms.lastPrune) >= ms.idle {
		ms.prune(now)
	}
	e, ok := ms.m[session]
	if !ok {
		e = &modeEntry{mode: &Mode{}}
		ms.m[session] = e
	}
	e.seen = now
	return e.mode
}

func (ms *Modes) Drop(session string) {
	ms.mu.Lock()
	delete(ms.m, session)
	ms.mu.Unlock()
}

// Prune removes entries unused since now minus the idle lifetime and reports how many.
func (ms *Modes) Prune(now time.Time) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.prune(now)
}

func (ms *Modes) prune(now time.Time) int {
	ms.lastPrune = now
	if ms.idle <= 0 {
		return 0
	}
	n := 0
	for id, e := range ms.m {
		if now.Sub(e.seen) > ms.idle {
			delete(ms.m, id)
			n++
		}
	}
	return n
}

func (ms *Modes) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.m)
}
